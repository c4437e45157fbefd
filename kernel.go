// Package rtkernel is the public API for the preemptive real-time core:
// tasks, priority-inheriting synchronization objects, an ELF32 process
// loader and the trap-based syscall path that ties a loaded process back
// to the file system it was loaded from.
package rtkernel

import (
	"github.com/vrcore/rtkernel/internal/elf"
	"github.com/vrcore/rtkernel/internal/kern"
	"github.com/vrcore/rtkernel/internal/syscall"
)

// Config configures a Kernel. See kern.DefaultConfig for the stack-size
// and priority-ceiling defaults.
type Config = kern.Config

// DefaultConfig returns the board-default configuration.
func DefaultConfig() Config { return kern.DefaultConfig() }

// Re-exported core types, so callers never need to import internal/kern
// directly.
type (
	Task        = kern.Task
	TaskContext = kern.TaskContext
	TaskFunc    = kern.TaskFunc
	TaskInfo    = kern.TaskInfo
	TaskState   = kern.TaskState
	WaitMode    = kern.WaitMode
	Waitable    = kern.Waitable
	Process     = kern.Process

	Semaphore    = kern.Semaphore
	Mutex        = kern.Mutex
	Event        = kern.Event
	EventMode    = kern.EventMode
	MessageQueue = kern.MessageQueue
	Topic        = kern.Topic

	PushDiscipline = kern.PushDiscipline
	Logger         = kern.Logger
	Observer       = kern.Observer
)

const (
	StateReady    = kern.StateReady
	StateBlocked  = kern.StateBlocked
	StateEnded    = kern.StateEnded
	StateDeleting = kern.StateDeleting

	Forever = kern.Forever
)

// Kernel wires the scheduler core, the ELF loader and the syscall
// dispatcher together behind one handle: every process loaded through it
// shares its heap, and every syscall it issues is serviced against the
// same file system the process was loaded from.
type Kernel struct {
	core *kern.Kernel
	fs   kern.FileSystem
	disp *syscall.Dispatcher
}

// NewKernel builds a Kernel over fs (nil is fine if the embedded image
// never issues file syscalls or loads a process). Start must be called
// before any task runs.
func NewKernel(cfg Config, fs kern.FileSystem) *Kernel {
	core := kern.NewKernel(cfg)
	return &Kernel{
		core: core,
		fs:   fs,
		disp: syscall.NewDispatcher(core, fs, nil),
	}
}

// Start begins running the scheduler's main task and tick loops.
func (k *Kernel) Start() { k.core.Start() }

// Stop flips the scheduler to STOP and stops its tick loop (see
// kern.Kernel.Stop).
func (k *Kernel) Stop() { k.core.Stop() }

// Running reports whether the scheduler is currently active.
func (k *Kernel) Running() bool { return k.core.Running() }

// Create spawns a statically linked task.
func (k *Kernel) Create(name string, entry TaskFunc, priority, stackSize int, arg any) (*Task, error) {
	return k.core.Create(name, entry, priority, stackSize, arg)
}

// LoadProcess reads path through the kernel's file system, loads it as an
// ELF32 PIE image onto the kernel heap, and spawns its initial task at
// priority running entry (the behavior the loaded code's own entry point
// would exhibit against the image's relocated globals — see
// internal/kern.CreateProcess).
func (k *Kernel) LoadProcess(name, path string, priority int, entry TaskFunc) (*Process, *Task, error) {
	if k.fs == nil {
		return nil, nil, NewError("LoadProcess", NotReady, "kernel has no file system")
	}
	fh, err := k.fs.Open(path, 0)
	if err != nil {
		return nil, nil, WrapError("LoadProcess", FS, err)
	}
	defer k.fs.Close(fh)

	img, err := elf.Load(k.fs, fh, k.core.Heap())
	if err != nil {
		return nil, nil, err
	}
	return k.core.CreateProcess(name, img.Slab, img.GOTBase, img.Entry, priority, entry)
}

// DeleteProcess tears down every thread p owns and frees its image slab.
func (k *Kernel) DeleteProcess(caller *Task, p *Process) { k.core.DeleteProcess(caller, p) }

// Syscall services frame on behalf of caller, exactly as a trap handler
// would: it suspends caller until the call completes and leaves the
// result in frame.Result. If metrics is non-nil, the dispatch is tallied
// on it regardless of outcome.
func (k *Kernel) Syscall(caller *Task, frame *syscall.Frame, metrics *Metrics) error {
	err := k.disp.Invoke(caller, frame)
	if metrics != nil {
		metrics.RecordSyscall(err)
	}
	return err
}

// Sleep blocks t for the given number of ticks.
func (k *Kernel) Sleep(t *Task, ticks int) { k.core.Sleep(t, ticks) }

// Yield gives up t's remaining time slice.
func (k *Kernel) Yield(t *Task) { k.core.Yield(t) }

// SelfDelete tears t down from within its own task body.
func (k *Kernel) SelfDelete(t *Task) { k.core.SelfDelete(t) }

// Delete tears target down on caller's behalf.
func (k *Kernel) Delete(caller, target *Task) error { return k.core.Delete(caller, target) }

// WaitOne blocks t until obj is available or timeout elapses.
func (k *Kernel) WaitOne(t *Task, obj Waitable, timeout int) (Waitable, error) {
	return k.core.WaitOne(t, obj, timeout)
}

// WaitAny blocks t until any object in objs is available.
func (k *Kernel) WaitAny(t *Task, objs []Waitable, timeout int) (Waitable, error) {
	return k.core.WaitAny(t, objs, timeout)
}

// WaitAll blocks t until every object in objs is simultaneously available.
func (k *Kernel) WaitAll(t *Task, objs []Waitable, timeout int) error {
	return k.core.WaitAll(t, objs, timeout)
}

// Join blocks t until target ends and returns its result.
func (k *Kernel) Join(t, target *Task, timeout int) (int, error) {
	return k.core.Join(t, target, timeout)
}

// CreateSemaphore builds and registers a new counting semaphore.
func (k *Kernel) CreateSemaphore(name string, initial, max int) *Semaphore {
	return k.core.CreateSemaphore(name, initial, max)
}

// Release posts to s.
func (k *Kernel) Release(s *Semaphore) { k.core.Release(s) }

// CreateMutex builds and registers a new, unowned mutex.
func (k *Kernel) CreateMutex(name string) *Mutex { return k.core.CreateMutex(name) }

// ReleaseMutex releases m on caller's behalf, propagating priority
// inheritance back down if caller held an inherited boost.
func (k *Kernel) ReleaseMutex(caller *Task, m *Mutex) error { return k.core.ReleaseMutex(caller, m) }

// CreateEvent builds and registers a new event.
func (k *Kernel) CreateEvent(name string, mode EventMode) *Event {
	return k.core.CreateEvent(name, mode)
}

// SetEvent signals e.
func (k *Kernel) SetEvent(e *Event) { k.core.SetEvent(e) }

// ResetEvent clears e.
func (k *Kernel) ResetEvent(e *Event) { k.core.ResetEvent(e) }

// CreateMessageQueue builds and registers a new message queue.
func (k *Kernel) CreateMessageQueue(name string, discipline PushDiscipline, capacity int) *MessageQueue {
	return k.core.CreateMessageQueue(name, discipline, capacity)
}

// Push enqueues payload onto q.
func (k *Kernel) Push(q *MessageQueue, payload any) error { return k.core.Push(q, payload) }

// CreateTopic builds and registers a new publish/subscribe topic.
func (k *Kernel) CreateTopic(name string) *Topic { return k.core.CreateTopic(name) }

// Subscribe adds task as a subscriber of t.
func (k *Kernel) Subscribe(t *Topic, task *Task) { k.core.Subscribe(t, task) }

// Unsubscribe removes task from t's subscriber set.
func (k *Kernel) Unsubscribe(t *Topic, task *Task) { k.core.Unsubscribe(t, task) }

// Publish fans payload out to every subscriber of t.
func (k *Kernel) Publish(t *Topic, payload any) { k.core.Publish(t, payload) }

// DeleteObject removes obj from the object set, waking every blocked
// waiter.
func (k *Kernel) DeleteObject(obj Waitable) { k.core.DeleteObject(obj) }

// ListTasks returns a snapshot of every live task, for diagnostics.
func (k *Kernel) ListTasks() []TaskInfo { return k.core.ListTasks() }

// HeapUsage reports the kernel heap's used/total byte counts.
func (k *Kernel) HeapUsage() (used, total int) { return k.core.HeapUsage() }

// Core returns the underlying internal/kern.Kernel, for callers that need
// APIs this facade does not re-export.
func (k *Kernel) Core() *kern.Kernel { return k.core }
