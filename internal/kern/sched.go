package kern

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/vrcore/rtkernel/internal/kheap"
	"github.com/vrcore/rtkernel/internal/klist"
	"github.com/vrcore/rtkernel/internal/logging"
)

// CSToken is proof that the caller currently holds the kernel's critical
// section. Helpers that may release or hand on the section (runWakePass,
// pickNext, suspend) take one as a parameter; acquiring the section is the
// only way to mutate a task list, object set, block list or owned-mutex
// list, standing in for the source's
// paired interrupt-disable/restore macro.
type CSToken struct{}

// CriticalSection serializes all kernel-state mutation behind a single
// lock. It is not reentrant by design: every public Kernel method enters
// it exactly once at its own top level and threads the resulting token
// into whatever internal helpers it calls, rather than tracking nesting
// depth at runtime.
type CriticalSection struct {
	mu sync.Mutex
}

func (cs *CriticalSection) Enter() *CSToken {
	cs.mu.Lock()
	return &CSToken{}
}

func (cs *CriticalSection) Exit(tok *CSToken) {
	_ = tok
	cs.mu.Unlock()
}

// SchedState is the scheduler's own run state, independent of any task's.
type SchedState int

const (
	SchedStop SchedState = iota
	SchedStart
)

// Config configures a Kernel. Stack sizes and the priority ceiling mirror
// the source's fixed constants; TickPeriod and HeapSize are the two
// quantities a board's init code would choose.
type Config struct {
	TickPeriod   time.Duration
	HeapSize     int
	StackSize    int // per task, no FPU frame
	StackSizeFPU int // per task, with FPU frame
	MaxPriority  int
	Logger       *Logger
	Observer     Observer
}

// DefaultConfig returns the stack and priority constants named in the
// external-interfaces section: a 128-byte minimum stack (384 with an FPU
// frame) and a 0-127 priority range.
func DefaultConfig() Config {
	return Config{
		TickPeriod:   10 * time.Millisecond,
		HeapSize:     1 << 20,
		StackSize:    128,
		StackSizeFPU: 384,
		MaxPriority:  127,
	}
}

// Logger is internal/logging.Logger directly rather than a separate
// structural interface duplicating its method set — a nil
// *Logger is a valid, fully silent value, so call sites never need to
// check cfg.Logger before using it.
type Logger = logging.Logger

// Kernel owns every global kernel table: the task list, the object arena,
// the heap and the scheduler state machine. All mutation happens under cs.
type Kernel struct {
	cfg Config
	cs  CriticalSection

	tasks   *klist.List[*Task]
	objects *Arena[Waitable]

	heap *kheap.Heap

	state SchedState
	idle  *Task
	cur   *Task

	relinquish chan *Task

	tickCtx    context.Context
	tickCancel context.CancelFunc
	tickDone   chan struct{}

	pidSeed   uint16
	tickCount uint64

	logger   *Logger
	observer Observer
}

// NewKernel builds a Kernel with the given config but does not start its
// scheduler; call Start to begin running tasks.
func NewKernel(cfg Config) *Kernel {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultConfig().TickPeriod
	}
	if cfg.HeapSize <= 0 {
		cfg.HeapSize = DefaultConfig().HeapSize
	}
	if cfg.StackSize <= 0 {
		cfg.StackSize = DefaultConfig().StackSize
	}
	if cfg.MaxPriority <= 0 {
		cfg.MaxPriority = DefaultConfig().MaxPriority
	}
	k := &Kernel{
		cfg:        cfg,
		tasks:      klist.New[*Task](),
		objects:    NewArena[Waitable](),
		heap:       kheap.New(cfg.HeapSize),
		relinquish: make(chan *Task, 1),
		logger:     cfg.Logger,
		observer:   cfg.Observer,
	}
	if k.observer == nil {
		k.observer = NoOpObserver{}
	}
	k.idle = k.createLocked("idle", idleEntry, 0, cfg.StackSize, nil, EntryStatic, nil)
	return k
}

func idleEntry(ctx *TaskContext, arg any) int {
	for {
		ctx.Sleep(1)
	}
}

// Create allocates a task's control block and simulated stack, assigns it
// a PID by hashing an advancing seed until unique, registers it in the
// global task list and object arena, and — if the scheduler is running
// and the new task outranks the current one — yields so it is considered
// immediately.
func (k *Kernel) Create(name string, entry TaskFunc, priority, stackSize int, arg any) (*Task, error) {
	return k.createOwned(name, entry, priority, stackSize, arg, EntryStatic, nil)
}

// createOwned is Create plus the entry-ownership bookkeeping the ELF
// loader path needs: an entry function loaded as part of a process's slab
// must be freed with the process, never by task delete, unlike a
// statically linked entry (see the corresponding design-notes decision).
func (k *Kernel) createOwned(name string, entry TaskFunc, priority, stackSize int, arg any, owner EntryOwner, proc *Process) (*Task, error) {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	t := k.createLocked(name, entry, priority, stackSize, arg, owner, proc)
	if t == nil {
		return nil, NewError("create", InsufficientHeap, "heap exhausted")
	}
	if k.state == SchedStart && k.cur != nil && t.effPriority > k.cur.effPriority {
		k.requestYieldCurrent()
	}
	return t, nil
}

// createLocked is Create's implementation, also used to build the idle
// task and process-owned initial threads before the scheduler exists.
func (k *Kernel) createLocked(name string, entry TaskFunc, priority, stackSize int, arg any, owner EntryOwner, proc *Process) *Task {
	if stackSize <= 0 {
		stackSize = k.cfg.StackSize
	}
	block, err := k.heap.Allocate(stackSize)
	if err != nil {
		return nil
	}
	t := &Task{
		ObjectHeader: NewObjectHeader(KindTask, name),
		name:         name,
		entry:        entry,
		entryOwner:   owner,
		arg:          arg,
		basePriority: priority,
		effPriority:  priority,
		state:        StateReady,
		sleepTicks:   Forever,
		waitIdx:      -1,
		ownedMutexes: klist.New[*Mutex](),
		process:      proc,
		stack:        block,
		resume:       make(chan struct{}),
		k:            k,
	}
	t.pid = k.assignPID()
	t.Handle = k.objects.Insert(Waitable(t))
	t.cell = k.tasks.PushBack(t)
	k.observer.TaskCreated(t.pid, t.name)
	k.logger.WithTask(t.pid, t.name).Debug("task created", "priority", priority, "stack_size", len(block.Bytes))
	go k.taskMain(t)
	return t
}

// assignPID hashes a monotonically advancing seed until it lands on a PID
// not already held by a live task, matching the source's "hash the tick
// until unique" scheme without depending on a real tick counter at boot.
func (k *Kernel) assignPID() uint16 {
	for {
		k.pidSeed++
		candidate := (uint32(k.pidSeed) * 2654435761) & 0xFFFF
		if candidate == 0 {
			continue
		}
		taken := false
		k.tasks.Each(func(c *klist.Cell[*Task]) {
			if c.Value.pid == uint16(candidate) {
				taken = true
			}
		})
		if !taken {
			return uint16(candidate)
		}
	}
}

// taskMain is the goroutine body standing in for a real task's stack: it
// parks until first scheduled, runs the task's entry function to
// completion, then hands the return value to Return.
func (k *Kernel) taskMain(t *Task) {
	<-t.resume
	ret := t.entry(&TaskContext{k: k, self: t}, t.arg)
	k.taskReturn(t, ret)
}

// taskReturn stores the task's return value, marks it ENDED and runs a
// wake pass so joiners see the transition. It matches the source's
// self-return path, with one simplification: rather than the original's
// "loop yielding forever", a Go goroutine that has nothing left to do
// simply finishes; the scheduler never resumes an ENDED task's resume
// channel, so nothing ever blocks on it being done.
func (k *Kernel) taskReturn(t *Task, value int) {
	tok := k.cs.Enter()
	t.retValue = value
	t.state = StateEnded
	t.MarkDirty()
	k.onBlockListChanged(t)
	k.runWakePass(tok)
	k.cs.Exit(tok)
	k.observer.TaskEnded(t.pid)
	k.logger.WithTask(t.pid, t.name).Debug("task ended", "return", value)
	k.relinquish <- t
}

// reapTaskOnce removes an ENDED task from the global task list and object
// arena and frees its simulated stack, exactly once no matter how many
// joiners observe its termination.
func (k *Kernel) reapTaskOnce(t *Task) {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	k.reapLocked(t)
}

func (k *Kernel) reapLocked(t *Task) {
	if t.reaped {
		return
	}
	t.reaped = true
	if t.cell != nil {
		_ = k.tasks.Remove(t.cell)
		t.cell = nil
	}
	k.objects.Remove(t.Handle)
	if t.stack != nil {
		k.heap.Free(t.stack)
		t.stack = nil
	}
}

// Sleep transitions t to BLOCKED for ticks with no object wait, resuming
// it automatically at zero via the tick handler.
func (k *Kernel) Sleep(t *Task, ticks int) {
	tok := k.cs.Enter()
	t.state = StateBlocked
	t.sleepTicks = ticks
	t.waitSet = nil
	t.waitMode = WaitNone
	tok = k.suspend(tok, t)
	k.cs.Exit(tok)
}

// Yield relinquishes the CPU for this round without changing state.
func (k *Kernel) Yield(t *Task) {
	tok := k.cs.Enter()
	tok = k.suspend(tok, t)
	k.cs.Exit(tok)
}

// SelfDelete marks t DELETING; per the source, the task "loops yielding
// forever" until the scheduler reaps it from a safe context between
// switches. In this simulation that collapses to a single handoff: once
// marked DELETING the scheduler's selection step never resumes t's
// goroutine again, so the receive on t.resume below simply never returns
// and the goroutine parks harmlessly for the life of the process.
func (k *Kernel) SelfDelete(t *Task) {
	tok := k.cs.Enter()
	t.state = StateDeleting
	k.cs.Exit(tok)
	k.relinquish <- t
	<-t.resume
}

// Delete is the externally invoked counterpart of SelfDelete: it marks
// the target ENDED, wakes every object it was blocked in so other
// waiters can progress, removes it from every list, frees its stack, and
// reaps it immediately — a task can only be externally deleted while it
// isn't the one running, so there is no stack in use to reclaim out from
// under it.
func (k *Kernel) Delete(caller, target *Task) error {
	if caller == target {
		k.SelfDelete(target)
		return nil
	}
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	if target.state == StateEnded || target.state == StateDeleting {
		return NewError("delete", Invalid, "target already terminating")
	}
	for _, o := range target.waitSet {
		o.Header().removeWaiter(target)
		o.Header().MarkDirty()
		k.onBlockListChanged(o)
	}
	target.waitSet = nil
	target.state = StateEnded
	target.MarkDirty()
	k.onBlockListChanged(target)
	k.runWakePass(tok)
	k.reapLocked(target)
	k.logger.WithTask(target.pid, target.name).Info("task deleted", "by_pid", caller.pid)
	return nil
}

// suspend releases the critical section, hands control back to the
// scheduler, and blocks until the scheduler resumes t — at which point it
// re-enters the critical section before returning, per the source's rule
// that the resume point must unconditionally re-disable interrupts before
// touching kernel state.
func (k *Kernel) suspend(tok *CSToken, t *Task) *CSToken {
	k.cs.Exit(tok)
	k.relinquish <- t
	<-t.resume
	return k.cs.Enter()
}

// requestYieldCurrent has no separate representation in this simulation:
// the running task only ever gives up control at its own suspension
// points, so "requesting a switch" is recorded implicitly by leaving a
// higher-priority task READY for pickNext to find next time anyone calls
// Yield, Sleep, Wait or returns. It exists as a named hook so call sites
// that logically request a switch (Create, Release, wake passes) read the
// way the source does, even though, unlike real hardware, nothing here
// forcibly preempts a CPU-bound task between suspension points.
func (k *Kernel) requestYieldCurrent() {}

// Start flips the scheduler to START, picks the first task to run, and
// launches the background goroutines that drive ticks and scheduling.
func (k *Kernel) Start() {
	tok := k.cs.Enter()
	k.state = SchedStart
	first := k.pickNext(tok)
	k.cur = first
	k.cs.Exit(tok)

	k.tickCtx, k.tickCancel = context.WithCancel(context.Background())
	k.tickDone = make(chan struct{})
	go k.runLoop()
	go k.tickLoop()

	if first == k.idle {
		k.observer.Idle()
	}
	first.resume <- struct{}{}
}

// Running reports whether the scheduler is in the START state.
func (k *Kernel) Running() bool {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	return k.state == SchedStart
}

// Stop flips the scheduler to STOP and cancels the tick loop, so sleep and
// wait countdowns no longer advance; the current task keeps running. The
// scheduler loop does not consult the STOP state: a task that reaches a
// suspension point is still switched out for the next READY task.
func (k *Kernel) Stop() {
	tok := k.cs.Enter()
	k.state = SchedStop
	k.cs.Exit(tok)
	if k.tickCancel != nil {
		k.tickCancel()
	}
}

// runLoop is the scheduler's own goroutine: it waits for whichever task is
// currently running to relinquish control, reaps it if it was DELETING,
// picks the next READY task by effective priority, and hands control to
// it.
func (k *Kernel) runLoop() {
	for t := range k.relinquish {
		tok := k.cs.Enter()
		if t.state == StateDeleting {
			k.reapLocked(t)
		}
		next := k.pickNext(tok)
		prev := k.cur
		k.cur = next
		k.cs.Exit(tok)
		if next == nil {
			continue
		}
		if prev != nil && next != prev {
			k.observer.ContextSwitch(prev.pid, next.pid)
		}
		if next == k.idle {
			k.observer.Idle()
		}
		next.resume <- struct{}{}
	}
}

// pickNext walks the task list, skipping ENDED/DELETING tasks (reaping
// DELETING ones as it goes), and returns the READY task with the highest
// effective priority, ties broken by list order; the idle task is the
// fallback of last resort.
func (k *Kernel) pickNext(tok *CSToken) *Task {
	var best *Task
	var deleting []*Task
	k.tasks.Each(func(c *klist.Cell[*Task]) {
		t := c.Value
		if t.state == StateDeleting {
			deleting = append(deleting, t)
			return
		}
		if t.state != StateReady {
			return
		}
		if best == nil || t.effPriority > best.effPriority {
			best = t
		}
	})
	for _, t := range deleting {
		k.reapLocked(t)
	}
	if best == nil {
		return k.idle
	}
	return best
}

// tickLoop periodically invokes tick using golang.org/x/sys/unix's
// high-resolution sleep, standing in for the hardware timer interrupt.
func (k *Kernel) tickLoop() {
	defer close(k.tickDone)
	period := &unix.Timespec{
		Sec:  int64(k.cfg.TickPeriod / time.Second),
		Nsec: int64(k.cfg.TickPeriod % time.Second),
	}
	for {
		select {
		case <-k.tickCtx.Done():
			return
		default:
		}
		req := *period
		for {
			rem := &unix.Timespec{}
			err := unix.Nanosleep(&req, rem)
			if err == unix.EINTR {
				req = *rem
				continue
			}
			if err != nil {
				k.logger.WithTick(k.tickCount).WithError(err).Warn("tick sleep interrupted")
			}
			break
		}
		k.observer.Tick()
		k.tick()
	}
}

// tick decrements every task's non-zero sleep/timeout countdown. A
// plain-sleep task (no wait set) that reaches zero goes straight to READY.
// A timed-out waiter is pulled out of every object it was blocked on
// (cancellation-style) and marked timedOut so its own wait loop reports
// TIMEOUT on resume, then a wake pass gives the vacated slot to anyone
// else still waiting.
func (k *Kernel) tick() {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	k.tickCount++

	var expired []*Task
	k.tasks.Each(func(c *klist.Cell[*Task]) {
		t := c.Value
		if t.state != StateBlocked || t.sleepTicks == Forever {
			return
		}
		t.sleepTicks--
		if t.sleepTicks <= 0 {
			expired = append(expired, t)
		}
	})
	for _, t := range expired {
		if len(t.waitSet) == 0 {
			t.state = StateReady
			continue
		}
		t.timedOut = true
		for _, o := range t.waitSet {
			o.Header().removeWaiter(t)
			o.Header().MarkDirty()
			k.onBlockListChanged(o)
		}
		t.waitSet = nil
		t.state = StateReady
		k.logger.WithTick(k.tickCount).WithTask(t.pid, t.name).Debug("wait timed out")
	}
	k.runWakePass(tok)
}

// ListTasks returns a snapshot of every live task, for diagnostics.
func (k *Kernel) ListTasks() []TaskInfo {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	var out []TaskInfo
	k.tasks.Each(func(c *klist.Cell[*Task]) {
		t := c.Value
		out = append(out, TaskInfo{
			PID:        t.pid,
			Name:       t.name,
			State:      t.state,
			Base:       t.basePriority,
			Effective:  t.effPriority,
			SleepTicks: t.sleepTicks,
		})
	})
	return out
}

// HeapUsage reports the kernel heap's used/total byte counts.
func (k *Kernel) HeapUsage() (used, total int) {
	return k.heap.Monitor()
}

// Heap returns the kernel's slab allocator, exposed so the ELF loader can
// place a process image's segments in the same arena tasks' stacks come
// from.
func (k *Kernel) Heap() *kheap.Heap {
	return k.heap
}

// register enters w into the global object set, the invariant that "every
// live object is reachable from the global object set" depends on.
func (k *Kernel) register(w Waitable) {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	w.Header().Handle = k.objects.Insert(w)
}

// CreateSemaphore builds and registers a new semaphore.
func (k *Kernel) CreateSemaphore(name string, initial, max int) *Semaphore {
	s := NewSemaphore(name, initial, max)
	k.register(s)
	return s
}

// CreateMutex builds and registers a new, unowned mutex.
func (k *Kernel) CreateMutex(name string) *Mutex {
	m := NewMutex(name)
	k.register(m)
	return m
}

// CreateEvent builds and registers a new event.
func (k *Kernel) CreateEvent(name string, mode EventMode) *Event {
	e := NewEvent(name, mode)
	k.register(e)
	return e
}

// CreateMessageQueue builds and registers a new message queue.
func (k *Kernel) CreateMessageQueue(name string, discipline PushDiscipline, capacity int) *MessageQueue {
	q := NewMessageQueue(name, discipline, capacity)
	k.register(q)
	return q
}

// CreateTopic builds and registers a new topic.
func (k *Kernel) CreateTopic(name string) *Topic {
	t := NewTopic(name)
	k.register(t)
	return t
}

// DeleteObject removes obj from the object set, waking every blocked
// waiter with a not-available error so it can unwind instead of hanging
// forever on a vanished object.
func (k *Kernel) DeleteObject(obj Waitable) {
	tok := k.cs.Enter()
	h := obj.Header()
	var waiters []*Task
	h.Blocked.Each(func(c *klist.Cell[*Task]) { waiters = append(waiters, c.Value) })
	for _, t := range waiters {
		h.removeWaiter(t)
		t.waitSet = nil
		t.state = StateReady
		t.timedOut = true
	}
	k.objects.Remove(h.Handle)
	k.cs.Exit(tok)
}

// TaskContext is the set of kernel operations exposed to a task's own
// entry function, playing the role the syscall/trap boundary plays for
// user processes and a direct function call plays for kernel-native tasks.
type TaskContext struct {
	k    *Kernel
	self *Task
}

func (c *TaskContext) Sleep(ticks int) { c.k.Sleep(c.self, ticks) }
func (c *TaskContext) Yield()          { c.k.Yield(c.self) }
func (c *TaskContext) SelfDelete()     { c.k.SelfDelete(c.self) }

func (c *TaskContext) WaitOne(obj Waitable, timeout int) (Waitable, error) {
	return c.k.WaitOne(c.self, obj, timeout)
}
func (c *TaskContext) WaitAny(objs []Waitable, timeout int) (Waitable, error) {
	return c.k.WaitAny(c.self, objs, timeout)
}
func (c *TaskContext) WaitAll(objs []Waitable, timeout int) error {
	return c.k.WaitAll(c.self, objs, timeout)
}
func (c *TaskContext) Join(target *Task, timeout int) (int, error) {
	return c.k.Join(c.self, target, timeout)
}

func (c *TaskContext) Self() *Task      { return c.self }
func (c *TaskContext) PID() uint16      { return c.self.pid }
func (c *TaskContext) Kernel() *Kernel  { return c.k }
