package syscall

import (
	"sync"

	"github.com/vrcore/rtkernel/internal/kern"
)

// Dispatcher is the user-to-kernel call path described in §4.10: it
// spawns a short-lived kernel task per invocation, suspends the caller
// on it exactly like a join, and leaves the service's result in the
// frame once the service task ends.
type Dispatcher struct {
	k     *kern.Kernel
	fs    kern.FileSystem
	table Table

	mu       sync.Mutex
	servicing map[*kern.Task]bool // tasks currently running as a syscall service
}

// NewDispatcher builds a dispatcher over table (DefaultTable() if nil).
func NewDispatcher(k *kern.Kernel, fs kern.FileSystem, table Table) *Dispatcher {
	if table == nil {
		table = DefaultTable()
	}
	return &Dispatcher{k: k, fs: fs, table: table, servicing: make(map[*kern.Task]bool)}
}

// Invoke services frame on behalf of caller. It verifies the scheduler
// is running, rejects a syscall issued from inside another syscall's
// service task (the trap-inside-trap case), spawns the service task,
// blocks caller on it via Kernel.Join, and writes the result into
// frame.Result.
func (d *Dispatcher) Invoke(caller *kern.Task, frame *Frame) error {
	if !d.k.Running() {
		return kern.NewError("syscall.Invoke", kern.NotReady, "scheduler not running")
	}

	d.mu.Lock()
	forbidden := d.servicing[caller]
	d.mu.Unlock()
	if forbidden {
		return kern.NewError("syscall.Invoke", kern.Forbidden, "syscall issued from a syscall service task")
	}

	handler, ok := d.table[frame.Call]
	if !ok {
		return kern.NewError("syscall.Invoke", kern.BadArg, "unknown syscall number")
	}

	svc, err := d.k.Create("syscall", func(ctx *kern.TaskContext, arg any) int {
		return int(handler(d.fs, frame.Args))
	}, caller.BasePriority(), 0, nil)
	if err != nil {
		return err
	}
	frame.Service = svc

	d.mu.Lock()
	d.servicing[svc] = true
	d.mu.Unlock()

	result, err := d.k.Join(caller, svc, kern.Forever)

	d.mu.Lock()
	delete(d.servicing, svc)
	d.mu.Unlock()

	if err != nil {
		return err
	}
	frame.Result = int32(result)
	return nil
}
