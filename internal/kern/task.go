package kern

import (
	"github.com/vrcore/rtkernel/internal/kheap"
	"github.com/vrcore/rtkernel/internal/klist"
)

// TaskState is a task's position in the lifecycle state machine described
// by the scheduler: READY <-> BLOCKED via wait/wake, READY -> ENDED on
// return, READY -> DELETING -> reaped on self-delete.
type TaskState int

const (
	StateReady TaskState = iota
	StateBlocked
	StateEnded
	StateDeleting
	StateNotExist
)

func (s TaskState) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateBlocked:
		return "BLOCKED"
	case StateEnded:
		return "ENDED"
	case StateDeleting:
		return "DELETING"
	default:
		return "NOT_EXIST"
	}
}

// WaitMode selects between the two multi-object wait semantics.
type WaitMode int

const (
	WaitNone WaitMode = iota
	WaitOne
	WaitAll
)

// EntryOwner distinguishes a task whose entry function belongs to a
// process's loaded slab (freed when the process unloads) from one whose
// entry is statically linked into the kernel image (never freed by task
// delete). The source freed every task's entry pointer unconditionally on
// delete, which is wrong for statically created tasks.
type EntryOwner int

const (
	EntryStatic EntryOwner = iota
	EntryProcess
)

// Forever marks a wait/sleep countdown that never expires on its own.
const Forever = -1

// TaskFunc is a task's body. ctx exposes the kernel operations available
// to task code (wait, sleep, yield, join); arg is whatever was passed to
// Create. The returned value becomes the task's join result.
type TaskFunc func(ctx *TaskContext, arg any) int

// Task is both a schedulable unit of execution and a waitable object
// (joiners wait on its termination), hence the embedded ObjectHeader.
type Task struct {
	ObjectHeader

	name       string
	entry      TaskFunc
	entryOwner EntryOwner
	arg        any

	basePriority int
	effPriority  int

	state TaskState

	// sleepTicks counts down ticks remaining in a sleep or a timed wait;
	// Forever means no timeout is in effect.
	sleepTicks int
	timedOut   bool

	waitSet  []Waitable
	waitIdx  int
	waitMode WaitMode

	retValue int
	reaped   bool

	pid uint16

	ownedMutexes *klist.List[*Mutex]

	process *Process // nil for statically created tasks

	stack  *kheap.Block
	resume chan struct{}

	cell *klist.Cell[*Task] // this task's own cell in the kernel's task list

	k *Kernel
}

// BasePriority returns the task's static priority.
func (t *Task) BasePriority() int { return t.basePriority }

// EffectivePriority returns the task's current dynamic priority, which is
// at least BasePriority and rises with inheritance (see priority.go).
func (t *Task) EffectivePriority() int { return t.effPriority }

// State returns the task's current lifecycle state.
func (t *Task) State() TaskState { return t.state }

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// PID returns the task's 16-bit process/task identifier.
func (t *Task) PID() uint16 { return t.pid }

// ReturnValue returns the value the task returned, valid once State is
// ENDED.
func (t *Task) ReturnValue() int { return t.retValue }

// FreeCount implements Waitable: a task becomes available to joiners only
// once it has ended, at which point it is available to all of them.
func (t *Task) FreeCount(taker *Task) int {
	if t.state == StateEnded {
		return Infinite
	}
	return 0
}

// Take implements Waitable. Joining does not consume anything from the
// task; the joiner reads ReturnValue separately.
func (t *Task) Take(taker *Task) {}

// isBlockedOnObject reports whether t is currently BLOCKED with obj in its
// wait set, whatever its wait mode and however many objects it waits on.
func (t *Task) isBlockedOnObject(obj Waitable) bool {
	if t.state != StateBlocked {
		return false
	}
	for _, o := range t.waitSet {
		if o == obj {
			return true
		}
	}
	return false
}

// TaskInfo is a read-only snapshot of a task, returned by Kernel.ListTasks.
type TaskInfo struct {
	PID        uint16
	Name       string
	State      TaskState
	Base       int
	Effective  int
	SleepTicks int
}
