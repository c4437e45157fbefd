package rtkernel

import (
	"sync/atomic"
	"time"

	"github.com/vrcore/rtkernel/internal/kern"
)

// Metrics tracks scheduling activity for a running kernel: task lifecycle,
// context switches, wait/wake-engine passes, priority-inheritance
// propagations, syscall dispatches and idle ticks. It implements
// kern.Observer, so it can be handed straight to kern.Config.Observer.
type Metrics struct {
	TasksCreated atomic.Uint64
	TasksEnded   atomic.Uint64

	ContextSwitches atomic.Uint64
	Ticks           atomic.Uint64

	WakePasses           atomic.Uint64
	PriorityPropagations atomic.Uint64

	SyscallDispatches atomic.Uint64
	SyscallErrors     atomic.Uint64

	IdleTicks atomic.Uint64

	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64 // UnixNano, 0 while running
}

// NewMetrics creates a metrics instance with its clock started.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// TaskCreated implements kern.Observer.
func (m *Metrics) TaskCreated(pid uint16, name string) { m.TasksCreated.Add(1) }

// TaskEnded implements kern.Observer.
func (m *Metrics) TaskEnded(pid uint16) { m.TasksEnded.Add(1) }

// ContextSwitch implements kern.Observer.
func (m *Metrics) ContextSwitch(fromPID, toPID uint16) { m.ContextSwitches.Add(1) }

// Tick implements kern.Observer.
func (m *Metrics) Tick() { m.Ticks.Add(1) }

// WakePass implements kern.Observer.
func (m *Metrics) WakePass() { m.WakePasses.Add(1) }

// PriorityPropagation implements kern.Observer.
func (m *Metrics) PriorityPropagation(pid uint16) { m.PriorityPropagations.Add(1) }

// Idle implements kern.Observer: one tick handed to the idle task instead
// of real work.
func (m *Metrics) Idle() { m.IdleTicks.Add(1) }

// RecordSyscall records one syscall dispatch, tallying it as an error if
// the dispatcher itself failed (not if the underlying call returned a
// negative result — that is the caller's concern, not the dispatcher's).
func (m *Metrics) RecordSyscall(err error) {
	m.SyscallDispatches.Add(1)
	if err != nil {
		m.SyscallErrors.Add(1)
	}
}

// Stop marks the kernel as stopped, freezing uptime calculations.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// Reset zeroes every counter and restarts the clock.
func (m *Metrics) Reset() {
	m.TasksCreated.Store(0)
	m.TasksEnded.Store(0)
	m.ContextSwitches.Store(0)
	m.Ticks.Store(0)
	m.WakePasses.Store(0)
	m.PriorityPropagations.Store(0)
	m.SyscallDispatches.Store(0)
	m.SyscallErrors.Store(0)
	m.IdleTicks.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// MetricsSnapshot is a point-in-time copy of Metrics' counters plus the
// derived rates that only make sense frozen together.
type MetricsSnapshot struct {
	TasksCreated uint64
	TasksEnded   uint64
	LiveTasks    int64

	ContextSwitches uint64
	Ticks           uint64

	WakePasses           uint64
	PriorityPropagations uint64

	SyscallDispatches uint64
	SyscallErrors     uint64

	IdleTicks uint64

	UptimeNs uint64

	ContextSwitchesPerSec float64
	SyscallsPerSec        float64
	CPUUtilization        float64 // fraction of ticks NOT handed to the idle task
}

// Snapshot returns a consistent snapshot of m's counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		TasksCreated:         m.TasksCreated.Load(),
		TasksEnded:           m.TasksEnded.Load(),
		ContextSwitches:      m.ContextSwitches.Load(),
		Ticks:                m.Ticks.Load(),
		WakePasses:           m.WakePasses.Load(),
		PriorityPropagations: m.PriorityPropagations.Load(),
		SyscallDispatches:    m.SyscallDispatches.Load(),
		SyscallErrors:        m.SyscallErrors.Load(),
		IdleTicks:            m.IdleTicks.Load(),
	}
	snap.LiveTasks = int64(snap.TasksCreated) - int64(snap.TasksEnded)
	if snap.Ticks > 0 {
		snap.CPUUtilization = 1 - float64(snap.IdleTicks)/float64(snap.Ticks)
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.ContextSwitchesPerSec = float64(snap.ContextSwitches) / uptimeSeconds
		snap.SyscallsPerSec = float64(snap.SyscallDispatches) / uptimeSeconds
	}

	return snap
}

// Compile-time interface check.
var _ kern.Observer = (*Metrics)(nil)
