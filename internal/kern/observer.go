package kern

// Observer receives kernel scheduling events for metrics collection. The
// root package's Metrics type implements this; kern stays independent of
// it to avoid an import cycle (root wraps kern, not the reverse).
type Observer interface {
	TaskCreated(pid uint16, name string)
	TaskEnded(pid uint16)
	ContextSwitch(fromPID, toPID uint16)
	Tick()

	// WakePass is called once per runWakePass invocation, after it has
	// drained every dirty object from the wait/wake engine.
	WakePass()
	// PriorityPropagation is called once per task whose effective
	// priority actually changed while walking an inheritance chain.
	PriorityPropagation(pid uint16)

	// Idle is called once per context switch that hands control to the
	// idle task, i.e. once per tick the scheduler had nothing READY to run.
	Idle()
}

// NoOpObserver discards every event; it is the default when a Kernel is
// built without one.
type NoOpObserver struct{}

func (NoOpObserver) TaskCreated(pid uint16, name string) {}
func (NoOpObserver) TaskEnded(pid uint16)                {}
func (NoOpObserver) ContextSwitch(fromPID, toPID uint16) {}
func (NoOpObserver) Tick()                               {}
func (NoOpObserver) WakePass()                           {}
func (NoOpObserver) PriorityPropagation(pid uint16)      {}
func (NoOpObserver) Idle()                               {}
