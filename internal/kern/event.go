package kern

// EventMode selects whether Set wakes one waiter and auto-clears (AUTO)
// or wakes every waiter and leaves the state asserted (MANUAL).
type EventMode int

const (
	EventAuto EventMode = iota
	EventManual
)

// Event is a boolean flag with an associated wake discipline.
type Event struct {
	ObjectHeader
	set  bool
	mode EventMode
}

// NewEvent returns a clear event with the given mode.
func NewEvent(name string, mode EventMode) *Event {
	return &Event{ObjectHeader: NewObjectHeader(KindEvent, name), mode: mode}
}

func (e *Event) FreeCount(taker *Task) int {
	if e.set {
		return Infinite
	}
	return 0
}

func (e *Event) Take(taker *Task) {
	if e.mode == EventAuto {
		e.set = false
	}
}

// Set asserts the event and runs a wake pass. In AUTO mode the wake pass
// naturally stops at the first waiter because Take clears the state
// (FreeCount immediately drops to 0 for everyone else); in MANUAL mode the
// state stays asserted so every current and future waiter proceeds until
// Reset.
func (k *Kernel) SetEvent(e *Event) {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	e.set = true
	e.MarkDirty()
	k.runWakePass(tok)
}

// Reset clears the event regardless of mode.
func (k *Kernel) ResetEvent(e *Event) {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	e.set = false
}
