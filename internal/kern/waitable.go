package kern

import "github.com/vrcore/rtkernel/internal/klist"

// ObjKind tags the closed set of waitable object variants, replacing the
// source's function-pointer polymorphism (free_count/take callbacks inside
// a common header) with a tagged value and trait-style dispatch through
// the Waitable interface.
type ObjKind int

const (
	KindTask ObjKind = iota
	KindSemaphore
	KindMutex
	KindEvent
	KindMessageQueue
	KindTopic
)

func (k ObjKind) String() string {
	switch k {
	case KindTask:
		return "TASK"
	case KindSemaphore:
		return "SEMAPHORE"
	case KindMutex:
		return "MUTEX"
	case KindEvent:
		return "EVENT"
	case KindMessageQueue:
		return "MESSAGE_QUEUE"
	case KindTopic:
		return "TOPIC"
	default:
		return "UNKNOWN"
	}
}

// Infinite is the free_count sentinel meaning "always available", used by
// mutexes when unowned, events when set, and tasks once ENDED.
const Infinite = int(^uint(0) >> 1)

// Waitable is implemented by every object kind the wait/wake engine can
// operate on, including Task itself (joiners wait on task termination).
type Waitable interface {
	Header() *ObjectHeader
	// FreeCount reports how many more successful Takes the object can
	// currently serve for taker. Infinite means unconditionally available.
	FreeCount(taker *Task) int
	// Take performs the actual claim on behalf of taker.
	Take(taker *Task)
}

// ObjectHeader holds the fields common to every waitable kind: its tag,
// optional name, dirty flag for the wake-propagation pass, and the list of
// tasks currently blocked on it. Every concrete object kind embeds one.
type ObjectHeader struct {
	Kind        ObjKind
	Name        string
	NeedsUpdate bool
	Blocked     *klist.List[*Task]
	Handle      Handle
}

// NewObjectHeader returns a header ready to embed in a concrete object.
func NewObjectHeader(kind ObjKind, name string) ObjectHeader {
	return ObjectHeader{Kind: kind, Name: name, Blocked: klist.New[*Task]()}
}

// Header satisfies the common portion of Waitable; concrete kinds embed
// ObjectHeader and only need to implement FreeCount/Take themselves.
func (h *ObjectHeader) Header() *ObjectHeader { return h }

// MarkDirty flags the object for re-evaluation by the next wake pass.
func (h *ObjectHeader) MarkDirty() { h.NeedsUpdate = true }

// appendWaiterOnce adds t to the header's block list unless it is already
// present, matching the source's "append once" rule for multi-object waits.
func (h *ObjectHeader) appendWaiterOnce(t *Task) {
	if h.Blocked.Find(func(c *Task) bool { return c == t }) != nil {
		return
	}
	h.Blocked.PushBack(t)
}

// removeWaiter drops t from the header's block list if present.
func (h *ObjectHeader) removeWaiter(t *Task) {
	if c := h.Blocked.Find(func(c *Task) bool { return c == t }); c != nil {
		_ = h.Blocked.Remove(c)
	}
}
