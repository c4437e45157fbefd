package kern

import "github.com/vrcore/rtkernel/internal/klist"

// PushDiscipline selects where Push inserts relative to the existing
// sequence; Wait always pops the head regardless of discipline.
type PushDiscipline int

const (
	FIFO PushDiscipline = iota
	LIFO
)

// MessageQueue is an ordered sequence of opaque payloads. Capacity bounds
// the queue so Push can report back-pressure instead of growing without
// limit; a Capacity of 0 means unbounded, matching a queue created without
// an explicit bound.
type MessageQueue struct {
	ObjectHeader
	items      *klist.List[any]
	discipline PushDiscipline
	capacity   int
}

// NewMessageQueue returns an empty queue with the given push discipline
// and capacity (0 = unbounded).
func NewMessageQueue(name string, discipline PushDiscipline, capacity int) *MessageQueue {
	return &MessageQueue{
		ObjectHeader: NewObjectHeader(KindMessageQueue, name),
		items:        klist.New[any](),
		discipline:   discipline,
		capacity:     capacity,
	}
}

func (q *MessageQueue) FreeCount(taker *Task) int { return q.items.Len() }

func (q *MessageQueue) Take(taker *Task) {
	_, _ = q.items.PopFront()
}

// Len reports the number of queued payloads.
func (q *MessageQueue) Len() int { return q.items.Len() }

// Push inserts payload per the queue's discipline (tail for FIFO, head for
// LIFO) and runs a wake pass. It returns INSUFFICIENT_HEAP if the queue is
// at capacity.
func (k *Kernel) Push(q *MessageQueue, payload any) error {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)

	if q.capacity > 0 && q.items.Len() >= q.capacity {
		return NewError("push", InsufficientHeap, "message queue at capacity")
	}
	switch q.discipline {
	case LIFO:
		q.items.PushFront(payload)
	default:
		q.items.PushBack(payload)
	}
	q.MarkDirty()
	k.runWakePass(tok)
	return nil
}
