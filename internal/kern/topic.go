package kern

// Topic is a publish/subscribe object: each subscriber gets a private FIFO
// fed by every Publish. free_count is personalized per caller rather than
// a single shared counter — a subscriber sees its own queue depth, a
// non-subscriber sees 0 (not the "infinite" sentinel the source used,
// which made an unsubscribed caller appear permanently ready; see the
// corresponding design-notes decision).
type Topic struct {
	ObjectHeader
	subs map[*Task]*MessageQueue
}

// NewTopic returns a topic with no subscribers.
func NewTopic(name string) *Topic {
	return &Topic{
		ObjectHeader: NewObjectHeader(KindTopic, name),
		subs:         make(map[*Task]*MessageQueue),
	}
}

func (t *Topic) FreeCount(taker *Task) int {
	q, ok := t.subs[taker]
	if !ok {
		return 0
	}
	return q.Len()
}

func (t *Topic) Take(taker *Task) {
	if q, ok := t.subs[taker]; ok {
		_, _ = q.items.PopFront()
	}
}

// IsSubscriber reports whether task has subscribed to the topic.
func (t *Topic) IsSubscriber(task *Task) bool {
	_, ok := t.subs[task]
	return ok
}

// Subscribe creates task's private FIFO if it doesn't already have one.
func (k *Kernel) Subscribe(t *Topic, task *Task) {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	if _, ok := t.subs[task]; !ok {
		t.subs[task] = NewMessageQueue(t.Name+":"+task.name, FIFO, 0)
	}
}

// Unsubscribe removes task's subscription and its queued, unread messages.
func (k *Kernel) Unsubscribe(t *Topic, task *Task) {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	delete(t.subs, task)
}

// Publish pushes payload into every subscriber's private queue and runs a
// wake pass so waiting subscribers see it.
func (k *Kernel) Publish(t *Topic, payload any) {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	for _, q := range t.subs {
		q.items.PushBack(payload)
	}
	t.MarkDirty()
	k.runWakePass(tok)
}
