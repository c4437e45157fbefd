package kern

import "github.com/vrcore/rtkernel/internal/klist"

// Mutex is a priority-inheriting mutual-exclusion object: at most one
// owner at a time, tracking the highest priority among its waiters so the
// owner's effective priority can be boosted for the duration.
type Mutex struct {
	ObjectHeader
	owner        *Task
	maxWaiterPri int
	ownerCell    *klist.Cell[*Mutex] // this mutex's cell in owner.ownedMutexes
}

// NewMutex returns an unowned mutex.
func NewMutex(name string) *Mutex {
	return &Mutex{ObjectHeader: NewObjectHeader(KindMutex, name)}
}

// Owner returns the current owner, or nil if unowned.
func (m *Mutex) Owner() *Task { return m.owner }

// MaxWaiterPriority returns the highest effective priority among tasks
// currently blocked on this mutex, or 0 if none.
func (m *Mutex) MaxWaiterPriority() int { return m.maxWaiterPri }

func (m *Mutex) FreeCount(taker *Task) int {
	if m.owner == nil {
		return Infinite
	}
	return 0
}

func (m *Mutex) Take(taker *Task) {
	m.owner = taker
	m.ownerCell = taker.ownedMutexes.PushBack(m)
}

// recomputeMaxWaiterPriority walks the block list (in any order) and
// records the highest effective priority present, 0 if the list is empty.
func (m *Mutex) recomputeMaxWaiterPriority() {
	best := 0
	m.Blocked.Each(func(c *klist.Cell[*Task]) {
		if p := c.Value.EffectivePriority(); p > best {
			best = p
		}
	})
	m.maxWaiterPri = best
}

// Release requires caller == owner. It clears ownership, removes the
// mutex from the owner's owned list, recomputes the (former) owner's
// effective priority now that it may no longer be boosted, and runs a
// wake pass so the next eligible waiter acquires it.
func (k *Kernel) ReleaseMutex(caller *Task, m *Mutex) error {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)

	if m.owner != caller {
		return NewError("release_mutex", Forbidden, "caller does not own mutex")
	}
	prevOwner := m.owner
	m.owner = nil
	if m.ownerCell != nil {
		_ = prevOwner.ownedMutexes.Remove(m.ownerCell)
		m.ownerCell = nil
	}
	m.MarkDirty()
	k.recomputeEffectivePriority(prevOwner)
	k.runWakePass(tok)
	return nil
}
