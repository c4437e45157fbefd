package kern

import "github.com/vrcore/rtkernel/internal/klist"

// recomputeEffectivePriority recomputes t's effective priority from
// max(base, joiners' priorities, owned mutexes' max-waiter priorities). If
// the value changed, it recurses into every object t currently waits on
// that can carry priority (a mutex, whose owner may now need to change
// too; a task, via join) so inheritance propagates along the whole chain.
// The inheritance graph is a DAG in steady state (no task waits on a
// mutex it owns), so this recursion terminates; it does not defend
// against a cycle introduced by caller error.
func (k *Kernel) recomputeEffectivePriority(t *Task) {
	best := t.basePriority
	t.Blocked.Each(func(c *klist.Cell[*Task]) {
		if p := c.Value.EffectivePriority(); p > best {
			best = p
		}
	})
	t.ownedMutexes.Each(func(c *klist.Cell[*Mutex]) {
		if p := c.Value.MaxWaiterPriority(); p > best {
			best = p
		}
	})
	if best == t.effPriority {
		return
	}
	prev := t.effPriority
	t.effPriority = best
	k.observer.PriorityPropagation(t.pid)
	k.logger.WithTask(t.pid, t.name).Debug("effective priority changed", "from", prev, "to", best)
	for _, w := range t.waitSet {
		switch o := w.(type) {
		case *Mutex:
			o.recomputeMaxWaiterPriority()
			if o.owner != nil {
				k.recomputeEffectivePriority(o.owner)
			}
		case *Task:
			k.recomputeEffectivePriority(o)
		}
	}
}

// onBlockListChanged re-derives the priority consequences of a mutation to
// w's block list: a mutex recomputes its max-waiter priority and pushes it
// onto its owner; a task (joined by others) recomputes its own priority
// directly from its now-changed joiner set.
func (k *Kernel) onBlockListChanged(w Waitable) {
	switch o := w.(type) {
	case *Mutex:
		o.recomputeMaxWaiterPriority()
		if o.owner != nil {
			k.recomputeEffectivePriority(o.owner)
		}
	case *Task:
		k.recomputeEffectivePriority(o)
	}
}
