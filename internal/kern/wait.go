package kern

import "github.com/vrcore/rtkernel/internal/klist"

// isObjectFreeOnTask implements the source's is_object_free_on_task
// predicate: sort obj's block list by effective priority (ties by
// insertion order), walk it, letting every earlier still-eligible waiter
// simulate consuming one unit of free_count according to its own wait
// mode, and stop at task. For a WAIT_ALL waiter, a unit is only consumed
// if every other object in its wait set is *also* simulated-available to
// it — a mutually recursive check over the object graph, terminated by
// the finite block lists and by never walking past the target task.
func isObjectFreeOnTask(obj Waitable, task *Task) bool {
	return objectFreeOnTask(obj, task, map[*Task]bool{})
}

// visiting guards the mutual recursion a WAIT_ALL check can trigger: task A
// waiting on {X,Y} may ask "is X free for A", which asks "is every object A
// waits on free for A", which asks about X again. visiting breaks that
// cycle by treating an in-progress query as provisionally true, matching
// the source's reliance on block lists being finite.
func objectFreeOnTask(obj Waitable, task *Task, visiting map[*Task]bool) bool {
	h := obj.Header()
	h.Blocked.SortByPriority(func(t *Task) int { return t.EffectivePriority() })

	remaining := obj.FreeCount(task)
	found := false
	h.Blocked.Each(func(c *klist.Cell[*Task]) {
		if found {
			return
		}
		waiter := c.Value
		if waiter == task {
			found = true
			return
		}
		if !waiterEligible(waiter, obj, visiting) {
			return
		}
		if remaining != Infinite {
			remaining--
		}
	})
	// If task is not yet in obj's block list (the immediate check run
	// before a task actually blocks), it is simulated as the next
	// hypothetical waiter in line; remaining already reflects that.
	return remaining == Infinite || remaining > 0
}

// waiterEligible reports whether waiter would actually take a unit from
// obj right now, consulting its wait mode: a WAIT_ONE waiter always
// competes for any object in its set; a WAIT_ALL waiter only competes if
// every object in its set (other than obj itself) is also available to it.
func waiterEligible(waiter *Task, obj Waitable, visiting map[*Task]bool) bool {
	if waiter.waitMode != WaitAll {
		return true
	}
	if visiting[waiter] {
		return true
	}
	visiting[waiter] = true
	defer delete(visiting, waiter)
	for _, other := range waiter.waitSet {
		if other == obj {
			continue
		}
		if !objectFreeOnTask(other, waiter, visiting) {
			return false
		}
	}
	return true
}

// firstSatisfiable returns the index of the first object in objs that is
// immediately available to t, honoring mode: WAIT_ONE is satisfied by any
// single available object, WAIT_ALL only when every object is available.
func firstSatisfiable(t *Task, objs []Waitable, mode WaitMode) (int, bool) {
	if mode == WaitAll {
		for _, o := range objs {
			if !isObjectFreeOnTask(o, t) {
				return 0, false
			}
		}
		if len(objs) == 0 {
			return 0, false
		}
		return 0, true
	}
	for i, o := range objs {
		if isObjectFreeOnTask(o, t) {
			return i, true
		}
	}
	return 0, false
}

// nonBlockingCode picks the status a zero-timeout wait reports when
// nothing is immediately available: EMPTY for the data-bearing kinds
// (message queue, topic) where "nothing to receive" is the ordinary
// outcome, TIMEOUT for everything else (semaphore, mutex, event, task
// join), matching the vocabulary a caller would expect from each.
func nonBlockingCode(objs []Waitable) Code {
	for _, o := range objs {
		switch o.Header().Kind {
		case KindMessageQueue, KindTopic:
			continue
		default:
			return Timeout
		}
	}
	return Empty
}

// waitMulti is the shared implementation behind WaitOne, WaitAny and
// WaitAll: check immediate satisfiability, fail fast on a zero timeout,
// otherwise join every object's block list and suspend, looping on resume
// until satisfied, timed out, or cancelled by an external delete.
func (k *Kernel) waitMulti(t *Task, objs []Waitable, mode WaitMode, timeout int) (Waitable, error) {
	if len(objs) == 0 {
		return nil, NewError("wait", BadArg, "empty wait set")
	}
	tok := k.cs.Enter()
	for {
		if t.state == StateEnded || t.state == StateDeleting {
			k.cs.Exit(tok)
			return nil, NewError("wait", Invalid, "task torn down while waiting")
		}
		if idx, ok := firstSatisfiable(t, objs, mode); ok {
			obj := objs[idx]
			if mode == WaitAll {
				for _, o := range objs {
					o.Take(t)
					k.onBlockListChanged(o)
				}
			} else {
				obj.Take(t)
				k.onBlockListChanged(obj)
			}
			k.clearWaitState(t)
			k.cs.Exit(tok)
			return obj, nil
		}
		if t.timedOut {
			t.timedOut = false
			k.clearWaitState(t)
			k.cs.Exit(tok)
			return nil, NewError("wait", Timeout, "wait timed out")
		}
		if timeout == 0 {
			k.clearWaitState(t)
			k.cs.Exit(tok)
			return nil, NewError("wait", nonBlockingCode(objs), "non-blocking wait not satisfiable")
		}

		t.waitSet = objs
		t.waitIdx = -1
		t.waitMode = mode
		t.state = StateBlocked
		if timeout > 0 {
			t.sleepTicks = timeout
		} else {
			t.sleepTicks = Forever
		}
		for _, o := range objs {
			o.Header().appendWaiterOnce(t)
			k.onBlockListChanged(o)
		}

		tok = k.suspend(tok, t)
		if t.waitIdx >= 0 {
			// A wake pass already took objs[waitIdx] on t's behalf.
			idx := t.waitIdx
			t.waitIdx = -1
			k.cs.Exit(tok)
			return objs[idx], nil
		}
	}
}

// clearWaitState removes t from every object it was waiting on and resets
// its wait bookkeeping; called once a wait is resolved one way or another.
func (k *Kernel) clearWaitState(t *Task) {
	for _, o := range t.waitSet {
		o.Header().removeWaiter(t)
		k.onBlockListChanged(o)
	}
	t.waitSet = nil
	t.waitIdx = -1
	t.waitMode = WaitNone
	if t.state == StateBlocked {
		t.state = StateReady
	}
}

// WaitOne blocks t until obj is available or the timeout (ticks, Forever
// for no timeout, 0 for non-blocking) elapses.
func (k *Kernel) WaitOne(t *Task, obj Waitable, timeout int) (Waitable, error) {
	return k.waitMulti(t, []Waitable{obj}, WaitOne, timeout)
}

// WaitAny blocks t until any object in objs is available.
func (k *Kernel) WaitAny(t *Task, objs []Waitable, timeout int) (Waitable, error) {
	return k.waitMulti(t, objs, WaitOne, timeout)
}

// WaitAll blocks t until every object in objs is simultaneously available.
func (k *Kernel) WaitAll(t *Task, objs []Waitable, timeout int) error {
	_, err := k.waitMulti(t, objs, WaitAll, timeout)
	return err
}

// Join is a typed convenience over WaitOne(target): it waits for target
// to end, reads its return value, and reaps it exactly once (the first
// joiner to observe termination frees the task's control block and stack,
// matching the source's "reaped when an observer consumes the return
// value").
func (k *Kernel) Join(t *Task, target *Task, timeout int) (int, error) {
	if _, err := k.WaitOne(t, target, timeout); err != nil {
		return 0, err
	}
	ret := target.retValue
	k.reapTaskOnce(target)
	return ret, nil
}

// runWakePass drives the wake-propagation engine described in §4.5: pick
// any dirty object, sort and walk its block list, advance any waiter that
// can now proceed, propagating dirtiness to every object a WAIT_ALL
// waiter's availability depends on, until no object carries the flag.
func (k *Kernel) runWakePass(tok *CSToken) {
	defer k.observer.WakePass()
	for {
		obj := k.nextDirtyObject()
		if obj == nil {
			return
		}
		h := obj.Header()
		h.NeedsUpdate = false
		h.Blocked.SortByPriority(func(t *Task) int { return t.EffectivePriority() })

		var progressed []*Task
		h.Blocked.Each(func(c *klist.Cell[*Task]) {
			waiter := c.Value
			if waiter.state != StateBlocked {
				return
			}
			if _, ok := firstSatisfiable(waiter, waiter.waitSet, waiter.waitMode); ok {
				progressed = append(progressed, waiter)
			}
		})
		for _, waiter := range progressed {
			objs := waiter.waitSet
			mode := waiter.waitMode
			idx, ok := firstSatisfiable(waiter, objs, mode)
			if !ok {
				continue
			}
			if mode == WaitAll {
				for _, o := range objs {
					o.Take(waiter)
					k.onBlockListChanged(o)
					o.Header().MarkDirty()
				}
			} else {
				objs[idx].Take(waiter)
				k.onBlockListChanged(objs[idx])
				objs[idx].Header().MarkDirty()
			}
			k.clearWaitState(waiter)
			waiter.waitIdx = idx
		}
	}
}

// nextDirtyObject scans the kernel's object arena for any waitable still
// carrying NeedsUpdate.
func (k *Kernel) nextDirtyObject() Waitable {
	var found Waitable
	k.objects.Each(func(_ Handle, w Waitable) {
		if found == nil && w.Header().NeedsUpdate {
			found = w
		}
	})
	return found
}
