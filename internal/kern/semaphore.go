package kern

// Semaphore is a counting semaphore: release increments (saturating at
// max), wait_one decrements through the unified wait engine.
type Semaphore struct {
	ObjectHeader
	counter int
	max     int
}

// NewSemaphore returns a semaphore with the given initial count and
// saturation ceiling.
func NewSemaphore(name string, initial, max int) *Semaphore {
	return &Semaphore{
		ObjectHeader: NewObjectHeader(KindSemaphore, name),
		counter:      initial,
		max:          max,
	}
}

func (s *Semaphore) FreeCount(taker *Task) int {
	if s.counter < 0 {
		return 0
	}
	return s.counter
}

func (s *Semaphore) Take(taker *Task) { s.counter-- }

// Release increments the counter (saturating at max) and runs a wake pass
// so any task that can now proceed does so before Release's caller
// continues.
func (k *Kernel) Release(s *Semaphore) {
	tok := k.cs.Enter()
	defer k.cs.Exit(tok)
	if s.counter < s.max {
		s.counter++
	}
	s.MarkDirty()
	k.runWakePass(tok)
}
