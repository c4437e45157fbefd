package kern

import (
	"testing"
	"time"

	"github.com/vrcore/rtkernel/internal/klist"
)

// Scenario 3: low-priority L takes M; high-priority H blocks on M and
// boosts L's effective priority to 50 for the duration; L releases,
// drops back to its base priority, and H is granted the mutex.
func TestMutexPriorityInheritance(t *testing.T) {
	k := NewKernel(testConfig())
	m := k.CreateMutex("M")

	lTookHighPriority := make(chan int, 1)
	releaseL := make(chan struct{})
	hGranted := make(chan struct{}, 1)

	l, err := k.Create("L", func(ctx *TaskContext, arg any) int {
		if _, err := ctx.WaitOne(m, Forever); err != nil {
			t.Errorf("L take mutex: %v", err)
			return 1
		}
		// Wait for the go-ahead through kernel sleeps, so H gets to run
		// and block on M in the meantime.
		for waiting := true; waiting; {
			select {
			case <-releaseL:
				waiting = false
			default:
				ctx.Sleep(1)
			}
		}
		lTookHighPriority <- ctx.Self().EffectivePriority()
		if err := k.ReleaseMutex(ctx.Self(), m); err != nil {
			t.Errorf("L release: %v", err)
		}
		return 0
	}, 1, 0, nil)
	if err != nil {
		t.Fatalf("create L: %v", err)
	}

	_, err = k.Create("H", func(ctx *TaskContext, arg any) int {
		ctx.Sleep(1) // let L take M first
		if _, err := ctx.WaitOne(m, Forever); err != nil {
			t.Errorf("H take mutex: %v", err)
			return 1
		}
		hGranted <- struct{}{}
		return 0
	}, 50, 0, nil)
	if err != nil {
		t.Fatalf("create H: %v", err)
	}

	k.Start()
	defer k.Stop()

	// Give H time to block on M and boost L.
	time.Sleep(50 * time.Millisecond)
	if p := l.EffectivePriority(); p != 50 {
		t.Fatalf("expected L boosted to 50 while H waits, got %d", p)
	}
	close(releaseL)

	select {
	case p := <-lTookHighPriority:
		if p != 50 {
			t.Fatalf("expected L to observe boosted priority 50, got %d", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("L never observed its boosted priority")
	}

	select {
	case <-hGranted:
	case <-time.After(2 * time.Second):
		t.Fatal("H never acquired the mutex")
	}

	time.Sleep(10 * time.Millisecond)
	if p := l.EffectivePriority(); p != 1 {
		t.Fatalf("expected L back at base priority 1 after release, got %d", p)
	}
}

func TestMutexNotInOwnBlockListWhileOwned(t *testing.T) {
	k := NewKernel(testConfig())
	m := k.CreateMutex("M")
	owner := &Task{basePriority: 5, effPriority: 5, ownedMutexes: klist.New[*Mutex]()}
	m.Take(owner)
	if m.Owner() != owner {
		t.Fatalf("expected owner set")
	}
	if m.Blocked.Len() != 0 {
		t.Fatalf("expected empty block list immediately after Take")
	}
}
