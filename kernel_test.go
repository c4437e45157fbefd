package rtkernel

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/vrcore/rtkernel/internal/kern"
	"github.com/vrcore/rtkernel/internal/syscall"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TickPeriod = time.Millisecond
	cfg.HeapSize = 1 << 16
	return cfg
}

// TestSchedulerRunsHigherPriorityFirst mirrors the first worked scenario:
// two tasks print a letter each and return; the higher-priority one must
// complete first.
func TestSchedulerRunsHigherPriorityFirst(t *testing.T) {
	k := NewKernel(testConfig(), nil)

	var order []string
	done := make(chan struct{}, 2)
	k.Create("T1", func(ctx *TaskContext, arg any) int {
		order = append(order, "A")
		done <- struct{}{}
		return 0
	}, 10, 0, nil)
	k.Create("T2", func(ctx *TaskContext, arg any) int {
		order = append(order, "B")
		done <- struct{}{}
		return 0
	}, 20, 0, nil)

	k.Start()
	defer k.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("tasks never completed")
		}
	}
	if len(order) != 2 || order[0] != "B" || order[1] != "A" {
		t.Fatalf("expected [B A], got %v", order)
	}
}

// TestMutexPriorityInheritance mirrors the third worked scenario: a low
// priority holder is boosted to the waiter's priority for the duration.
func TestMutexPriorityInheritance(t *testing.T) {
	k := NewKernel(testConfig(), nil)
	m := k.CreateMutex("m")

	boosted := make(chan int, 1)
	released := make(chan int, 1)
	k.Create("low", func(ctx *TaskContext, arg any) int {
		if _, err := ctx.WaitOne(m, Forever); err != nil {
			t.Errorf("low failed to take mutex: %v", err)
			return 1
		}
		ctx.Sleep(3)
		boosted <- ctx.Self().EffectivePriority()
		if err := k.ReleaseMutex(ctx.Self(), m); err != nil {
			t.Errorf("low failed to release: %v", err)
			return 1
		}
		released <- ctx.Self().EffectivePriority()
		return 0
	}, 1, 0, nil)
	k.Create("high", func(ctx *TaskContext, arg any) int {
		ctx.Sleep(1)
		if _, err := ctx.WaitOne(m, Forever); err != nil {
			t.Errorf("high failed to take mutex: %v", err)
			return 1
		}
		k.ReleaseMutex(ctx.Self(), m)
		return 0
	}, 50, 0, nil)

	k.Start()
	defer k.Stop()

	select {
	case p := <-boosted:
		if p != 50 {
			t.Fatalf("expected low's effective priority to be boosted to 50, got %d", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("low never observed boosted priority")
	}
	select {
	case p := <-released:
		if p != 1 {
			t.Fatalf("expected low's effective priority to fall back to 1, got %d", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("low never released the mutex")
	}
}

// TestSyscallRoundTripAndMetrics exercises the facade's syscall path
// end-to-end against a mock file system, tallying each dispatch on a
// Metrics instance.
func TestSyscallRoundTripAndMetrics(t *testing.T) {
	fs := NewMockFileSystem()
	k := NewKernel(testConfig(), fs)
	m := NewMetrics()

	done := make(chan error, 1)
	k.Create("writer", func(ctx *TaskContext, arg any) int {
		openFrame := &syscall.Frame{Call: syscall.CallOpen, Args: [syscall.NumArgs]any{"/greeting", 0}}
		if err := k.Syscall(ctx.Self(), openFrame, m); err != nil {
			done <- err
			return 1
		}
		fh := kern.FileHandle(openFrame.Result)

		writeFrame := &syscall.Frame{Call: syscall.CallWrite, Args: [syscall.NumArgs]any{[]byte("hi"), 0, 0, fh}}
		if err := k.Syscall(ctx.Self(), writeFrame, m); err != nil {
			done <- err
			return 1
		}
		done <- nil
		return 0
	}, 5, 0, nil)

	k.Start()
	defer k.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("syscall round trip failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("syscall round trip never completed")
	}

	snap := m.Snapshot()
	if snap.SyscallDispatches != 2 {
		t.Fatalf("expected 2 syscall dispatches tallied, got %d", snap.SyscallDispatches)
	}
	if data, ok := fs.Contents("/greeting"); !ok || string(data) != "hi" {
		t.Fatalf("expected /greeting to contain %q, got %q (ok=%v)", "hi", data, ok)
	}
}

// TestLoadProcess builds a minimal ELF32 PIE image, loads it through the
// facade and confirms the spawned task's entry observes the relocated GOT
// — the slab_base + word relocation internal/elf performs.
func TestLoadProcess(t *testing.T) {
	fs := NewMockFileSystem()
	fs.SetFile("/bin/hello", buildMinimalELF())
	k := NewKernel(testConfig(), fs)

	var proc *Process
	gotSeen := make(chan uint32, 1)
	p, _, err := k.LoadProcess("hello", "/bin/hello", 10, func(ctx *TaskContext, arg any) int {
		got := binary.LittleEndian.Uint32(proc.Slab()[proc.GOTBase() : proc.GOTBase()+4])
		gotSeen <- got
		return 0
	})
	if err != nil {
		t.Fatalf("LoadProcess: %v", err)
	}
	proc = p

	k.Start()
	defer k.Stop()

	select {
	case got := <-gotSeen:
		want := uint32(proc.Entry()&^1) + 0x200 - 0x8
		if got != want {
			t.Fatalf("expected relocated GOT entry %#x, got %#x", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loaded process never ran")
	}
}

// buildMinimalELF assembles a minimal ELF32 LE ARM PIE image: one PT_LOAD
// segment of memsz 0x400, entry 0x8, and a one-word .got at
// segment-relative offset 0x10 holding the absolute address 0x200.
func buildMinimalELF() []byte {
	const (
		ehSize    = 52
		phSize    = 32
		shSize    = 40
		phoff     = ehSize
		segOffset = phoff + phSize
		gotOff    = 0x10
		gotSize   = 4
		segFilesz = gotOff + gotSize
		segMemsz  = 0x400
		shstrtab  = "\x00.shstrtab\x00.got\x00"
	)
	shoff := segOffset + segFilesz
	strtabOffset := shoff + 3*shSize

	buf := make([]byte, strtabOffset+len(shstrtab))

	buf[4] = 1 // ELFCLASS32
	buf[5] = 1 // ELFDATA2LSB
	buf[6] = 1 // EV_CURRENT
	binary.LittleEndian.PutUint16(buf[18:20], 40) // EM_ARM
	binary.LittleEndian.PutUint32(buf[24:28], 0x8)
	binary.LittleEndian.PutUint32(buf[28:32], phoff)
	binary.LittleEndian.PutUint32(buf[32:36], uint32(shoff))
	binary.LittleEndian.PutUint16(buf[42:44], phSize)
	binary.LittleEndian.PutUint16(buf[44:46], 1)
	binary.LittleEndian.PutUint16(buf[46:48], shSize)
	binary.LittleEndian.PutUint16(buf[48:50], 3)
	binary.LittleEndian.PutUint16(buf[50:52], 1)

	ph := buf[phoff : phoff+phSize]
	binary.LittleEndian.PutUint32(ph[0:4], 1) // PT_LOAD
	binary.LittleEndian.PutUint32(ph[4:8], uint32(segOffset))
	binary.LittleEndian.PutUint32(ph[8:12], 0)
	binary.LittleEndian.PutUint32(ph[16:20], segFilesz)
	binary.LittleEndian.PutUint32(ph[20:24], segMemsz)

	binary.LittleEndian.PutUint32(buf[segOffset+gotOff:segOffset+gotOff+4], 0x200)

	sh1 := buf[shoff+shSize : shoff+2*shSize]
	binary.LittleEndian.PutUint32(sh1[0:4], 1)
	binary.LittleEndian.PutUint32(sh1[16:20], uint32(strtabOffset))
	binary.LittleEndian.PutUint32(sh1[20:24], uint32(len(shstrtab)))

	sh2 := buf[shoff+2*shSize : shoff+3*shSize]
	binary.LittleEndian.PutUint32(sh2[0:4], 11)
	binary.LittleEndian.PutUint32(sh2[12:16], gotOff)
	binary.LittleEndian.PutUint32(sh2[16:20], uint32(segOffset+gotOff))
	binary.LittleEndian.PutUint32(sh2[20:24], gotSize)

	copy(buf[strtabOffset:], shstrtab)

	return buf
}
