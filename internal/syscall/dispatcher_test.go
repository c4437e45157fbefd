package syscall

import (
	"testing"
	"time"

	"github.com/vrcore/rtkernel/internal/kern"
)

// memFS is a minimal in-memory kern.FileSystem for exercising the
// dispatcher without a real flash-backed implementation.
type memFS struct {
	files map[string][]byte
	next  kern.FileHandle
	open  map[kern.FileHandle]*memFile
}

type memFile struct {
	path string
	data []byte
	pos  int
}

func newMemFS() *memFS {
	return &memFS{files: map[string][]byte{}, open: map[kern.FileHandle]*memFile{}, next: 1}
}

func (m *memFS) Open(path string, flags int) (kern.FileHandle, error) {
	fh := m.next
	m.next++
	m.open[fh] = &memFile{path: path, data: m.files[path]}
	return fh, nil
}

func (m *memFS) Close(fh kern.FileHandle) error {
	delete(m.open, fh)
	return nil
}

func (m *memFS) Read(fh kern.FileHandle, buf []byte) (int, error) {
	f := m.open[fh]
	n := copy(buf, f.data[f.pos:])
	f.pos += n
	return n, nil
}

func (m *memFS) Write(fh kern.FileHandle, buf []byte) (int, error) {
	f := m.open[fh]
	f.data = append(f.data[:f.pos], buf...)
	f.pos += len(buf)
	m.files[f.path] = f.data
	return len(buf), nil
}

func (m *memFS) Seek(fh kern.FileHandle, offset int64, whence int) (int64, error) {
	return offset, nil
}

func testConfig() kern.Config {
	cfg := kern.DefaultConfig()
	cfg.TickPeriod = time.Millisecond
	cfg.HeapSize = 1 << 16
	return cfg
}

// Exercises the full open -> write -> close -> open -> read round trip
// through the dispatcher, each call suspending the caller on its own
// short-lived service task.
func TestDispatcherFileRoundTrip(t *testing.T) {
	k := kern.NewKernel(testConfig())
	fs := newMemFS()
	disp := NewDispatcher(k, fs, nil)

	done := make(chan error, 1)
	k.Create("writer", func(ctx *kern.TaskContext, arg any) int {
		openFrame := &Frame{Call: CallOpen, Args: [NumArgs]any{"/hello.txt", 0}}
		if err := disp.Invoke(ctx.Self(), openFrame); err != nil {
			done <- err
			return 1
		}
		fh := kern.FileHandle(openFrame.Result)

		writeFrame := &Frame{Call: CallWrite, Args: [NumArgs]any{[]byte("hi"), 0, 0, fh}}
		if err := disp.Invoke(ctx.Self(), writeFrame); err != nil {
			done <- err
			return 1
		}
		if writeFrame.Result != 2 {
			done <- kern.NewError("test", kern.Unknown, "short write")
			return 1
		}

		closeFrame := &Frame{Call: CallClose, Args: [NumArgs]any{fh}}
		if err := disp.Invoke(ctx.Self(), closeFrame); err != nil {
			done <- err
			return 1
		}

		readOpen := &Frame{Call: CallOpen, Args: [NumArgs]any{"/hello.txt", 0}}
		if err := disp.Invoke(ctx.Self(), readOpen); err != nil {
			done <- err
			return 1
		}
		readFh := kern.FileHandle(readOpen.Result)

		buf := make([]byte, 2)
		readFrame := &Frame{Call: CallRead, Args: [NumArgs]any{buf, 2, 1, readFh}}
		if err := disp.Invoke(ctx.Self(), readFrame); err != nil {
			done <- err
			return 1
		}
		if readFrame.Result != 2 || string(buf) != "hi" {
			done <- kern.NewError("test", kern.Unknown, "round trip mismatch")
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
			t.Fatalf("round trip failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never completed the round trip")
	}
}

func TestDispatcherRejectsBeforeStart(t *testing.T) {
	k := kern.NewKernel(testConfig())
	fs := newMemFS()
	disp := NewDispatcher(k, fs, nil)

	caller, _ := k.Create("caller", func(ctx *kern.TaskContext, arg any) int { return 0 }, 5, 0, nil)
	frame := &Frame{Call: CallOpen, Args: [NumArgs]any{"/x", 0}}
	err := disp.Invoke(caller, frame)
	if kern.CodeOf(err) != kern.NotReady {
		t.Fatalf("expected NOT_READY before Start, got %v", err)
	}
}

func TestDispatcherRejectsUnknownCall(t *testing.T) {
	k := kern.NewKernel(testConfig())
	fs := newMemFS()
	disp := NewDispatcher(k, fs, nil)

	done := make(chan error, 1)
	k.Create("bad-caller", func(ctx *kern.TaskContext, arg any) int {
		frame := &Frame{Call: 99}
		done <- disp.Invoke(ctx.Self(), frame)
		return 0
	}, 5, 0, nil)

	k.Start()
	defer k.Stop()

	select {
	case err := <-done:
		if kern.CodeOf(err) != kern.BadArg {
			t.Fatalf("expected BAD_ARG for unknown call number, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("caller never reported a result")
	}
}
