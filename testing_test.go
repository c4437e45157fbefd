package rtkernel

import (
	"testing"

	"github.com/vrcore/rtkernel/internal/kern"
)

func TestMockFileSystemRoundTrip(t *testing.T) {
	fs := NewMockFileSystem()

	fh, err := fs.Open("/hello.txt", 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if n, err := fs.Write(fh, []byte("hello")); err != nil || n != 5 {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}
	if err := fs.Close(fh); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fh2, err := fs.Open("/hello.txt", 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	buf := make([]byte, 5)
	n, err := fs.Read(fh2, buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("Read: n=%d err=%v buf=%q", n, err, buf)
	}

	counts := fs.CallCounts()
	if counts["open"] != 2 || counts["write"] != 1 || counts["read"] != 1 || counts["close"] != 1 {
		t.Errorf("unexpected call counts: %+v", counts)
	}
}

func TestMockFileSystemSeek(t *testing.T) {
	fs := NewMockFileSystem()
	fs.SetFile("/data", []byte("0123456789"))

	fh, _ := fs.Open("/data", 0)
	pos, err := fs.Seek(fh, 3, kern.SeekStart)
	if err != nil || pos != 3 {
		t.Fatalf("Seek start: pos=%d err=%v", pos, err)
	}

	buf := make([]byte, 2)
	n, err := fs.Read(fh, buf)
	if err != nil || n != 2 || string(buf) != "34" {
		t.Fatalf("Read after seek: n=%d err=%v buf=%q", n, err, buf)
	}

	pos, err = fs.Seek(fh, 0, kern.SeekEnd)
	if err != nil || pos != 10 {
		t.Fatalf("Seek end: pos=%d err=%v", pos, err)
	}
}

func TestMockFileSystemForcedError(t *testing.T) {
	fs := NewMockFileSystem()
	want := kern.NewError("mockfs", kern.FS, "injected failure")
	fs.SetError(want)

	if _, err := fs.Open("/x", 0); err != want {
		t.Fatalf("expected injected error, got %v", err)
	}

	fs.SetError(nil)
	if _, err := fs.Open("/x", 0); err != nil {
		t.Fatalf("expected error cleared, got %v", err)
	}
}

func TestMockFileSystemUnopenedHandle(t *testing.T) {
	fs := NewMockFileSystem()
	if _, err := fs.Read(99, make([]byte, 1)); kern.CodeOf(err) != kern.BadArg {
		t.Fatalf("expected BAD_ARG for unopened handle, got %v", err)
	}
}
