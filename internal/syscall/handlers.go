package syscall

import "github.com/vrcore/rtkernel/internal/kern"

// Handler services one call, given the file-system boundary and the
// frame's argument vector, and returns the raw result word.
type Handler func(fs kern.FileSystem, args [NumArgs]any) int32

// Table maps call numbers to handlers. The spec's syscall table
// enumerates file operations only: open, close, read, write.
type Table map[int]Handler

// DefaultTable is the standard four-entry file-operation table.
func DefaultTable() Table {
	return Table{
		CallOpen:  doOpen,
		CallClose: doClose,
		CallRead:  doRead,
		CallWrite: doWrite,
	}
}

// doOpen implements open(name, mode) -> file*, modeled here as the
// kern.FileHandle the file system hands back.
func doOpen(fs kern.FileSystem, args [NumArgs]any) int32 {
	name, _ := args[0].(string)
	mode, _ := args[1].(int)
	fh, err := fs.Open(name, mode)
	if err != nil {
		return -1
	}
	return int32(fh)
}

// doClose implements close(file) -> int.
func doClose(fs kern.FileSystem, args [NumArgs]any) int32 {
	fh, _ := args[0].(kern.FileHandle)
	if err := fs.Close(fh); err != nil {
		return -1
	}
	return 0
}

// doRead implements read(ptr, size, n, file) -> count. ptr is the
// destination buffer directly (see the package doc's ABI note); size*n
// bytes are requested by sizing ptr to that length before the call.
func doRead(fs kern.FileSystem, args [NumArgs]any) int32 {
	buf, _ := args[0].([]byte)
	fh, _ := args[3].(kern.FileHandle)
	n, err := fs.Read(fh, buf)
	if err != nil {
		return -1
	}
	return int32(n)
}

// doWrite implements write(ptr, size, n, file) -> count.
func doWrite(fs kern.FileSystem, args [NumArgs]any) int32 {
	buf, _ := args[0].([]byte)
	fh, _ := args[3].(kern.FileHandle)
	n, err := fs.Write(fh, buf)
	if err != nil {
		return -1
	}
	return int32(n)
}
