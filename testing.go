package rtkernel

import (
	"sync"

	"github.com/vrcore/rtkernel/internal/kern"
)

// MockFileSystem is an in-memory kern.FileSystem for testing code that
// issues syscalls (or uses internal/elf.Load) without a real flash-backed
// implementation. It tracks per-method call counts for verification, the
// same way the backend mocks this project grew up on did.
type MockFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	open  map[kern.FileHandle]*mockOpenFile
	next  kern.FileHandle

	forceErr error // if set, every call fails with this error until cleared

	openCalls  int
	closeCalls int
	readCalls  int
	writeCalls int
	seekCalls  int
}

type mockOpenFile struct {
	path string
	pos  int64
}

// NewMockFileSystem creates an empty mock file system.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		files: make(map[string][]byte),
		open:  make(map[kern.FileHandle]*mockOpenFile),
		next:  1,
	}
}

// SetFile preloads path with data, as if it had already been written.
func (m *MockFileSystem) SetFile(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[path] = buf
}

// Contents returns a copy of path's current bytes and whether it exists.
func (m *MockFileSystem) Contents(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	if !ok {
		return nil, false
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, true
}

// SetError forces every subsequent call to fail with err until cleared
// with SetError(nil).
func (m *MockFileSystem) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forceErr = err
}

// Open implements kern.FileSystem. flags is accepted but ignored; every
// file is readable and writable, matching the flat, permission-free view
// the flash file system presents to this core.
func (m *MockFileSystem) Open(path string, flags int) (kern.FileHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCalls++
	if m.forceErr != nil {
		return 0, m.forceErr
	}

	fh := m.next
	m.next++
	m.open[fh] = &mockOpenFile{path: path}
	if _, ok := m.files[path]; !ok {
		m.files[path] = nil
	}
	return fh, nil
}

// Close implements kern.FileSystem.
func (m *MockFileSystem) Close(fh kern.FileHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	if m.forceErr != nil {
		return m.forceErr
	}
	if _, ok := m.open[fh]; !ok {
		return kern.NewError("mockfs.Close", kern.BadArg, "handle not open")
	}
	delete(m.open, fh)
	return nil
}

// Read implements kern.FileSystem.
func (m *MockFileSystem) Read(fh kern.FileHandle, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if m.forceErr != nil {
		return 0, m.forceErr
	}
	f, ok := m.open[fh]
	if !ok {
		return 0, kern.NewError("mockfs.Read", kern.BadArg, "handle not open")
	}
	data := m.files[f.path]
	if f.pos >= int64(len(data)) {
		return 0, nil
	}
	n := copy(buf, data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

// Write implements kern.FileSystem, appending at the current position
// (or overwriting in place, whichever the position already selects).
func (m *MockFileSystem) Write(fh kern.FileHandle, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	if m.forceErr != nil {
		return 0, m.forceErr
	}
	f, ok := m.open[fh]
	if !ok {
		return 0, kern.NewError("mockfs.Write", kern.BadArg, "handle not open")
	}
	data := m.files[f.path]
	end := f.pos + int64(len(buf))
	if end > int64(len(data)) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[f.pos:end], buf)
	m.files[f.path] = data
	f.pos = end
	return len(buf), nil
}

// Seek implements kern.FileSystem.
func (m *MockFileSystem) Seek(fh kern.FileHandle, offset int64, whence int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekCalls++
	if m.forceErr != nil {
		return 0, m.forceErr
	}
	f, ok := m.open[fh]
	if !ok {
		return 0, kern.NewError("mockfs.Seek", kern.BadArg, "handle not open")
	}
	size := int64(len(m.files[f.path]))
	switch whence {
	case kern.SeekStart:
		f.pos = offset
	case kern.SeekCurrent:
		f.pos += offset
	case kern.SeekEnd:
		f.pos = size + offset
	default:
		return 0, kern.NewError("mockfs.Seek", kern.BadArg, "invalid whence")
	}
	if f.pos < 0 {
		f.pos = 0
	}
	return f.pos, nil
}

// CallCounts returns the number of times each method has been called.
func (m *MockFileSystem) CallCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"open":  m.openCalls,
		"close": m.closeCalls,
		"read":  m.readCalls,
		"write": m.writeCalls,
		"seek":  m.seekCalls,
	}
}

// Reset clears call counters, the forced error, and every open handle,
// leaving file contents intact.
func (m *MockFileSystem) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCalls, m.closeCalls, m.readCalls, m.writeCalls, m.seekCalls = 0, 0, 0, 0, 0
	m.forceErr = nil
	m.open = make(map[kern.FileHandle]*mockOpenFile)
}

// Compile-time interface check.
var _ kern.FileSystem = (*MockFileSystem)(nil)
