package elf

import (
	"github.com/vrcore/rtkernel/internal/kern"
	"github.com/vrcore/rtkernel/internal/kheap"
)

// Load reads the whole of the file identified by fh through fs and
// loads it as described by LoadBytes.
func Load(fs kern.FileSystem, fh kern.FileHandle, heap *kheap.Heap) (*Image, error) {
	raw, err := readAll(fs, fh)
	if err != nil {
		return nil, err
	}
	return LoadBytes(raw, heap)
}

func readAll(fs kern.FileSystem, fh kern.FileHandle) ([]byte, error) {
	size, err := fs.Seek(fh, 0, kern.SeekEnd)
	if err != nil {
		return nil, kern.WrapError("elf.readAll", kern.FS, err)
	}
	if _, err := fs.Seek(fh, 0, kern.SeekStart); err != nil {
		return nil, kern.WrapError("elf.readAll", kern.FS, err)
	}

	buf := make([]byte, size)
	read := int64(0)
	for read < size {
		n, err := fs.Read(fh, buf[read:])
		if n > 0 {
			read += int64(n)
		}
		if err != nil {
			return nil, kern.WrapError("elf.readAll", kern.FS, err)
		}
		if n == 0 {
			break
		}
	}
	if read != size {
		return nil, kern.NewError("elf.readAll", kern.FS, "short read of ELF image")
	}
	return buf, nil
}
