package elf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrcore/rtkernel/internal/kheap"
)

// buildHello assembles a minimal ELF32 LE ARM PIE image matching the
// round-trip scenario: one PT_LOAD segment of memsz 0x400, entry 0x8,
// and a two-word .got at segment-relative offset 0x10 holding the
// absolute addresses 0x200 and 0x280.
func buildHello() []byte {
	const (
		phoff     = ehSize
		segOffset = phoff + phSize // where the segment's raw bytes start
		gotOff    = 0x10           // segment-relative offset of .got
		gotSize   = 8
		segFilesz = gotOff + gotSize
		segMemsz  = 0x400
		shstrtab  = "\x00.shstrtab\x00.got\x00"
	)
	shoff := segOffset + segFilesz
	strtabOffset := shoff + 3*shSize

	buf := make([]byte, strtabOffset+len(shstrtab))

	// e_ident + scalar header fields
	buf[4] = classELF32
	buf[5] = dataLSB
	buf[6] = evCurrent
	binary.LittleEndian.PutUint16(buf[18:20], machineARM)
	binary.LittleEndian.PutUint32(buf[24:28], 0x8) // e_entry
	binary.LittleEndian.PutUint32(buf[28:32], phoff)
	binary.LittleEndian.PutUint32(buf[32:36], uint32(shoff))
	binary.LittleEndian.PutUint16(buf[42:44], phSize)
	binary.LittleEndian.PutUint16(buf[44:46], 1) // phnum
	binary.LittleEndian.PutUint16(buf[46:48], shSize)
	binary.LittleEndian.PutUint16(buf[48:50], 3) // shnum: null, shstrtab, .got
	binary.LittleEndian.PutUint16(buf[50:52], 1) // shstrndx

	// program header: one PT_LOAD
	ph := buf[phoff : phoff+phSize]
	binary.LittleEndian.PutUint32(ph[0:4], ptLoad)
	binary.LittleEndian.PutUint32(ph[4:8], uint32(segOffset))
	binary.LittleEndian.PutUint32(ph[8:12], 0) // vaddr
	binary.LittleEndian.PutUint32(ph[16:20], segFilesz)
	binary.LittleEndian.PutUint32(ph[20:24], segMemsz)

	// segment bytes: .got lives at segment-relative offset gotOff
	binary.LittleEndian.PutUint32(buf[segOffset+gotOff:segOffset+gotOff+4], 0x200)
	binary.LittleEndian.PutUint32(buf[segOffset+gotOff+4:segOffset+gotOff+8], 0x280)

	// section 0: NULL (all zero, already)
	// section 1: .shstrtab
	sh1 := buf[shoff+shSize : shoff+2*shSize]
	binary.LittleEndian.PutUint32(sh1[0:4], 1) // name offset into strtab
	binary.LittleEndian.PutUint32(sh1[16:20], uint32(strtabOffset))
	binary.LittleEndian.PutUint32(sh1[20:24], uint32(len(shstrtab)))

	// section 2: .got
	sh2 := buf[shoff+2*shSize : shoff+3*shSize]
	binary.LittleEndian.PutUint32(sh2[0:4], 11) // ".got" offset into strtab
	binary.LittleEndian.PutUint32(sh2[12:16], gotOff)
	binary.LittleEndian.PutUint32(sh2[16:20], uint32(segOffset+gotOff))
	binary.LittleEndian.PutUint32(sh2[20:24], gotSize)

	copy(buf[strtabOffset:], shstrtab)

	return buf
}

func TestLoadRelocatesGOTAndComputesEntry(t *testing.T) {
	heap := kheap.New(4096)
	raw := buildHello()

	img, err := LoadBytes(raw, heap)
	require.NoError(t, err)
	require.NotNil(t, img)

	base := img.Slab.Offset
	require.Equal(t, 0x10, img.GOTBase)
	require.Equal(t, (base+0x8)|1, img.Entry)

	got0 := binary.LittleEndian.Uint32(img.Slab.Bytes[img.GOTBase : img.GOTBase+4])
	got1 := binary.LittleEndian.Uint32(img.Slab.Bytes[img.GOTBase+4 : img.GOTBase+8])
	require.Equal(t, uint32(base+0x200), got0)
	require.Equal(t, uint32(base+0x280), got1)

	used, _ := heap.Monitor()
	require.Equal(t, 0x400, used)
}

func TestLoadRejectsWrongMachine(t *testing.T) {
	heap := kheap.New(4096)
	raw := buildHello()
	binary.LittleEndian.PutUint16(raw[18:20], 0x3e) // x86-64, not ARM

	_, err := LoadBytes(raw, heap)
	require.Error(t, err)
}

func TestLoadRejectsTruncatedHeader(t *testing.T) {
	heap := kheap.New(4096)
	_, err := LoadBytes(make([]byte, 10), heap)
	require.Error(t, err)
}
