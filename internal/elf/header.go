// Package elf loads position-independent ELF32 little-endian ARM
// executables into a kernel-allocated slab and relocates their global
// offset table and constructor/destructor arrays in place. It decodes
// the on-disk layout by hand with encoding/binary, in the style of the
// kernel's other wire formats, rather than pulling in a general-purpose
// ELF library built for host toolchains.
package elf

import (
	"encoding/binary"

	"github.com/vrcore/rtkernel/internal/kern"
)

const (
	identLen = 16
	ehSize   = 52 // ELF32 file header
	phSize   = 32 // ELF32 program header entry
	shSize   = 40 // ELF32 section header entry
)

const (
	classELF32 = 1
	dataLSB    = 1
	evCurrent  = 1
	machineARM = 40
)

const ptLoad = 1

// section names the loader rewrites in place; a closed, small set
// dispatched by string comparison rather than a general relocation engine.
const (
	secGOT           = ".got"
	secPreinitArray  = ".preinit_array"
	secInitArray     = ".init_array"
	secFiniArray     = ".fini_array"
)

// header mirrors the fields of Elf32_Ehdr this loader needs.
type header struct {
	class      byte
	data       byte
	version    byte
	machine    uint16
	entry      uint32
	phoff      uint32
	shoff      uint32
	phentsize  uint16
	phnum      uint16
	shentsize  uint16
	shnum      uint16
	shstrndx   uint16
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < ehSize {
		return header{}, kern.NewError("elf.decodeHeader", kern.BadArg, "file shorter than ELF header")
	}
	var h header
	h.class = buf[4]
	h.data = buf[5]
	h.version = buf[6]
	h.machine = binary.LittleEndian.Uint16(buf[18:20])
	h.entry = binary.LittleEndian.Uint32(buf[24:28])
	h.phoff = binary.LittleEndian.Uint32(buf[28:32])
	h.shoff = binary.LittleEndian.Uint32(buf[32:36])
	h.phentsize = binary.LittleEndian.Uint16(buf[42:44])
	h.phnum = binary.LittleEndian.Uint16(buf[44:46])
	h.shentsize = binary.LittleEndian.Uint16(buf[46:48])
	h.shnum = binary.LittleEndian.Uint16(buf[48:50])
	h.shstrndx = binary.LittleEndian.Uint16(buf[50:52])
	return h, nil
}

func (h header) validate() error {
	if h.class != classELF32 {
		return kern.NewError("elf.validate", kern.Invalid, "not a 32-bit object")
	}
	if h.data != dataLSB {
		return kern.NewError("elf.validate", kern.Invalid, "not little-endian")
	}
	if h.version != evCurrent {
		return kern.NewError("elf.validate", kern.Invalid, "unsupported ELF version")
	}
	if h.machine != machineARM {
		return kern.NewError("elf.validate", kern.Invalid, "not an ARM object")
	}
	return nil
}

// programHeader mirrors Elf32_Phdr.
type programHeader struct {
	typ    uint32
	offset uint32
	vaddr  uint32
	filesz uint32
	memsz  uint32
}

func decodeProgramHeader(buf []byte) programHeader {
	return programHeader{
		typ:    binary.LittleEndian.Uint32(buf[0:4]),
		offset: binary.LittleEndian.Uint32(buf[4:8]),
		vaddr:  binary.LittleEndian.Uint32(buf[8:12]),
		filesz: binary.LittleEndian.Uint32(buf[16:20]),
		memsz:  binary.LittleEndian.Uint32(buf[20:24]),
	}
}

func programHeaders(buf []byte, h header) ([]programHeader, error) {
	need := int(h.phoff) + int(h.phnum)*int(h.phentsize)
	if h.phentsize != 0 && int(h.phentsize) != phSize {
		return nil, kern.NewError("elf.programHeaders", kern.Invalid, "unexpected program header entry size")
	}
	if need > len(buf) {
		return nil, kern.NewError("elf.programHeaders", kern.BadArg, "program header table past end of file")
	}
	out := make([]programHeader, 0, h.phnum)
	for i := 0; i < int(h.phnum); i++ {
		off := int(h.phoff) + i*phSize
		out = append(out, decodeProgramHeader(buf[off:off+phSize]))
	}
	return out, nil
}

// sectionHeader mirrors Elf32_Shdr.
type sectionHeader struct {
	name   uint32
	typ    uint32
	addr   uint32
	offset uint32
	size   uint32
}

func decodeSectionHeader(buf []byte) sectionHeader {
	return sectionHeader{
		name:   binary.LittleEndian.Uint32(buf[0:4]),
		typ:    binary.LittleEndian.Uint32(buf[4:8]),
		addr:   binary.LittleEndian.Uint32(buf[12:16]),
		offset: binary.LittleEndian.Uint32(buf[16:20]),
		size:   binary.LittleEndian.Uint32(buf[20:24]),
	}
}

func sectionHeaders(buf []byte, h header) ([]sectionHeader, error) {
	if h.shnum == 0 {
		return nil, nil
	}
	if h.shentsize != 0 && int(h.shentsize) != shSize {
		return nil, kern.NewError("elf.sectionHeaders", kern.Invalid, "unexpected section header entry size")
	}
	need := int(h.shoff) + int(h.shnum)*int(h.shentsize)
	if need > len(buf) {
		return nil, kern.NewError("elf.sectionHeaders", kern.BadArg, "section header table past end of file")
	}
	out := make([]sectionHeader, 0, h.shnum)
	for i := 0; i < int(h.shnum); i++ {
		off := int(h.shoff) + i*shSize
		out = append(out, decodeSectionHeader(buf[off:off+shSize]))
	}
	return out, nil
}

// sectionName resolves a section's name via the section header string
// table, whose index is recorded in the file header.
func sectionName(buf []byte, sections []sectionHeader, shstrndx uint16, sh sectionHeader) (string, error) {
	if int(shstrndx) >= len(sections) {
		return "", kern.NewError("elf.sectionName", kern.Invalid, "shstrndx out of range")
	}
	strtab := sections[shstrndx]
	start := int(strtab.offset) + int(sh.name)
	if start >= len(buf) {
		return "", kern.NewError("elf.sectionName", kern.Invalid, "section name past end of string table")
	}
	end := start
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	return string(buf[start:end]), nil
}
