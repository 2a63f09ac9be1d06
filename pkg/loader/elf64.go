// Copyright 2024 The kernel-toolkit Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package loader

import (
	"debug/elf"
	"encoding/binary"
)

// The struct layouts below are fixed by the ELF64 format, not by any
// choice of ours; debug/elf documents the same layouts but only as Go
// structs decoded from a read-only io.ReaderAt, with no way to mutate
// a section header's sh_addr back into the original image in place.
// That in-place mutation is this loader's whole point, so section,
// symbol and relocation entries are thin views over a []byte slice
// aliasing the environment's own buffer instead. debug/elf is still
// used for its section-type (elf.SHT_*) and relocation-type
// (elf.R_X86_64_*) constants, which carry no mutation semantics of
// their own.

const (
	ehdrSize = 64
	shdrSize = 64
	symSize  = 24
	relSize  = 16
	relaSize = 24

	shnUndef     = 0
	shnLoreserve = 0xff00
)

// ehdr is a read-only view over an ELF64 file header.
type ehdr struct{ b []byte }

func (h ehdr) shoff() uint64     { return binary.LittleEndian.Uint64(h.b[40:48]) }
func (h ehdr) shentsize() uint16 { return binary.LittleEndian.Uint16(h.b[58:60]) }
func (h ehdr) shnum() uint16     { return binary.LittleEndian.Uint16(h.b[60:62]) }

// shdr is a view over an ELF64 section header, aliasing the
// environment's buffer: setAddr mutates the file in place.
type shdr struct{ b []byte }

func (s shdr) shType() uint32   { return binary.LittleEndian.Uint32(s.b[4:8]) }
func (s shdr) offset() uint64   { return binary.LittleEndian.Uint64(s.b[24:32]) }
func (s shdr) size() uint64     { return binary.LittleEndian.Uint64(s.b[32:40]) }
func (s shdr) link() uint32     { return binary.LittleEndian.Uint32(s.b[40:44]) }
func (s shdr) info() uint32     { return binary.LittleEndian.Uint32(s.b[44:48]) }
func (s shdr) entsize() uint64  { return binary.LittleEndian.Uint64(s.b[56:64]) }
func (s shdr) addr() uint64     { return binary.LittleEndian.Uint64(s.b[16:24]) }
func (s shdr) setAddr(v uint64) { binary.LittleEndian.PutUint64(s.b[16:24], v) }

// sym is a view over an ELF64 symbol table entry.
type sym struct{ b []byte }

func (s sym) name() uint32    { return binary.LittleEndian.Uint32(s.b[0:4]) }
func (s sym) shndx() uint16   { return binary.LittleEndian.Uint16(s.b[6:8]) }
func (s sym) value() uint64   { return binary.LittleEndian.Uint64(s.b[8:16]) }
func (s sym) setValue(v uint64) { binary.LittleEndian.PutUint64(s.b[8:16], v) }

// rel is a view over an ELF64 Rel/Rela entry. Rela entries carry an
// explicit addend in the bytes immediately following; callers tell
// them apart by the relocation table's sh_type, as rtbl_apply does.
type rel struct{ b []byte }

func (r rel) offset() uint64 { return binary.LittleEndian.Uint64(r.b[0:8]) }
func (r rel) info() uint64   { return binary.LittleEndian.Uint64(r.b[8:16]) }
func (r rel) addend() int64  { return int64(binary.LittleEndian.Uint64(r.b[16:24])) }

// elf64RSym and elf64RType split a packed ELF64 relocation info field,
// matching the ELF64_R_SYM/ELF64_R_TYPE macros.
func elf64RSym(info uint64) uint32  { return uint32(info >> 32) }
func elf64RType(info uint64) uint32 { return uint32(info) }

// Section type and relocation type constants this loader recognizes,
// named locally so call sites don't sprinkle debug/elf imports.
const (
	shtNull    = uint32(elf.SHT_NULL)
	shtProgbits = uint32(elf.SHT_PROGBITS)
	shtSymtab  = uint32(elf.SHT_SYMTAB)
	shtStrtab  = uint32(elf.SHT_STRTAB)
	shtRel     = uint32(elf.SHT_REL)
	shtRela    = uint32(elf.SHT_RELA)
	shtNobits  = uint32(elf.SHT_NOBITS)

	rX8664PC32  = uint32(elf.R_X86_64_PC32)
	rX8664PLT32 = uint32(elf.R_X86_64_PLT32)
)
