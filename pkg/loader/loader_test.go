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
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildObject assembles a minimal relocatable ELF64 image in memory
// with five sections (NULL, .text, .strtab, .symtab, .rela.text), one
// relocation in .rela.text targeting the symbol at index 2 ("helper")
// with relType, and returns the raw bytes. It is a test fixture, not a
// general-purpose ELF writer.
func buildObject(t *testing.T, relType uint32) []byte {
	t.Helper()

	const (
		shOff  = 64
		shNum  = 5
		textOff = shOff + shNum*shdrSize // 384
		textSize = 8
		strtabOff = textOff + textSize // 392
		strtabSize = 13
		symtabOff = strtabOff + strtabSize // 405
		symtabSize = 3 * symSize // 72
		relaOff = symtabOff + symtabSize // 477
		relaSizeTotal = relaSize // one entry
	)
	total := relaOff + relaSizeTotal

	b := make([]byte, total)
	le := binary.LittleEndian

	// ELF header.
	le.PutUint64(b[40:48], shOff)
	le.PutUint16(b[58:60], shdrSize)
	le.PutUint16(b[60:62], shNum)

	writeShdr := func(idx int, typ uint32, off, size uint64, link, info uint32, entsize uint64) {
		base := shOff + idx*shdrSize
		le.PutUint32(b[base+4:base+8], typ)
		le.PutUint64(b[base+24:base+32], off)
		le.PutUint64(b[base+32:base+40], size)
		le.PutUint32(b[base+40:base+44], link)
		le.PutUint32(b[base+44:base+48], info)
		le.PutUint64(b[base+56:base+64], entsize)
	}

	writeShdr(0, uint32(0) /* SHT_NULL */, 0, 0, 0, 0, 0)
	writeShdr(1, shtProgbits, textOff, textSize, 0, 0, 0)
	writeShdr(2, shtStrtab, strtabOff, strtabSize, 0, 0, 0)
	writeShdr(3, shtSymtab, symtabOff, symtabSize, 2, 0, symSize)
	writeShdr(4, shtRela, relaOff, uint64(relaSizeTotal), 3, 1, relaSize)

	// .strtab: "\0main\0helper\0"
	strtab := []byte("\x00main\x00helper\x00")
	copy(b[strtabOff:], strtab)

	writeSym := func(idx int, name uint32, shndx uint16, value uint64) {
		base := symtabOff + idx*symSize
		le.PutUint32(b[base+0:base+4], name)
		le.PutUint16(b[base+6:base+8], shndx)
		le.PutUint64(b[base+8:base+16], value)
	}
	writeSym(0, 0, 0, 0)
	writeSym(1, 1, 1, 0) // "main", defined in .text, offset 0
	writeSym(2, 6, 0, 0) // "helper", undefined

	// .rela.text: one entry targeting symbol 2 at .text+4.
	base := relaOff
	le.PutUint64(b[base+0:base+8], 4) // r_offset
	info := (uint64(2) << 32) | uint64(relType)
	le.PutUint64(b[base+8:base+16], info)
	le.PutUint64(b[base+16:base+24], 0) // r_addend

	return b
}

func loadThroughSymbols(t *testing.T, relType uint32, defs []*Symbol) (*Environment, []*Symbol) {
	t.Helper()
	data := buildObject(t, relType)
	env, err := New(data)
	if err != nil {
		t.Fatalf("New() = %v, want nil", err)
	}
	if err := env.AssignSections(); err != nil {
		t.Fatalf("AssignSections() = %v, want nil", err)
	}
	undefs := []*Symbol{{Name: "main"}}
	if err := env.AssignSymbols(defs, undefs); err != nil {
		t.Fatalf("AssignSymbols() = %v, want nil", err)
	}
	return env, undefs
}

func TestHappyPathLoad(t *testing.T) {
	defs := []*Symbol{{Name: "helper", Defined: true, Addr: 0x1000}}
	env, _ := loadThroughSymbols(t, rX8664PC32, defs)

	if err := env.ApplyRelocations(); err != nil {
		t.Fatalf("ApplyRelocations() = %v, want nil (errors=%v)", err, env.Errors().Names())
	}
	if got, want := env.Status(), StatusRelocationsApplied; got != want {
		t.Fatalf("Status() = %s, want %s", got, want)
	}

	textOff := uint64(64 + 5*shdrSize)
	relAddr := textOff + 4
	symAddr := uint64(0x1000)
	want := int32(int64(symAddr) - int64(relAddr))
	got := int32(binary.LittleEndian.Uint32(env.Data()[relAddr : relAddr+4]))
	if got != want {
		t.Fatalf("relocated value = %d, want %d", got, want)
	}
}

func TestSymbolExportToUndefs(t *testing.T) {
	_, undefs := loadThroughSymbols(t, rX8664PC32, nil)

	if !undefs[0].Defined {
		t.Fatalf("undefs[0].Defined = false, want true (the file defines \"main\")")
	}
	wantAddr := uint64(64 + 5*shdrSize) // .text's RAM address (offset 0 within it)
	if undefs[0].Addr != wantAddr {
		t.Fatalf("undefs[0].Addr = %#x, want %#x", undefs[0].Addr, wantAddr)
	}
}

func TestUnsupportedRelocationType(t *testing.T) {
	defs := []*Symbol{{Name: "helper", Defined: true, Addr: 0x1000}}
	const rX8664_64 = 1
	env, _ := loadThroughSymbols(t, rX8664_64, defs)

	err := env.ApplyRelocations()
	if err == nil {
		t.Fatalf("ApplyRelocations() with an unsupported relocation type = nil, want an error")
	}
	if env.Errors()&ErrRelocTypeUnsupported == 0 {
		t.Fatalf("Errors() = %v, want ErrRelocTypeUnsupported set", env.Errors().Names())
	}
	if env.Status() != StatusSymbolsAssigned {
		t.Fatalf("Status() = %s after a failed ApplyRelocations, want unchanged %s", env.Status(), StatusSymbolsAssigned)
	}
}

func TestRedetectionAbortsFurtherStages(t *testing.T) {
	defs := []*Symbol{{Name: "helper", Defined: true, Addr: 0x1000}}
	const rX8664_64 = 1
	env, _ := loadThroughSymbols(t, rX8664_64, defs)

	if err := env.ApplyRelocations(); err == nil {
		t.Fatalf("ApplyRelocations() with unsupported relocation = nil, want error")
	}

	if err := env.ApplyRelocations(); err == nil {
		t.Fatalf("second ApplyRelocations() after an error = nil, want ErrRedetection")
	} else if env.Errors()&ErrRedetection == 0 {
		t.Fatalf("Errors() after a second call = %v, want ErrRedetection set", env.Errors().Names())
	}
}

func TestAssignSectionsRejectsOutOfOrderCall(t *testing.T) {
	data := buildObject(t, rX8664PC32)
	env, err := New(data)
	if err != nil {
		t.Fatalf("New() = %v, want nil", err)
	}
	if err := env.AssignSections(); err != nil {
		t.Fatalf("AssignSections() = %v, want nil", err)
	}
	if err := env.AssignSections(); err == nil {
		t.Fatalf("second AssignSections() = nil, want an error (status already advanced)")
	}
}

func TestDumpSymbols(t *testing.T) {
	defs := []*Symbol{{Name: "helper", Defined: true, Addr: 0x1000}}
	env, _ := loadThroughSymbols(t, rX8664PC32, defs)

	textAddr := uint64(64 + 5*shdrSize)
	want := []SymbolDump{
		{Section: 0, Name: "", Value: 0, Defined: false},
		{Section: 1, Name: "main", Value: textAddr, Defined: true},
		{Section: 0, Name: "helper", Value: 0x1000, Defined: true},
	}

	got, err := env.DumpSymbols()
	if err != nil {
		t.Fatalf("DumpSymbols() = %v, want nil", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("DumpSymbols() mismatch (-want +got):\n%s", diff)
	}
}
