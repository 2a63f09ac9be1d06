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
	"bytes"
	"fmt"

	"github.com/Briztal/kernel-toolkit/pkg/loader/btable"
)

// Symbol is an external symbol definition or query, linked by name
// rather than by a C-style intrusive list — Defs and Undefs below are
// plain slices instead, since Go has no use for the original's
// singly-linked list of symbols.
type Symbol struct {
	// Name is the symbol's name, matched against names found in the
	// object file's string table.
	Name string

	// Defined reports whether Addr holds a meaningful value.
	// AssignSymbols sets this to true on entries in undefs whose name
	// matches a symbol of the object file that resolved to a non-zero
	// value.
	Defined bool

	// Addr is the symbol's address: supplied by the caller for defs,
	// and filled in by AssignSymbols for undefs.
	Addr uint64
}

func findDefinition(defs []*Symbol, name string) (uint64, bool) {
	for _, d := range defs {
		if d.Defined && d.Name == name {
			return d.Addr, true
		}
	}
	return 0, false
}

// AssignSymbols resolves every symbol in every SHT_SYMTAB section:
// symbols defined in the file get their section-relative value
// rebased to an absolute address; symbols left undefined by the file
// are looked up in defs by name. Any symbol whose resolved value is
// non-zero — defined in the file, or undefined and resolved from defs —
// and whose name matches a not-yet-defined entry of undefs marks that
// entry Defined and copies its resolved address into it. Symbols
// matching nothing keep a value of 0. Requires StatusSectionsAssigned; on success advances to
// StatusSymbolsAssigned.
func (e *Environment) AssignSymbols(defs, undefs []*Symbol) error {
	if err := e.abortIfErrored(); err != nil {
		return err
	}
	if err := e.abortIfStatusNot(StatusSectionsAssigned); err != nil {
		return err
	}

	var stageErr error
	e.shtable.Each(func(entry []byte) bool {
		sh := shdr{b: entry}
		if sh.shType() != shtSymtab {
			return true
		}
		if err := e.assignSymtab(sh, defs, undefs); err != nil {
			stageErr = err
			return false
		}
		return true
	})
	if stageErr != nil {
		return e.failWith(ErrSymbolAssign)
	}

	e.status = StatusSymbolsAssigned
	e.log.Debug("symbols assigned")
	return nil
}

func (e *Environment) assignSymtab(symtabHdr shdr, defs, undefs []*Symbol) error {
	strtblID := uint16(symtabHdr.link())
	_, strtbl, err := e.sectionBytes(strtblID, shtStrtab)
	if err != nil {
		e.errors |= ErrSymtabBadStrtabID
		return err
	}

	start := symtabHdr.offset()
	end := start + symtabHdr.size()
	if end > uint64(len(e.data)) {
		return fmt.Errorf("loader: symbol table [%d,%d) overruns the file", start, end)
	}
	symtab := btable.New(e.data[start:end], symSize)

	symtab.Each(func(entry []byte) bool {
		s := sym{b: entry}
		name := cString(strtbl, int(s.name()))

		if s.shndx() == shnUndef {
			if addr, ok := findDefinition(defs, name); ok {
				s.setValue(addr)
			} else {
				s.setValue(0)
			}
		} else {
			e.updateSymbolAddress(s)
		}

		if s.value() == 0 {
			return true
		}

		for _, u := range undefs {
			if !u.Defined && u.Name == name {
				u.Defined = true
				u.Addr = s.value()
				break
			}
		}
		return true
	})
	return nil
}

func (e *Environment) updateSymbolAddress(s sym) {
	sh, err := e.getSectionHeader(s.shndx(), shtProgbits)
	if err != nil {
		s.setValue(0)
		return
	}
	s.setValue(s.value() + sh.addr())
}

// cString reads a NUL-terminated name out of a string table's raw
// bytes, starting at byte offset index.
func cString(strtbl []byte, index int) string {
	if index < 0 || index >= len(strtbl) {
		return ""
	}
	rest := strtbl[index:]
	if nul := bytes.IndexByte(rest, 0); nul >= 0 {
		rest = rest[:nul]
	}
	return string(rest)
}
