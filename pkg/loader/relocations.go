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

import "fmt"

// relocationWriter applies a computed relocation value to dst, of a
// type-specific width, returning false on overflow.
type relocationWriter func(dst []byte, val uint64, relative bool) bool

// relocationWriterFor returns the writer and relative-ness for an
// ELF64 relocation type. Only the two x86-64 PC-relative 32-bit forms
// the original loader supports are recognized; everything else is
// ErrRelocTypeUnsupported, exactly as the relocate() switch's default
// case flags it.
func relocationWriterFor(relType uint32) (relocationWriter, bool, bool) {
	switch relType {
	case rX8664PC32, rX8664PLT32:
		return writeRel32, true, true
	default:
		return nil, false, false
	}
}

// relocate computes and applies a single relocation: V = S + A - P,
// where S is the symbol's address, A the addend, and P the
// relocation's own address — the standard PC-relative formula.
func (e *Environment) relocate(relAddr, symAddr uint64, addend int64, relType uint32) error {
	writer, relative, ok := relocationWriterFor(relType)
	if !ok {
		e.errors |= ErrRelocTypeUnsupported
		return fmt.Errorf("loader: unsupported relocation type %d", relType)
	}

	relValue := uint64(int64(symAddr) + addend - int64(relAddr))

	e.log.WithFields(map[string]interface{}{
		"sym_addr": symAddr, "addend": addend, "rel_addr": relAddr, "value": relValue,
	}).Trace("applying relocation")

	if int(relAddr)+widthFor(relType) > len(e.data) {
		e.errors |= ErrRelocValueOverflow
		return fmt.Errorf("loader: relocation at %#x overruns the file", relAddr)
	}
	if !writer(e.data[relAddr:], relValue, relative) {
		e.errors |= ErrRelocValueOverflow
		return fmt.Errorf("loader: relocation value %#x overflows the destination width", relValue)
	}
	return nil
}

func widthFor(relType uint32) int {
	switch relType {
	case rX8664PC32, rX8664PLT32:
		return 4
	default:
		return 0
	}
}

// rtblApply applies every relocation in the table described by
// reltblHdr.
func (e *Environment) rtblApply(reltblHdr shdr) error {
	explicitAddend := reltblHdr.shType() == shtRela
	entsize := relSize
	if explicitAddend {
		entsize = relaSize
	}

	start := reltblHdr.offset()
	end := start + reltblHdr.size()
	if end > uint64(len(e.data)) {
		return fmt.Errorf("loader: relocation table [%d,%d) overruns the file", start, end)
	}
	reltable := e.data[start:end]

	symtblID := uint16(reltblHdr.link())
	_, symtblRaw, err := e.sectionBytes(symtblID, shtSymtab)
	if err != nil {
		e.errors |= ErrReltabBadSymtabID
		return err
	}

	relSectID := uint16(reltblHdr.info())
	relSectHdr, err := e.getSectionHeader(relSectID, shtProgbits)
	if err != nil {
		e.errors |= ErrReltabBadRelSection
		return err
	}
	relSectStart := relSectHdr.addr()

	for off := 0; off+entsize <= len(reltable); off += entsize {
		r := rel{b: reltable[off : off+entsize]}

		relAddr := relSectStart + r.offset()
		info := r.info()
		symIndex := elf64RSym(info)
		relType := elf64RType(info)

		if symIndex == 0 {
			e.errors |= ErrRelocSymNullIndex
			return fmt.Errorf("loader: relocation at offset %d has a null symbol index", off)
		}

		symOff := int(symIndex) * symSize
		if symOff+symSize > len(symtblRaw) {
			e.errors |= ErrRelocSymInvalidIndex
			return fmt.Errorf("loader: relocation symbol index %d is out of range", symIndex)
		}
		s := sym{b: symtblRaw[symOff : symOff+symSize]}
		symAddr := s.value()
		if symAddr == 0 {
			e.errors |= ErrRelocSymNullAddr
			return fmt.Errorf("loader: relocation symbol %d has a null address", symIndex)
		}

		var addend int64
		if explicitAddend {
			addend = rel{b: reltable[off : off+entsize]}.addend()
		}

		if err := e.relocate(relAddr, symAddr, addend, relType); err != nil {
			return err
		}
	}

	return nil
}

// ApplyRelocations applies every relocation table (SHT_REL or
// SHT_RELA section) in the file to its target section. Requires
// StatusSymbolsAssigned; on success advances to
// StatusRelocationsApplied.
func (e *Environment) ApplyRelocations() error {
	if err := e.abortIfErrored(); err != nil {
		return err
	}
	if err := e.abortIfStatusNot(StatusSymbolsAssigned); err != nil {
		return err
	}

	var stageErr error
	e.shtable.Each(func(entry []byte) bool {
		sh := shdr{b: entry}
		t := sh.shType()
		if t != shtRel && t != shtRela {
			return true
		}
		if err := e.rtblApply(sh); err != nil {
			stageErr = err
			return false
		}
		return true
	})
	if stageErr != nil {
		return e.failWith(ErrRelocationApply)
	}

	e.status = StatusRelocationsApplied
	e.log.Debug("relocations applied")
	return nil
}
