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

// SymbolDump is one entry of DumpSymbols' report: a symbol table
// entry's name and its current value field, whatever stage the
// environment happens to be at.
type SymbolDump struct {
	Section uint16
	Name    string
	Value   uint64
	Defined bool
}

// DumpSymbols walks every SHT_SYMTAB section and reports each symbol's
// name and current value, for diagnosing a load that produced
// unexpected relocations or a symbol resolution failure. Unlike the
// load stages, DumpSymbols works at any status and never touches
// e.errors — it's read-only.
func (e *Environment) DumpSymbols() ([]SymbolDump, error) {
	var out []SymbolDump
	var walkErr error

	e.shtable.Each(func(entry []byte) bool {
		sh := shdr{b: entry}
		if sh.shType() != shtSymtab {
			return true
		}

		strtblID := uint16(sh.link())
		_, strtbl, err := e.sectionBytes(strtblID, shtStrtab)
		if err != nil {
			walkErr = fmt.Errorf("loader: DumpSymbols: %w", err)
			return false
		}

		start := sh.offset()
		end := start + sh.size()
		if end > uint64(len(e.data)) {
			walkErr = fmt.Errorf("loader: DumpSymbols: symbol table overruns the file")
			return false
		}

		for off := int(start); off+symSize <= int(end); off += symSize {
			s := sym{b: e.data[off : off+symSize]}
			out = append(out, SymbolDump{
				Section: s.shndx(),
				Name:    cString(strtbl, int(s.name())),
				Value:   s.value(),
				Defined: s.shndx() != shnUndef || s.value() != 0,
			})
		}
		return true
	})

	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}
