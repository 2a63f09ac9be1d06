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

// Package btable is a generic, size-striding view over a run of
// fixed-size entries living inside a larger byte buffer — section
// header tables, symbol tables, relocation tables all have this
// shape. It carries no entry-type knowledge; callers interpret each
// []byte slice it hands back.
package btable

import "fmt"

// Table is a byte-table descriptor: a contiguous run of entries, each
// entrySize bytes long, starting at the front of data.
type Table struct {
	data      []byte
	entrySize int
}

// New wraps data as a Table of entries entrySize bytes wide. A
// trailing partial entry (len(data) not a multiple of entrySize) is
// simply never reachable by index or Each — it is not an error, since
// the original format imposes no such requirement at this layer.
func New(data []byte, entrySize int) Table {
	if entrySize <= 0 {
		panic(fmt.Sprintf("btable: New called with non-positive entrySize %d", entrySize))
	}
	return Table{data: data, entrySize: entrySize}
}

// Len returns the number of whole entries in the table.
func (t Table) Len() int {
	if t.entrySize == 0 {
		return 0
	}
	return len(t.data) / t.entrySize
}

// EntrySize returns the table's configured entry width.
func (t Table) EntrySize() int { return t.entrySize }

// Get returns the index'th entry as a slice aliasing the table's
// backing array — mutations through it are visible through the
// original buffer, matching the in-place loader's needs. ok is false
// if index is out of range.
func (t Table) Get(index int) (entry []byte, ok bool) {
	if index < 0 {
		return nil, false
	}
	start := index * t.entrySize
	end := start + t.entrySize
	if end > len(t.data) {
		return nil, false
	}
	return t.data[start:end], true
}

// Each calls fn with every entry in index order, stopping early if fn
// returns false.
func (t Table) Each(fn func(entry []byte) bool) {
	for off := 0; off+t.entrySize <= len(t.data); off += t.entrySize {
		if !fn(t.data[off : off+t.entrySize]) {
			return
		}
	}
}
