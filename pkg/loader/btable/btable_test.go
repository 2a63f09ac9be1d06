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

package btable

import "testing"

func TestGetBounds(t *testing.T) {
	data := make([]byte, 12) // three 4-byte entries
	tbl := New(data, 4)

	if got, want := tbl.Len(), 3; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	if _, ok := tbl.Get(2); !ok {
		t.Fatalf("Get(2) ok = false, want true")
	}
	if _, ok := tbl.Get(3); ok {
		t.Fatalf("Get(3) ok = true, want false (out of range)")
	}
	if _, ok := tbl.Get(-1); ok {
		t.Fatalf("Get(-1) ok = true, want false")
	}
}

func TestGetAliasesBackingArray(t *testing.T) {
	data := make([]byte, 8)
	tbl := New(data, 4)

	entry, ok := tbl.Get(1)
	if !ok {
		t.Fatalf("Get(1) ok = false, want true")
	}
	entry[0] = 0xFF
	if data[4] != 0xFF {
		t.Fatalf("mutating an entry did not mutate the backing array: data[4] = %#x, want 0xff", data[4])
	}
}

func TestEachStopsEarly(t *testing.T) {
	data := make([]byte, 20) // five 4-byte entries
	tbl := New(data, 4)

	visited := 0
	tbl.Each(func(entry []byte) bool {
		visited++
		return visited < 2
	})
	if visited != 2 {
		t.Fatalf("Each visited %d entries before stopping, want 2", visited)
	}
}

func TestEachSkipsTrailingPartialEntry(t *testing.T) {
	data := make([]byte, 10) // two whole 4-byte entries, 2 trailing bytes
	tbl := New(data, 4)

	visited := 0
	tbl.Each(func([]byte) bool {
		visited++
		return true
	})
	if visited != 2 {
		t.Fatalf("Each visited %d entries, want 2 (trailing partial entry must be skipped)", visited)
	}
}

func TestNewPanicsOnNonPositiveEntrySize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("New with entrySize 0 did not panic")
		}
	}()
	New(nil, 0)
}
