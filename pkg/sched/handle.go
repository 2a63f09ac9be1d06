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

package sched

import "github.com/google/btree"

// A handle is a generation-tagged reference into one of the scheduler's
// slab arenas. The original C core expresses task<->primitive
// back-references as raw pointers; handles let us detect use of a
// reference after the object it named has been unregistered and its
// slot recycled, without needing a garbage collector to keep the
// pointee alive.
type handle struct {
	index uint32
	gen   uint32
}

// invalidHandle is never returned by a register call; its zero
// generation can never match a live slot, since every slot's
// generation starts at 1 when first allocated.
var invalidHandle = handle{}

func (h handle) valid() bool { return h.gen != 0 }

// key packs the handle into a single orderable value, used as the
// btree.Item key for the scheduler's sets (active tasks, a process's
// tasks and prims). We keep these sets in a btree rather than a Go map
// so that schedule()/assign_all() policy hooks, and tests asserting on
// them, see a deterministic iteration order instead of map-randomized
// order.
func (h handle) key() uint64 {
	return uint64(h.index)<<32 | uint64(h.gen)
}

// TaskHandle references a registered Task.
type TaskHandle struct{ h handle }

// PrimHandle references a registered Primitive.
type PrimHandle struct{ h handle }

// ProcessHandle references a registered Process.
type ProcessHandle struct{ h handle }

// ThreadHandle references a registered Thread.
type ThreadHandle struct{ h handle }

// Valid reports whether the handle could possibly reference a live
// object. It does not consult the scheduler, so a Valid handle may
// still be stale (pointing at an unregistered, recycled slot); callers
// that need a liveness guarantee should go through the scheduler's
// lookup functions, which panic on a stale handle.
func (t TaskHandle) Valid() bool    { return t.h.valid() }
func (p PrimHandle) Valid() bool    { return p.h.valid() }
func (p ProcessHandle) Valid() bool { return p.h.valid() }
func (t ThreadHandle) Valid() bool  { return t.h.valid() }

// handleItem adapts a raw handle's sort key for use as a btree.Item.
type handleItem uint64

func (i handleItem) Less(than btree.Item) bool { return i < than.(handleItem) }

// handleSet is a deterministic, ordered set of handles backed by a
// btree. Degree 32 keeps internal node fanout reasonable for the small
// sets (tasks per process, prims per process, active tasks) this
// scheduler deals with.
type handleSet struct {
	t *btree.BTree
}

func newHandleSet() handleSet {
	return handleSet{t: btree.New(32)}
}

func (s handleSet) add(h handle) {
	s.t.ReplaceOrInsert(handleItem(h.key()))
}

func (s handleSet) remove(h handle) {
	s.t.Delete(handleItem(h.key()))
}

func (s handleSet) has(h handle) bool {
	return s.t.Has(handleItem(h.key()))
}

func (s handleSet) len() int {
	return s.t.Len()
}

// each calls fn for every member in ascending key order.
func (s handleSet) each(fn func(handle)) {
	s.t.Ascend(func(it btree.Item) bool {
		k := uint64(it.(handleItem))
		fn(handle{index: uint32(k >> 32), gen: uint32(k)})
		return true
	})
}
