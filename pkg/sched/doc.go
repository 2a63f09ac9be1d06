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

// Package sched implements a priority-inheriting task scheduler.
//
// The scheduler coordinates tasks, synchronization primitives ("prims")
// and execution threads. It owns no heap allocator, page mapper or
// context switch: it is a pure bookkeeping layer over the task/prim/
// thread/process graph, parameterized by a Policy that decides actual
// priorities and assignments. Mutex and Semaphore are thin wrappers
// built from the primitive operations; priority inheritance happens
// through Primitive.OverrideTask, not inside the wrappers themselves.
//
// All cross-references between tasks, primitives, processes and
// threads are arena-indexed handles rather than pointers, so that the
// owning Scheduler can detect use of a handle after its object has
// been unregistered.
//
// Every exported operation that mutates scheduler state must be called
// with the Scheduler locked (see Scheduler.Lock/Unlock) and, for the
// subset documented on each function, only while a commit is open (see
// Scheduler.OpenCommit/CloseCommit).
package sched
