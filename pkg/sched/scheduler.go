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

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// taskSlot is one arena entry for a Task; freed slots are chained
// through next and keep their generation so stale handles can be
// detected.
type taskSlot struct {
	gen  uint32
	live bool
	next uint32
	task Task
}

type primSlot struct {
	gen  uint32
	live bool
	next uint32
	prim Primitive
}

type processSlot struct {
	gen     uint32
	live    bool
	next    uint32
	process Process
}

type threadSlot struct {
	gen    uint32
	live   bool
	next   uint32
	thread Thread
}

// Scheduler is the global coordinator owning the set of threads and
// processes, a monotonically increasing commit index, and a Policy.
//
// Every exported method that touches scheduler state must run with the
// scheduler locked (Lock/Unlock), mirroring original_source's single
// arch_spinlock design: one real-world spinlock stands in for the
// host-provided one named in the spec's Non-goals (this package
// implements the framework, not the spinlock itself).
type Scheduler struct {
	mu sync.Mutex

	policy Policy

	commitOpened bool
	commitIndex  uint64

	actives handleSet

	tasks     []taskSlot
	freeTask  uint32
	processes []processSlot
	freeProc  uint32
	prims     []primSlot
	freePrim  uint32
	threads   []threadSlot
	freeThrd  uint32

	numProcesses int
	numThreads   int

	log *logrus.Entry
}

const noFree = ^uint32(0)

// New creates a Scheduler driven by the given Policy.
func New(policy Policy) *Scheduler {
	if policy == nil {
		panic("sched: New called with a nil Policy")
	}
	return &Scheduler{
		policy:   policy,
		actives:  newHandleSet(),
		freeTask: noFree,
		freeProc: noFree,
		freePrim: noFree,
		freeThrd: noFree,
		log:      logrus.WithField("component", "sched"),
	}
}

// Lock acquires the scheduler's lock. No scheduler operation may be
// called concurrently without holding it; no operation defined in this
// package itself blocks while holding it.
func (s *Scheduler) Lock() { s.mu.Lock() }

// Unlock releases the scheduler's lock.
func (s *Scheduler) Unlock() { s.mu.Unlock() }

// CommitOpen reports whether a commit window is currently open.
func (s *Scheduler) CommitOpen() bool { return s.commitOpened }

// CommitIndex returns the scheduler's current commit index.
func (s *Scheduler) CommitIndex() uint64 { return s.commitIndex }

// OpenCommit opens a new commit window. Panics if one is already open.
func (s *Scheduler) OpenCommit() {
	if s.commitOpened {
		panic("sched: OpenCommit called with a commit already open")
	}
	s.commitOpened = true
	s.commitIndex++
	s.log.WithField("commit", s.commitIndex).Debug("commit opened")
}

// CloseCommit closes the current commit window, then invokes the
// policy's Schedule and AssignAll hooks. Panics if no commit is open.
func (s *Scheduler) CloseCommit() {
	s.abortIfCommitClosed()
	s.commitOpened = false
	s.log.WithField("commit", s.commitIndex).Debug("commit closed")
	s.policy.Schedule(s)
	s.policy.AssignAll(s)
}

func (s *Scheduler) abortIfCommitClosed() {
	if !s.commitOpened {
		panic("sched: structural operation requires an open commit")
	}
}

func (s *Scheduler) taskActive(h handle) bool {
	slot := &s.tasks[h.index]
	return slot.task.commit == s.commitIndex
}

func (s *Scheduler) threadActive(h handle) bool {
	slot := &s.threads[h.index]
	return slot.thread.commit == s.commitIndex && slot.thread.task.Valid()
}

// --- arena accessors -------------------------------------------------

func (s *Scheduler) taskSlot(h TaskHandle) *taskSlot {
	idx := h.h.index
	if int(idx) >= len(s.tasks) || !s.tasks[idx].live || s.tasks[idx].gen != h.h.gen {
		panic(fmt.Sprintf("sched: stale or invalid TaskHandle %+v", h))
	}
	return &s.tasks[idx]
}

func (s *Scheduler) primSlot(h PrimHandle) *primSlot {
	idx := h.h.index
	if int(idx) >= len(s.prims) || !s.prims[idx].live || s.prims[idx].gen != h.h.gen {
		panic(fmt.Sprintf("sched: stale or invalid PrimHandle %+v", h))
	}
	return &s.prims[idx]
}

func (s *Scheduler) processSlot(h ProcessHandle) *processSlot {
	idx := h.h.index
	if int(idx) >= len(s.processes) || !s.processes[idx].live || s.processes[idx].gen != h.h.gen {
		panic(fmt.Sprintf("sched: stale or invalid ProcessHandle %+v", h))
	}
	return &s.processes[idx]
}

func (s *Scheduler) threadSlot(h ThreadHandle) *threadSlot {
	idx := h.h.index
	if int(idx) >= len(s.threads) || !s.threads[idx].live || s.threads[idx].gen != h.h.gen {
		panic(fmt.Sprintf("sched: stale or invalid ThreadHandle %+v", h))
	}
	return &s.threads[idx]
}

// Task returns the live Task referenced by h. Panics on a stale or
// out-of-range handle.
func (s *Scheduler) Task(h TaskHandle) *Task { return &s.taskSlot(h).task }

// Primitive returns the live Primitive referenced by h.
func (s *Scheduler) Primitive(h PrimHandle) *Primitive { return &s.primSlot(h).prim }

// Process returns the live Process referenced by h.
func (s *Scheduler) Process(h ProcessHandle) *Process { return &s.processSlot(h).process }

// Thread returns the live Thread referenced by h.
func (s *Scheduler) Thread(h ThreadHandle) *Thread { return &s.threadSlot(h).thread }

// NumProcesses returns the number of processes currently registered.
func (s *Scheduler) NumProcesses() int { return s.numProcesses }

// NumThreads returns the number of threads currently registered.
func (s *Scheduler) NumThreads() int { return s.numThreads }

// ActiveTasks calls fn for every currently active task handle, in
// ascending handle order.
func (s *Scheduler) ActiveTasks(fn func(TaskHandle)) {
	s.actives.each(func(h handle) { fn(TaskHandle{h: h}) })
}

// AllThreads calls fn for every live thread handle, in arena order.
// Intended for use by Policy implementations' AssignAll.
func (s *Scheduler) AllThreads(fn func(ThreadHandle)) {
	for i := range s.threads {
		if s.threads[i].live {
			fn(ThreadHandle{h: handle{index: uint32(i), gen: s.threads[i].gen}})
		}
	}
}

// --- allocation helpers ------------------------------------------------

func allocTask(s *Scheduler) (TaskHandle, *taskSlot) {
	if s.freeTask != noFree {
		idx := s.freeTask
		slot := &s.tasks[idx]
		s.freeTask = slot.next
		slot.gen++
		slot.live = true
		slot.task = Task{}
		return TaskHandle{h: handle{index: idx, gen: slot.gen}}, slot
	}
	idx := uint32(len(s.tasks))
	s.tasks = append(s.tasks, taskSlot{gen: 1, live: true})
	slot := &s.tasks[idx]
	return TaskHandle{h: handle{index: idx, gen: 1}}, slot
}

func freeTaskSlot(s *Scheduler, h TaskHandle) {
	idx := h.h.index
	s.tasks[idx].live = false
	s.tasks[idx].next = s.freeTask
	s.freeTask = idx
}

func allocPrim(s *Scheduler) (PrimHandle, *primSlot) {
	if s.freePrim != noFree {
		idx := s.freePrim
		slot := &s.prims[idx]
		s.freePrim = slot.next
		slot.gen++
		slot.live = true
		slot.prim = Primitive{}
		return PrimHandle{h: handle{index: idx, gen: slot.gen}}, slot
	}
	idx := uint32(len(s.prims))
	s.prims = append(s.prims, primSlot{gen: 1, live: true})
	slot := &s.prims[idx]
	return PrimHandle{h: handle{index: idx, gen: 1}}, slot
}

func freePrimSlot(s *Scheduler, h PrimHandle) {
	idx := h.h.index
	s.prims[idx].live = false
	s.prims[idx].next = s.freePrim
	s.freePrim = idx
}

func allocProcess(s *Scheduler) (ProcessHandle, *processSlot) {
	if s.freeProc != noFree {
		idx := s.freeProc
		slot := &s.processes[idx]
		s.freeProc = slot.next
		slot.gen++
		slot.live = true
		slot.process = Process{}
		return ProcessHandle{h: handle{index: idx, gen: slot.gen}}, slot
	}
	idx := uint32(len(s.processes))
	s.processes = append(s.processes, processSlot{gen: 1, live: true})
	slot := &s.processes[idx]
	return ProcessHandle{h: handle{index: idx, gen: 1}}, slot
}

func freeProcessSlot(s *Scheduler, h ProcessHandle) {
	idx := h.h.index
	s.processes[idx].live = false
	s.processes[idx].next = s.freeProc
	s.freeProc = idx
}

func allocThread(s *Scheduler) (ThreadHandle, *threadSlot) {
	if s.freeThrd != noFree {
		idx := s.freeThrd
		slot := &s.threads[idx]
		s.freeThrd = slot.next
		slot.gen++
		slot.live = true
		slot.thread = Thread{}
		return ThreadHandle{h: handle{index: idx, gen: slot.gen}}, slot
	}
	idx := uint32(len(s.threads))
	s.threads = append(s.threads, threadSlot{gen: 1, live: true})
	slot := &s.threads[idx]
	return ThreadHandle{h: handle{index: idx, gen: 1}}, slot
}

func freeThreadSlot(s *Scheduler, h ThreadHandle) {
	idx := h.h.index
	s.threads[idx].live = false
	s.threads[idx].next = s.freeThrd
	s.freeThrd = idx
}

// RegisterThread registers a new thread with the scheduler and returns
// its handle.
func (s *Scheduler) RegisterThread() ThreadHandle {
	h, slot := allocThread(s)
	slot.thread = Thread{commit: ^uint64(0)}
	s.numThreads++
	s.log.WithField("thread", h.h.index).Debug("thread registered")
	return h
}

// UnregisterThread clears the thread's history (detaching every task
// in it) and removes the thread from the scheduler. Requires an open
// commit.
func (s *Scheduler) UnregisterThread(h ThreadHandle) {
	s.abortIfCommitClosed()
	slot := s.threadSlot(h)
	for _, th := range append([]TaskHandle(nil), slot.thread.history...) {
		detachTaskFromThread(s, th)
	}
	freeThreadSlot(s, h)
	s.numThreads--
	s.log.WithField("thread", h.h.index).Debug("thread unregistered")
}
