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

// Semaphore is a counting scheduler primitive with capacity N: up to N
// tasks may own it concurrently, with no priority inheritance — unlike
// Mutex, a Semaphore never overrides a waiter's priority, matching the
// original C core's sem.c, where only mutexes carry an override.
type Semaphore struct {
	s       *Scheduler
	prim    PrimHandle
	n       int
	holders []TaskHandle
}

// NewSemaphore registers a new primitive with prc and wraps it as a
// Semaphore with capacity n. n must be positive.
func NewSemaphore(s *Scheduler, prc ProcessHandle, n int) *Semaphore {
	if n <= 0 {
		panic("sched: NewSemaphore: capacity must be positive")
	}
	return &Semaphore{s: s, prim: s.RegisterPrim(prc), n: n}
}

// Handle returns the underlying primitive handle.
func (sem *Semaphore) Handle() PrimHandle { return sem.prim }

// IsLocked reports whether the semaphore is at capacity.
func (sem *Semaphore) IsLocked() bool { return len(sem.holders) >= sem.n }

// Take takes the semaphore for thread's current task, stopping the
// task and assigning the thread a new one via StopThread if the
// semaphore is already at capacity. Panics if thread has no current
// task.
func (sem *Semaphore) Take(thread ThreadHandle) {
	if sem.IsLocked() {
		sem.s.StopThread(sem.prim, thread)
		return
	}
	task, ok := sem.s.Thread(thread).CurrentTask()
	if !ok {
		panic("sched: Semaphore.Take: thread has no current task")
	}
	sem.holders = append(sem.holders, task)
	sem.s.TakeOwnership(sem.prim, task)
}

// TakeNB attempts to take the semaphore without blocking. Returns true
// if a slot was available and the task now holds it. Panics if thread
// has no current task.
func (sem *Semaphore) TakeNB(thread ThreadHandle) bool {
	if sem.IsLocked() {
		return false
	}
	task, ok := sem.s.Thread(thread).CurrentTask()
	if !ok {
		panic("sched: Semaphore.TakeNB: thread has no current task")
	}
	sem.holders = append(sem.holders, task)
	sem.s.TakeOwnership(sem.prim, task)
	return true
}

// Release gives up one of the holds task has on the semaphore,
// handing the freed slot to the longest-waiting stopped task, if any.
func (sem *Semaphore) Release(th TaskHandle) error {
	idx := -1
	for i, h := range sem.holders {
		if h == th {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errOwnershipUnderflow
	}
	if err := sem.s.ReleaseOwnership(sem.prim, th); err != nil {
		return err
	}
	sem.holders = append(sem.holders[:idx], sem.holders[idx+1:]...)

	prim := &sem.s.primSlot(sem.prim).prim
	if len(prim.stopped) == 0 {
		return nil
	}

	next := prim.stopped[0]
	sem.s.ResumeTask(next)
	sem.holders = append(sem.holders, next)
	sem.s.TakeOwnership(sem.prim, next)
	return nil
}
