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

// Mutex is a scheduler primitive with priority inheritance: the
// primitive overrides whichever task holds it, and is in turn
// overridden by every task it stops. A Mutex owns exactly one
// primitive handle and tracks its own owner; locked depth is not
// supported — Lock/Unlock are not reentrant, as in the original C
// core.
type Mutex struct {
	s     *Scheduler
	prim  PrimHandle
	owner TaskHandle
}

// NewMutex registers a new primitive with prc and wraps it as a Mutex.
func NewMutex(s *Scheduler, prc ProcessHandle) *Mutex {
	return &Mutex{s: s, prim: s.RegisterPrim(prc)}
}

// Handle returns the underlying primitive handle.
func (m *Mutex) Handle() PrimHandle { return m.prim }

// IsLocked reports whether the mutex is currently held.
func (m *Mutex) IsLocked() bool { return m.owner.Valid() }

// Lock blocks thread's current task on the mutex if it is already
// held — stopping the task and assigning the thread a new one via
// StopThread — until the mutex is released. If the mutex is free, the
// task takes ownership immediately and the mutex's primitive overrides
// it, the priority-inheritance step: the holder runs at whatever
// priority the primitive carries from a waiter. Panics if thread has
// no current task.
func (m *Mutex) Lock(thread ThreadHandle) {
	if m.IsLocked() {
		m.s.StopThread(m.prim, thread)
		return
	}
	task, ok := m.s.Thread(thread).CurrentTask()
	if !ok {
		panic("sched: Mutex.Lock: thread has no current task")
	}
	m.owner = task
	m.s.TakeOwnership(m.prim, task)
	m.s.OverrideTask(m.prim, task)
}

// LockNB attempts to lock the mutex without blocking. Returns true if
// the lock was acquired. Panics if thread has no current task.
func (m *Mutex) LockNB(thread ThreadHandle) bool {
	if m.IsLocked() {
		return false
	}
	task, ok := m.s.Thread(thread).CurrentTask()
	if !ok {
		panic("sched: Mutex.LockNB: thread has no current task")
	}
	m.owner = task
	m.s.TakeOwnership(m.prim, task)
	m.s.OverrideTask(m.prim, task)
	return true
}

// Unlock releases the mutex held by the task currently executing on
// thread, resuming the first task stopped on it, if any — resuming
// does not hand over ownership; the resumed task must Lock again to
// actually acquire the mutex. Mirrors the four-way result of the
// original sched_mutex_unlock.
func (m *Mutex) Unlock(th ThreadHandle) UnlockResult {
	if !m.IsLocked() {
		return UnlockNotLocked
	}
	thSlot := m.s.threadSlot(th)
	task, ok := thSlot.thread.CurrentTask()
	if !ok || task != m.owner {
		return UnlockNotOwner
	}

	if err := m.s.ReleaseOwnership(m.prim, m.owner); err != nil {
		return UnlockReleaseError
	}
	m.s.UnoverrideTask(m.prim)
	m.owner = TaskHandle{}

	// The mutex is now unlocked (owning_tasks == 0): the first waiter,
	// if any, is only resumed — it must call Lock again to actually
	// acquire the mutex, exactly as sched_mutex_unlock's C original
	// does not re-take ownership on the caller's behalf.
	prim := &m.s.primSlot(m.prim).prim
	if len(prim.stopped) > 0 {
		m.s.ResumeTask(prim.stopped[0])
	}
	return UnlockOK
}
