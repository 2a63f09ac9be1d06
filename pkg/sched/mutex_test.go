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

import "testing"

// TestMutexPriorityInheritance exercises the scenario spec.md walks
// through explicitly: a low-priority task takes the mutex, a
// high-priority task blocks on it and is expected to override the
// holder's priority until the holder releases the mutex.
func TestMutexPriorityInheritance(t *testing.T) {
	s, _ := newTestScheduler()
	proc := s.RegisterProcess()
	low := s.RegisterTask(proc)
	high := s.RegisterTask(proc)
	lowThread := s.RegisterThread()
	highThread := s.RegisterThread()
	s.AssignTask(lowThread, low)
	s.AssignTask(highThread, high)

	m := NewMutex(s, proc)

	m.Lock(lowThread)
	if !m.IsLocked() {
		t.Fatalf("Mutex.IsLocked() = false right after Lock, want true")
	}
	if got, want := s.Task(low).NumOwnedPrimitives(), 1; got != want {
		t.Fatalf("low task NumOwnedPrimitives() = %d, want %d", got, want)
	}
	if got, want := s.Task(low).NumOverrides(), 1; got != want {
		t.Fatalf("low task NumOverrides() = %d, want %d: locking a free mutex must override the new holder", got, want)
	}

	m.Lock(highThread)
	if s.Task(high).Status() != StatusStopped {
		t.Fatalf("high task Status() = %s, want %s after blocking on a held mutex", s.Task(high).Status(), StatusStopped)
	}
	if got, want := s.Task(low).NumOverrides(), 1; got != want {
		t.Fatalf("low task NumOverrides() = %d, want %d: high task should override the holder", got, want)
	}

	if res := m.Unlock(lowThread); res != UnlockOK {
		t.Fatalf("Mutex.Unlock(low) = %s, want %s", res, UnlockOK)
	}

	if s.Task(high).Status() != StatusActive {
		t.Fatalf("high task Status() = %s after Unlock, want %s (the waiter is resumed, not handed the mutex)", s.Task(high).Status(), StatusActive)
	}
	if got, want := s.Task(low).NumOverrides(), 0; got != want {
		t.Fatalf("low task NumOverrides() = %d after Unlock, want %d", got, want)
	}
	if m.IsLocked() {
		t.Fatalf("Mutex.IsLocked() = true after Unlock, want false: resuming a waiter must not re-take ownership on its behalf")
	}
	if got, want := s.Task(high).NumOwnedPrimitives(), 0; got != want {
		t.Fatalf("high task NumOwnedPrimitives() = %d after being resumed, want %d: it must Lock again to take ownership", got, want)
	}
}

func TestMutexUnlockByNonOwner(t *testing.T) {
	s, _ := newTestScheduler()
	proc := s.RegisterProcess()
	a := s.RegisterTask(proc)
	b := s.RegisterTask(proc)
	athread := s.RegisterThread()
	bthread := s.RegisterThread()
	s.AssignTask(athread, a)
	s.AssignTask(bthread, b)

	m := NewMutex(s, proc)
	m.Lock(athread)

	if res := m.Unlock(bthread); res != UnlockNotOwner {
		t.Fatalf("Mutex.Unlock(b) on a's lock = %s, want %s", res, UnlockNotOwner)
	}
}

func TestMutexUnlockWhenFree(t *testing.T) {
	s, _ := newTestScheduler()
	proc := s.RegisterProcess()
	a := s.RegisterTask(proc)
	athread := s.RegisterThread()
	s.AssignTask(athread, a)

	m := NewMutex(s, proc)
	if res := m.Unlock(athread); res != UnlockNotLocked {
		t.Fatalf("Mutex.Unlock() on a free mutex = %s, want %s", res, UnlockNotLocked)
	}
}

func TestMutexLockNB(t *testing.T) {
	s, _ := newTestScheduler()
	proc := s.RegisterProcess()
	a := s.RegisterTask(proc)
	b := s.RegisterTask(proc)
	athread := s.RegisterThread()
	bthread := s.RegisterThread()
	s.AssignTask(athread, a)
	s.AssignTask(bthread, b)

	m := NewMutex(s, proc)
	if !m.LockNB(athread) {
		t.Fatalf("LockNB(a) on a free mutex = false, want true")
	}
	if m.LockNB(bthread) {
		t.Fatalf("LockNB(b) on an already-held mutex = true, want false")
	}
	if s.Task(b).Status() != StatusActive {
		t.Fatalf("b Status() = %s after failed LockNB, want %s (LockNB must not block)", s.Task(b).Status(), StatusActive)
	}
}
