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

// TestSemaphoreCountingNoInheritance exercises a capacity-2 semaphore:
// two holders take it without blocking, a third blocks, and — unlike
// Mutex — no priority override is recorded anywhere along the way.
func TestSemaphoreCountingNoInheritance(t *testing.T) {
	s, _ := newTestScheduler()
	proc := s.RegisterProcess()
	a := s.RegisterTask(proc)
	b := s.RegisterTask(proc)
	c := s.RegisterTask(proc)
	aThread := s.RegisterThread()
	bThread := s.RegisterThread()
	cThread := s.RegisterThread()
	s.AssignTask(aThread, a)
	s.AssignTask(bThread, b)
	s.AssignTask(cThread, c)

	sem := NewSemaphore(s, proc, 2)

	sem.Take(aThread)
	sem.Take(bThread)
	if !sem.IsLocked() {
		t.Fatalf("Semaphore.IsLocked() = false at capacity, want true")
	}

	sem.Take(cThread)
	if s.Task(c).Status() != StatusStopped {
		t.Fatalf("c Status() = %s after blocking at capacity, want %s", s.Task(c).Status(), StatusStopped)
	}
	if got, want := s.Task(a).NumOverrides(), 0; got != want {
		t.Fatalf("a NumOverrides() = %d, want %d: semaphores must not grant priority inheritance", got, want)
	}

	if err := sem.Release(a); err != nil {
		t.Fatalf("Release(a) = %v, want nil", err)
	}
	if s.Task(c).Status() != StatusActive {
		t.Fatalf("c Status() = %s after a freed its slot, want %s", s.Task(c).Status(), StatusActive)
	}
	if got, want := s.Task(c).NumOwnedPrimitives(), 1; got != want {
		t.Fatalf("c NumOwnedPrimitives() = %d, want %d", got, want)
	}
}

func TestSemaphoreReleaseByNonHolder(t *testing.T) {
	s, _ := newTestScheduler()
	proc := s.RegisterProcess()
	a := s.RegisterTask(proc)
	b := s.RegisterTask(proc)
	aThread := s.RegisterThread()
	s.AssignTask(aThread, a)

	sem := NewSemaphore(s, proc, 1)
	sem.Take(aThread)

	if err := sem.Release(b); err == nil {
		t.Fatalf("Release(b) on a semaphore b never took = nil error, want non-nil")
	}
}

func TestSemaphoreTakeNB(t *testing.T) {
	s, _ := newTestScheduler()
	proc := s.RegisterProcess()
	a := s.RegisterTask(proc)
	b := s.RegisterTask(proc)
	aThread := s.RegisterThread()
	bThread := s.RegisterThread()
	s.AssignTask(aThread, a)
	s.AssignTask(bThread, b)

	sem := NewSemaphore(s, proc, 1)
	if !sem.TakeNB(aThread) {
		t.Fatalf("TakeNB(a) on a free semaphore = false, want true")
	}
	if sem.TakeNB(bThread) {
		t.Fatalf("TakeNB(b) at capacity = true, want false")
	}
	if s.Task(b).Status() != StatusActive {
		t.Fatalf("b Status() = %s after failed TakeNB, want %s", s.Task(b).Status(), StatusActive)
	}
}

func TestNewSemaphoreRejectsNonPositiveCapacity(t *testing.T) {
	s, _ := newTestScheduler()
	proc := s.RegisterProcess()

	defer func() {
		if recover() == nil {
			t.Fatalf("NewSemaphore with capacity 0 did not panic")
		}
	}()
	NewSemaphore(s, proc, 0)
}
