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

package policy

import (
	"testing"

	"github.com/Briztal/kernel-toolkit/pkg/sched"
)

func TestStaticAssignOnePicksHighestPriority(t *testing.T) {
	pol := NewStatic()
	s := sched.New(pol)
	proc := s.RegisterProcess()
	low := s.RegisterTask(proc)
	high := s.RegisterTask(proc)
	thread := s.RegisterThread()

	pol.SetPriority(low, 1)
	pol.SetPriority(high, 10)

	pol.AssignOne(s, thread)

	cur, ok := s.Thread(thread).CurrentTask()
	if !ok || cur != high {
		t.Fatalf("AssignOne assigned %+v (ok=%v), want the higher-priority task %+v", cur, ok, high)
	}
}

func TestStaticAssignAllIdlesExcessThreads(t *testing.T) {
	pol := NewStatic()
	s := sched.New(pol)
	proc := s.RegisterProcess()
	only := s.RegisterTask(proc)
	busy := s.RegisterThread()
	idle := s.RegisterThread()

	pol.AssignAll(s)

	if cur, ok := s.Thread(busy).CurrentTask(); !ok || cur != only {
		t.Fatalf("AssignAll: busy thread CurrentTask() = (%+v, %v), want (%+v, true)", cur, ok, only)
	}
	if _, ok := s.Thread(idle).CurrentTask(); ok {
		t.Fatalf("AssignAll: idle thread got a task, want none (fewer tasks than threads)")
	}
}

func TestStaticTaskPriorityLiftedByOverride(t *testing.T) {
	pol := NewStatic()
	s := sched.New(pol)
	proc := s.RegisterProcess()
	holder := s.RegisterTask(proc)
	waiter := s.RegisterTask(proc)
	pol.SetPriority(holder, 1)
	pol.SetPriority(waiter, 9)

	prim := s.RegisterPrim(proc)
	s.OverrideTask(prim, holder)
	s.StopTask(prim, waiter)

	if got, want := pol.TaskPriority(s, holder), 9; got != want {
		t.Fatalf("TaskPriority(holder) = %d, want %d (lifted by the overriding primitive)", got, want)
	}
}

func TestStaticUnregisteredForgetsPriority(t *testing.T) {
	pol := NewStatic()
	s := sched.New(pol)
	proc := s.RegisterProcess()
	task := s.RegisterTask(proc)
	thread := s.RegisterThread()
	s.AssignTask(thread, task)
	pol.SetPriority(task, 5)

	if _, ok := pol.base[task]; !ok {
		t.Fatalf("base priority missing right after registration")
	}

	s.UnregisterTask(thread)

	if _, ok := pol.base[task]; ok {
		t.Fatalf("base priority for %+v still present after UnregisterTask", task)
	}
}
