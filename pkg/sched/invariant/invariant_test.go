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

package invariant_test

import (
	"testing"

	"github.com/Briztal/kernel-toolkit/pkg/sched"
	"github.com/Briztal/kernel-toolkit/pkg/sched/invariant"
	"github.com/Briztal/kernel-toolkit/pkg/sched/policy"
)

func TestCheckPassesOnFreshScheduler(t *testing.T) {
	s := sched.New(policy.NewStatic())
	proc := s.RegisterProcess()
	task := s.RegisterTask(proc)
	thread := s.RegisterThread()
	s.AssignTask(thread, task)

	if err := invariant.Check(s); err != nil {
		t.Fatalf("Check() = %v, want nil", err)
	}
	if err := invariant.CheckProcess(s, proc); err != nil {
		t.Fatalf("CheckProcess() = %v, want nil", err)
	}
}

func TestCheckProcessPassesWithOverrideAndStop(t *testing.T) {
	s := sched.New(policy.NewStatic())
	proc := s.RegisterProcess()
	holder := s.RegisterTask(proc)
	waiter := s.RegisterTask(proc)
	prim := s.RegisterPrim(proc)

	s.OverrideTask(prim, holder)
	s.StopTask(prim, waiter)

	if err := invariant.CheckProcess(s, proc); err != nil {
		t.Fatalf("CheckProcess() after OverrideTask+StopTask = %v, want nil", err)
	}
}
