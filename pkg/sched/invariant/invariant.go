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

// Package invariant checks the universally-quantified consistency
// properties the scheduler core is supposed to maintain at every
// commit boundary. It is debug/test tooling, not part of the
// scheduler's runtime hot path — call Check from tests or from a
// debug build's commit hook.
package invariant

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/Briztal/kernel-toolkit/pkg/sched"
)

// Check walks every registered thread and every currently active task
// reachable from s and reports every violation found. Callers must
// hold s.Lock() for the duration of the call.
func Check(s *sched.Scheduler) error {
	var errs *multierror.Error

	s.AllThreads(func(th sched.ThreadHandle) {
		thread := s.Thread(th)
		cur, ok := thread.CurrentTask()
		if !ok {
			return
		}
		task := s.Task(cur)
		if task.Status() != sched.StatusActive {
			errs = multierror.Append(errs, fmt.Errorf(
				"thread %+v runs task %+v, but the task's status is %s, not active",
				th, cur, task.Status()))
		}
		if assigned, ok := task.Thread(); !ok || assigned != th {
			errs = multierror.Append(errs, fmt.Errorf(
				"thread %+v runs task %+v, but the task does not point back to this thread",
				th, cur))
		}
	})

	s.ActiveTasks(func(th sched.TaskHandle) {
		task := s.Task(th)
		if task.Status() != sched.StatusActive {
			errs = multierror.Append(errs, fmt.Errorf(
				"task %+v is in the active set with non-active status %s", th, task.Status()))
		}
		if stopper, stopped := task.Stopper(); stopped {
			errs = multierror.Append(errs, fmt.Errorf(
				"active task %+v still has stopper primitive %+v", th, stopper))
		}
	})

	return errs.ErrorOrNil()
}

// CheckProcess runs the per-process override and stop-list symmetry
// checks (it does not repeat Check's thread and active-set checks)
// that require enumerating a
// single process's full task and primitive sets — something the
// scheduler intentionally does not expose at the whole-arena level
// (spec.md §9 notes the original core only tracks cardinalities, not
// edge sets, for the same reason). Callers must hold s.Lock().
func CheckProcess(s *sched.Scheduler, proc sched.ProcessHandle) error {
	var errs *multierror.Error
	p := s.Process(proc)

	stopperOf := make(map[sched.TaskHandle]sched.PrimHandle)
	p.EachTask(func(th sched.TaskHandle) {
		if stopper, ok := s.Task(th).Stopper(); ok {
			stopperOf[th] = stopper
		}
	})

	p.EachPrimitive(func(ph sched.PrimHandle) {
		prim := s.Primitive(ph)

		seen := make(map[sched.TaskHandle]bool)
		for _, th := range prim.Stopped() {
			if seen[th] {
				errs = multierror.Append(errs, fmt.Errorf(
					"primitive %+v lists stopped task %+v more than once", ph, th))
			}
			seen[th] = true
			if stopperOf[th] != ph {
				errs = multierror.Append(errs, fmt.Errorf(
					"primitive %+v lists task %+v as stopped, but the task's stopper is %+v",
					ph, th, stopperOf[th]))
			}
		}

		if overridden, ok := prim.Overridden(); ok {
			found := false
			for _, o := range s.Task(overridden).Overriders() {
				if o == ph {
					found = true
					break
				}
			}
			if !found {
				errs = multierror.Append(errs, fmt.Errorf(
					"primitive %+v overrides task %+v, but the task's overriders do not include it",
					ph, overridden))
			}
		}
	})

	for th, stopper := range stopperOf {
		found := false
		for _, stopped := range s.Primitive(stopper).Stopped() {
			if stopped == th {
				found = true
				break
			}
		}
		if !found {
			errs = multierror.Append(errs, fmt.Errorf(
				"task %+v names stopper %+v, but is not in that primitive's stopped list", th, stopper))
		}
	}

	return errs.ErrorOrNil()
}
