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

// propagateTaskUpdate marks task, and its ancestors in the
// ownership/overriding tree, updated — walking task -> its stopper
// primitive -> that primitive's overridden task -> ... — until it
// reaches a node already marked updated, or runs out of edges.
func propagateTaskUpdate(s *Scheduler, th TaskHandle) {
	for {
		task := &s.taskSlot(th).task
		if task.updated {
			return
		}
		task.updated = true

		if !task.stopper.Valid() {
			return
		}
		prim := &s.primSlot(task.stopper).prim
		if prim.updated {
			return
		}
		prim.updated = true

		if !prim.overridden.Valid() {
			return
		}
		th = prim.overridden
	}
}

// propagatePrimUpdate is propagateTaskUpdate's mirror, starting from a
// primitive instead of a task.
func propagatePrimUpdate(s *Scheduler, ph PrimHandle) {
	for {
		prim := &s.primSlot(ph).prim
		if prim.updated {
			return
		}
		prim.updated = true

		if !prim.overridden.Valid() {
			return
		}
		task := &s.taskSlot(prim.overridden).task
		if task.updated {
			return
		}
		task.updated = true

		if !task.stopper.Valid() {
			return
		}
		ph = task.stopper
	}
}

func (s *Scheduler) checkSameProcess(ph PrimHandle, th TaskHandle) {
	prim := &s.primSlot(ph).prim
	task := &s.taskSlot(th).task
	if prim.process.h != task.process.h {
		panic("sched: primitive and task belong to different processes")
	}
}

// TakeOwnership gives task the ownership of prim. task must be active
// and share a process with prim.
func (s *Scheduler) TakeOwnership(ph PrimHandle, th TaskHandle) {
	s.checkSameProcess(ph, th)
	task := &s.taskSlot(th).task
	if task.status != StatusActive {
		panic("sched: TakeOwnership: task is not active")
	}

	s.primSlot(ph).prim.numOwningTasks++
	task.numOwnedPrims++
}

// ReleaseOwnership removes task's ownership of prim. Returns an error
// if either counter was already zero (an ownership counter underflow);
// in that case neither counter is touched.
func (s *Scheduler) ReleaseOwnership(ph PrimHandle, th TaskHandle) error {
	s.checkSameProcess(ph, th)
	task := &s.taskSlot(th).task
	if task.status != StatusActive {
		panic("sched: ReleaseOwnership: task is not active")
	}

	prim := &s.primSlot(ph).prim
	if prim.numOwningTasks == 0 {
		return errOwnershipUnderflow
	}
	if task.numOwnedPrims == 0 {
		return errOwnershipUnderflow
	}

	prim.numOwningTasks--
	task.numOwnedPrims--
	return nil
}

// unoverride is the unexported worker shared by OverrideTask (to clear
// a prior override before taking a new one) and UnoverrideTask.
func unoverride(s *Scheduler, ph PrimHandle) {
	prim := &s.primSlot(ph).prim
	if !prim.overridden.Valid() {
		return
	}
	th := prim.overridden
	task := &s.taskSlot(th).task

	prim.overridden = TaskHandle{}
	task.overriders = removePrimHandle(task.overriders, ph)

	propagateTaskUpdate(s, th)

	s.policy.OverrideReleased(s, ph, th)
}

func removePrimHandle(list []PrimHandle, h PrimHandle) []PrimHandle {
	for i, v := range list {
		if v == h {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// OverrideTask makes prim override task's priority, first releasing
// any task prim previously overrode. task must be active and share a
// process with prim.
func (s *Scheduler) OverrideTask(ph PrimHandle, th TaskHandle) {
	s.checkSameProcess(ph, th)
	task := &s.taskSlot(th).task
	if task.status != StatusActive {
		panic("sched: OverrideTask: task is not active")
	}

	unoverride(s, ph)

	prim := &s.primSlot(ph).prim
	prim.overridden = th
	task.overriders = append(task.overriders, ph)

	propagateTaskUpdate(s, th)

	s.policy.OverrideTaken(s, ph, th)
}

// UnoverrideTask releases prim's override, if it holds one.
func (s *Scheduler) UnoverrideTask(ph PrimHandle) {
	unoverride(s, ph)
}

// StopTask stops task relative to prim: task must be active, share a
// process with prim, and have no existing stopper.
func (s *Scheduler) StopTask(ph PrimHandle, th TaskHandle) {
	s.checkSameProcess(ph, th)
	task := &s.taskSlot(th).task
	if task.status != StatusActive {
		panic("sched: StopTask: task is not active")
	}
	if task.stopper.Valid() {
		panic("sched: StopTask: task already has a stopper")
	}

	task.stopper = ph
	prim := &s.primSlot(ph).prim
	prim.stopped = append(prim.stopped, th)

	propagatePrimUpdate(s, ph)

	s.actives.remove(th.h)
	task.status = StatusStopped

	s.policy.Stopped(s, th)
}

// ResumeTask reactivates a stopped task.
func (s *Scheduler) ResumeTask(th TaskHandle) {
	task := &s.taskSlot(th).task
	if task.status != StatusStopped {
		panic("sched: ResumeTask: task is not stopped")
	}
	ph := task.stopper
	prim := &s.primSlot(ph).prim

	s.actives.add(th.h)
	task.stopper = PrimHandle{}
	prim.stopped = removeTaskHandle(prim.stopped, th)

	propagatePrimUpdate(s, ph)

	task.status = StatusActive

	s.policy.Resumed(s, th)
}

// StopThread stops the task currently executed by thread, relative to
// prim, then asks the policy to assign the thread a new task. Panics
// if the thread has no current task.
func (s *Scheduler) StopThread(ph PrimHandle, th ThreadHandle) {
	thSlot := s.threadSlot(th)
	task, ok := thSlot.thread.CurrentTask()
	if !ok {
		panic("sched: StopThread: thread has no current task")
	}

	s.StopTask(ph, task)
	s.policy.AssignOne(s, th)
}
