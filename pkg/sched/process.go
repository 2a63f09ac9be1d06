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

// RegisterProcess registers a new process with the scheduler,
// including its built-in pause primitive, and returns its handle.
func (s *Scheduler) RegisterProcess() ProcessHandle {
	h, slot := allocProcess(s)
	slot.process = Process{
		status: StatusActive,
		tasks:  newHandleSet(),
		prims:  newHandleSet(),
	}
	s.numProcesses++

	// The pause primitive is registered like any other, against the
	// process it belongs to.
	slot.process.pausePrim = s.RegisterPrim(h)

	s.log.WithField("process", h.h.index).Debug("process registered")
	return h
}

// UnregisterProcess removes every task registered to the process from
// the scheduler's active set, detaches each from its thread, and
// removes the process itself. The slots of the process's tasks and
// primitives are recycled with it, so handles to them become stale;
// the policy's Unregistered hook is not called for these tasks.
// Requires an open commit.
func (s *Scheduler) UnregisterProcess(h ProcessHandle) {
	s.abortIfCommitClosed()
	proc := &s.processSlot(h).process

	proc.tasks.each(func(th handle) {
		t := &s.tasks[th.index].task
		if t.status == StatusActive {
			s.actives.remove(th)
		}
		detachTaskFromThread(s, TaskHandle{h: th})
		freeTaskSlot(s, TaskHandle{h: th})
	})
	proc.prims.each(func(ph handle) {
		freePrimSlot(s, PrimHandle{h: ph})
	})

	freeProcessSlot(s, h)
	s.numProcesses--
	s.log.WithField("process", h.h.index).Debug("process unregistered")
}

// RegisterTask registers a new, active task with process prc and
// returns its handle.
func (s *Scheduler) RegisterTask(prc ProcessHandle) TaskHandle {
	proc := &s.processSlot(prc).process

	h, slot := allocTask(s)
	slot.task = Task{
		status:  StatusActive,
		process: prc,
		commit:  ^uint64(0),
	}
	s.actives.add(h.h)
	proc.tasks.add(h.h)
	proc.numTasks++

	s.policy.Registered(s, h)

	s.log.WithFields(map[string]interface{}{"task": h.h.index, "process": prc.h.index}).Debug("task registered")
	return h
}

// UnregisterTask resumes the task if stopped, removes it from the
// active set, releases every override it holds, detaches it from its
// thread, removes it from its process, invokes the policy's
// Unregistered and AssignOne hooks, and returns true if the task still
// owned primitives at the time of unregistration — cleaning those up
// is the caller's responsibility, not the scheduler's (residual
// ownership, spec.md §4.5).
func (s *Scheduler) UnregisterTask(th ThreadHandle) bool {
	thSlot := s.threadSlot(th)
	task, ok := thSlot.thread.CurrentTask()
	if !ok {
		panic("sched: UnregisterTask: thread has no current task")
	}
	taskSlot := s.taskSlot(task)

	if taskSlot.task.status == StatusStopped {
		s.ResumeTask(task)
	}

	s.actives.remove(task.h)

	for _, prim := range append([]PrimHandle(nil), taskSlot.task.overriders...) {
		s.UnoverrideTask(prim)
	}

	detachTaskFromThread(s, task)

	proc := &s.processSlot(taskSlot.task.process).process
	proc.tasks.remove(task.h)
	proc.numTasks--

	residual := taskSlot.task.numOwnedPrims != 0

	s.policy.Unregistered(s, task)
	s.policy.AssignOne(s, th)

	freeTaskSlot(s, task)

	return residual
}

// RegisterPrim registers a new primitive against process prc and
// returns its handle.
func (s *Scheduler) RegisterPrim(prc ProcessHandle) PrimHandle {
	proc := &s.processSlot(prc).process

	h, slot := allocPrim(s)
	slot.prim = Primitive{process: prc}
	proc.prims.add(h.h)
	proc.numPrims++

	s.log.WithFields(map[string]interface{}{"prim": h.h.index, "process": prc.h.index}).Debug("primitive registered")
	return h
}

// UnregisterPrim resumes every task the primitive stopped, releases
// its override if any, and removes it from its process. Returns true
// if the primitive still had owning tasks at unregistration time.
func (s *Scheduler) UnregisterPrim(h PrimHandle) bool {
	prim := &s.primSlot(h).prim

	for _, task := range append([]TaskHandle(nil), prim.stopped...) {
		s.ResumeTask(task)
	}

	if prim.overridden.Valid() {
		s.UnoverrideTask(h)
	}

	proc := &s.processSlot(prim.process).process
	proc.prims.remove(h.h)
	proc.numPrims--

	residual := prim.numOwningTasks != 0

	freePrimSlot(s, h)

	return residual
}

// PauseProcess stops every active task registered to the process,
// relative to the process's built-in pause primitive. Requires the
// process to be active and a commit to be open.
func (s *Scheduler) PauseProcess(h ProcessHandle) {
	proc := &s.processSlot(h).process
	if proc.status != StatusActive {
		panic("sched: PauseProcess: process is not active")
	}
	s.abortIfCommitClosed()

	pause := proc.pausePrim
	var toStop []TaskHandle
	proc.tasks.each(func(th handle) {
		t := &s.tasks[th.index].task
		if t.status == StatusActive {
			toStop = append(toStop, TaskHandle{h: th})
		}
	})
	for _, th := range toStop {
		s.StopTask(pause, th)
	}

	proc.status = StatusStopped
}

// ResumeProcess reactivates every task stopped by the process's
// built-in pause primitive. Requires the process to be stopped and a
// commit to be open.
//
// original_source's sched_resume_process walks the task-sibling link
// instead of the primitive's stopped link (spec.md §9 item 3 flags
// this as almost certainly a bug); this rewrite uses the primitive's
// stopped list, as the spec directs.
func (s *Scheduler) ResumeProcess(h ProcessHandle) {
	proc := &s.processSlot(h).process
	if proc.status != StatusStopped {
		panic("sched: ResumeProcess: process is not stopped")
	}
	s.abortIfCommitClosed()

	pauseSlot := s.primSlot(proc.pausePrim)
	stopped := append([]TaskHandle(nil), pauseSlot.prim.stopped...)
	for _, th := range stopped {
		s.ResumeTask(th)
	}

	proc.status = StatusActive
}
