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

// detachTaskFromThread removes task from its assigned thread's
// history, if it has one, and clears the thread's current-task ref if
// it pointed at task.
func detachTaskFromThread(s *Scheduler, th TaskHandle) {
	task := &s.taskSlot(th).task
	if !task.thread.Valid() {
		return
	}
	thSlot := s.threadSlot(task.thread)
	thSlot.thread.history = removeTaskHandle(thSlot.thread.history, th)
	task.thread = ThreadHandle{}

	if thSlot.thread.task == th {
		thSlot.thread.task = TaskHandle{}
		thSlot.thread.commit = ^uint64(0)
	}
}

func removeTaskHandle(list []TaskHandle, h TaskHandle) []TaskHandle {
	for i, v := range list {
		if v == h {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// AssignTask assigns task to thread, making it the thread's current
// task. If task was previously assigned a different thread, it is
// first detached from it. Both the task and the thread are marked
// active as of the scheduler's current commit.
//
// Passing the zero TaskHandle deactivates the thread (no current
// task), mirroring thread_assign_task(thread, NULL) in the original.
func (s *Scheduler) AssignTask(th ThreadHandle, task TaskHandle) {
	thSlot := s.threadSlot(th)

	if !task.Valid() {
		thSlot.thread.task = TaskHandle{}
		thSlot.thread.commit = ^uint64(0)
		return
	}

	taskSlot := s.taskSlot(task)
	if !taskSlot.task.process.Valid() {
		panic("sched: AssignTask: task has no process")
	}

	if taskSlot.task.thread != th {
		detachTaskFromThread(s, task)
		taskSlot.task.thread = th
		thSlot.thread.history = append([]TaskHandle{task}, thSlot.thread.history...)
	}

	thSlot.thread.task = task
	thSlot.thread.commit = s.commitIndex
	taskSlot.task.commit = s.commitIndex
}
