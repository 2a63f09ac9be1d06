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

// Policy is the embedder-supplied priority policy, equivalent to the
// original C core's sched_ops vtable. The scheduler package describes
// the framework only: no concrete priority discipline (FIFO, EDF, ...)
// lives here. See package policy for a reference implementation.
type Policy interface {
	// Registered is called when a previously-unregistered task has
	// just been registered.
	Registered(s *Scheduler, task TaskHandle)

	// Unregistered is called when an active task has just been
	// unregistered.
	Unregistered(s *Scheduler, task TaskHandle)

	// Stopped is called when an active task has just been stopped.
	Stopped(s *Scheduler, task TaskHandle)

	// Resumed is called when a stopped task has just been
	// reactivated.
	Resumed(s *Scheduler, task TaskHandle)

	// Schedule recomputes priorities of all tasks according to the
	// policy's own priority function and the dependencies recorded by
	// the updated flags. Called once per CloseCommit, before
	// AssignAll.
	Schedule(s *Scheduler)

	// AssignAll assigns a task to every thread, in priority order.
	// Called once per CloseCommit, after Schedule.
	AssignAll(s *Scheduler)

	// AssignOne assigns a task to a single, specifically
	// newly-unassigned thread — called synchronously by StopThread
	// (after its StopTask) and by UnregisterTask.
	AssignOne(s *Scheduler, thread ThreadHandle)

	// OverrideTaken reports that prim has begun overriding task's
	// priority.
	OverrideTaken(s *Scheduler, prim PrimHandle, task TaskHandle)

	// OverrideReleased reports that prim has stopped overriding
	// task's priority.
	OverrideReleased(s *Scheduler, prim PrimHandle, task TaskHandle)

	// TaskPriority returns task's current effective priority.
	TaskPriority(s *Scheduler, task TaskHandle) int

	// PrimPriority returns the priority a primitive lends to whatever
	// task it overrides — typically the highest priority among the
	// tasks it has stopped.
	PrimPriority(s *Scheduler, prim PrimHandle) int
}
