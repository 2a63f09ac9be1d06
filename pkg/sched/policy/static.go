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

// Package policy provides Static, a fixed-priority reference
// implementation of sched.Policy: each task carries a base priority
// assigned at registration, raised to the priority lent by any
// primitive currently overriding it.
package policy

import (
	"sort"
	"sync"

	"github.com/mohae/deepcopy"
	"github.com/sirupsen/logrus"

	"github.com/Briztal/kernel-toolkit/pkg/sched"
)

// DefaultPriority is the base priority assigned to a task registered
// without a prior call to Static.SetPriority.
const DefaultPriority = 0

// Static is a fixed-priority sched.Policy: priorities are set
// explicitly by the embedder (SetPriority) rather than computed from
// deadlines or run history. It is a reference implementation, not a
// production scheduling discipline — see spec.md's Non-goals.
type Static struct {
	mu   sync.Mutex
	base map[sched.TaskHandle]int
	log  *logrus.Entry
}

// NewStatic creates an empty Static policy.
func NewStatic() *Static {
	return &Static{
		base: make(map[sched.TaskHandle]int),
		log:  logrus.WithField("component", "policy.static"),
	}
}

// SetPriority sets task's base priority. Safe to call before or after
// registration; Registered seeds DefaultPriority if no prior call set
// one.
func (p *Static) SetPriority(task sched.TaskHandle, priority int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base[task] = priority
}

func (p *Static) basePriority(task sched.TaskHandle) int {
	if pr, ok := p.base[task]; ok {
		return pr
	}
	return DefaultPriority
}

// TaskPriority returns task's effective priority: its base priority,
// raised to the highest priority lent by any primitive currently
// overriding it.
func (p *Static) TaskPriority(s *sched.Scheduler, task sched.TaskHandle) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.taskPriorityLocked(s, task)
}

func (p *Static) taskPriorityLocked(s *sched.Scheduler, task sched.TaskHandle) int {
	best := p.basePriority(task)
	for _, prim := range s.Task(task).Overriders() {
		if pp := p.primPriorityLocked(s, prim); pp > best {
			best = pp
		}
	}
	return best
}

// PrimPriority returns the highest priority among the tasks prim
// currently has stopped — the priority it lends to whichever task it
// overrides.
func (p *Static) PrimPriority(s *sched.Scheduler, prim sched.PrimHandle) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.primPriorityLocked(s, prim)
}

func (p *Static) primPriorityLocked(s *sched.Scheduler, prim sched.PrimHandle) int {
	best := DefaultPriority
	first := true
	for _, stopped := range s.Primitive(prim).Stopped() {
		pr := p.taskPriorityLocked(s, stopped)
		if first || pr > best {
			best = pr
			first = false
		}
	}
	return best
}

// Registered seeds task with DefaultPriority if no priority has been
// set for it yet.
func (p *Static) Registered(s *sched.Scheduler, task sched.TaskHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.base[task]; !ok {
		p.base[task] = DefaultPriority
	}
}

// Unregistered forgets task's stored base priority.
func (p *Static) Unregistered(s *sched.Scheduler, task sched.TaskHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.base, task)
}

// taskSnapshot is a flat, plain-value snapshot of a Task's status at
// the moment it stopped, suitable for deepcopy.Copy. It deliberately
// holds no handle-typed fields: sched.TaskHandle/PrimHandle wrap an
// unexported handle struct that deepcopy.Copy silently zeroes (it
// skips unexported fields rather than copying them), so a snapshot
// meant to survive asynchronous logging carries only plain values
// computed up front instead.
type taskSnapshot struct {
	Status         string
	OverriderCount int
}

// Stopped logs a snapshot of the task's status at the moment it
// stopped, for post-mortem debugging. The snapshot is deep-copied so
// the logging call, which may be buffered asynchronously by the
// logrus formatter, never observes a later mutation of the live task.
func (p *Static) Stopped(s *sched.Scheduler, task sched.TaskHandle) {
	t := s.Task(task)
	snap := deepcopy.Copy(taskSnapshot{
		Status:         t.Status().String(),
		OverriderCount: len(t.Overriders()),
	}).(taskSnapshot)
	p.log.WithFields(logrus.Fields{
		"task":       task,
		"status":     snap.Status,
		"overriders": snap.OverriderCount,
	}).Debug("task stopped")
}

// Resumed is a no-op: Static recomputes priorities lazily, in
// Schedule.
func (p *Static) Resumed(s *sched.Scheduler, task sched.TaskHandle) {}

// OverrideTaken is a no-op: the override's effect is picked up lazily
// by TaskPriority/PrimPriority.
func (p *Static) OverrideTaken(s *sched.Scheduler, prim sched.PrimHandle, task sched.TaskHandle) {
}

// OverrideReleased is a no-op, for the same reason as OverrideTaken.
func (p *Static) OverrideReleased(s *sched.Scheduler, prim sched.PrimHandle, task sched.TaskHandle) {
}

// Schedule clears the updated flag on every active task whose position
// in the overriding tree changed since the last commit; the flags of
// stopped tasks and of primitives are left as they are. Since Static
// recomputes priorities on demand rather than caching them, there is
// nothing further to recompute here.
func (p *Static) Schedule(s *sched.Scheduler) {
	s.ActiveTasks(func(th sched.TaskHandle) {
		t := s.Task(th)
		if t.Updated() {
			t.ClearUpdated()
		}
	})
}

// AssignAll assigns the highest-priority active, currently-unassigned
// tasks to the registered threads that have no current task, highest
// priority first. Threads that already have a task keep it; threads in
// excess of the number of eligible tasks are left without one.
func (p *Static) AssignAll(s *sched.Scheduler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	running := make(map[sched.TaskHandle]bool)
	var threads []sched.ThreadHandle
	s.AllThreads(func(th sched.ThreadHandle) {
		threads = append(threads, th)
		if cur, ok := s.Thread(th).CurrentTask(); ok {
			running[cur] = true
		}
	})

	var candidates []sched.TaskHandle
	s.ActiveTasks(func(th sched.TaskHandle) {
		if !running[th] {
			candidates = append(candidates, th)
		}
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return p.taskPriorityLocked(s, candidates[i]) > p.taskPriorityLocked(s, candidates[j])
	})

	i := 0
	for _, th := range threads {
		if _, ok := s.Thread(th).CurrentTask(); ok {
			continue
		}
		if i >= len(candidates) {
			break
		}
		s.AssignTask(th, candidates[i])
		i++
	}
}

// AssignOne assigns the highest-priority active, unassigned task to
// thread, or idles it if none is eligible.
func (p *Static) AssignOne(s *sched.Scheduler, thread sched.ThreadHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	running := make(map[sched.TaskHandle]bool)
	s.AllThreads(func(th sched.ThreadHandle) {
		if cur, ok := s.Thread(th).CurrentTask(); ok {
			running[cur] = true
		}
	})

	best := sched.TaskHandle{}
	bestPriority := 0
	haveBest := false
	s.ActiveTasks(func(th sched.TaskHandle) {
		if running[th] {
			return
		}
		pr := p.taskPriorityLocked(s, th)
		if !haveBest || pr > bestPriority {
			best, bestPriority, haveBest = th, pr, true
		}
	})

	if haveBest {
		s.AssignTask(thread, best)
	} else {
		s.AssignTask(thread, sched.TaskHandle{})
	}
}
