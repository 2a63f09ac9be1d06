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

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Briztal/kernel-toolkit/pkg/sched"
	"github.com/Briztal/kernel-toolkit/pkg/sched/policy"
)

// schedDemoCmd implements subcommands.Command for "sched-demo": it
// spins up a scheduler with a configurable number of simulated CPUs
// and a fixed-priority task set, runs a handful of scheduling rounds
// concurrently, and logs every assignment decision.
type schedDemoCmd struct {
	configPath string
	rounds     int
	daemonMode bool
}

func (*schedDemoCmd) Name() string { return "sched-demo" }
func (*schedDemoCmd) Synopsis() string {
	return "run a simulated multi-CPU priority-inheriting scheduling session"
}
func (*schedDemoCmd) Usage() string {
	return "sched-demo -config=file.toml [-rounds=N] [-daemon]\n"
}

func (c *schedDemoCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "TOML file describing the CPU count and task priorities")
	f.IntVar(&c.rounds, "rounds", 5, "number of scheduling rounds to simulate per CPU")
	f.BoolVar(&c.daemonMode, "daemon", false, "notify systemd readiness once the scheduler is set up")
}

func (c *schedDemoCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.configPath == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, err := loadSchedConfig(c.configPath)
	if err != nil {
		logrus.WithError(err).Error("loading config")
		return subcommands.ExitFailure
	}
	if len(cfg.Tasks) == 0 {
		logrus.Error("config defines no tasks")
		return subcommands.ExitFailure
	}

	pol := policy.NewStatic()
	s := sched.New(pol)

	s.Lock()
	proc := s.RegisterProcess()
	tasks := make([]sched.TaskHandle, len(cfg.Tasks))
	for i, tc := range cfg.Tasks {
		tasks[i] = s.RegisterTask(proc)
		pol.SetPriority(tasks[i], tc.Priority)
	}
	s.OpenCommit()
	s.CloseCommit()

	threads := make([]sched.ThreadHandle, cfg.CPUs)
	for i := range threads {
		threads[i] = s.RegisterThread()
	}
	s.Unlock()

	if c.daemonMode {
		if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			logrus.WithError(err).Warn("systemd readiness notification failed")
		} else if !ok {
			logrus.Debug("not running under systemd, readiness notification skipped")
		}
	}

	limiter := rate.NewLimiter(rate.Every(10*time.Millisecond), 1)

	g, gctx := errgroup.WithContext(ctx)
	for cpu, th := range threads {
		cpu, th := cpu, th
		g.Go(func() error {
			for round := 0; round < c.rounds; round++ {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				s.Lock()
				s.OpenCommit()
				s.CloseCommit() // invokes the policy's Schedule and AssignAll hooks
				task, hasTask := s.Thread(th).CurrentTask()
				s.Unlock()

				if hasTask {
					logrus.WithFields(logrus.Fields{
						"cpu": cpu, "round": round, "task": task,
					}).Info("assigned task")
				} else {
					logrus.WithFields(logrus.Fields{"cpu": cpu, "round": round}).Debug("idle")
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("scheduling session failed")
		return subcommands.ExitFailure
	}

	fmt.Printf("ran %d rounds across %d simulated CPUs with %d tasks\n", c.rounds, cfg.CPUs, len(tasks))
	return subcommands.ExitSuccess
}
