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
	"fmt"

	"github.com/BurntSushi/toml"
)

// schedConfig is the sched-demo command's TOML configuration: a
// simulated CPU count and a table of per-task base priorities, keyed
// by the task's index in the demo's fixed task list.
type schedConfig struct {
	CPUs  int          `toml:"cpus"`
	Tasks []taskConfig `toml:"task"`
}

type taskConfig struct {
	Name     string `toml:"name"`
	Priority int    `toml:"priority"`
}

func loadSchedConfig(path string) (schedConfig, error) {
	var cfg schedConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return schedConfig{}, fmt.Errorf("kerneltk: decoding %s: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return schedConfig{}, fmt.Errorf("kerneltk: %s: unrecognized keys %v", path, undec)
	}
	if cfg.CPUs <= 0 {
		cfg.CPUs = 1
	}
	return cfg, nil
}
