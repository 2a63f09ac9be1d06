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

// Package taskman is intentionally unimplemented.
//
// The original kerneltk tree carries a third subsystem under this
// name, meant to sit above pkg/sched and manage task lifecycles at a
// higher level than the scheduler core. It never got past a handful
// of TODO-laden stubs in the original source, and the specification
// this module implements explicitly excludes it from scope: the
// scheduler (pkg/sched) and the relocatable ELF64 loader (pkg/loader)
// are the complete subsystems here.
package taskman
