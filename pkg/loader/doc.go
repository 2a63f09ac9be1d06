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

// Package loader implements a relocatable ELF64 object loader that
// operates in place on a byte buffer: it never copies the file, and
// every stage (AssignSections, AssignSymbols, ApplyRelocations)
// mutates the buffer's section and symbol table entries directly,
// exactly as the original in-RAM loader it is modeled on does.
//
// An Environment moves through a fixed sequence of file statuses —
// StatusDiskImage, StatusSectionsAssigned, StatusSymbolsAssigned,
// StatusRelocationsApplied — and each stage refuses to run out of
// order or a second time. Errors accumulate in a sticky bitmask
// (Environment.Errors); once any bit is set, every further stage call
// fails immediately with ErrRedetection rather than attempting
// further, possibly-inconsistent, work.
package loader
