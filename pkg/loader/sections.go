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

package loader

// AssignSections updates every section's address field to its RAM
// address (file start + section offset), refusing any section of
// type SHT_NOBITS with a non-zero size — an object file is not
// expected to carry one, and this loader has nowhere to allocate
// storage for it. Requires StatusDiskImage; on success advances to
// StatusSectionsAssigned.
func (e *Environment) AssignSections() error {
	if err := e.abortIfErrored(); err != nil {
		return err
	}
	if err := e.abortIfStatusNot(StatusDiskImage); err != nil {
		return err
	}

	ok := true
	e.shtable.Each(func(entry []byte) bool {
		sh := shdr{b: entry}
		if sh.shType() == shtNobits && sh.size() != 0 {
			ok = false
			return false
		}
		sh.setAddr(uint64(sh.offset()))
		return true
	})
	if !ok {
		e.errors |= ErrNobitsSection
		return e.failWith(ErrSectionAssign)
	}

	e.status = StatusSectionsAssigned
	e.log.Debug("sections assigned")
	return nil
}
