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

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/pkg/errors"

	"github.com/Briztal/kernel-toolkit/pkg/loader/btable"
)

// Status is the stage an Environment's underlying file has reached.
type Status int

const (
	// StatusDiskImage is the status of a freshly-initialized
	// Environment: RAM content is identical to the file on disk.
	StatusDiskImage Status = iota

	// StatusSectionsAssigned means every section's address field
	// holds its RAM address.
	StatusSectionsAssigned

	// StatusSymbolsAssigned means every symbol's value field is
	// either its resolved address or 0.
	StatusSymbolsAssigned

	// StatusRelocationsApplied means every relocation entry in the
	// file has been applied to its target section.
	StatusRelocationsApplied
)

func (s Status) String() string {
	switch s {
	case StatusDiskImage:
		return "disk-image"
	case StatusSectionsAssigned:
		return "sections-assigned"
	case StatusSymbolsAssigned:
		return "symbols-assigned"
	case StatusRelocationsApplied:
		return "relocations-applied"
	default:
		return "invalid"
	}
}

// Environment is a relocatable ELF64 object file loaded into a single
// in-place buffer. Every exported stage mutates data directly; no
// stage copies the file.
type Environment struct {
	data    []byte
	errors  ErrorFlag
	status  Status
	hdr     ehdr
	shtable btable.Table

	log *logrus.Entry
}

// New wraps data — the whole content of a relocatable ELF64 file,
// read into RAM — as a fresh Environment. data is retained and
// mutated in place by the stage methods; callers must not use it
// independently afterward.
func New(data []byte) (*Environment, error) {
	if len(data) < ehdrSize {
		return nil, errors.Errorf("loader: file of %d bytes is smaller than an ELF64 header", len(data))
	}
	hdr := ehdr{b: data[:ehdrSize]}

	shOff := hdr.shoff()
	shEntsize := uint64(hdr.shentsize())
	shNum := uint64(hdr.shnum())
	shEnd := shOff + shEntsize*shNum
	if shEnd > uint64(len(data)) {
		return nil, errors.Errorf("loader: section header table [%d,%d) overruns a %d-byte file", shOff, shEnd, len(data))
	}

	return &Environment{
		data:    data,
		status:  StatusDiskImage,
		hdr:     hdr,
		shtable: btable.New(data[shOff:shEnd], int(shEntsize)),
		log:     logrus.WithField("component", "loader"),
	}, nil
}

// Status returns the stage the environment has reached.
func (e *Environment) Status() Status { return e.status }

// Errors returns the sticky error bitmask accumulated so far.
func (e *Environment) Errors() ErrorFlag { return e.errors }

// Data returns the in-place file buffer. Holding onto it past a
// further stage call will observe that stage's mutations.
func (e *Environment) Data() []byte { return e.data }

func (e *Environment) failWith(flag ErrorFlag) error {
	e.errors |= flag
	return fmt.Errorf("loader: %v", ErrorFlag(flag).Names())
}

// abortIfErrored is the Go equivalent of every stage function's
// leading "if (ldr->r_error) FAIL_WITH(RMLD_ERR_REDETECTION)" check:
// once any error bit is set, every further call is refused outright.
func (e *Environment) abortIfErrored() error {
	if e.errors != 0 {
		return e.failWith(ErrRedetection)
	}
	return nil
}

func (e *Environment) abortIfStatusNot(want Status) error {
	if e.status != want {
		return e.failWith(ErrInvalidStatus)
	}
	return nil
}

// getSectionHeader fetches the section header at section_id, checking
// its type if wantType is nonzero (0 disables the check, mirroring the
// original's "0 to disable check" convention).
func (e *Environment) getSectionHeader(id uint16, wantType uint32) (shdr, error) {
	if id == shnUndef {
		return shdr{}, fmt.Errorf("loader: section index is SHN_UNDEF")
	}
	if id >= shnLoreserve {
		return shdr{}, fmt.Errorf("loader: section index %d is reserved", id)
	}
	raw, ok := e.shtable.Get(int(id))
	if !ok {
		return shdr{}, fmt.Errorf("loader: section index %d is out of range", id)
	}
	sh := shdr{b: raw}
	if wantType != 0 && sh.shType() != wantType {
		return shdr{}, fmt.Errorf("loader: section %d has type %d, want %d", id, sh.shType(), wantType)
	}
	return sh, nil
}

// sectionBytes returns the raw byte range described by the section
// header at id, after checking its type as getSectionHeader does.
func (e *Environment) sectionBytes(id uint16, wantType uint32) (shdr, []byte, error) {
	sh, err := e.getSectionHeader(id, wantType)
	if err != nil {
		return shdr{}, nil, err
	}
	start := sh.offset()
	end := start + sh.size()
	if end > uint64(len(e.data)) {
		return shdr{}, nil, fmt.Errorf("loader: section %d [%d,%d) overruns the file", id, start, end)
	}
	return sh, e.data[start:end], nil
}

