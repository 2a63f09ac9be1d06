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
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/Briztal/kernel-toolkit/pkg/loader"
)

// loadCmd implements subcommands.Command for "load": it reads a
// relocatable ELF64 object, runs it through every loader stage with a
// caller-supplied symbol, and reports the outcome.
type loadCmd struct {
	symbol string
	dump   bool
}

func (*loadCmd) Name() string     { return "load" }
func (*loadCmd) Synopsis() string { return "load a relocatable ELF64 object and apply its relocations" }
func (*loadCmd) Usage() string {
	return "load [-symbol=name=0xaddr] [-dump] <object-file>\n"
}

func (c *loadCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "external symbol definition as name=hex-address, e.g. helper=0x1000")
	f.BoolVar(&c.dump, "dump", false, "print the object's symbol table after loading")
}

// lockAndRead opens path under an exclusive, non-blocking advisory
// file lock, retrying briefly if another process is mid-write to it,
// then reads its full content.
func lockAndRead(ctx context.Context, path string) ([]byte, error) {
	fl := flock.New(path)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Second

	operation := func() error {
		locked, err := fl.TryLock()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("kerneltk: locking %s: %w", path, err))
		}
		if !locked {
			return fmt.Errorf("kerneltk: %s is locked by another process", path)
		}
		return nil
	}
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	defer fl.Unlock()

	return os.ReadFile(path)
}

func (c *loadCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	data, err := lockAndRead(ctx, f.Arg(0))
	if err != nil {
		logrus.WithError(err).Error("reading object file")
		return subcommands.ExitFailure
	}

	var defs []*loader.Symbol
	if c.symbol != "" {
		sym, err := parseSymbolFlag(c.symbol)
		if err != nil {
			logrus.WithError(err).Error("parsing -symbol")
			return subcommands.ExitUsageError
		}
		defs = append(defs, sym)
	}

	env, err := loader.New(data)
	if err != nil {
		logrus.WithError(err).Error("loader.New")
		return subcommands.ExitFailure
	}
	if err := env.AssignSections(); err != nil {
		logrus.WithError(err).WithField("errors", env.Errors().Names()).Error("AssignSections")
		return subcommands.ExitFailure
	}
	if err := env.AssignSymbols(defs, nil); err != nil {
		logrus.WithError(err).WithField("errors", env.Errors().Names()).Error("AssignSymbols")
		return subcommands.ExitFailure
	}
	if err := env.ApplyRelocations(); err != nil {
		logrus.WithError(err).WithField("errors", env.Errors().Names()).Error("ApplyRelocations")
		return subcommands.ExitFailure
	}

	logrus.WithField("status", env.Status()).Info("object loaded")

	if c.dump {
		syms, err := env.DumpSymbols()
		if err != nil {
			logrus.WithError(err).Error("DumpSymbols")
			return subcommands.ExitFailure
		}
		for _, s := range syms {
			fmt.Printf("%-20s section=%d value=%#x defined=%v\n", s.Name, s.Section, s.Value, s.Defined)
		}
	}

	return subcommands.ExitSuccess
}

func parseSymbolFlag(spec string) (*loader.Symbol, error) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '=' {
			name := spec[:i]
			var addr uint64
			if _, err := fmt.Sscanf(spec[i+1:], "0x%x", &addr); err != nil {
				if _, err := fmt.Sscanf(spec[i+1:], "%d", &addr); err != nil {
					return nil, fmt.Errorf("kerneltk: bad address in %q", spec)
				}
			}
			return &loader.Symbol{Name: name, Defined: true, Addr: addr}, nil
		}
	}
	return nil, fmt.Errorf("kerneltk: -symbol wants name=address, got %q", spec)
}
