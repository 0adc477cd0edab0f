// Copyright 2024 The Cockroach Authors
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
	"io"

	"github.com/cockroachdb/chainmap"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cmdDemo = &cobra.Command{
	Use:   "demo",
	Short: "Run the reference demonstration",
	Long: `
The "demo" command creates a small table, stores a handful of integers in it,
overwrites one of them, prints and dumps the table, clears it and tears it
down. The final dump is written to stderr.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd.OutOrStdout(), cmd.ErrOrStderr(), demoOptions)
	},
}

// TableOptions bundles the parameters used to create a table.
type TableOptions struct {
	SizeHint   uint32
	LoadFactor float64
	Step       uint32
	XXHash     bool
}

// AddFlags registers the table options with f.
func (opts *TableOptions) AddFlags(f *pflag.FlagSet) {
	f.Uint32Var(&opts.SizeHint, "size", 2, "initial capacity hint")
	f.Float64Var(&opts.LoadFactor, "load-factor", 0.1, "load above which the table grows")
	f.Uint32Var(&opts.Step, "step", 13, "hash step multiplier")
	f.BoolVar(&opts.XXHash, "xxhash", false, "hash keys with xxHash instead of the step hash")
}

// newTable creates a table configured by opts that logs through the standard
// logrus logger.
func newTable[T any](opts TableOptions) *chainmap.Map[T] {
	if opts.XXHash {
		return chainmap.New[T](opts.SizeHint, opts.LoadFactor, opts.Step,
			chainmap.WithHash[T](chainmap.XXHash), chainmap.WithLogger[T](log.StandardLogger()))
	}
	return chainmap.New[T](opts.SizeHint, opts.LoadFactor, opts.Step,
		chainmap.WithLogger[T](log.StandardLogger()))
}

var demoOptions TableOptions

func init() {
	cmdRoot.AddCommand(cmdDemo)
	demoOptions.AddFlags(cmdDemo.Flags())
}

func formatDump(w io.Writer, _ string, v *int) {
	fmt.Fprintf(w, "int: %d", *v)
}

func formatPrint(w io.Writer, key string, v *int) {
	fmt.Fprintf(w, "%s: %d\n", key, *v)
}

func runDemo(stdout, stderr io.Writer, opts TableOptions) error {
	a, b, c, d, e := 1, 2, 3, 4, 5

	m := newTable[int](opts)

	if err := m.Dump(stdout, formatDump); err != nil {
		return err
	}

	for _, kv := range []struct {
		key   string
		value *int
	}{{"a", &a}, {"b", &b}} {
		if err := m.Set(kv.key, kv.value); err != nil {
			return errors.Wrapf(err, "set %q", kv.key)
		}
	}

	if err := m.Dump(stdout, formatDump); err != nil {
		return err
	}

	for _, kv := range []struct {
		key   string
		value *int
	}{{"c", &c}, {"k", &d}, {"k", &d}, {"k", &e}} {
		if err := m.Set(kv.key, kv.value); err != nil {
			return errors.Wrapf(err, "set %q", kv.key)
		}
	}

	fmt.Fprintln(stdout, "Items:")
	if err := m.Print(stdout, formatPrint); err != nil {
		return err
	}
	fmt.Fprintln(stdout)

	fmt.Fprintf(stdout, "is key \"k\" set? : %t\n", m.IsSet("k"))

	if err := m.Dump(stdout, formatDump); err != nil {
		return err
	}

	for i, key := range []string{"a", "b", "c", "k"} {
		v, _ := m.Get(key)
		fmt.Fprintf(stdout, "item %d: %d (address: %p)\n", i+1, *v, v)
	}
	v, ok := m.Get("")
	fmt.Fprintf(stdout, "item 5: found=%t (address: %p)\n", ok, v)

	var released int
	m.Clear(func(*int) { released++ })
	fmt.Fprintf(stdout, "released %d values\n", released)

	fmt.Fprintf(stdout, "is key \"k\" set? : %t\n", m.IsSet("k"))

	if err := m.Dump(stderr, formatDump); err != nil {
		return err
	}

	m.Close(nil)
	return nil
}
