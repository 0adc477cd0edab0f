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
	"text/tabwriter"

	"github.com/cockroachdb/chainmap"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cmdHash = &cobra.Command{
	Use:   "hash [flags] key...",
	Short: "Show the bucket each key maps to",
	Long: `
The "hash" command prints the raw hash of every key and the bucket it lands in
for the given capacity.
`,
	DisableAutoGenTag: true,
	Args:              cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHash(cmd, hashOptions, args)
	},
}

// HashOptions bundles all options for the hash command.
type HashOptions struct {
	Capacity uint32
	Step     uint32
	XXHash   bool
}

var hashOptions HashOptions

func init() {
	cmdRoot.AddCommand(cmdHash)

	f := cmdHash.Flags()
	f.Uint32Var(&hashOptions.Capacity, "capacity", 13, "number of buckets")
	f.Uint32Var(&hashOptions.Step, "step", 13, "hash step multiplier")
	f.BoolVar(&hashOptions.XXHash, "xxhash", false, "hash keys with xxHash instead of the step hash")
}

func runHash(cmd *cobra.Command, opts HashOptions, keys []string) error {
	if opts.Capacity == 0 {
		return errors.New("capacity must be positive")
	}
	hash := chainmap.StepHash
	if opts.XXHash {
		hash = chainmap.XXHash
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tHASH\tBUCKET")
	for _, key := range keys {
		if key == "" {
			fmt.Fprintln(tw, "\"\"\t-\t0")
			continue
		}
		h := hash(key, opts.Step)
		fmt.Fprintf(tw, "%q\t%d\t%d\n", key, h, h%opts.Capacity)
	}
	return errors.Wrap(tw.Flush(), "flush")
}
