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
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// cmdRoot is the base command when no other command has been specified.
var cmdRoot = &cobra.Command{
	Use:   "chainmap",
	Short: "Exercise and inspect chainmap hash tables",
	Long: `
chainmap drives the chainmap hash table from the command line. It runs the
reference demonstration and shows how keys are distributed across buckets.
`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if globalOptions.Verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
		os.Exit(0)
	},
}

// GlobalOptions hold options shared by all commands.
type GlobalOptions struct {
	Verbose bool
}

var globalOptions GlobalOptions

func init() {
	f := cmdRoot.PersistentFlags()
	f.BoolVarP(&globalOptions.Verbose, "verbose", "v", false, "log table internals at debug level")
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
