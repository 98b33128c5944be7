// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/bikeshare/termstat"
	"github.com/pilosa/bikeshare/usecase/ridership"
	"github.com/spf13/cobra"
)

// RunMain is wrapped by NewRunCommand and only exported for testing purposes.
var RunMain *ridership.Main

// NewRunCommand returns a new cobra command wrapping RunMain.
func NewRunCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	var progress bool
	RunMain = ridership.NewMain()
	runCommand := &cobra.Command{
		Use:   "run",
		Short: "run - aggregate neighbourhoods and refresh the ridership store",
		Long: `Enriches the point datasets with their neighbourhoods, computes the
neighbourhood aggregate, recomputes the ridership aggregates of every raw
trip file that is new, outdated or missing locally, and replaces those
files' rows in the store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if progress {
				ts := termstat.NewCollector(stderr, time.Second)
				defer ts.Close()
				RunMain.SetStatter(ts)
			}
			rep, err := RunMain.RunContext(context.Background())
			if err != nil {
				return err
			}
			RunMain.Log().Printf("Done: %v, %d rows replaced, %d added, %d warnings",
				time.Since(start), rep.Update.Replaced, rep.Update.Added, len(rep.Warnings))
			return nil
		},
	}
	flags := runCommand.Flags()
	err = commandeer.Flags(flags, RunMain)
	if err != nil {
		panic(err)
	}
	flags.BoolVar(&progress, "progress", false, "Print running counts to stderr.")
	return runCommand
}

// StatusMain is wrapped by NewStatusCommand and only exported for testing
// purposes.
var StatusMain *ridership.Main

// NewStatusCommand returns a new cobra command which prints the refresh
// plan of the next run.
func NewStatusCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	StatusMain = ridership.NewMain()
	statusCommand := &cobra.Command{
		Use:   "status",
		Short: "status - show which raw trip files the next run recomputes",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := StatusMain.Status()
			if err != nil {
				return err
			}
			for _, st := range statuses {
				stored := "-"
				if st.Stored {
					stored = st.StoredLastModified.Format(time.RFC3339)
				}
				fmt.Fprintf(stdout, "%-40s %-20s %-20s %-6v %s\n", st.Source.Name,
					st.Source.LastModified.Format(time.RFC3339), stored, st.Refresh, st.Reason())
			}
			return nil
		},
	}
	flags := statusCommand.Flags()
	err = commandeer.Flags(flags, StatusMain)
	if err != nil {
		panic(err)
	}
	return statusCommand
}

func init() {
	subcommandFns["run"] = NewRunCommand
	subcommandFns["status"] = NewStatusCommand
}
