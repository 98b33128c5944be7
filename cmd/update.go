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
	"fmt"
	"io"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/bikeshare/store"
	"github.com/spf13/cobra"
)

// UpdateMain is wrapped by NewUpdateCommand and only exported for testing
// purposes.
var UpdateMain *store.Main

// NewUpdateCommand returns a new cobra command wrapping UpdateMain.
func NewUpdateCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	UpdateMain = store.NewMain()
	updateCommand := &cobra.Command{
		Use:   "update",
		Short: "update - merge a batch of aggregate rows into a store",
		Long: `Replaces the store rows of every source file present in the batch
with the batch rows, keeps the rows of all other source files, and writes the
result to out-path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := UpdateMain.Update()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "existing %d, replaced %d, kept %d, added %d\n",
				rep.Existing, rep.Replaced, rep.Kept, rep.Added)
			return nil
		},
	}
	err := commandeer.Flags(updateCommand.Flags(), UpdateMain)
	if err != nil {
		panic(err)
	}
	return updateCommand
}

func init() {
	subcommandFns["update"] = NewUpdateCommand
}
