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
	"io"
	"log"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/bikeshare/csv"
	"github.com/pilosa/bikeshare/pilosa"
	"github.com/pilosa/bikeshare/sqlite"
	"github.com/spf13/cobra"
)

// Mains wrapped by the export subcommands. They are exported for testing
// purposes.
var (
	ExportCSVMain    *csv.ExportMain
	ExportSQLiteMain *sqlite.Main
	ExportPilosaMain *pilosa.Main
)

// NewExportCommand returns the export command and its csv, sqlite and pilosa
// subcommands.
func NewExportCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	exportCommand := &cobra.Command{
		Use:   "export",
		Short: "export - copy the ridership store to other formats",
	}

	ExportCSVMain = csv.NewExportMain()
	exportCommand.AddCommand(wrapMain(&cobra.Command{
		Use:   "csv",
		Short: "csv - write the store as numbered csv chunks",
		Long: `Writes every row of the store to gzipped csv files of at most
chunk-rows rows each, named <prefix>_1.csv.gz, <prefix>_2.csv.gz and so on.`,
	}, ExportCSVMain))

	ExportSQLiteMain = sqlite.NewMain()
	exportCommand.AddCommand(wrapMain(&cobra.Command{
		Use:   "sqlite",
		Short: "sqlite - copy parquet files into sqlite tables",
		Long: `Copies each contract:path pair into a sqlite table named after the
contract, replacing the table if it exists.`,
	}, ExportSQLiteMain))

	ExportPilosaMain = pilosa.NewMain()
	exportCommand.AddCommand(wrapMain(&cobra.Command{
		Use:   "pilosa",
		Short: "pilosa - index station ridership in Pilosa",
	}, ExportPilosaMain))

	return exportCommand
}

type runner interface {
	Run() error
}

func wrapMain(c *cobra.Command, m runner) *cobra.Command {
	c.RunE = func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		if err := m.Run(); err != nil {
			return err
		}
		log.Println("Done: ", time.Since(start))
		return nil
	}
	if err := commandeer.Flags(c.Flags(), m); err != nil {
		panic(err)
	}
	return c
}

func init() {
	subcommandFns["export"] = NewExportCommand
}
