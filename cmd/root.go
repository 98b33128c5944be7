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
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Version of this software - filled in by ldflags in Makefile.
	Version string
	// BuildTime of this software - filled in by ldflags in Makefile.
	BuildTime string
)

func setupVersionBuild() {
	if Version == "" {
		Version = "v0.0.0"
	}
	if BuildTime == "" {
		BuildTime = "not recorded"
	}
}

var subcommandFns = map[string]func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command{}

// NewRootCommand reads the map of subcommandFns and creates a top level cobra
// command with each of them as subcommands.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	setupVersionBuild()
	rc := &cobra.Command{
		Use:   "bikeshare",
		Short: "bikeshare - Toronto bike share ridership aggregates",
		Long: `Enriches the bike share stations and the points of interest around
them with their neighbourhoods, aggregates monthly trip files into station
and neighbourhood ridership, and keeps a parquet store of the results up to
date with the files published upstream.

Every flag can also be set in the toml file given to --config or in an
environment variable named BIKESHARE_<FLAG>, with dashes as underscores.

Version: ` + Version + `
Build Time: ` + BuildTime + "\n",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			return setAllConfig(v, cmd.Flags(), "BIKESHARE")
		},
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")
	for _, subcomFn := range subcommandFns {
		rc.AddCommand(subcomFn(stdin, stdout, stderr))
	}
	rc.SetOutput(stderr)
	return rc
}

// setAllConfig applies configuration to every flag in flags, highest
// priority first: the command line, environment variables named
// envPrefix_<FLAG> (upper case, dashes as underscores), then the file named
// by --config. The file format follows its extension and defaults to toml.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	if err := v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		v.SetConfigType(configType(c))
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading configuration file '%s'", c)
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		// flags set on the command line win; Set would also append to
		// slice flags instead of replacing them
		if flagErr != nil || f.Changed {
			return
		}
		value := v.GetString(f.Name)
		if f.Value.Type() == "stringSlice" {
			// a list in the config file comes back from GetString as ""
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		}
		if err := f.Value.Set(value); err != nil {
			flagErr = errors.Wrapf(err, "setting '%s'", f.Name)
		}
	})
	return flagErr
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	}
	return "toml"
}
