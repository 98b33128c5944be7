package cmd

import (
	"io"
	"strconv"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type columnDoc struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable,omitempty"`
	Unique   bool   `yaml:"unique,omitempty"`
	Allowed  string `yaml:"allowed,omitempty"`
}

type contractDoc struct {
	Name    string      `yaml:"name"`
	Columns []columnDoc `yaml:"columns"`
	Keys    [][]string  `yaml:"keys,omitempty"`
}

// NewContractsCommand returns a command which prints the data contracts as
// YAML.
func NewContractsCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var years []string
	contractsCommand := &cobra.Command{
		Use:   "contracts",
		Short: "contracts - print the columns and checks of every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := contractRegistry(years)
			if err != nil {
				return err
			}
			return writeContracts(stdout, reg)
		},
	}
	contractsCommand.Flags().StringSliceVar(&years, "valid-years", nil, "Years trip start times must fall in.")
	return contractsCommand
}

func contractRegistry(years []string) (*bikeshare.Registry, error) {
	opts := bikeshare.RegistryOptions{}
	for _, y := range years {
		n, err := strconv.Atoi(y)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing year '%s'", y)
		}
		opts.ValidYears = append(opts.ValidYears, n)
	}
	return bikeshare.NewDefaultRegistry(opts)
}

func writeContracts(w io.Writer, reg *bikeshare.Registry) error {
	docs := []contractDoc{}
	for _, c := range reg.Contracts() {
		doc := contractDoc{Name: c.Name, Keys: c.Keys}
		for _, col := range c.Columns {
			cd := columnDoc{
				Name:     col.Name,
				Type:     col.Type.String(),
				Nullable: col.Nullable,
				Unique:   col.Unique,
			}
			if col.Allowed != nil {
				cd.Allowed = col.Allowed.Desc
			}
			doc.Columns = append(doc.Columns, cd)
		}
		docs = append(docs, doc)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return errors.Wrap(err, "encoding contracts")
	}
	return enc.Close()
}

func init() {
	subcommandFns["contracts"] = NewContractsCommand
}
