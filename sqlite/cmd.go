package sqlite

import (
	"context"
	"strings"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/store"
	"github.com/pkg/errors"
)

// Main copies parquet outputs of the pipeline into a SQLite database.
type Main struct {
	Path   string   `help:"SQLite database to write to."`
	Tables []string `help:"Parquet files to copy, each as contract:path. The SQLite table is named after the contract."`

	reg *bikeshare.Registry
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Path:   "bikeshare.db",
		Tables: []string{bikeshare.ContractStationHourly + ":ridership.parquet"},
	}
}

// Run copies every table.
func (m *Main) Run() error {
	if m.reg == nil {
		reg, err := bikeshare.NewDefaultRegistry(bikeshare.RegistryOptions{})
		if err != nil {
			return err
		}
		m.reg = reg
	}
	db, err := Open(m.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	for _, pair := range m.Tables {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return errors.Errorf("table '%s' is not contract:path", pair)
		}
		c, err := m.reg.Get(parts[0])
		if err != nil {
			return err
		}
		t, err := store.Read(parts[1], c.Name)
		if err != nil {
			return err
		}
		if err := WriteTable(context.Background(), db, t, wktContract(c)); err != nil {
			return errors.Wrapf(err, "copying %s", parts[1])
		}
	}
	return nil
}

// wktContract returns c with geometry columns typed as strings, the way
// they come back from parquet.
func wktContract(c *bikeshare.Contract) *bikeshare.Contract {
	cols := make([]bikeshare.Column, len(c.Columns))
	copy(cols, c.Columns)
	for i := range cols {
		if cols[i].Type == bikeshare.GeometryType {
			cols[i].Type = bikeshare.String
		}
	}
	return &bikeshare.Contract{Name: c.Name, Columns: cols, Keys: c.Keys}
}
