package store

import (
	"log"
	"os"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// Main merges a batch file into a store file from the command line.
type Main struct {
	StorePath string `help:"Parquet store to update. A missing file is an empty store."`
	BatchPath string `help:"Parquet file of freshly computed aggregate rows."`
	OutPath   string `help:"Where the updated store is written. Empty replaces store-path."`
	Contract  string `help:"Contract of the store rows, station_hourly or area_hourly."`
	Verbose   bool   `help:"Enable verbose logging."`

	reg *bikeshare.Registry
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		StorePath: "ridership.parquet",
		Contract:  bikeshare.ContractStationHourly,
	}
}

// Run updates the store.
func (m *Main) Run() error {
	_, err := m.Update()
	return err
}

// Update replaces the store rows of every source file in the batch with the
// batch rows.
func (m *Main) Update() (UpdateReport, error) {
	if m.BatchPath == "" {
		return UpdateReport{}, errors.New("batch-path is required")
	}
	if m.reg == nil {
		reg, err := bikeshare.NewDefaultRegistry(bikeshare.RegistryOptions{})
		if err != nil {
			return UpdateReport{}, err
		}
		m.reg = reg
	}
	c, err := m.reg.Get(m.Contract)
	if err != nil {
		return UpdateReport{}, err
	}
	batch, err := Read(m.BatchPath, c.Name)
	if err != nil {
		return UpdateReport{}, errors.Wrap(err, "reading batch")
	}
	u, err := NewUpdater(c, OptUpdaterLogger(bikeshare.NewLogger(log.New(os.Stderr, "", log.LstdFlags), m.Verbose)))
	if err != nil {
		return UpdateReport{}, err
	}
	out := m.OutPath
	if out == "" {
		out = m.StorePath
	}
	return u.Update(m.StorePath, batch, out)
}
