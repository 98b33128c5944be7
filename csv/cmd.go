package csv

import (
	"os"

	"github.com/pilosa/bikeshare/store"
	"github.com/pkg/errors"
)

// ExportMain writes a parquet store as chunked csv.gz files.
type ExportMain struct {
	StorePath string `help:"Parquet store to export."`
	Dir       string `help:"Directory the chunks are written to."`
	Prefix    string `help:"File name prefix of the chunks."`
	ChunkRows int    `help:"Maximum rows per chunk."`

	chunks []string
}

// NewExportMain gets a new ExportMain with the default configuration.
func NewExportMain() *ExportMain {
	return &ExportMain{
		StorePath: "ridership.parquet",
		Dir:       "export",
		Prefix:    DefaultChunkPrefix,
		ChunkRows: 100000,
	}
}

// Run exports every column of the store.
func (m *ExportMain) Run() error {
	t, err := store.Read(m.StorePath, "store")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return errors.Wrap(err, "making export dir")
	}
	m.chunks, err = ExportChunks(m.Dir, m.Prefix, t, t.Columns(), m.ChunkRows)
	return err
}
