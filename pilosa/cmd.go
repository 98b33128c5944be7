package pilosa

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/aggregate"
	"github.com/pilosa/bikeshare/boltdb"
	"github.com/pilosa/bikeshare/leveldb"
	"github.com/pilosa/bikeshare/store"
	"github.com/pkg/errors"
)

// Translator backends accepted by Main.
const (
	TranslatorLevelDB = "leveldb"
	TranslatorBolt    = "bolt"
	TranslatorMemory  = "memory"
)

// Main exports a station_hourly store into a Pilosa index.
type Main struct {
	StorePath      string   `help:"Parquet store of station_hourly rows."`
	Hosts          []string `help:"Pilosa hosts."`
	Index          string   `help:"Pilosa index to create or reuse."`
	BatchSize      uint     `help:"Number of bits per import batch."`
	Translator     string   `help:"Key translator backend: leveldb, bolt or memory."`
	TranslatorPath string   `help:"Directory (leveldb) or file (bolt) of the key translator."`
	Verbose        bool     `help:"Enable verbose logging."`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		StorePath:      "ridership.parquet",
		Hosts:          []string{"localhost:10101"},
		Index:          "bikeshare",
		BatchSize:      100000,
		Translator:     TranslatorLevelDB,
		TranslatorPath: "bikeshare-keys",
	}
}

// Run reads the store and exports every row.
func (m *Main) Run() error {
	logger := bikeshare.NewLogger(log.New(os.Stderr, "", log.LstdFlags), m.Verbose)
	t, err := store.Read(m.StorePath, bikeshare.ContractStationHourly)
	if err != nil {
		return errors.Wrap(err, "reading store")
	}
	tr, err := newTranslator(m.Translator, m.TranslatorPath)
	if err != nil {
		return err
	}
	defer func() {
		if c, ok := tr.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Printf("closing translator: %v", err)
			}
		}
	}()
	loc, err := time.LoadLocation(aggregate.TimeZone)
	if err != nil {
		return errors.Wrap(err, "loading time zone")
	}
	idx, err := SetupPilosa(m.Hosts, m.Index, m.BatchSize, logger)
	if err != nil {
		return errors.Wrap(err, "setting up pilosa")
	}
	n, err := NewExporter(idx, tr, OptExporterLogger(logger), OptExporterLocation(loc)).Export(t)
	if err != nil {
		idx.Close()
		return errors.Wrap(err, "exporting")
	}
	if err := idx.Close(); err != nil {
		return errors.Wrap(err, "flushing index")
	}
	logger.Printf("exported %d rows to index '%s'", n, m.Index)
	return nil
}

func newTranslator(kind, path string) (bikeshare.Translator, error) {
	fields := []string{columnField}
	for _, k := range keyed {
		fields = append(fields, k.field)
	}
	switch kind {
	case TranslatorLevelDB:
		tr, err := leveldb.NewTranslator(path, fields...)
		return tr, errors.Wrap(err, "opening leveldb translator")
	case TranslatorBolt:
		tr, err := boltdb.NewTranslator(path, fields...)
		return tr, errors.Wrap(err, "opening bolt translator")
	case TranslatorMemory:
		return bikeshare.NewMapTranslator(), nil
	default:
		return nil, errors.Errorf("unknown translator '%s'", kind)
	}
}
