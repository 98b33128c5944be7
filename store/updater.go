package store

import (
	"os"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// Updater merges freshly computed aggregate batches into a persisted store
// file. Rows are partitioned by their source_file value: every partition
// present in a batch replaces the persisted partition wholesale, the others
// are kept as they are.
type Updater struct {
	contract *bikeshare.Contract
	log      bikeshare.Logger
	stats    bikeshare.Statter
}

// UpdaterOption configures an Updater.
type UpdaterOption func(u *Updater)

// OptUpdaterLogger sets the logger of the Updater.
func OptUpdaterLogger(l bikeshare.Logger) UpdaterOption {
	return func(u *Updater) {
		u.log = l
	}
}

// OptUpdaterStatter sets the statter of the Updater.
func OptUpdaterStatter(s bikeshare.Statter) UpdaterOption {
	return func(u *Updater) {
		u.stats = s
	}
}

// NewUpdater gets an Updater for stores shaped like contract c, which must
// have a source_file column.
func NewUpdater(c *bikeshare.Contract, opts ...UpdaterOption) (*Updater, error) {
	if _, ok := c.Column(bikeshare.SourceFileColumn); !ok {
		return nil, errors.Errorf("contract '%s' has no %s column", c.Name, bikeshare.SourceFileColumn)
	}
	u := &Updater{
		contract: c,
		log:      bikeshare.NopLogger{},
		stats:    bikeshare.NopStatter{},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// UpdateReport describes one update.
type UpdateReport struct {
	Existing int
	Replaced int
	Kept     int
	Added    int
	Sources  []string
}

// Update reads the store at existingPath (a missing file is an empty
// store), drops the rows of every source_file present in batch, appends
// batch and writes the result to outPath. The write goes through a temporary
// file renamed into place, so a failed update leaves both paths as they were.
// Applying the same batch twice gives the same store as applying it once.
func (u *Updater) Update(existingPath string, batch *bikeshare.Table, outPath string) (UpdateReport, error) {
	var rep UpdateReport
	if err := u.contract.Validate(batch); err != nil {
		return rep, errors.Wrap(err, "validating batch")
	}
	batch, err := batch.Select(u.contract.Names()...)
	if err != nil {
		return rep, err
	}
	existing, err := u.read(existingPath)
	if err != nil {
		return rep, err
	}
	rep.Existing = existing.Len()

	src := batch.Index(bikeshare.SourceFileColumn)
	replace := make(map[interface{}]struct{})
	for i := 0; i < batch.Len(); i++ {
		v := batch.Row(i)[src]
		if _, ok := replace[v]; !ok {
			replace[v] = struct{}{}
			s, _ := bikeshare.AsString(v)
			rep.Sources = append(rep.Sources, s)
		}
	}
	kept := existing.Filter(func(i int, row []interface{}) bool {
		_, stale := replace[row[src]]
		return !stale
	})
	rep.Kept = kept.Len()
	rep.Replaced = rep.Existing - rep.Kept
	rep.Added = batch.Len()

	merged, err := bikeshare.Concat(u.contract.Name, kept, batch)
	if err != nil {
		return rep, errors.Wrap(err, "merging batch")
	}
	if err := u.contract.Validate(merged); err != nil {
		return rep, errors.Wrap(err, "validating updated store")
	}
	if err := WriteFile(outPath, merged, u.contract); err != nil {
		return rep, err
	}
	u.stats.Count("store.rows_replaced", int64(rep.Replaced), 1, "store:"+u.contract.Name)
	u.stats.Count("store.rows_added", int64(rep.Added), 1, "store:"+u.contract.Name)
	u.log.Printf("store %s: replaced %d rows of %v with %d rows, kept %d", outPath, rep.Replaced, rep.Sources, rep.Added, rep.Kept)
	return rep, nil
}

// read returns the persisted store in contract column order.
func (u *Updater) read(path string) (*bikeshare.Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		u.log.Printf("store %s does not exist yet", path)
		return bikeshare.NewTable(u.contract.Name, u.contract.Names()...), nil
	}
	t, err := Read(path, u.contract.Name)
	if err != nil {
		return nil, errors.Wrap(err, "reading store")
	}
	t, err = t.Select(u.contract.Names()...)
	if err != nil {
		return nil, errors.Wrapf(err, "store '%s' does not match contract '%s'", path, u.contract.Name)
	}
	return t, nil
}
