package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// SourceStatus is the refresh decision for one raw source file.
type SourceStatus struct {
	Source bikeshare.SourceFile
	// StoreExists is false when there is no persisted store at all.
	StoreExists bool
	// Stored is true when the store holds rows of this source.
	Stored             bool
	StoredLastModified time.Time
	RawExists          bool
	// Outdated is true when the source reports a newer modification time
	// than the one recorded in the store.
	Outdated bool
	Refresh  bool
	// Downloaded is set by the caller once the raw file was fetched.
	Downloaded bool
}

// Reason explains the refresh decision.
func (s SourceStatus) Reason() string {
	switch {
	case !s.StoreExists:
		return "no store"
	case !s.Stored:
		return "not in store"
	case s.Outdated:
		return "outdated"
	case !s.RawExists:
		return "raw file missing"
	}
	return "up to date"
}

// Plan decides which sources need recomputing. A source is refreshed when
// there is no store, the store has no rows for it, the store's
// last_modified_timestamp for it is older than the source's, or its raw file
// is missing from rawDir.
func Plan(storePath string, sources []bikeshare.SourceFile, rawDir string) ([]SourceStatus, error) {
	stored := make(map[string]time.Time)
	storeExists := true
	if _, err := os.Stat(storePath); os.IsNotExist(err) {
		storeExists = false
	} else {
		t, err := Read(storePath, "store")
		if err != nil {
			return nil, errors.Wrap(err, "reading store")
		}
		src, mod := t.Index(bikeshare.SourceFileColumn), t.Index(bikeshare.LastModifiedColumn)
		if src < 0 || mod < 0 {
			return nil, errors.Errorf("store '%s' lacks %s or %s", storePath, bikeshare.SourceFileColumn, bikeshare.LastModifiedColumn)
		}
		for i := 0; i < t.Len(); i++ {
			name, _ := bikeshare.AsString(t.Row(i)[src])
			ts, _ := bikeshare.AsTime(t.Row(i)[mod])
			if cur, ok := stored[name]; !ok || ts.After(cur) {
				stored[name] = ts
			}
		}
	}

	ret := make([]SourceStatus, len(sources))
	for i, s := range sources {
		st := SourceStatus{Source: s, StoreExists: storeExists}
		st.StoredLastModified, st.Stored = stored[s.Name]
		st.Outdated = st.Stored && st.StoredLastModified.Before(s.LastModified)
		_, err := os.Stat(filepath.Join(rawDir, s.Base()))
		st.RawExists = err == nil
		st.Refresh = !st.StoreExists || !st.Stored || st.Outdated || !st.RawExists
		ret[i] = st
	}
	return ret, nil
}
