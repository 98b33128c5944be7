// Package validate holds the cross-dataset consistency checks run after the
// merges of a pipeline run. A failed check is a *bikeshare.ConsistencyWarning
// to be reported; it never aborts the run.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/store"
	"github.com/pkg/errors"
)

// Check names.
const (
	CheckStationIDs       = "station_ids"
	CheckUniqueStationIDs = "unique_station_ids"
	CheckUserTypes        = "user_types"
	CheckDownloadStatus   = "download_status"
	CheckNeighbourhoods   = "neighbourhood_count"
)

// DefaultNeighbourhoodCount is the number of Toronto neighbourhoods.
const DefaultNeighbourhoodCount = 140

func warn(check, format string, v ...interface{}) *bikeshare.ConsistencyWarning {
	return &bikeshare.ConsistencyWarning{Check: check, Message: fmt.Sprintf(format, v...)}
}

// StationIDs checks that START_STATION_ID equals STATION_ID on every row of
// trips merged with station metadata, reporting the largest absolute
// difference otherwise. Rows with a null id are skipped.
func StationIDs(merged *bikeshare.Table) *bikeshare.ConsistencyWarning {
	s, m := merged.Index(bikeshare.StartStationID), merged.Index(bikeshare.StationID)
	if s < 0 || m < 0 {
		return warn(CheckStationIDs, "dataset '%s' lacks %s or %s", merged.Name(), bikeshare.StartStationID, bikeshare.StationID)
	}
	var maxDiff int64
	for i := 0; i < merged.Len(); i++ {
		a, okA := bikeshare.AsInt(merged.Row(i)[s])
		b, okB := bikeshare.AsInt(merged.Row(i)[m])
		if !okA || !okB {
			continue
		}
		d := a - b
		if d < 0 {
			d = -d
		}
		if d > maxDiff {
			maxDiff = d
		}
	}
	if maxDiff != 0 {
		return warn(CheckStationIDs, "%s and %s differ by up to %d", bikeshare.StartStationID, bikeshare.StationID, maxDiff)
	}
	return nil
}

// UniqueStationIDs checks that merged trips hold as many distinct
// START_STATION_IDs as distinct STATION_IDs.
func UniqueStationIDs(merged *bikeshare.Table) *bikeshare.ConsistencyWarning {
	starts, err := distinct(merged, bikeshare.StartStationID)
	if err != nil {
		return warn(CheckUniqueStationIDs, "%v", err)
	}
	ids, err := distinct(merged, bikeshare.StationID)
	if err != nil {
		return warn(CheckUniqueStationIDs, "%v", err)
	}
	if len(starts) != len(ids) {
		return warn(CheckUniqueStationIDs, "%d unique %s but %d unique %s", len(starts), bikeshare.StartStationID, len(ids), bikeshare.StationID)
	}
	return nil
}

func distinct(t *bikeshare.Table, col string) (map[string]struct{}, error) {
	j := t.Index(col)
	if j < 0 {
		return nil, errors.Errorf("dataset '%s' lacks %s", t.Name(), col)
	}
	ret := make(map[string]struct{})
	for i := 0; i < t.Len(); i++ {
		if v := t.Row(i)[j]; v != nil {
			ret[bikeshare.Key(v)] = struct{}{}
		}
	}
	return ret, nil
}

// ExpectedUserTypes are the user types every monthly file must contain.
var ExpectedUserTypes = []string{bikeshare.AnnualMember, bikeshare.CasualMember}

// UserTypes checks that each csv_file of an aggregate batch holds exactly the
// expected user types.
func UserTypes(batch *bikeshare.Table) *bikeshare.ConsistencyWarning {
	f, u := batch.Index(bikeshare.CSVFileColumn), batch.Index(bikeshare.UserType)
	if f < 0 || u < 0 {
		return warn(CheckUserTypes, "dataset '%s' lacks %s or %s", batch.Name(), bikeshare.CSVFileColumn, bikeshare.UserType)
	}
	types := make(map[string]map[string]struct{})
	var files []string
	for i := 0; i < batch.Len(); i++ {
		file := fmt.Sprint(batch.Row(i)[f])
		if types[file] == nil {
			types[file] = make(map[string]struct{})
			files = append(files, file)
		}
		types[file][fmt.Sprint(batch.Row(i)[u])] = struct{}{}
	}
	want := strings.Join(ExpectedUserTypes, ",")
	var bad []string
	for _, file := range files {
		got := make([]string, 0, len(types[file]))
		for t := range types[file] {
			got = append(got, t)
		}
		sort.Strings(got)
		if strings.Join(got, ",") != want {
			bad = append(bad, fmt.Sprintf("%s has %v", file, got))
		}
	}
	if len(bad) > 0 {
		return warn(CheckUserTypes, "expected user types %v: %s", ExpectedUserTypes, strings.Join(bad, "; "))
	}
	return nil
}

// DownloadStatus checks the download flags of a run. When the run produced
// a batch, every batch row must come from a downloaded file and every source
// in the batch must have been planned for refresh and downloaded. When it
// produced nothing, the store must exist and no source may have been
// outdated or downloaded.
func DownloadStatus(batch *bikeshare.Table, statuses []store.SourceStatus) *bikeshare.ConsistencyWarning {
	if batch != nil && batch.Len() > 0 {
		d, s := batch.Index(bikeshare.DownloadedColumn), batch.Index(bikeshare.SourceFileColumn)
		if d < 0 || s < 0 {
			return warn(CheckDownloadStatus, "dataset '%s' lacks %s or %s", batch.Name(), bikeshare.DownloadedColumn, bikeshare.SourceFileColumn)
		}
		byName := make(map[string]store.SourceStatus, len(statuses))
		for _, st := range statuses {
			byName[st.Source.Name] = st
		}
		for i := 0; i < batch.Len(); i++ {
			row := batch.Row(i)
			if dl, _ := bikeshare.AsBool(row[d]); !dl {
				return warn(CheckDownloadStatus, "row %d of '%s' is from a file which was not downloaded", i, batch.Name())
			}
			name, _ := bikeshare.AsString(row[s])
			st, ok := byName[name]
			if !ok || !st.Refresh || !st.Downloaded {
				return warn(CheckDownloadStatus, "source '%s' is in the batch but was not planned and downloaded", name)
			}
		}
		return nil
	}
	for _, st := range statuses {
		if !st.StoreExists || st.Outdated || st.Downloaded {
			return warn(CheckDownloadStatus, "nothing was aggregated but source '%s' has store=%v outdated=%v downloaded=%v",
				st.Source.Name, st.StoreExists, st.Outdated, st.Downloaded)
		}
	}
	return nil
}

// NeighbourhoodCount checks the number of neighbourhood rows.
func NeighbourhoodCount(t *bikeshare.Table, expected int) *bikeshare.ConsistencyWarning {
	if t.Len() != expected {
		return warn(CheckNeighbourhoods, "'%s' has %d neighbourhoods, expected %d", t.Name(), t.Len(), expected)
	}
	return nil
}

// Report logs and counts the non-nil warnings and returns them.
func Report(log bikeshare.Logger, stats bikeshare.Statter, warnings ...*bikeshare.ConsistencyWarning) []*bikeshare.ConsistencyWarning {
	var ret []*bikeshare.ConsistencyWarning
	for _, w := range warnings {
		if w == nil {
			continue
		}
		log.Printf("%v", w)
		stats.Count("validate.warnings", 1, 1, "check:"+w.Check)
		ret = append(ret, w)
	}
	return ret
}
