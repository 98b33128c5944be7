package aggregate

import (
	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// StationNeighbourhoods merges the neighbourhood aggregate of variant v onto
// the enriched stations. The station's own SHAPE_AREA and the neighbourhood
// geometry are left out, NEIGH_SHAPE_AREA carries the area.
func (a *Aggregator) StationNeighbourhoods(stations, neighbourhoods *bikeshare.Table, v Variant) (*bikeshare.Table, error) {
	stage := "merging stations and neighbourhoods (" + v.Name + ")"
	if err := a.reg.Validate(bikeshare.ContractStationsEnriched, stations); err != nil {
		return nil, errors.Wrapf(err, "%s: validating input", stage)
	}
	if err := a.reg.Validate(v.Contract, neighbourhoods); err != nil {
		return nil, errors.Wrapf(err, "%s: validating input", stage)
	}
	merged, missing, err := bikeshare.Join(
		stations.Drop(bikeshare.ShapeArea),
		neighbourhoods.Drop(bikeshare.GeometryColumn),
		bikeshare.AreaName, bikeshare.AreaName, bikeshare.LeftJoin)
	if err != nil {
		return nil, errors.Wrap(err, stage)
	}
	if missing > 0 {
		return nil, errors.Errorf("%s: %d stations are in no aggregated neighbourhood", stage, missing)
	}
	return a.conform(stage, v.StatsContract, merged)
}
