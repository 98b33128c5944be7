// Package enrich tags the point datasets of the pipeline with the
// neighbourhood containing each point.
package enrich

import (
	"context"

	"github.com/pilosa/bikeshare"
	"github.com/pilosa/bikeshare/spatial"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Kind describes one point dataset: the contracts it is checked against and
// the columns holding its coordinates and key.
type Kind struct {
	Name      string
	Input     string
	Output    string
	LatColumn string
	LonColumn string
	KeyColumn string
}

// The five point datasets.
var (
	Stations = Kind{
		Name:      "stations",
		Input:     bikeshare.ContractStations,
		Output:    bikeshare.ContractStationsEnriched,
		LatColumn: bikeshare.Lat,
		LonColumn: bikeshare.Lon,
		KeyColumn: bikeshare.StationID,
	}
	Institutions = Kind{
		Name:      "institutions",
		Input:     bikeshare.ContractInstitutions,
		Output:    bikeshare.ContractInstitutionsEnriched,
		LatColumn: bikeshare.Lat,
		LonColumn: bikeshare.Lon,
		KeyColumn: bikeshare.InstitutionID,
	}
	TransitStops = Kind{
		Name:      "transit_stops",
		Input:     bikeshare.ContractTransitStops,
		Output:    bikeshare.ContractTransitStopsEnriched,
		LatColumn: bikeshare.StopLat,
		LonColumn: bikeshare.StopLon,
		KeyColumn: bikeshare.StopID,
	}
	PointsOfInterest = Kind{
		Name:      "points_of_interest",
		Input:     bikeshare.ContractPOIs,
		Output:    bikeshare.ContractPOIsEnriched,
		LatColumn: bikeshare.POILatitude,
		LonColumn: bikeshare.POILongitude,
		KeyColumn: bikeshare.ID,
	}
	CulturalHotspots = Kind{
		Name:      "cultural_hotspots",
		Input:     bikeshare.ContractCulturalHotspots,
		Output:    bikeshare.ContractCulturalHotspotsEnriched,
		LatColumn: bikeshare.POILatitude,
		LonColumn: bikeshare.POILongitude,
		KeyColumn: bikeshare.ID,
	}
)

// Kinds returns every point dataset kind.
func Kinds() []Kind {
	return []Kind{Stations, Institutions, TransitStops, PointsOfInterest, CulturalHotspots}
}

// Enricher joins point datasets against one neighbourhood polygon table. It
// is safe for concurrent use once constructed.
type Enricher struct {
	registry  *bikeshare.Registry
	polygons  *spatial.Polygons
	log       bikeshare.Logger
	stats     bikeshare.Statter
	precision uint
	crs       int
}

// Option configures an Enricher.
type Option func(e *Enricher)

// OptLogger sets the logger of the Enricher.
func OptLogger(l bikeshare.Logger) Option {
	return func(e *Enricher) {
		e.log = l
	}
}

// OptStatter sets the statter the Enricher reports dropped points to.
func OptStatter(s bikeshare.Statter) Option {
	return func(e *Enricher) {
		e.stats = s
	}
}

// OptPrecision sets the geohash precision of the polygon index.
func OptPrecision(p uint) Option {
	return func(e *Enricher) {
		e.precision = p
	}
}

// OptCRS sets the EPSG code of the point coordinates.
func OptCRS(crs int) Option {
	return func(e *Enricher) {
		e.crs = crs
	}
}

// NewEnricher validates the neighbourhood table and prepares it for joining.
func NewEnricher(reg *bikeshare.Registry, neighbourhoods *bikeshare.Table, opts ...Option) (*Enricher, error) {
	e := &Enricher{
		registry:  reg,
		log:       bikeshare.NopLogger{},
		stats:     bikeshare.NopStatter{},
		precision: spatial.DefaultPrecision,
		crs:       spatial.WGS84,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := spatial.CheckCRS(e.crs); err != nil {
		return nil, err
	}
	if err := reg.Validate(bikeshare.ContractNeighbourhoods, neighbourhoods); err != nil {
		return nil, errors.Wrap(err, "validating neighbourhoods")
	}
	var err error
	e.polygons, err = spatial.NewPolygons(neighbourhoods, e.precision)
	if err != nil {
		return nil, errors.Wrap(err, "preparing neighbourhood polygons")
	}
	return e, nil
}

// Enrich validates points against the input contract of kind, tags every
// point with the AREA_NAME and SHAPE_AREA of its neighbourhood and validates
// the result against the output contract. Points without exactly one
// containing neighbourhood are dropped and counted in the report.
func (e *Enricher) Enrich(kind Kind, points *bikeshare.Table) (*bikeshare.Table, spatial.JoinReport, error) {
	if err := e.registry.Validate(kind.Input, points); err != nil {
		return nil, spatial.JoinReport{}, errors.Wrapf(err, "validating %s", kind.Name)
	}
	out, rep, err := e.polygons.Join(points, spatial.JoinOptions{
		LatColumn:      kind.LatColumn,
		LonColumn:      kind.LonColumn,
		KeyColumn:      kind.KeyColumn,
		CRS:            e.crs,
		PolygonColumns: []string{bikeshare.AreaName, bikeshare.ShapeArea},
	})
	if err != nil {
		return nil, rep, errors.Wrapf(err, "joining %s to neighbourhoods", kind.Name)
	}
	tag := "dataset:" + kind.Name
	e.stats.Count("enrich.matched", int64(rep.Matched), 1, tag)
	e.stats.Count("enrich.dropped", int64(rep.Dropped()), 1, tag)
	e.log.Printf("%s: dropped %d of %d rows without a single containing neighbourhood (outside %d, boundary %d, ambiguous %d)",
		kind.Name, rep.Dropped(), rep.Input, rep.Outside, rep.Boundary, rep.Ambiguous)
	if rep.Dropped() > 0 {
		e.log.Debugf("%s: first dropped keys %v", kind.Name, rep.DroppedKeys)
	}
	out = out.Named(kind.Output)
	if err := e.registry.Validate(kind.Output, out); err != nil {
		return nil, rep, errors.Wrapf(err, "validating enriched %s", kind.Name)
	}
	return out, rep, nil
}

// Input is a point dataset waiting for enrichment.
type Input struct {
	Kind  Kind
	Table *bikeshare.Table
}

// Result is the outcome of enriching one Input.
type Result struct {
	Kind   Kind
	Table  *bikeshare.Table
	Report spatial.JoinReport
}

// EnrichAll enriches every input concurrently. Results are in input order.
// The first failure cancels the enrichments which have not started yet and
// is returned.
func (e *Enricher) EnrichAll(ctx context.Context, inputs ...Input) ([]Result, error) {
	results := make([]Result, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, rep, err := e.Enrich(in.Kind, in.Table)
			if err != nil {
				return err
			}
			results[i] = Result{Kind: in.Kind, Table: out, Report: rep}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Find returns the table of the result with the given kind, or nil.
func Find(results []Result, kind Kind) *bikeshare.Table {
	for _, r := range results {
		if r.Kind.Name == kind.Name {
			return r.Table
		}
	}
	return nil
}
