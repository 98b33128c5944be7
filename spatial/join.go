package spatial

import (
	"math"
	"strconv"
	"strings"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// DefaultPolygonColumns are appended to joined points unless JoinOptions
// says otherwise.
var DefaultPolygonColumns = []string{bikeshare.AreaName, bikeshare.ShapeArea, bikeshare.GeometryColumn}

// JoinOptions describes the point dataset of a spatial join.
type JoinOptions struct {
	LatColumn string
	LonColumn string
	// KeyColumn identifies points in reports of dropped rows.
	KeyColumn string
	// CRS is the EPSG code of the coordinates, WGS84 when zero.
	CRS int
	// PolygonColumns are copied from the containing polygon.
	PolygonColumns []string
	// MaxSamples bounds the dropped keys kept in the report.
	MaxSamples int
}

// JoinReport counts what happened to each point.
type JoinReport struct {
	Dataset   string
	Input     int
	Matched   int
	Outside   int
	Boundary  int
	Ambiguous int
	// DroppedKeys holds the keys of the first dropped points.
	DroppedKeys []interface{}
}

// Dropped is the number of points without exactly one containing polygon.
func (r JoinReport) Dropped() int {
	return r.Outside + r.Boundary + r.Ambiguous
}

// Polygons is a polygon table prepared for joining. It is read only after
// construction and may be shared by concurrent joins.
type Polygons struct {
	table *bikeshare.Table
	geoms []MultiPolygon
	index *Index
}

// NewPolygons extracts the GEOMETRY column of t and indexes it.
func NewPolygons(t *bikeshare.Table, precision uint) (*Polygons, error) {
	j := t.Index(bikeshare.GeometryColumn)
	if j < 0 {
		return nil, errors.Errorf("polygon dataset '%s' has no %s column", t.Name(), bikeshare.GeometryColumn)
	}
	geoms := make([]MultiPolygon, t.Len())
	for i := 0; i < t.Len(); i++ {
		switch g := t.Row(i)[j].(type) {
		case MultiPolygon:
			geoms[i] = g
		case Polygon:
			geoms[i] = MultiPolygon{g}
		default:
			return nil, &bikeshare.InvalidGeometry{Dataset: t.Name(), Column: bikeshare.GeometryColumn, Row: i, Value: g, Reason: "not a polygon"}
		}
	}
	ix, err := NewIndex(geoms, precision)
	if err != nil {
		return nil, errors.Wrapf(err, "indexing '%s'", t.Name())
	}
	return &Polygons{table: t, geoms: geoms, index: ix}, nil
}

// Len returns the number of polygons.
func (ps *Polygons) Len() int { return len(ps.geoms) }

// Locate returns the index of the single polygon strictly containing p, or -1
// and the reason it has none.
func (ps *Polygons) Locate(p Point) (int, Location, bool) {
	match := -1
	for _, i := range ps.index.Candidates(p) {
		switch ps.geoms[i].Locate(p) {
		case Boundary:
			return -1, Boundary, false
		case Inside:
			if match >= 0 {
				return -1, Inside, true
			}
			match = i
		}
	}
	if match < 0 {
		return -1, Outside, false
	}
	return match, Inside, false
}

// Join appends the attributes of the containing polygon to each point of
// points. Points outside every polygon, on a polygon boundary, or inside more
// than one polygon are dropped and counted. Row order is preserved.
func Join(polygons, points *bikeshare.Table, opts JoinOptions) (*bikeshare.Table, JoinReport, error) {
	ps, err := NewPolygons(polygons, 0)
	if err != nil {
		return nil, JoinReport{}, err
	}
	return ps.Join(points, opts)
}

// Join is like the package level Join, reusing the prepared polygons.
func (ps *Polygons) Join(points *bikeshare.Table, opts JoinOptions) (*bikeshare.Table, JoinReport, error) {
	rep := JoinReport{Dataset: points.Name(), Input: points.Len()}
	if err := CheckCRS(opts.CRS); err != nil {
		return nil, rep, err
	}
	polyCols := opts.PolygonColumns
	if polyCols == nil {
		polyCols = DefaultPolygonColumns
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 5
	}
	latIdx, lonIdx, keyIdx := points.Index(opts.LatColumn), points.Index(opts.LonColumn), points.Index(opts.KeyColumn)
	if latIdx < 0 || lonIdx < 0 {
		return nil, rep, errors.Errorf("dataset '%s' lacks coordinate columns %s/%s", points.Name(), opts.LatColumn, opts.LonColumn)
	}
	if keyIdx < 0 {
		return nil, rep, errors.Errorf("dataset '%s' lacks key column '%s'", points.Name(), opts.KeyColumn)
	}
	polyIdx := make([]int, len(polyCols))
	for k, c := range polyCols {
		if polyIdx[k] = ps.table.Index(c); polyIdx[k] < 0 {
			return nil, rep, errors.Errorf("polygon dataset '%s' lacks column '%s'", ps.table.Name(), c)
		}
		if points.Has(c) {
			return nil, rep, errors.Errorf("column '%s' exists in both '%s' and '%s'", c, points.Name(), ps.table.Name())
		}
	}

	out := bikeshare.NewTable(points.Name(), append(points.Columns(), polyCols...)...)
	for i := 0; i < points.Len(); i++ {
		row := points.Row(i)
		p, err := ps.point(points.Name(), opts, i, row[latIdx], row[lonIdx])
		if err != nil {
			return nil, rep, err
		}
		match, loc, ambiguous := ps.Locate(p)
		if match < 0 {
			switch {
			case ambiguous:
				rep.Ambiguous++
			case loc == Boundary:
				rep.Boundary++
			default:
				rep.Outside++
			}
			if len(rep.DroppedKeys) < opts.MaxSamples {
				rep.DroppedKeys = append(rep.DroppedKeys, row[keyIdx])
			}
			continue
		}
		vals := make([]interface{}, 0, len(row)+len(polyIdx))
		vals = append(vals, row...)
		prow := ps.table.Row(match)
		for _, j := range polyIdx {
			vals = append(vals, prow[j])
		}
		if err := out.Append(vals...); err != nil {
			return nil, rep, err
		}
		rep.Matched++
	}
	return out, rep, nil
}

func (ps *Polygons) point(dataset string, opts JoinOptions, row int, latv, lonv interface{}) (Point, error) {
	y, err := coordinate(latv)
	if err != nil {
		return Point{}, &bikeshare.InvalidGeometry{Dataset: dataset, Column: opts.LatColumn, Row: row, Value: latv, Reason: err.Error()}
	}
	x, err := coordinate(lonv)
	if err != nil {
		return Point{}, &bikeshare.InvalidGeometry{Dataset: dataset, Column: opts.LonColumn, Row: row, Value: lonv, Reason: err.Error()}
	}
	p, err := toWGS84(opts.CRS, x, y)
	if err != nil {
		return Point{}, err
	}
	if p.Lat < -90 || p.Lat > 90 {
		return Point{}, &bikeshare.InvalidGeometry{Dataset: dataset, Column: opts.LatColumn, Row: row, Value: latv, Reason: "latitude out of range"}
	}
	if p.Lon < -180 || p.Lon > 180 {
		return Point{}, &bikeshare.InvalidGeometry{Dataset: dataset, Column: opts.LonColumn, Row: row, Value: lonv, Reason: "longitude out of range"}
	}
	return p, nil
}

func coordinate(v interface{}) (float64, error) {
	var f float64
	switch vt := v.(type) {
	case nil:
		return 0, errors.New("missing coordinate")
	case string:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(vt), 64)
		if err != nil {
			return 0, errors.New("not a number")
		}
	default:
		var ok bool
		if f, ok = bikeshare.AsFloat(v); !ok {
			return 0, errors.Errorf("unexpected type %T", v)
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a finite number")
	}
	return f, nil
}
