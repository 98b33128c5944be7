package spatial

import (
	"math"

	"github.com/pilosa/bikeshare/geohash"
	"github.com/pkg/errors"
)

// DefaultPrecision is the geohash length used to bucket polygons. Cells are
// roughly 5km on a side at this length, a fraction of a city neighbourhood.
const DefaultPrecision = 5

// maxCellsPerPolygon bounds the size of the index. When a polygon would need
// more cells the whole index drops to a coarser precision.
const maxCellsPerPolygon = 4096

// Index maps geohash cells to the polygons whose bounding box touches them.
type Index struct {
	precision uint
	cells     map[string][]int
	bounds    []Bounds
}

// NewIndex buckets the polygons. Polygons without vertices are never
// candidates.
func NewIndex(polys []MultiPolygon, precision uint) (*Index, error) {
	if precision == 0 {
		precision = DefaultPrecision
	}
	if precision > geohash.MaxPrecision {
		precision = geohash.MaxPrecision
	}
	bounds := make([]Bounds, len(polys))
	for i, p := range polys {
		bounds[i] = p.Bounds()
	}
	var lastErr error
	for p := precision; p >= 1; p-- {
		ix := &Index{precision: p, cells: make(map[string][]int), bounds: bounds}
		if lastErr = ix.fill(); lastErr == nil {
			return ix, nil
		}
	}
	return nil, errors.Wrap(lastErr, "building polygon index")
}

func (ix *Index) fill() error {
	for i, b := range ix.bounds {
		if math.IsInf(b.MinLat, 1) {
			continue
		}
		cells, err := geohash.Cover(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon, ix.precision, maxCellsPerPolygon)
		if err != nil {
			return errors.Wrapf(err, "polygon %d", i)
		}
		for _, c := range cells {
			ix.cells[c] = append(ix.cells[c], i)
		}
	}
	return nil
}

// Precision returns the geohash length the index settled on.
func (ix *Index) Precision() uint { return ix.precision }

// Candidates returns, in polygon order, the polygons whose bounding box
// contains p.
func (ix *Index) Candidates(p Point) []int {
	bucket := ix.cells[geohash.Encode(p.Lat, p.Lon, ix.precision)]
	ret := make([]int, 0, len(bucket))
	for _, i := range bucket {
		b := ix.bounds[i]
		if p.Lat >= b.MinLat-boundaryEpsilon && p.Lat <= b.MaxLat+boundaryEpsilon &&
			p.Lon >= b.MinLon-boundaryEpsilon && p.Lon <= b.MaxLon+boundaryEpsilon {
			ret = append(ret, i)
		}
	}
	return ret
}
