// Package geohash buckets coordinates and bounding boxes into geohash cells.
// The spatial join uses it to find candidate polygons for a point without
// testing every polygon.
package geohash

import (
	"github.com/mmcloughlin/geohash"
	"github.com/pkg/errors"
)

// MaxPrecision is the longest geohash this package produces.
const MaxPrecision = 12

// Encode returns the geohash of the point with the given number of
// characters.
func Encode(lat, lon float64, precision uint) string {
	return geohash.EncodeWithPrecision(lat, lon, precision)
}

// Cover returns every cell of the given precision which intersects the box.
// It returns an error instead of more than limit cells.
func Cover(minLat, minLon, maxLat, maxLon float64, precision uint, limit int) ([]string, error) {
	if precision == 0 || precision > MaxPrecision {
		return nil, errors.Errorf("precision %d out of range [1, %d]", precision, MaxPrecision)
	}
	if minLat > maxLat || minLon > maxLon {
		return nil, errors.Errorf("empty box (%v,%v)-(%v,%v)", minLat, minLon, maxLat, maxLon)
	}
	first := geohash.BoundingBox(geohash.EncodeWithPrecision(minLat, minLon, precision))
	h := first.MaxLat - first.MinLat
	w := first.MaxLng - first.MinLng
	rows := int((maxLat-first.MinLat)/h) + 1
	cols := int((maxLon-first.MinLng)/w) + 1
	if rows*cols > limit {
		return nil, errors.Errorf("box needs %d cells at precision %d, limit is %d", rows*cols, precision, limit)
	}
	cells := make([]string, 0, rows*cols)
	for r := 0; r < rows; r++ {
		lat := first.MinLat + (float64(r)+0.5)*h
		for c := 0; c < cols; c++ {
			lon := first.MinLng + (float64(c)+0.5)*w
			cells = append(cells, geohash.EncodeWithPrecision(lat, lon, precision))
		}
	}
	return cells, nil
}
