package spatial

import (
	"math"

	"github.com/pkg/errors"
)

// Supported coordinate reference systems.
const (
	// WGS84 is longitude/latitude in degrees.
	WGS84 = 4326
	// WebMercator is spherical mercator in metres.
	WebMercator = 3857
)

const mercatorRadius = 6378137.0

// toWGS84 converts an (x, y) pair in the given EPSG code to a Point. For
// WGS84 x is longitude and y is latitude.
func toWGS84(crs int, x, y float64) (Point, error) {
	switch crs {
	case 0, WGS84:
		return Point{Lat: y, Lon: x}, nil
	case WebMercator:
		lon := x / mercatorRadius * 180 / math.Pi
		lat := (2*math.Atan(math.Exp(y/mercatorRadius)) - math.Pi/2) * 180 / math.Pi
		return Point{Lat: lat, Lon: lon}, nil
	}
	return Point{}, errors.Errorf("unsupported coordinate reference system EPSG:%d", crs)
}

// CheckCRS returns an error for coordinate systems the join cannot convert.
func CheckCRS(crs int) error {
	_, err := toWGS84(crs, 0, 0)
	return err
}
