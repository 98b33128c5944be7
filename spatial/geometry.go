// Package spatial assigns points to the neighbourhood polygon containing
// them.
package spatial

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/s2"
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Ring is a closed linear ring. The closing vertex may be repeated or not.
type Ring []Point

// Polygon is an outer ring with optional holes.
type Polygon struct {
	Outer Ring
	Holes []Ring
}

// MultiPolygon is the geometry of a neighbourhood. It implements
// bikeshare.Geometry.
type MultiPolygon []Polygon

// Location is where a point lies relative to a geometry.
type Location int

// Point locations.
const (
	Outside Location = iota
	Inside
	Boundary
)

func (l Location) String() string {
	switch l {
	case Inside:
		return "inside"
	case Boundary:
		return "boundary"
	}
	return "outside"
}

// boundaryEpsilon is the tolerance, in degrees, for a point to count as lying
// on an edge. It is well under a millimetre.
const boundaryEpsilon = 1e-9

// open returns the ring without a repeated closing vertex.
func (r Ring) open() Ring {
	if n := len(r); n > 1 && r[0] == r[n-1] {
		return r[:n-1]
	}
	return r
}

// Locate classifies p against the ring by ray casting, with an explicit
// on-edge test first so boundary points are never reported as inside.
func (r Ring) Locate(p Point) Location {
	pts := r.open()
	n := len(pts)
	if n < 3 {
		return Outside
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := pts[j], pts[i]
		if onSegment(p, a, b) {
			return Boundary
		}
		if (b.Lat > p.Lat) != (a.Lat > p.Lat) &&
			p.Lon < (a.Lon-b.Lon)*(p.Lat-b.Lat)/(a.Lat-b.Lat)+b.Lon {
			inside = !inside
		}
	}
	if inside {
		return Inside
	}
	return Outside
}

func onSegment(p, a, b Point) bool {
	cross := (b.Lon-a.Lon)*(p.Lat-a.Lat) - (b.Lat-a.Lat)*(p.Lon-a.Lon)
	length := math.Hypot(b.Lon-a.Lon, b.Lat-a.Lat)
	if length == 0 {
		return math.Abs(p.Lon-a.Lon) <= boundaryEpsilon && math.Abs(p.Lat-a.Lat) <= boundaryEpsilon
	}
	if math.Abs(cross)/length > boundaryEpsilon {
		return false
	}
	return p.Lon >= math.Min(a.Lon, b.Lon)-boundaryEpsilon && p.Lon <= math.Max(a.Lon, b.Lon)+boundaryEpsilon &&
		p.Lat >= math.Min(a.Lat, b.Lat)-boundaryEpsilon && p.Lat <= math.Max(a.Lat, b.Lat)+boundaryEpsilon
}

// Locate classifies p against the polygon. Points inside a hole are outside;
// points on a hole's edge are on the boundary.
func (pg Polygon) Locate(p Point) Location {
	loc := pg.Outer.Locate(p)
	if loc != Inside {
		return loc
	}
	for _, h := range pg.Holes {
		switch h.Locate(p) {
		case Inside:
			return Outside
		case Boundary:
			return Boundary
		}
	}
	return Inside
}

// Locate classifies p against the union of the polygons.
func (m MultiPolygon) Locate(p Point) Location {
	ret := Outside
	for _, pg := range m {
		switch pg.Locate(p) {
		case Boundary:
			return Boundary
		case Inside:
			ret = Inside
		}
	}
	return ret
}

// Bounds is an axis aligned bounding box.
type Bounds struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Bounds returns the bounding box of the outer rings.
func (m MultiPolygon) Bounds() Bounds {
	b := Bounds{MinLat: math.Inf(1), MinLon: math.Inf(1), MaxLat: math.Inf(-1), MaxLon: math.Inf(-1)}
	for _, pg := range m {
		for _, p := range pg.Outer {
			b.MinLat = math.Min(b.MinLat, p.Lat)
			b.MaxLat = math.Max(b.MaxLat, p.Lat)
			b.MinLon = math.Min(b.MinLon, p.Lon)
			b.MaxLon = math.Max(b.MaxLon, p.Lon)
		}
	}
	return b
}

// earthRadius is the mean earth radius in metres.
const earthRadius = 6371008.8

func (r Ring) loop() *s2.Loop {
	pts := r.open()
	verts := make([]s2.Point, 0, len(pts))
	for _, p := range pts {
		verts = append(verts, s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon)))
	}
	l := s2.LoopFromPoints(verts)
	// rings may wind either way; the smaller side is the one we mean
	l.Normalize()
	return l
}

// Area returns the geodesic area in square metres, holes subtracted.
func (m MultiPolygon) Area() float64 {
	var sr float64
	for _, pg := range m {
		if len(pg.Outer.open()) < 3 {
			continue
		}
		sr += pg.Outer.loop().Area()
		for _, h := range pg.Holes {
			if len(h.open()) >= 3 {
				sr -= h.loop().Area()
			}
		}
	}
	return sr * earthRadius * earthRadius
}

// Centroid returns the area weighted planar centroid of the outer rings.
func (m MultiPolygon) Centroid() Point {
	var cx, cy, area float64
	for _, pg := range m {
		pts := pg.Outer.open()
		n := len(pts)
		for i := 0; i < n; i++ {
			a, b := pts[i], pts[(i+1)%n]
			f := a.Lon*b.Lat - b.Lon*a.Lat
			cx += (a.Lon + b.Lon) * f
			cy += (a.Lat + b.Lat) * f
			area += f
		}
	}
	if area == 0 {
		b := m.Bounds()
		return Point{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
	}
	area /= 2
	return Point{Lat: cy / (6 * area), Lon: cx / (6 * area)}
}

// WKT implements bikeshare.Geometry.
func (m MultiPolygon) WKT() string {
	var sb strings.Builder
	sb.WriteString("MULTIPOLYGON (")
	for i, pg := range m {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		writeRing(&sb, pg.Outer)
		for _, h := range pg.Holes {
			sb.WriteString(", ")
			writeRing(&sb, h)
		}
		sb.WriteString(")")
	}
	sb.WriteString(")")
	return sb.String()
}

func writeRing(sb *strings.Builder, r Ring) {
	pts := r.open()
	sb.WriteString("(")
	for i, p := range pts {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%v %v", p.Lon, p.Lat)
	}
	if len(pts) > 0 {
		fmt.Fprintf(sb, ", %v %v", pts[0].Lon, pts[0].Lat)
	}
	sb.WriteString(")")
}

func (m MultiPolygon) String() string { return m.WKT() }
