package spatial

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Properties map[string]interface{} `json:"properties"`
	Geometry   struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

// ReadNeighbourhoods decodes a GeoJSON FeatureCollection of neighbourhood
// polygons into a table shaped like the neighbourhoods contract. Property
// names are matched case-insensitively with repeated underscores collapsed,
// so "Shape__Area" feeds SHAPE_AREA. A missing SHAPE_AREA is computed as the
// geodesic area in square metres, and missing AREA_LATITUDE/AREA_LONGITUDE
// as the polygon centroid.
func ReadNeighbourhoods(r io.Reader, name string) (*bikeshare.Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var fc featureCollection
	if err := dec.Decode(&fc); err != nil {
		return nil, errors.Wrap(err, "decoding geojson")
	}
	if fc.Type != "FeatureCollection" {
		return nil, errors.Errorf("expected a FeatureCollection, got '%s'", fc.Type)
	}
	t := bikeshare.NewTable(name,
		bikeshare.AreaID, bikeshare.AreaShortCode, bikeshare.AreaLongCode, bikeshare.AreaName,
		bikeshare.ShapeArea, bikeshare.AreaLatitude, bikeshare.AreaLongitude, bikeshare.GeometryColumn)
	for i, f := range fc.Features {
		geom, err := decodeGeometry(f.Geometry.Type, f.Geometry.Coordinates)
		if err != nil {
			return nil, &bikeshare.InvalidGeometry{Dataset: name, Column: bikeshare.GeometryColumn, Row: i, Value: f.Geometry.Type, Reason: err.Error()}
		}
		props := normalizeProperties(f.Properties)
		id, ok := intProp(props[bikeshare.AreaID])
		if !ok {
			id = int64(i + 1)
		}
		area, ok := floatProp(props[bikeshare.ShapeArea])
		if !ok {
			area = geom.Area()
		}
		lat, okLat := floatProp(firstOf(props, bikeshare.AreaLatitude, "LATITUDE"))
		lon, okLon := floatProp(firstOf(props, bikeshare.AreaLongitude, "LONGITUDE"))
		if !okLat || !okLon {
			c := geom.Centroid()
			lat, lon = c.Lat, c.Lon
		}
		err = t.Append(id,
			stringProp(props[bikeshare.AreaShortCode]),
			stringProp(props[bikeshare.AreaLongCode]),
			stringProp(props[bikeshare.AreaName]),
			area, lat, lon, geom)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func normalizeProperties(props map[string]interface{}) map[string]interface{} {
	ret := make(map[string]interface{}, len(props))
	for k, v := range props {
		k = strings.ToUpper(strings.TrimSpace(k))
		for strings.Contains(k, "__") {
			k = strings.Replace(k, "__", "_", -1)
		}
		ret[k] = v
	}
	return ret
}

func firstOf(props map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := props[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func intProp(v interface{}) (int64, bool) {
	switch vt := v.(type) {
	case json.Number:
		i, err := vt.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(vt), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func floatProp(v interface{}) (float64, bool) {
	switch vt := v.(type) {
	case json.Number:
		f, err := vt.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(vt), 64)
		return f, err == nil
	}
	return 0, false
}

func stringProp(v interface{}) interface{} {
	switch vt := v.(type) {
	case nil:
		return nil
	case string:
		return strings.TrimSpace(vt)
	case json.Number:
		return vt.String()
	}
	return nil
}

func decodeGeometry(typ string, raw json.RawMessage) (MultiPolygon, error) {
	switch typ {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(raw, &coords); err != nil {
			return nil, errors.Wrap(err, "decoding polygon coordinates")
		}
		pg, err := toPolygon(coords)
		if err != nil {
			return nil, err
		}
		return MultiPolygon{pg}, nil
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(raw, &coords); err != nil {
			return nil, errors.Wrap(err, "decoding multipolygon coordinates")
		}
		mp := make(MultiPolygon, 0, len(coords))
		for _, c := range coords {
			pg, err := toPolygon(c)
			if err != nil {
				return nil, err
			}
			mp = append(mp, pg)
		}
		return mp, nil
	}
	return nil, errors.Errorf("unsupported geometry type '%s'", typ)
}

func toPolygon(rings [][][]float64) (Polygon, error) {
	if len(rings) == 0 {
		return Polygon{}, errors.New("polygon without rings")
	}
	pg := Polygon{}
	for k, ring := range rings {
		r := make(Ring, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				return Polygon{}, errors.Errorf("position with %d values", len(pos))
			}
			r = append(r, Point{Lon: pos[0], Lat: pos[1]})
		}
		if len(r.open()) < 3 {
			return Polygon{}, errors.Errorf("ring with %d vertices", len(r))
		}
		if k == 0 {
			pg.Outer = r
		} else {
			pg.Holes = append(pg.Holes, r)
		}
	}
	return pg, nil
}
