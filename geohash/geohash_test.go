package geohash_test

import (
	"testing"

	"github.com/pilosa/bikeshare/geohash"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		precision uint
		exp       string
	}{
		{name: "toronto city hall", lat: 43.6534, lon: -79.3841, precision: 5, exp: "dpz83"},
		{name: "short", lat: 43.6534, lon: -79.3841, precision: 1, exp: "d"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := geohash.Encode(test.lat, test.lon, test.precision); got != test.exp {
				t.Fatalf("got %s, expected %s", got, test.exp)
			}
		})
	}
}

func TestCover(t *testing.T) {
	cells, err := geohash.Cover(43.60, -79.45, 43.70, -79.35, 5, 1000)
	if err != nil {
		t.Fatalf("covering box: %v", err)
	}
	seen := make(map[string]bool)
	for _, c := range cells {
		if len(c) != 5 {
			t.Fatalf("unexpected cell length: %s", c)
		}
		if seen[c] {
			t.Fatalf("cell %s returned twice", c)
		}
		seen[c] = true
	}
	// every point in the box must land in one of the cells
	for _, p := range [][2]float64{{43.60, -79.45}, {43.70, -79.35}, {43.65, -79.40}, {43.60, -79.35}, {43.70, -79.45}} {
		if h := geohash.Encode(p[0], p[1], 5); !seen[h] {
			t.Fatalf("point %v in cell %s not covered by %v", p, h, cells)
		}
	}

	if _, err := geohash.Cover(43.60, -79.45, 43.70, -79.35, 9, 10); err == nil {
		t.Fatalf("expected error above cell limit")
	}
	if _, err := geohash.Cover(43.70, -79.45, 43.60, -79.35, 5, 10); err == nil {
		t.Fatalf("expected error for empty box")
	}
}
