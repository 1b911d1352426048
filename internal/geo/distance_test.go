package geo_test

import (
	"math"
	"testing"

	"localdir/internal/domain"
	"localdir/internal/geo"
)

func TestDistanceMiles_KnownPair(t *testing.T) {
	ny := domain.Coords{Lat: 40.7128, Lng: -74.006}
	la := domain.Coords{Lat: 34.0522, Lng: -118.2437}

	d := geo.DistanceMiles(ny, la)
	if d < 2440 || d > 2460 {
		t.Fatalf("NY-LA distance = %.1f, want ~2450", d)
	}
	if back := geo.DistanceMiles(la, ny); math.Abs(back-d) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", d, back)
	}
	if z := geo.DistanceMiles(ny, ny); z != 0 {
		t.Fatalf("self distance = %v", z)
	}
}

func TestOffset_RoundTrip(t *testing.T) {
	origin := domain.Coords{Lat: 40.7128, Lng: -74.006}
	for _, miles := range []float64{1, 5, 15, 40} {
		north := geo.Offset(origin, miles, 0)
		if d := geo.DistanceMiles(origin, north); math.Abs(d-miles) > 0.01 {
			t.Fatalf("north offset %v -> %v", miles, d)
		}
		east := geo.Offset(origin, 0, miles)
		if d := geo.DistanceMiles(origin, east); math.Abs(d-miles) > 0.05 {
			t.Fatalf("east offset %v -> %v", miles, d)
		}
	}
}

func TestBoundingBox_HoldsTheCircle(t *testing.T) {
	for _, origin := range []domain.Coords{
		{Lat: 40.7128, Lng: -74.006},
		{Lat: 64.1466, Lng: -21.9426},
		{Lat: -33.8688, Lng: 151.2093},
	} {
		for _, miles := range []float64{1, 10, 50} {
			b := geo.BoundingBox(origin, miles)
			for bearing := 0; bearing < 360; bearing += 15 {
				rad := float64(bearing) * math.Pi / 180
				p := geo.Offset(origin, miles*0.999*math.Cos(rad), miles*0.999*math.Sin(rad))
				if geo.DistanceMiles(origin, p) > miles {
					continue
				}
				if !b.Contains(p) {
					t.Fatalf("%v r=%v: point %v at bearing %d outside box %+v", origin, miles, p, bearing, b)
				}
			}
			if b.Contains(geo.Offset(origin, miles*1.2, 0)) {
				t.Fatalf("%v r=%v: box is not bounded north", origin, miles)
			}
		}
	}
}

func TestBoundingBox_WrapsToFullLongitude(t *testing.T) {
	b := geo.BoundingBox(domain.Coords{Lat: 0, Lng: 179.9}, 50)
	if b.MinLng != -180 || b.MaxLng != 180 {
		t.Fatalf("antimeridian box = %+v", b)
	}
	b = geo.BoundingBox(domain.Coords{Lat: 89.95, Lng: 10}, 10)
	if b.MaxLat != 90 || b.MinLng != -180 || b.MaxLng != 180 {
		t.Fatalf("polar box = %+v", b)
	}
}
