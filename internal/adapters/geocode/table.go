package geocode

import (
	"context"
	"strings"

	"localdir/internal/domain"
)

type Place struct {
	Name   string
	Coords domain.Coords
}

// KnownCities is the built-in lookup table used when no provider is configured.
var KnownCities = []Place{
	{"New York", domain.Coords{Lat: 40.7128, Lng: -74.0060}},
	{"Los Angeles", domain.Coords{Lat: 34.0522, Lng: -118.2437}},
	{"Chicago", domain.Coords{Lat: 41.8781, Lng: -87.6298}},
	{"Houston", domain.Coords{Lat: 29.7604, Lng: -95.3698}},
	{"Phoenix", domain.Coords{Lat: 33.4484, Lng: -112.0740}},
	{"Philadelphia", domain.Coords{Lat: 39.9526, Lng: -75.1652}},
	{"San Antonio", domain.Coords{Lat: 29.4241, Lng: -98.4936}},
	{"San Diego", domain.Coords{Lat: 32.7157, Lng: -117.1611}},
	{"Dallas", domain.Coords{Lat: 32.7767, Lng: -96.7970}},
	{"San Jose", domain.Coords{Lat: 37.3382, Lng: -121.8863}},
	{"Austin", domain.Coords{Lat: 30.2672, Lng: -97.7431}},
	{"San Francisco", domain.Coords{Lat: 37.7749, Lng: -122.4194}},
	{"Seattle", domain.Coords{Lat: 47.6062, Lng: -122.3321}},
	{"Denver", domain.Coords{Lat: 39.7392, Lng: -104.9903}},
	{"Boston", domain.Coords{Lat: 42.3601, Lng: -71.0589}},
	{"Miami", domain.Coords{Lat: 25.7617, Lng: -80.1918}},
}

// Table resolves names by case-insensitive substring match against a fixed
// list of places. The first entry in list order wins.
type Table struct {
	places []Place
	keys   []string
}

func NewTable(places []Place) *Table {
	t := &Table{
		places: append([]Place(nil), places...),
		keys:   make([]string, len(places)),
	}
	for i, p := range t.places {
		t.keys[i] = strings.ToLower(p.Name)
	}
	return t
}

func (t *Table) Resolve(_ context.Context, name string) (domain.Coords, error) {
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return domain.Coords{}, domain.ErrLocationNotFound
	}
	// "Downtown Austin, TX" contains "austin"
	for i, k := range t.keys {
		if strings.Contains(q, k) {
			return t.places[i].Coords, nil
		}
	}
	// "san fran" is contained in "san francisco"
	if len([]rune(q)) >= 3 {
		for i, k := range t.keys {
			if strings.Contains(k, q) {
				return t.places[i].Coords, nil
			}
		}
	}
	return domain.Coords{}, domain.ErrLocationNotFound
}
