package app_test

import (
	"context"
	"errors"
	"testing"

	"localdir/internal/app"
	"localdir/internal/domain"
)

type fixedLocator struct {
	pos domain.Coords
	err error
}

func (l fixedLocator) CurrentPosition(context.Context) (domain.Coords, error) { return l.pos, l.err }

func hasNotice(ns []app.Notice, code string) bool {
	for _, n := range ns {
		if n.Code == code {
			return true
		}
	}
	return false
}

func TestNormalizeFilter_Defaults(t *testing.T) {
	f, notices := app.NormalizeFilter(context.Background(), app.RawFilter{Query: "  pizza "}, nil)
	if len(notices) != 0 {
		t.Fatalf("unexpected notices: %+v", notices)
	}
	if f.Query != "pizza" || f.RadiusMiles != domain.DefaultRadiusMiles || f.Limit != domain.DefaultSearchLimit {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if f.Origin != nil || f.CategoryID != nil {
		t.Fatalf("expected no origin or category: %+v", f)
	}
}

func TestNormalizeFilter_ClampsRadius(t *testing.T) {
	cases := []struct {
		in     string
		want   float64
		notice bool
	}{
		{"0", 1, true},
		{"0.5", 1, true},
		{"25", 25, false},
		{"50", 50, false},
		{"500", 50, true},
		{"-3", 1, true},
	}
	for _, tc := range cases {
		f, notices := app.NormalizeFilter(context.Background(), app.RawFilter{Radius: tc.in}, nil)
		if f.RadiusMiles != tc.want {
			t.Fatalf("radius %s: got %v want %v", tc.in, f.RadiusMiles, tc.want)
		}
		if tc.notice != hasNotice(notices, app.NoticeValidation) {
			t.Fatalf("radius %s: notices %+v", tc.in, notices)
		}
	}
}

func TestNormalizeFilter_InvalidFieldsBecomeNotices(t *testing.T) {
	f, notices := app.NormalizeFilter(context.Background(), app.RawFilter{
		Category:  "coffee",
		Radius:    "far",
		PriceMin:  "9",
		PriceMax:  "2",
		MinRating: "7",
		Sort:      "random",
		Limit:     "-1",
	}, nil)
	if len(notices) != 5 {
		t.Fatalf("want 5 notices, got %+v", notices)
	}
	if f.CategoryID != nil || f.RadiusMiles != domain.DefaultRadiusMiles || f.Sort != "" || f.Limit != domain.DefaultSearchLimit {
		t.Fatalf("invalid fields should keep defaults: %+v", f)
	}
	// price_min 9 clamps to 4, then swaps with price_max 2
	if f.PriceMin != 2 || f.PriceMax != 4 {
		t.Fatalf("price range: %d-%d", f.PriceMin, f.PriceMax)
	}
	if f.MinRating != 5 {
		t.Fatalf("min rating: %v", f.MinRating)
	}
}

func TestNormalizeFilter_CurrentLocation(t *testing.T) {
	pos := domain.Coords{Lat: 40.7128, Lng: -74.0060}
	f, notices := app.NormalizeFilter(context.Background(),
		app.RawFilter{UseCurrentLocation: true, Location: "ignored"}, fixedLocator{pos: pos})
	if len(notices) != 0 {
		t.Fatalf("unexpected notices: %+v", notices)
	}
	if f.Origin == nil || *f.Origin != pos || !f.UseCurrentLocation || f.Location != "" {
		t.Fatalf("unexpected filter: %+v", f)
	}
}

func TestNormalizeFilter_GeolocationDeniedFallsBackToManual(t *testing.T) {
	for name, loc := range map[string]domain.Locator{
		"nil locator": nil,
		"denied":      fixedLocator{err: domain.ErrGeolocationDenied},
		"other error": fixedLocator{err: errors.New("timeout")},
		"bad coords":  fixedLocator{pos: domain.Coords{Lat: 123}},
	} {
		f, notices := app.NormalizeFilter(context.Background(),
			app.RawFilter{UseCurrentLocation: true, Location: "Chicago"}, loc)
		if !hasNotice(notices, app.NoticeGeolocationDenied) {
			t.Fatalf("%s: expected geolocation notice, got %+v", name, notices)
		}
		if f.Origin != nil || f.UseCurrentLocation || f.Location != "Chicago" {
			t.Fatalf("%s: expected manual fallback, got %+v", name, f)
		}
	}
}

func TestSearchFilterKey_IgnoresAmenityOrderAndCase(t *testing.T) {
	a := domain.SearchFilter{Query: "Tacos", Amenities: []string{"WiFi", "parking"}, RadiusMiles: 10}
	b := domain.SearchFilter{Query: "tacos", Amenities: []string{"Parking", "wifi"}, RadiusMiles: 10}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ:\n%s\n%s", a.Key(), b.Key())
	}
	b.RadiusMiles = 11
	if a.Key() == b.Key() {
		t.Fatal("radius must be part of the key")
	}
}
