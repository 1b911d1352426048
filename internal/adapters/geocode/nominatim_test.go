package geocode_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"localdir/internal/adapters/geocode"
	"localdir/internal/domain"
)

func TestNominatim_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("q") != "Boston" || r.URL.Query().Get("format") != "json" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"lat":"42.3554334","lon":"-71.060511","display_name":"Boston"}]`))
		}
	}))
	defer ts.Close()

	g, err := geocode.NewNominatim(ts.URL, "test", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got, err := g.Resolve(ctx, "Boston")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Lat < 42.35 || got.Lat > 42.36 || got.Lng > -71.06 || got.Lng < -71.07 {
		t.Fatalf("unexpected coords %+v", got)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 calls, got %d", hits)
	}
}

func TestNominatim_EmptyResultIsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	g, _ := geocode.NewNominatim(ts.URL, "", 100)
	_, err := g.Resolve(context.Background(), "Atlantis")
	if !errors.Is(err, domain.ErrLocationNotFound) {
		t.Fatalf("want ErrLocationNotFound, got %v", err)
	}
}

func TestNominatim_BadStatusIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer ts.Close()

	g, _ := geocode.NewNominatim(ts.URL, "", 100)
	_, err := g.Resolve(context.Background(), "Boston")
	if err == nil || errors.Is(err, domain.ErrLocationNotFound) {
		t.Fatalf("want provider error, got %v", err)
	}
}
