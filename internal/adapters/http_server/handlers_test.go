package httpserver_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpserver "localdir/internal/adapters/http_server"
	"localdir/internal/adapters/identity"
	"localdir/internal/adapters/memfeed"
	"localdir/internal/app"
	"localdir/internal/app/apptest"
	"localdir/internal/domain"
	"localdir/internal/geo"
)

var newYork = domain.Coords{Lat: 40.7128, Lng: -74.0060}

type fixture struct {
	srv      *httptest.Server
	store    *apptest.Store
	feed     *memfeed.Feed
	verifier *identity.Verifier
}

func newFixture(t *testing.T, limiter *httpserver.RateLimiter) *fixture {
	t.Helper()
	store := apptest.NewStore()
	cache := apptest.NewCache()
	feed := memfeed.New()
	v := identity.NewVerifier("test-secret")
	geocoder := apptest.Geocoder{"New York": newYork}

	s := httpserver.New(httpserver.Options{Verifier: v, Limiter: limiter, RequestTimeout: 5 * time.Second})
	s.MountHandlers(&httpserver.Handlers{
		Search:    app.NewSearchService(store, geocoder),
		Q:         app.NewQueryService(store, store, store, cache, time.Minute),
		Community: app.NewCommunityService(store, store, store, feed),
		Admin:     app.NewAdminService(store, store, store, cache, feed, &apptest.ObjectStore{}),
		Reviews:   store,
		Feed:      feed,
		Debounce:  10 * time.Millisecond,
	})
	srv := httptest.NewServer(s.Mux())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: store, feed: feed, verifier: v}
}

func (f *fixture) token(t *testing.T, id int64, role string) string {
	t.Helper()
	tok, err := f.verifier.Issue(identity.Principal{UserID: id, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func seed(f *fixture) (near, far domain.Listing) {
	nc, fc := geo.Offset(newYork, 5, 0), geo.Offset(newYork, 15, 0)
	near = f.store.PutListing(domain.Listing{Title: "Near Deli", CategoryID: 1, Status: domain.ListingActive, Coords: &nc, Amenities: []string{"WiFi"}})
	far = f.store.PutListing(domain.Listing{Title: "Far Deli", CategoryID: 1, Status: domain.ListingActive, Coords: &fc})
	return near, far
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	res := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestSearch_RadiusETagAndNotModified(t *testing.T) {
	f := newFixture(t, nil)
	near, _ := seed(f)

	res := f.do(t, http.MethodGet, "/v1/search?location=New+York&radius=10", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	etag := res.Header.Get("ETag")
	require.NotEmpty(t, etag)

	var out struct {
		Items []struct {
			Listing       domain.Listing `json:"listing"`
			DistanceMiles *float64       `json:"distance_miles"`
		} `json:"items"`
		Notices []app.Notice `json:"notices"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Len(t, out.Items, 1)
	require.Equal(t, near.ID, out.Items[0].Listing.ID)
	require.NotNil(t, out.Items[0].DistanceMiles)

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/v1/search?location=New+York&radius=10", nil)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res2.Body.Close()
	require.Equal(t, http.StatusNotModified, res2.StatusCode)
}

func TestSearch_NoticesForBadInput(t *testing.T) {
	f := newFixture(t, nil)
	seed(f)

	res := f.do(t, http.MethodGet, "/v1/search?location=Atlantis&radius=500&use_current_location=true&geo_error=denied", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var out struct {
		Items   []json.RawMessage `json:"items"`
		Notices []app.Notice      `json:"notices"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Len(t, out.Items, 2)

	codes := map[string]bool{}
	for _, n := range out.Notices {
		codes[n.Code] = true
	}
	require.True(t, codes[app.NoticeValidation])
	require.True(t, codes[app.NoticeGeolocationDenied])
	require.True(t, codes[app.NoticeLocationNotFound])
}

func TestSearch_QueryFailureIs503(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SearchHook = func(context.Context, domain.ListingQuery) error { return errors.New("db down") }
	res := f.do(t, http.MethodGet, "/v1/search", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	require.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))
}

func TestGetListing(t *testing.T) {
	f := newFixture(t, nil)
	near, _ := seed(f)
	hidden := f.store.PutListing(domain.Listing{Title: "Hidden", CategoryID: 1, Status: domain.ListingPending})

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/listings/"+itoa(near.ID), "", nil).StatusCode)
	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/listings/"+itoa(hidden.ID), "", nil).StatusCode)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/listings/abc", "", nil).StatusCode)
}

func TestReviews_SubmitRequiresUser(t *testing.T) {
	f := newFixture(t, nil)
	near, _ := seed(f)
	path := "/v1/listings/" + itoa(near.ID) + "/reviews"
	body := map[string]any{"rating": 5, "comment": "great"}

	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, path, "", body).StatusCode)
	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, path, "garbage", body).StatusCode)

	res := f.do(t, http.MethodPost, path, f.token(t, 42, "member"), body)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var rv domain.Review
	require.NoError(t, json.NewDecoder(res.Body).Decode(&rv))
	require.Equal(t, int64(42), rv.AuthorID)
	require.Equal(t, domain.ReviewPending, rv.Status)

	// pending reviews are not public
	list := f.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, list.StatusCode)
	var page domain.ReviewsPage
	require.NoError(t, json.NewDecoder(list.Body).Decode(&page))
	require.Empty(t, page.Items)

	bad := f.do(t, http.MethodPost, path, f.token(t, 42, "member"), map[string]any{"rating": 9})
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	f := newFixture(t, nil)
	in := domain.ListingInput{Title: "New Place", CategoryID: 1}

	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/v1/admin/listings", "", in).StatusCode)
	require.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/v1/admin/listings", f.token(t, 2, "member"), in).StatusCode)

	admin := f.token(t, 1, identity.RoleAdmin)
	res := f.do(t, http.MethodPost, "/v1/admin/listings", admin, in)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var l domain.Listing
	require.NoError(t, json.NewDecoder(res.Body).Decode(&l))
	require.Equal(t, domain.ListingPending, l.Status)

	status := "/v1/admin/listings/" + itoa(l.ID) + "/status"
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPatch, status, admin, map[string]string{"status": "active"}).StatusCode)
	require.Equal(t, http.StatusConflict, f.do(t, http.MethodPatch, status, admin, map[string]string{"status": "pending"}).StatusCode)

	stats := f.do(t, http.MethodGet, "/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, stats.StatusCode)
}

func TestRateLimiter(t *testing.T) {
	rl := httpserver.NewRateLimiter(0.01, 1, time.Minute)
	t.Cleanup(rl.Stop)
	f := newFixture(t, rl)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", nil).StatusCode)
	res := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	require.NotEmpty(t, res.Header.Get("Retry-After"))
}

func TestSearchStream_SnapshotThenLiveChange(t *testing.T) {
	f := newFixture(t, nil)
	near, _ := seed(f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/v1/search/stream?lat=40.7128&lng=-74.0060&use_current_location=true&radius=10", nil)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	events := readSnapshots(res)
	waitFor := func(pred func(app.Snapshot) bool) app.Snapshot {
		for {
			select {
			case snap, ok := <-events:
				require.True(t, ok, "stream ended")
				if pred(snap) {
					return snap
				}
			case <-ctx.Done():
				t.Fatal("timed out waiting for snapshot")
			}
		}
	}

	snap := waitFor(func(s app.Snapshot) bool { return !s.Loading && len(s.Items) > 0 })
	require.Len(t, snap.Items, 1)
	require.Equal(t, near.ID, snap.Items[0].Listing.ID)
	require.True(t, snap.Live)

	c := geo.Offset(newYork, 1, 0)
	added := domain.Listing{ID: 77, Title: "Pop-up", CategoryID: 1, Status: domain.ListingActive, Coords: &c}
	require.Eventually(t, func() bool { return f.feed.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.feed.Publish(ctx, domain.ChangeEvent{Kind: domain.ChangeCreate, Table: domain.TableListings, ID: 77, Listing: &added}))

	snap = waitFor(func(s app.Snapshot) bool { return len(s.Items) == 2 })
	require.Equal(t, int64(77), snap.Items[0].Listing.ID, "nearest first")

	cancel()
	require.Eventually(t, func() bool { return f.feed.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func readSnapshots(res *http.Response) <-chan app.Snapshot {
	out := make(chan app.Snapshot, 64)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(res.Body)
		for sc.Scan() {
			line, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var s app.Snapshot
			if json.Unmarshal([]byte(line), &s) == nil {
				out <- s
			}
		}
	}()
	return out
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
