package geocode

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"localdir/internal/adapters/observability"
	"localdir/internal/domain"
)

const maxAttempts = 4

// Nominatim queries an OpenStreetMap Nominatim compatible /search endpoint.
type Nominatim struct {
	base string
	ua   string
	hc   *http.Client
	rl   *rate.Limiter
}

// NewNominatim builds a client. The public Nominatim service asks for at
// most one request per second, so rps defaults to 1.
func NewNominatim(base, userAgent string, rps int) (*Nominatim, error) {
	if base == "" {
		return nil, fmt.Errorf("geocoder base URL is required")
	}
	if rps <= 0 {
		rps = 1
	}
	if userAgent == "" {
		userAgent = "localdir/1.0"
	}
	return &Nominatim{
		base: strings.TrimRight(base, "/"),
		ua:   userAgent,
		hc:   &http.Client{Timeout: 10 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

type place struct {
	Lat any `json:"lat"`
	Lon any `json:"lon"`
}

func (n *Nominatim) Resolve(ctx context.Context, name string) (domain.Coords, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Coords{}, domain.ErrLocationNotFound
	}
	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", name)
	q.Set("limit", "1")

	var out []place
	if err := n.get(ctx, n.base+"/search?"+q.Encode(), &out); err != nil {
		return domain.Coords{}, err
	}
	if len(out) == 0 {
		return domain.Coords{}, domain.ErrLocationNotFound
	}
	lat, okLat := flexFloat(out[0].Lat)
	lng, okLng := flexFloat(out[0].Lon)
	c := domain.Coords{Lat: lat, Lng: lng}
	if !okLat || !okLng || !c.Valid() {
		return domain.Coords{}, fmt.Errorf("geocoder returned unusable coordinates for %q", name)
	}
	return c, nil
}

// flexFloat accepts the string form Nominatim uses as well as plain numbers.
func flexFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", "."))
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// get performs a rate limited GET and decodes JSON into out. 429 and
// transient 5xx are retried, honoring Retry-After when present.
func (n *Nominatim) get(ctx context.Context, u string, out any) error {
	if err := n.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", n.ua)

		start := time.Now()
		resp, err := n.hc.Do(req)
		if err != nil {
			observability.ObserveGeocode("nominatim", 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveGeocode("nominatim", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrLocationNotFound

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("geocoder status %d", resp.StatusCode)
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("geocoder status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses the seconds or HTTP-date form; 0 if absent.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms with up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
