package app

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"localdir/internal/domain"
)

// RawFilter is search input as it arrives from a form or query string.
type RawFilter struct {
	Query              string
	Category           string
	Location           string
	UseCurrentLocation bool
	Radius             string
	PriceMin           string
	PriceMax           string
	MinRating          string
	Amenities          []string
	Sort               string
	Limit              string
}

// Notice is a recoverable, user-visible condition attached to a search.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	NoticeValidation         = "validation"
	NoticeGeolocationDenied  = "geolocation_denied"
	NoticeLocationNotFound   = "location_not_found"
	NoticeQueryFailed        = "query_failed"
	NoticeSubscriptionFailed = "subscription_failed"
)

const locateTimeout = 5 * time.Second

// ClampRadius bounds r to [MinRadiusMiles, MaxRadiusMiles]. NaN gets the default.
func ClampRadius(r float64) float64 {
	if math.IsNaN(r) {
		return domain.DefaultRadiusMiles
	}
	return math.Max(domain.MinRadiusMiles, math.Min(domain.MaxRadiusMiles, r))
}

// NormalizeFilter validates raw input into a SearchFilter. Out-of-range values
// are corrected locally and reported as notices; nothing here fails the search.
// When UseCurrentLocation is requested and loc cannot supply a position, the
// filter falls back to manual entry with the given Location text.
func NormalizeFilter(ctx context.Context, raw RawFilter, loc domain.Locator) (domain.SearchFilter, []Notice) {
	var notices []Notice
	invalid := func(field, msg string) {
		notices = append(notices, Notice{Code: NoticeValidation, Message: field + ": " + msg})
	}

	f := domain.SearchFilter{
		Query:       strings.TrimSpace(raw.Query),
		Location:    strings.TrimSpace(raw.Location),
		RadiusMiles: domain.DefaultRadiusMiles,
		Limit:       domain.DefaultSearchLimit,
	}

	if s := strings.TrimSpace(raw.Category); s != "" {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
			f.CategoryID = &id
		} else {
			invalid("category", "must be a positive id")
		}
	}

	if s := strings.TrimSpace(raw.Radius); s != "" {
		r, err := strconv.ParseFloat(s, 64)
		switch {
		case err != nil || math.IsNaN(r) || math.IsInf(r, 0):
			invalid("radius", "must be a number")
		default:
			f.RadiusMiles = ClampRadius(r)
			if f.RadiusMiles != r {
				invalid("radius", "clamped to the allowed range 1-50 miles")
			}
		}
	}

	f.PriceMin = parsePrice(raw.PriceMin, "price_min", invalid)
	f.PriceMax = parsePrice(raw.PriceMax, "price_max", invalid)
	if f.PriceMin > 0 && f.PriceMax > 0 && f.PriceMin > f.PriceMax {
		f.PriceMin, f.PriceMax = f.PriceMax, f.PriceMin
	}

	if s := strings.TrimSpace(raw.MinRating); s != "" {
		r, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(r) {
			invalid("min_rating", "must be a number")
		} else {
			f.MinRating = math.Max(0, math.Min(5, r))
		}
	}

	for _, a := range raw.Amenities {
		if a = strings.TrimSpace(a); a != "" {
			f.Amenities = append(f.Amenities, a)
		}
	}

	if s := strings.TrimSpace(raw.Sort); s != "" {
		if k := domain.SortKey(strings.ToLower(s)); k.Valid() {
			f.Sort = k
		} else {
			invalid("sort", "unknown sort key")
		}
	}

	if s := strings.TrimSpace(raw.Limit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			invalid("limit", "must be a positive integer")
		} else {
			f.Limit = min(n, domain.MaxSearchLimit)
		}
	}

	if raw.UseCurrentLocation {
		pos, err := locate(ctx, loc)
		if err != nil {
			log.Warn().Err(err).Msg("current location unavailable, reverting to manual location")
			notices = append(notices, Notice{
				Code:    NoticeGeolocationDenied,
				Message: "current location unavailable; enter a location manually",
			})
		} else {
			f.UseCurrentLocation = true
			f.Origin = &pos
			f.Location = ""
		}
	}

	return f, notices
}

func locate(ctx context.Context, loc domain.Locator) (domain.Coords, error) {
	if loc == nil {
		return domain.Coords{}, domain.ErrGeolocationDenied
	}
	ctx, cancel := context.WithTimeout(ctx, locateTimeout)
	defer cancel()
	pos, err := loc.CurrentPosition(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrGeolocationDenied) {
			return domain.Coords{}, err
		}
		return domain.Coords{}, errors.Join(domain.ErrGeolocationDenied, err)
	}
	if !pos.Valid() {
		return domain.Coords{}, domain.ErrGeolocationDenied
	}
	return pos, nil
}

func parsePrice(s, field string, invalid func(field, msg string)) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		invalid(field, "must be an integer between 1 and 4")
		return 0
	}
	if n < 1 || n > 4 {
		invalid(field, "clamped to 1-4")
		n = max(1, min(4, n))
	}
	return n
}
