package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"localdir/internal/adapters/observability"
	"localdir/internal/domain"
	"localdir/internal/geo"
)

// candidateLimit bounds the store read when distance filtering follows it.
// The read is already narrowed to the radius's bounding box.
const candidateLimit = 1000

type SearchService struct {
	repo     domain.ListingRepository
	geocoder domain.Geocoder
}

func NewSearchService(r domain.ListingRepository, g domain.Geocoder) *SearchService {
	return &SearchService{repo: r, geocoder: g}
}

type SearchOutcome struct {
	Filter  domain.SearchFilter `json:"filter"`
	Origin  *domain.Coords      `json:"origin,omitempty"`
	Results []Result            `json:"items"`
	Notices []Notice            `json:"notices,omitempty"`
}

// Search runs geocode -> query -> distance filter/sort. An unresolvable
// location degrades to a search without distance filtering. Store failures
// come back wrapped in domain.ErrQueryFailed.
func (s *SearchService) Search(ctx context.Context, f domain.SearchFilter) (SearchOutcome, error) {
	start := time.Now()
	out := SearchOutcome{Filter: f, Origin: f.Origin}

	if out.Origin == nil && f.Location != "" {
		c, err := s.resolve(ctx, f.Location)
		switch {
		case err == nil:
			out.Origin = &c
		case ctx.Err() != nil:
			return SearchOutcome{}, ctx.Err()
		case errors.Is(err, domain.ErrLocationNotFound):
			log.Warn().Str("location", f.Location).Msg("location not found, searching without distance filter")
			out.Notices = append(out.Notices, Notice{Code: NoticeLocationNotFound, Message: fmt.Sprintf("could not find %q; showing results without distance filter", f.Location)})
		default:
			log.Warn().Err(err).Str("location", f.Location).Msg("geocoding failed, searching without distance filter")
			out.Notices = append(out.Notices, Notice{Code: NoticeLocationNotFound, Message: "location lookup is unavailable; showing results without distance filter"})
		}
	}

	q := f.ListingQuery()
	if q.Limit <= 0 {
		q.Limit = domain.DefaultSearchLimit
	}
	if out.Origin != nil {
		box := geo.BoundingBox(*out.Origin, ClampRadius(f.RadiusMiles))
		q.Box = &box
		q.Limit = candidateLimit
	}

	candidates, err := s.repo.Search(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return SearchOutcome{}, ctx.Err()
		}
		observability.ObserveSearch("failed", time.Since(start))
		log.Error().Err(err).Msg("listing query failed")
		return SearchOutcome{}, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}

	out.Results = ApplyDistance(out.Origin, f.RadiusMiles, candidates, f.Sort)
	if limit := f.Limit; limit > 0 && len(out.Results) > limit {
		out.Results = out.Results[:limit]
	}

	outcome := "ok"
	if len(out.Notices) > 0 {
		outcome = "degraded"
	}
	observability.ObserveSearch(outcome, time.Since(start))
	return out, nil
}

func (s *SearchService) resolve(ctx context.Context, name string) (domain.Coords, error) {
	if s.geocoder == nil {
		return domain.Coords{}, domain.ErrLocationNotFound
	}
	return s.geocoder.Resolve(ctx, name)
}
