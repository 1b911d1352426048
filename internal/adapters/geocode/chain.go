package geocode

import (
	"context"
	"errors"

	"localdir/internal/domain"
)

// Chain asks each geocoder in turn. Only a not-found answer falls through;
// any other error stops the chain.
type Chain []domain.Geocoder

func (c Chain) Resolve(ctx context.Context, name string) (domain.Coords, error) {
	for _, g := range c {
		coords, err := g.Resolve(ctx, name)
		if err == nil {
			return coords, nil
		}
		if !errors.Is(err, domain.ErrLocationNotFound) {
			return domain.Coords{}, err
		}
	}
	return domain.Coords{}, domain.ErrLocationNotFound
}
