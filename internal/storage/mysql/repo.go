package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	drv "github.com/go-sql-driver/mysql"

	"localdir/internal/domain"
)

// MySQL server error numbers the repo maps to domain errors.
const (
	errDuplicateKey    = 1062
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
)

func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// valPrice stores the unknown price level (0) as NULL.
func valPrice(p int) any {
	if p <= 0 {
		return nil
	}
	return p
}

func valLat(c *domain.Coords) any {
	if c == nil {
		return nil
	}
	return c.Lat
}

func valLng(c *domain.Coords) any {
	if c == nil {
		return nil
	}
	return c.Lng
}

// valJSONList marshals a slice, writing [] for nil so JSON columns stay arrays.
func valJSONList[T any](v []T) string {
	if v == nil {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// Repo implements the listing, review and catalog repositories on one pool.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

// mapErr translates constraint violations into domain errors.
func mapErr(err error) error {
	var me *drv.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case errDuplicateKey:
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "slug", Message: "already exists"}}}
	case errRowIsReferenced:
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "id", Message: "still referenced by listings"}}}
	case errNoReferencedRow:
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "category_id", Message: "unknown category"}}}
	}
	return err
}

// affectedOrMissing returns ErrNotFound when an UPDATE touched nothing
// because the row does not exist. The driver reports changed rows, so an
// update that writes identical values also yields zero.
func (r *Repo) affectedOrMissing(ctx context.Context, res sql.Result, table string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var one int
	err = r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func deleted(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func count(ctx context.Context, db *sql.DB, q string, args ...any) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

var (
	_ domain.ListingRepository = (*Repo)(nil)
	_ domain.ReviewRepository  = (*Repo)(nil)
	_ domain.CatalogRepository = (*Repo)(nil)
)
