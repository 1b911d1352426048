package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"localdir/internal/domain"
)

const (
	defaultReviewPage = 20
	maxReviewPage     = 200
)

func scanReview(s rowScanner) (domain.Review, error) {
	var rv domain.Review
	var status string
	if err := s.Scan(&rv.ID, &rv.ListingID, &rv.AuthorID, &rv.Rating, &rv.Comment, &status, &rv.CreatedAt); err != nil {
		return domain.Review{}, err
	}
	rv.Status = domain.ReviewStatus(status)
	return rv, nil
}

func (r *Repo) CreateReview(ctx context.Context, rv domain.Review) (domain.Review, error) {
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, insertReviewSQL,
		rv.ListingID, rv.AuthorID, rv.Rating, rv.Comment, string(rv.Status), rv.CreatedAt)
	if err != nil {
		return domain.Review{}, mapErr(err)
	}
	if rv.ID, err = res.LastInsertId(); err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

func (r *Repo) GetReview(ctx context.Context, id int64) (domain.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, "SELECT "+reviewColumns+" FROM reviews WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv, err
}

// ListReviews pages newest first. The cursor is the last ID of the previous page.
func (r *Repo) ListReviews(ctx context.Context, listingID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	limit := pg.Limit
	if limit <= 0 {
		limit = defaultReviewPage
	}
	if limit > maxReviewPage {
		limit = maxReviewPage
	}

	q := "SELECT " + reviewColumns + " FROM reviews WHERE listing_id = ?"
	args := []any{listingID}
	if pg.Status != "" {
		q += " AND status = ?"
		args = append(args, string(pg.Status))
	}
	if pg.Cursor != nil && *pg.Cursor != "" {
		before, err := strconv.ParseInt(*pg.Cursor, 10, 64)
		if err != nil {
			return domain.ReviewsPage{}, &domain.ValidationError{Fields: []domain.FieldError{{Field: "cursor", Message: "malformed cursor"}}}
		}
		q += " AND id < ?"
		args = append(args, before)
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	out := domain.ReviewsPage{Items: []domain.Review{}}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return domain.ReviewsPage{}, err
		}
		out.Items = append(out.Items, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, err
	}
	if len(out.Items) == limit {
		next := strconv.FormatInt(out.Items[len(out.Items)-1].ID, 10)
		out.NextCursor = &next
	}
	return out, nil
}

func (r *Repo) SetReviewStatus(ctx context.Context, id int64, status domain.ReviewStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reviews SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	return r.affectedOrMissing(ctx, res, "reviews", id)
}

func (r *Repo) RefreshListingRating(ctx context.Context, listingID int64) error {
	_, err := r.db.ExecContext(ctx, refreshRatingSQL, listingID, listingID, listingID)
	return err
}

// CountReviews counts reviews in status; empty status counts all.
func (r *Repo) CountReviews(ctx context.Context, status domain.ReviewStatus) (int, error) {
	if status == "" {
		return count(ctx, r.db, `SELECT COUNT(*) FROM reviews`)
	}
	return count(ctx, r.db, `SELECT COUNT(*) FROM reviews WHERE status = ?`, string(status))
}
