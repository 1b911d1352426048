package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"localdir/internal/domain"
)

func scanListing(s rowScanner) (domain.Listing, error) {
	var l domain.Listing
	var (
		status                             string
		lat, lng, rating                   sql.NullFloat64
		price, ownerID                     sql.NullInt64
		amenitiesJSON, hoursJSON, imgsJSON []byte
		tagsJSON                           []byte
	)
	if err := s.Scan(
		&l.ID,
		&l.Title,
		&l.CategoryID,
		&status,
		&lat, &lng,
		&price,
		&rating,
		&l.ReviewCount,
		&l.Description,
		&l.Location,
		&l.Contact,
		&amenitiesJSON, &hoursJSON, &imgsJSON,
		&ownerID,
		&l.CreatedAt, &l.UpdatedAt,
		&tagsJSON,
	); err != nil {
		return domain.Listing{}, err
	}
	l.Status = domain.ListingStatus(status)
	if lat.Valid && lng.Valid {
		l.Coords = &domain.Coords{Lat: lat.Float64, Lng: lng.Float64}
	}
	if price.Valid {
		l.PriceLevel = int(price.Int64)
	}
	if rating.Valid {
		f := rating.Float64
		l.Rating = &f
	}
	if ownerID.Valid {
		id := ownerID.Int64
		l.OwnerID = &id
	}
	_ = json.Unmarshal(amenitiesJSON, &l.Amenities)
	_ = json.Unmarshal(hoursJSON, &l.Hours)
	_ = json.Unmarshal(imgsJSON, &l.Images)
	if len(tagsJSON) > 0 {
		_ = json.Unmarshal(tagsJSON, &l.Tags)
	}
	return l, nil
}

func collectListings(rows *sql.Rows) ([]domain.Listing, error) {
	defer rows.Close()
	out := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// likeEscaper escapes LIKE wildcards with the default backslash escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildSearch renders the store-side predicates of q. Text and amenity
// matching are case-insensitive like domain.SearchFilter.Matches.
func buildSearch(q domain.ListingQuery) (string, []any) {
	var where []string
	var args []any

	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = domain.VisibleStatuses
	}
	ph := make([]string, len(statuses))
	for i, s := range statuses {
		ph[i] = "?"
		args = append(args, string(s))
	}
	where = append(where, "l.status IN ("+strings.Join(ph, ",")+")")

	if q.CategoryID != nil {
		where = append(where, "l.category_id = ?")
		args = append(args, *q.CategoryID)
	}
	if q.PriceMin > 0 {
		where = append(where, "l.price_level >= ?")
		args = append(args, q.PriceMin)
	}
	if q.PriceMax > 0 {
		where = append(where, "l.price_level <= ?")
		args = append(args, q.PriceMax)
	}
	if q.MinRating > 0 {
		where = append(where, "l.rating >= ?")
		args = append(args, q.MinRating)
	}
	if b := q.Box; b != nil {
		where = append(where, "l.lat BETWEEN ? AND ?", "l.lng BETWEEN ? AND ?")
		args = append(args, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
	}
	for _, a := range q.Amenities {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		where = append(where, "JSON_CONTAINS(LOWER(l.amenities), JSON_QUOTE(?))")
		args = append(args, a)
	}
	if t := strings.TrimSpace(q.Query); t != "" {
		pat := "%" + likeEscaper.Replace(strings.ToLower(t)) + "%"
		where = append(where, "(LOWER(l.title) LIKE ? OR LOWER(l.description) LIKE ? OR LOWER(l.location) LIKE ?)")
		args = append(args, pat, pat, pat)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	args = append(args, limit)

	return "SELECT" + listingColumns + "\nFROM listings l\nWHERE " + strings.Join(where, "\n  AND ") + searchOrder, args
}

// Search returns an empty slice, never nil, when nothing matches.
func (r *Repo) Search(ctx context.Context, q domain.ListingQuery) ([]domain.Listing, error) {
	query, args := buildSearch(q)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

func (r *Repo) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, getListingSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, err
}

func (r *Repo) ListUnlocated(ctx context.Context, limit int) ([]domain.Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, listUnlocatedSQL, limit)
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

func (r *Repo) CountByStatus(ctx context.Context) (map[domain.ListingStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM listings GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[domain.ListingStatus]int{}
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[domain.ListingStatus(s)] = n
	}
	return out, rows.Err()
}

func (r *Repo) CreateListing(ctx context.Context, in domain.ListingInput, status domain.ListingStatus) (domain.Listing, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Listing{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, insertListingSQL,
		in.Title,
		in.CategoryID,
		string(status),
		valLat(in.Coords),
		valLng(in.Coords),
		valPrice(in.PriceLevel),
		in.Description,
		in.Location,
		in.Contact,
		valJSONList(in.Amenities),
		valJSONList(in.Hours),
		valInt64(in.OwnerID),
	)
	if err != nil {
		return domain.Listing{}, mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Listing{}, err
	}
	if err := setTags(ctx, tx, id, in.Tags); err != nil {
		return domain.Listing{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Listing{}, err
	}
	return r.GetListing(ctx, id)
}

func (r *Repo) UpdateListing(ctx context.Context, id int64, in domain.ListingInput) (domain.Listing, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Listing{}, err
	}
	defer tx.Rollback()

	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM listings WHERE id = ? FOR UPDATE`, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, err
	}
	if _, err := tx.ExecContext(ctx, updateListingSQL,
		in.Title,
		in.CategoryID,
		valLat(in.Coords),
		valLng(in.Coords),
		valPrice(in.PriceLevel),
		in.Description,
		in.Location,
		in.Contact,
		valJSONList(in.Amenities),
		valJSONList(in.Hours),
		valInt64(in.OwnerID),
		id,
	); err != nil {
		return domain.Listing{}, mapErr(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_tags WHERE listing_id = ?`, id); err != nil {
		return domain.Listing{}, err
	}
	if err := setTags(ctx, tx, id, in.Tags); err != nil {
		return domain.Listing{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Listing{}, err
	}
	return r.GetListing(ctx, id)
}

// setTags links names to the listing, creating unknown tags on the way.
func setTags(ctx context.Context, tx *sql.Tx, listingID int64, names []string) error {
	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := domain.Slugify(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		res, err := tx.ExecContext(ctx, upsertTagSQL, name, slug)
		if err != nil {
			return err
		}
		tagID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT IGNORE INTO listing_tags (listing_id, tag_id) VALUES (?, ?)`, listingID, tagID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) SetListingStatus(ctx context.Context, id int64, status domain.ListingStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE listings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	return r.affectedOrMissing(ctx, res, "listings", id)
}

func (r *Repo) SetCoords(ctx context.Context, id int64, c domain.Coords) error {
	res, err := r.db.ExecContext(ctx, `UPDATE listings SET lat = ?, lng = ? WHERE id = ?`, c.Lat, c.Lng, id)
	if err != nil {
		return err
	}
	return r.affectedOrMissing(ctx, res, "listings", id)
}

func (r *Repo) AddListingImage(ctx context.Context, id int64, uri string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE listings SET images = JSON_ARRAY_APPEND(images, '$', ?) WHERE id = ?`, uri, id)
	if err != nil {
		return err
	}
	return r.affectedOrMissing(ctx, res, "listings", id)
}

func (r *Repo) DeleteListing(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return deleted(res)
}
