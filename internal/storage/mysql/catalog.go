package mysql

import (
	"context"
	"database/sql"
	"time"

	"localdir/internal/domain"
)

/********** categories & tags **********/

func (r *Repo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug, status FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Status); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveCategory inserts when ID is zero, otherwise updates in place.
func (r *Repo) SaveCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	id, err := r.saveNamed(ctx, "categories", c.ID, c.Name, c.Slug, c.Status)
	if err != nil {
		return domain.Category{}, err
	}
	c.ID = id
	return c, nil
}

func (r *Repo) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	return deleted(res)
}

func (r *Repo) ListTags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug, status FROM tags ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Tag{}
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Status); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) SaveTag(ctx context.Context, t domain.Tag) (domain.Tag, error) {
	id, err := r.saveNamed(ctx, "tags", t.ID, t.Name, t.Slug, t.Status)
	if err != nil {
		return domain.Tag{}, err
	}
	t.ID = id
	return t, nil
}

func (r *Repo) DeleteTag(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	return deleted(res)
}

// saveNamed writes a name/slug/status row of categories or tags.
func (r *Repo) saveNamed(ctx context.Context, table string, id int64, name, slug, status string) (int64, error) {
	if id == 0 {
		res, err := r.db.ExecContext(ctx, "INSERT INTO "+table+" (name, slug, status) VALUES (?, ?, ?)", name, slug, status)
		if err != nil {
			return 0, mapErr(err)
		}
		return res.LastInsertId()
	}
	res, err := r.db.ExecContext(ctx, "UPDATE "+table+" SET name = ?, slug = ?, status = ? WHERE id = ?", name, slug, status, id)
	if err != nil {
		return 0, mapErr(err)
	}
	return id, r.affectedOrMissing(ctx, res, table, id)
}

/********** reports **********/

func (r *Repo) CreateReport(ctx context.Context, rp domain.Report) (domain.Report, error) {
	if rp.CreatedAt.IsZero() {
		rp.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reports (target_type, target_id, reporter_id, reason, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rp.TargetType, rp.TargetID, valInt64(rp.ReporterID), rp.Reason, string(rp.Status), rp.CreatedAt)
	if err != nil {
		return domain.Report{}, err
	}
	if rp.ID, err = res.LastInsertId(); err != nil {
		return domain.Report{}, err
	}
	return rp, nil
}

// ListReports returns the newest 500 reports; empty status lists all.
func (r *Repo) ListReports(ctx context.Context, status domain.ReportStatus) ([]domain.Report, error) {
	q := "SELECT " + reportColumns + " FROM reports"
	var args []any
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, string(status))
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT 500"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Report{}
	for rows.Next() {
		var rp domain.Report
		var reporter sql.NullInt64
		var st string
		if err := rows.Scan(&rp.ID, &rp.TargetType, &rp.TargetID, &reporter, &rp.Reason, &st, &rp.CreatedAt); err != nil {
			return nil, err
		}
		if reporter.Valid {
			id := reporter.Int64
			rp.ReporterID = &id
		}
		rp.Status = domain.ReportStatus(st)
		out = append(out, rp)
	}
	return out, rows.Err()
}

func (r *Repo) SetReportStatus(ctx context.Context, id int64, status domain.ReportStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reports SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	return r.affectedOrMissing(ctx, res, "reports", id)
}

func (r *Repo) CountReports(ctx context.Context, status domain.ReportStatus) (int, error) {
	if status == "" {
		return count(ctx, r.db, `SELECT COUNT(*) FROM reports`)
	}
	return count(ctx, r.db, `SELECT COUNT(*) FROM reports WHERE status = ?`, string(status))
}

/********** users **********/

func (r *Repo) ListUsers(ctx context.Context, limit int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) SetUserStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	return r.affectedOrMissing(ctx, res, "users", id)
}

func (r *Repo) CountUsers(ctx context.Context) (int, error) {
	return count(ctx, r.db, `SELECT COUNT(*) FROM users`)
}
