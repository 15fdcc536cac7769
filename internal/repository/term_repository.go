package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/adnanhaider/course-review-portal/internal/model"
)

// TermRepo provides CRUD and activation operations for academic terms.
// The at-most-one-active invariant is maintained by always deactivating
// every row before setting is_active on the target.
type TermRepo struct{ DB *sql.DB }

func NewTermRepo(db *sql.DB) *TermRepo { return &TermRepo{DB: db} }

var ErrTermNameExists = errors.New("term name already exists")

const termCols = `id, name, start_date, end_date, is_active, created_at, updated_at`

func scanTerm(row interface{ Scan(...any) error }) (model.Term, error) {
	var (
		t     model.Term
		start sql.NullTime
		end   sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &start, &end, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if start.Valid {
		v := start.Time
		t.StartDate = &v
	}
	if end.Valid {
		v := end.Time
		t.EndDate = &v
	}
	return t, nil
}

// Create inserts a term and returns it. The caller decides whether it
// starts active; DeactivateAll must be issued first in that case.
func (r *TermRepo) Create(ctx context.Context, name string, start, end *time.Time, active bool) (model.Term, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO terms (name, start_date, end_date, is_active) VALUES (?,?,?,?)`,
		name, start, end, active)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Term{}, ErrTermNameExists
		}
		return model.Term{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Term{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

func (r *TermRepo) GetByID(ctx context.Context, id uint64) (model.Term, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+termCols+` FROM terms WHERE id=? LIMIT 1`, id)
	return scanTerm(row)
}

func (r *TermRepo) GetByName(ctx context.Context, name string) (model.Term, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+termCols+` FROM terms WHERE name=? LIMIT 1`, name)
	return scanTerm(row)
}

// GetActive returns the single active term, or sql.ErrNoRows when none.
func (r *TermRepo) GetActive(ctx context.Context) (model.Term, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+termCols+` FROM terms WHERE is_active=1 LIMIT 1`)
	return scanTerm(row)
}

// List returns all terms, newest name first.
func (r *TermRepo) List(ctx context.Context) ([]model.Term, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+termCols+` FROM terms ORDER BY name DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Term
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetDates persists start/end dates, leaving nil values untouched.
func (r *TermRepo) SetDates(ctx context.Context, id uint64, start, end *time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE terms SET start_date=COALESCE(?, start_date), end_date=COALESCE(?, end_date) WHERE id=?`,
		start, end, id)
	return err
}

// DeactivateAll clears is_active on every term.
func (r *TermRepo) DeactivateAll(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE terms SET is_active=0 WHERE is_active=1`)
	return err
}

// Activate sets is_active on one term. Callers must deactivate the rest
// first to keep the invariant.
func (r *TermRepo) Activate(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE terms SET is_active=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		if err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM terms WHERE id=?`, id).Scan(&one); err != nil {
			return err
		}
	}
	return nil
}
