package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/adnanhaider/course-review-portal/internal/model"
)

// SummaryRepo persists the frozen per-offering rating digests produced by
// term promotion. Rows are only ever written through Upsert during a
// promotion; reads never recompute anything.
type SummaryRepo struct{ DB *sql.DB }

func NewSummaryRepo(db *sql.DB) *SummaryRepo { return &SummaryRepo{DB: db} }

// Upsert writes a summary keyed by (offering, term). Re-running a
// promotion overwrites the previous digest, which keeps the workflow
// idempotent.
func (r *SummaryRepo) Upsert(ctx context.Context, s model.RatingSummary) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO rating_summaries
		(offering_id, term_id, summary, avg_overall, avg_marks, count)
		VALUES (?,?,?,?,?,?)
		ON DUPLICATE KEY UPDATE summary=VALUES(summary), avg_overall=VALUES(avg_overall),
			avg_marks=VALUES(avg_marks), count=VALUES(count)`,
		s.OfferingID, s.TermID, s.Summary, s.AvgOverall, s.AvgMarks, s.Count)
	return err
}

// GetByOfferingTerm returns the stored digest for one offering in one
// term, or sql.ErrNoRows.
func (r *SummaryRepo) GetByOfferingTerm(ctx context.Context, offeringID, termID uint64) (model.RatingSummary, error) {
	var s model.RatingSummary
	err := r.DB.QueryRowContext(ctx, `SELECT id, offering_id, term_id, summary,
		avg_overall, avg_marks, count, created_at, updated_at
		FROM rating_summaries WHERE offering_id=? AND term_id=? LIMIT 1`,
		offeringID, termID).Scan(&s.ID, &s.OfferingID, &s.TermID, &s.Summary,
		&s.AvgOverall, &s.AvgMarks, &s.Count, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// SummaryRow is a listing item: the digest joined with its offering and
// term display fields.
type SummaryRow struct {
	ID          uint64  `json:"id"`
	OfferingID  uint64  `json:"offering_id"`
	CourseCode  string  `json:"course_code"`
	CourseTitle string  `json:"course_title"`
	TeacherName string  `json:"teacher_name"`
	Section     *string `json:"section"`
	TermID      uint64  `json:"term_id"`
	TermName    string  `json:"term_name"`
	Summary     string  `json:"summary"`
	AvgOverall  float64 `json:"avg_overall"`
	AvgMarks    float64 `json:"avg_marks"`
	Count       int     `json:"count"`
	UpdatedAt   string  `json:"updated_at"`
}

// ListInactive returns stored summaries belonging to inactive terms only,
// newest first, with a case-insensitive search across course, teacher,
// term name and the summary text.
func (r *SummaryRepo) ListInactive(ctx context.Context, search string, page, limit int) ([]SummaryRow, int64, error) {
	where := []string{"tm.is_active = 0"}
	args := []any{}
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, `(LOWER(c.code) LIKE ? OR LOWER(c.title) LIKE ?
			OR LOWER(CONCAT(t.first_name, ' ', t.last_name)) LIKE ?
			OR LOWER(tm.name) LIKE ? OR LOWER(rs.summary) LIKE ?)`)
		args = append(args, like, like, like, like, like)
	}
	cond := strings.Join(where, " AND ")

	const from = ` FROM rating_summaries rs
		JOIN offerings o ON o.id = rs.offering_id
		JOIN courses c ON c.id = o.course_id
		JOIN teachers t ON t.id = o.teacher_id
		JOIN terms tm ON tm.id = rs.term_id
		WHERE `

	var total int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*)`+from+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	argsData := append(append([]any{}, args...), limit, offset)
	rows, err := r.DB.QueryContext(ctx, `SELECT rs.id, rs.offering_id, c.code, c.title,
		CONCAT(t.first_name, ' ', t.last_name), o.section, rs.term_id, tm.name,
		rs.summary, rs.avg_overall, rs.avg_marks, rs.count,
		DATE_FORMAT(rs.updated_at, '%Y-%m-%dT%TZ')`+
		from+cond+` ORDER BY rs.updated_at DESC, rs.created_at DESC LIMIT ? OFFSET ?`, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]SummaryRow, 0, limit)
	for rows.Next() {
		var (
			row     SummaryRow
			section sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.OfferingID, &row.CourseCode, &row.CourseTitle,
			&row.TeacherName, &section, &row.TermID, &row.TermName,
			&row.Summary, &row.AvgOverall, &row.AvgMarks, &row.Count, &row.UpdatedAt); err != nil {
			return nil, 0, err
		}
		if section.Valid {
			s := section.String
			row.Section = &s
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
