package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/adnanhaider/course-review-portal/internal/model"
)

// RatingRepo provides CRUD, listing and aggregation over ratings. All
// timestamps are stored in UTC. The unique (student_id, offering_id)
// index is relied upon to reject concurrent duplicate submissions.
type RatingRepo struct{ DB *sql.DB }

func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{DB: db} }

var ErrDuplicateRating = errors.New("offering already rated by this student")

// Create inserts a rating. Anonymized is forced on by the caller; the
// column default matches. Returns ErrDuplicateRating on the unique-index
// violation.
func (r *RatingRepo) Create(ctx context.Context, rt model.Rating) (uint64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO ratings
		(student_id, offering_id, overall_rating, obtained_marks, comment, anonymized)
		VALUES (?,?,?,?,?,?)`,
		rt.StudentID, rt.OfferingID, rt.OverallRating, rt.ObtainedMarks, rt.Comment, rt.Anonymized)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrDuplicateRating
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func scanRating(row interface{ Scan(...any) error }) (model.Rating, error) {
	var (
		rt      model.Rating
		comment sql.NullString
	)
	err := row.Scan(&rt.ID, &rt.StudentID, &rt.OfferingID, &rt.OverallRating,
		&rt.ObtainedMarks, &comment, &rt.Anonymized, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return rt, err
	}
	if comment.Valid {
		c := comment.String
		rt.Comment = &c
	}
	return rt, nil
}

// GetByID returns the raw rating row.
func (r *RatingRepo) GetByID(ctx context.Context, id uint64) (model.Rating, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, student_id, offering_id, overall_rating,
		obtained_marks, comment, anonymized, created_at, updated_at
		FROM ratings WHERE id=? LIMIT 1`, id)
	return scanRating(row)
}

// RatingPatch is a partial update; nil fields are left untouched.
// ClearComment sets the comment to NULL, which a nil Comment cannot
// express. Student edits always keep Anonymized true, admin edits may
// clear it.
type RatingPatch struct {
	OverallRating *int
	ObtainedMarks *float64
	Comment       *string
	ClearComment  bool
	Anonymized    *bool
}

// Update applies a patch to a rating.
func (r *RatingRepo) Update(ctx context.Context, id uint64, p RatingPatch) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE ratings SET
		overall_rating=COALESCE(?, overall_rating),
		obtained_marks=COALESCE(?, obtained_marks),
		comment=IF(?, NULL, COALESCE(?, comment)),
		anonymized=COALESCE(?, anonymized)
		WHERE id=?`,
		p.OverallRating, p.ObtainedMarks, p.ClearComment, p.Comment, p.Anonymized, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		if err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM ratings WHERE id=?`, id).Scan(&one); err != nil {
			return err
		}
	}
	return nil
}

// DistinctOfferingIDs returns the set of offerings a student has rated.
// The give-options screen excludes these.
func (r *RatingRepo) DistinctOfferingIDs(ctx context.Context, studentID uint64) (map[uint64]bool, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DISTINCT offering_id FROM ratings WHERE student_id=?`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]bool)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// ListForOffering returns every rating of one offering. Promotion walks
// these to build the frozen summary.
func (r *RatingRepo) ListForOffering(ctx context.Context, offeringID uint64) ([]model.Rating, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, student_id, offering_id, overall_rating,
		obtained_marks, comment, anonymized, created_at, updated_at
		FROM ratings WHERE offering_id=? ORDER BY created_at`, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Rating
	for rows.Next() {
		rt, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// Aggregates are the averages/count computed over a filtered rating set.
type Aggregates struct {
	AvgOverall float64 `json:"avg_overall"`
	AvgMarks   float64 `json:"avg_marks"`
	Count      int64   `json:"count"`
}

// AggregateForOffering computes live aggregates for one offering; used
// for the "pending" summary status where no frozen row exists yet.
func (r *RatingRepo) AggregateForOffering(ctx context.Context, offeringID uint64) (Aggregates, error) {
	var a Aggregates
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(AVG(overall_rating),0),
		COALESCE(AVG(obtained_marks),0), COUNT(*) FROM ratings WHERE offering_id=?`,
		offeringID).Scan(&a.AvgOverall, &a.AvgMarks, &a.Count)
	return a, err
}

// SearchQuery defines filters, sorting and pagination for the ratings
// listing. TermID restricts results to offerings of that term; the
// handler resolves "termActive=true" into the active term's id and
// short-circuits to an empty page when no term is active.
type SearchQuery struct {
	MinMarks *float64
	MinStars *int
	Search   string
	Student  *uint64
	TermID   *uint64
	Sort     string // createdAt | overallRating | obtainedMarks
	Order    string // asc | desc
	Page     int
	Limit    int
}

// RatingRow is a listing item: the rating joined with its student and
// offering display fields. Student identity is included for admin
// screens; public rendering honours Anonymized.
type RatingRow struct {
	ID            uint64    `json:"id"`
	StudentID     uint64    `json:"student_id"`
	StudentEmail  string    `json:"student_email"`
	StudentName   string    `json:"student_name"`
	OfferingID    uint64    `json:"offering_id"`
	CourseCode    string    `json:"course_code"`
	CourseTitle   string    `json:"course_title"`
	TeacherName   string    `json:"teacher_name"`
	TermName      *string   `json:"term_name"`
	OverallRating int       `json:"overall_rating"`
	ObtainedMarks float64   `json:"obtained_marks"`
	Comment       *string   `json:"comment"`
	Anonymized    bool      `json:"anonymized"`
	CreatedAt     time.Time `json:"created_at"`
}

var ratingSortCols = map[string]string{
	"createdAt":     "r.created_at",
	"overallRating": "r.overall_rating",
	"obtainedMarks": "r.obtained_marks",
}

// List returns one page of matching ratings, the total match count and
// the aggregates computed over the whole filtered set (not the page).
func (r *RatingRepo) List(ctx context.Context, q SearchQuery) ([]RatingRow, int64, Aggregates, error) {
	where := []string{"1=1"}
	args := []any{}

	if q.MinMarks != nil {
		where = append(where, "r.obtained_marks >= ?")
		args = append(args, *q.MinMarks)
	}
	if q.MinStars != nil {
		where = append(where, "r.overall_rating >= ?")
		args = append(args, *q.MinStars)
	}
	if q.Student != nil {
		where = append(where, "r.student_id = ?")
		args = append(args, *q.Student)
	}
	if q.TermID != nil {
		where = append(where, "o.term_id = ?")
		args = append(args, *q.TermID)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, `(LOWER(COALESCE(r.comment,'')) LIKE ?
			OR LOWER(u.email) LIKE ? OR LOWER(u.first_name) LIKE ? OR LOWER(u.last_name) LIKE ?)`)
		args = append(args, like, like, like, like)
	}
	cond := strings.Join(where, " AND ")

	const from = ` FROM ratings r
		JOIN users u ON u.id = r.student_id
		JOIN offerings o ON o.id = r.offering_id
		JOIN courses c ON c.id = o.course_id
		JOIN teachers t ON t.id = o.teacher_id
		LEFT JOIN terms tm ON tm.id = o.term_id
		WHERE `

	var total int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*)`+from+cond, args...).Scan(&total); err != nil {
		return nil, 0, Aggregates{}, err
	}

	var agg Aggregates
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(AVG(r.overall_rating),0),
		COALESCE(AVG(r.obtained_marks),0), COUNT(*)`+from+cond, args...).Scan(
		&agg.AvgOverall, &agg.AvgMarks, &agg.Count); err != nil {
		return nil, 0, Aggregates{}, err
	}

	sortCol, ok := ratingSortCols[q.Sort]
	if !ok {
		sortCol = "r.created_at"
	}
	dir := "DESC"
	if strings.EqualFold(q.Order, "asc") {
		dir = "ASC"
	}

	limit := q.Limit
	offset := (q.Page - 1) * q.Limit
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.DB.QueryContext(ctx, `SELECT r.id, r.student_id, u.email,
		CONCAT(u.first_name, ' ', u.last_name),
		r.offering_id, c.code, c.title, CONCAT(t.first_name, ' ', t.last_name), tm.name,
		r.overall_rating, r.obtained_marks, r.comment, r.anonymized, r.created_at`+
		from+cond+` ORDER BY `+sortCol+` `+dir+` LIMIT ? OFFSET ?`, argsData...)
	if err != nil {
		return nil, 0, Aggregates{}, err
	}
	defer rows.Close()

	out := make([]RatingRow, 0, limit)
	for rows.Next() {
		var (
			row      RatingRow
			termName sql.NullString
			comment  sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.StudentID, &row.StudentEmail, &row.StudentName,
			&row.OfferingID, &row.CourseCode, &row.CourseTitle, &row.TeacherName, &termName,
			&row.OverallRating, &row.ObtainedMarks, &comment, &row.Anonymized, &row.CreatedAt); err != nil {
			return nil, 0, Aggregates{}, err
		}
		if termName.Valid {
			n := termName.String
			row.TermName = &n
		}
		if comment.Valid {
			c := comment.String
			row.Comment = &c
		}
		row.StudentName = strings.TrimSpace(row.StudentName)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, Aggregates{}, err
	}
	return out, total, agg, nil
}
