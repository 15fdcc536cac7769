package repository

import (
	"context"
	"database/sql"

	"github.com/adnanhaider/course-review-portal/internal/model"
)

// OfferingRepo provides CRUD over offerings plus the joined detail rows
// the rating screens display. Uniqueness on (course_id, teacher_id,
// term_id, section) is enforced by the store.
type OfferingRepo struct{ DB *sql.DB }

func NewOfferingRepo(db *sql.DB) *OfferingRepo { return &OfferingRepo{DB: db} }

// OfferingDetail joins an offering with its course, teacher and term for
// display. Nullable relations come back as pointers.
type OfferingDetail struct {
	ID             uint64  `json:"id"`
	CourseID       uint64  `json:"course_id"`
	CourseCode     string  `json:"course_code"`
	CourseTitle    string  `json:"course_title"`
	TeacherID      uint64  `json:"teacher_id"`
	TeacherName    string  `json:"teacher_name"`
	Section        *string `json:"section"`
	TermID         *uint64 `json:"term_id"`
	TermName       *string `json:"term_name"`
	TermActive     bool    `json:"term_active"`
	SemesterNumber *int    `json:"semester_number"`
}

const offeringDetailQ = `SELECT o.id, o.course_id, c.code, c.title,
		o.teacher_id, CONCAT(t.first_name, ' ', t.last_name),
		o.section, o.term_id, tm.name, COALESCE(tm.is_active, 0), o.semester_number
	FROM offerings o
	JOIN courses c  ON c.id = o.course_id
	JOIN teachers t ON t.id = o.teacher_id
	LEFT JOIN terms tm ON tm.id = o.term_id`

func scanOfferingDetail(row interface{ Scan(...any) error }) (OfferingDetail, error) {
	var (
		d        OfferingDetail
		section  sql.NullString
		termID   sql.NullInt64
		termName sql.NullString
		sem      sql.NullInt64
	)
	err := row.Scan(&d.ID, &d.CourseID, &d.CourseCode, &d.CourseTitle,
		&d.TeacherID, &d.TeacherName, &section, &termID, &termName, &d.TermActive, &sem)
	if err != nil {
		return d, err
	}
	if section.Valid {
		s := section.String
		d.Section = &s
	}
	if termID.Valid {
		id := uint64(termID.Int64)
		d.TermID = &id
	}
	if termName.Valid {
		n := termName.String
		d.TermName = &n
	}
	if sem.Valid {
		n := int(sem.Int64)
		d.SemesterNumber = &n
	}
	return d, nil
}

// Create inserts an offering. Duplicate (course, teacher, term, section)
// rows are rejected by the unique index and surface as ErrConflict.
func (r *OfferingRepo) Create(ctx context.Context, o model.Offering) (uint64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO offerings
		(course_id, teacher_id, section, term_id, department_id, program_id, semester_number)
		VALUES (?,?,?,?,?,?,?)`,
		o.CourseID, o.TeacherID, o.Section, o.TermID, o.DepartmentID, o.ProgramID, o.SemesterNumber)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Exists reports whether an offering with the same identity already
// exists. Used by the class-add flow to keep re-uploads idempotent.
func (r *OfferingRepo) Exists(ctx context.Context, courseID, teacherID uint64, termID *uint64, section *string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM offerings
		WHERE course_id=? AND teacher_id=? AND (term_id <=> ?) AND (section <=> ?) LIMIT 1`,
		courseID, teacherID, termID, section).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByID returns the raw offering row.
func (r *OfferingRepo) GetByID(ctx context.Context, id uint64) (model.Offering, error) {
	var (
		o       model.Offering
		section sql.NullString
		termID  sql.NullInt64
		deptID  sql.NullInt64
		progID  sql.NullInt64
		sem     sql.NullInt64
	)
	err := r.DB.QueryRowContext(ctx, `SELECT id, course_id, teacher_id, section, term_id,
		department_id, program_id, semester_number, created_at, updated_at
		FROM offerings WHERE id=? LIMIT 1`, id).Scan(
		&o.ID, &o.CourseID, &o.TeacherID, &section, &termID, &deptID, &progID, &sem,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	if section.Valid {
		s := section.String
		o.Section = &s
	}
	if termID.Valid {
		v := uint64(termID.Int64)
		o.TermID = &v
	}
	if deptID.Valid {
		v := uint64(deptID.Int64)
		o.DepartmentID = &v
	}
	if progID.Valid {
		v := uint64(progID.Int64)
		o.ProgramID = &v
	}
	if sem.Valid {
		v := int(sem.Int64)
		o.SemesterNumber = &v
	}
	return o, nil
}

// GetDetail returns the joined display row for one offering.
func (r *OfferingRepo) GetDetail(ctx context.Context, id uint64) (OfferingDetail, error) {
	row := r.DB.QueryRowContext(ctx, offeringDetailQ+` WHERE o.id=? LIMIT 1`, id)
	return scanOfferingDetail(row)
}

// ListByTerm returns all offerings of a term as detail rows.
func (r *OfferingRepo) ListByTerm(ctx context.Context, termID uint64) ([]OfferingDetail, error) {
	rows, err := r.DB.QueryContext(ctx, offeringDetailQ+` WHERE o.term_id=? ORDER BY c.code, o.section`, termID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]OfferingDetail, 0)
	for rows.Next() {
		d, err := scanOfferingDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// IDsByTerm returns just the offering ids of a term. The active-term
// rating filter and the promotion loop both need only ids.
func (r *OfferingRepo) IDsByTerm(ctx context.Context, termID uint64) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM offerings WHERE term_id=?`, termID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Update patches section, semester number and term assignment.
func (r *OfferingRepo) Update(ctx context.Context, id uint64, section *string, semesterNumber *int, termID *uint64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE offerings SET
		section=COALESCE(?, section),
		semester_number=COALESCE(?, semester_number),
		term_id=COALESCE(?, term_id)
		WHERE id=?`, section, semesterNumber, termID, id)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		if err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM offerings WHERE id=?`, id).Scan(&one); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an offering unless ratings reference it.
func (r *OfferingRepo) Delete(ctx context.Context, id uint64) error {
	var n int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM ratings WHERE offering_id=?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM offerings WHERE id=?`, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
