package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/adnanhaider/course-review-portal/internal/model"
	"github.com/adnanhaider/course-review-portal/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already registered")

const userCols = `id, email, password_hash, role, first_name, last_name,
	COALESCE(intake_season,''), COALESCE(intake_year,0), COALESCE(degree_short,''), COALESCE(roll_number,''),
	semester_number, department_id, program_id, section, phone, cgpa,
	profile_complete, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u        model.User
		sem      sql.NullInt64
		deptID   sql.NullInt64
		progID   sql.NullInt64
		section  sql.NullString
		phone    sql.NullString
		cgpa     sql.NullFloat64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.FirstName, &u.LastName,
		&u.IntakeSeason, &u.IntakeYear, &u.DegreeShort, &u.RollNumber,
		&sem, &deptID, &progID, &section, &phone, &cgpa,
		&u.ProfileComplete, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, err
	}
	if sem.Valid {
		n := int(sem.Int64)
		u.SemesterNumber = &n
	}
	if deptID.Valid {
		id := uint64(deptID.Int64)
		u.DepartmentID = &id
	}
	if progID.Valid {
		id := uint64(progID.Int64)
		u.ProgramID = &id
	}
	if section.Valid {
		s := section.String
		u.Section = &s
	}
	if phone.Valid {
		p := phone.String
		u.Phone = &p
	}
	if cgpa.Valid {
		g := cgpa.Float64
		u.CGPA = &g
	}
	return u, nil
}

// Create inserts a user and returns its ID. The password is hashed here
// so callers never hold the hash. Students start inactive until OTP
// verification; admins created through the admin API pass active=true.
func (r *UserRepo) Create(ctx context.Context, u model.User, password string, cost int) (uint64, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO users
		(email, password_hash, role, first_name, last_name, intake_season, intake_year,
		 degree_short, roll_number, semester_number, department_id, program_id, is_active)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.Email, hash, u.Role, u.FirstName, u.LastName, nullStr(u.IntakeSeason), nullInt(u.IntakeYear),
		nullStr(u.DegreeShort), nullStr(u.RollNumber), u.SemesterNumber, u.DepartmentID, u.ProgramID, u.IsActive)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email=? LIMIT 1`, email)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=? LIMIT 1`, id)
	return scanUser(row)
}

// Activate flips is_active after a successful OTP verification.
func (r *UserRepo) Activate(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET is_active=1 WHERE id=?`, id)
	return err
}

// UpdatePassword replaces the stored hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, hash, id)
	return err
}

// CompleteProfile backfills the profile fields gathered after activation.
// CGPA is only stored for students past their first semester; the handler
// enforces that rule and passes nil otherwise.
func (r *UserRepo) CompleteProfile(ctx context.Context, id uint64, section, phone *string, cgpa *float64) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET
		section=COALESCE(?, section), phone=COALESCE(?, phone), cgpa=COALESCE(?, cgpa), profile_complete=1
		WHERE id=?`, section, phone, cgpa, id)
	return err
}

// BackfillProgram persists a lazily resolved department/program pair,
// filling only columns that are still null.
func (r *UserRepo) BackfillProgram(ctx context.Context, id, departmentID, programID uint64) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET
		department_id=COALESCE(department_id, ?), program_id=COALESCE(program_id, ?)
		WHERE id=?`, departmentID, programID, id)
	return err
}

// UserFilter narrows List; zero values mean no filtering.
type UserFilter struct {
	Role   string
	Search string // CI substring over email and names
	Page   int
	Limit  int
}

// List returns users matching the filter plus the total count before
// pagination.
func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]model.User, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Role != "" {
		where = append(where, "role=?")
		args = append(args, f.Role)
	}
	if f.Search != "" {
		s := "%" + strings.ToLower(strings.TrimSpace(f.Search)) + "%"
		where = append(where, "(LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?)")
		args = append(args, s, s, s)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	offset := (f.Page - 1) * f.Limit
	args = append(args, limit, offset)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE `+cond+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// AdminPatch carries the nullable partial update applied by the admin
// users endpoint. Nil pointers leave the column untouched.
type AdminPatch struct {
	Role            *string
	FirstName       *string
	LastName        *string
	Section         *string
	SemesterNumber  *int
	ProfileComplete *bool
	IsActive        *bool
}

// AdminUpdate applies a partial update to any user.
func (r *UserRepo) AdminUpdate(ctx context.Context, id uint64, p AdminPatch) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET
		role=COALESCE(?, role),
		first_name=COALESCE(?, first_name),
		last_name=COALESCE(?, last_name),
		section=COALESCE(?, section),
		semester_number=COALESCE(?, semester_number),
		profile_complete=COALESCE(?, profile_complete),
		is_active=COALESCE(?, is_active)
		WHERE id=?`,
		p.Role, p.FirstName, p.LastName, p.Section, p.SemesterNumber, p.ProfileComplete, p.IsActive, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// distinguish "no change" from "no row": re-check existence
		var one int
		if err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=?`, id).Scan(&one); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a user account. Ratings reference students, so deletion
// fails with ErrConflict while ratings exist.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	var n int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM ratings WHERE student_id=?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
