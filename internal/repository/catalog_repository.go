package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/adnanhaider/course-review-portal/internal/model"
)

// CatalogRepo manages the course/teacher/department/program reference
// tables. The manual class-add flow and the signup program mapping both
// work in find-or-create terms, so that is the surface exposed here.
type CatalogRepo struct{ DB *sql.DB }

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{DB: db} }

// FindOrCreateCourse upserts a course by its normalized code.
func (r *CatalogRepo) FindOrCreateCourse(ctx context.Context, code, title string) (model.Course, error) {
	code = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), " ", ""))
	if title == "" {
		title = code
	}
	var c model.Course
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, code, title FROM courses WHERE code=? LIMIT 1`, code).Scan(&c.ID, &c.Code, &c.Title)
	if err == nil {
		return c, nil
	}
	if err != sql.ErrNoRows {
		return c, err
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO courses (code, title) VALUES (?,?)`, code, title)
	if err != nil {
		return c, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return c, err
	}
	return model.Course{ID: uint64(id), Code: code, Title: title}, nil
}

// FindOrCreateTeacher upserts a teacher by case-insensitive first/last
// name match.
func (r *CatalogRepo) FindOrCreateTeacher(ctx context.Context, first, last string) (model.Teacher, error) {
	var t model.Teacher
	var email sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email FROM teachers
		 WHERE LOWER(first_name)=LOWER(?) AND LOWER(last_name)=LOWER(?) LIMIT 1`,
		first, last).Scan(&t.ID, &t.FirstName, &t.LastName, &email)
	if err == nil {
		if email.Valid {
			e := email.String
			t.Email = &e
		}
		return t, nil
	}
	if err != sql.ErrNoRows {
		return t, err
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO teachers (first_name, last_name) VALUES (?,?)`, first, last)
	if err != nil {
		return t, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return t, err
	}
	return model.Teacher{ID: uint64(id), FirstName: first, LastName: last}, nil
}

// FindOrCreateDepartment upserts a department by name.
func (r *CatalogRepo) FindOrCreateDepartment(ctx context.Context, name string) (model.Department, error) {
	name = strings.TrimSpace(name)
	var d model.Department
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name FROM departments WHERE name=? LIMIT 1`, name).Scan(&d.ID, &d.Name)
	if err == nil {
		return d, nil
	}
	if err != sql.ErrNoRows {
		return d, err
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO departments (name) VALUES (?)`, name)
	if err != nil {
		return d, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return d, err
	}
	return model.Department{ID: uint64(id), Name: name}, nil
}

// FindOrCreateProgram upserts a program under a department.
func (r *CatalogRepo) FindOrCreateProgram(ctx context.Context, name string, departmentID uint64) (model.Program, error) {
	name = strings.TrimSpace(name)
	var p model.Program
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, department_id FROM programs WHERE name=? AND department_id=? LIMIT 1`,
		name, departmentID).Scan(&p.ID, &p.Name, &p.DepartmentID)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return p, err
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO programs (name, department_id) VALUES (?,?)`, name, departmentID)
	if err != nil {
		return p, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return p, err
	}
	return model.Program{ID: uint64(id), Name: name, DepartmentID: departmentID}, nil
}

// ProgramNames resolves display names for a user's department/program
// pair; missing ids yield empty strings.
func (r *CatalogRepo) ProgramNames(ctx context.Context, departmentID, programID *uint64) (string, string, error) {
	var dept, prog string
	if departmentID != nil {
		if err := r.DB.QueryRowContext(ctx,
			`SELECT name FROM departments WHERE id=?`, *departmentID).Scan(&dept); err != nil && err != sql.ErrNoRows {
			return "", "", err
		}
	}
	if programID != nil {
		if err := r.DB.QueryRowContext(ctx,
			`SELECT name FROM programs WHERE id=?`, *programID).Scan(&prog); err != nil && err != sql.ErrNoRows {
			return "", "", err
		}
	}
	return dept, prog, nil
}
