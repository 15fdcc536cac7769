package model

import "time"

// Offering is one taught instance of a course by one teacher in one term,
// optionally restricted to a section and semester number. Section and
// SemesterNumber act as wildcards when unset: an offering without a
// section is open to every section of the matching semester.
//
// The table enforces uniqueness on (course_id, teacher_id, term_id,
// section) so duplicate identical offerings are rejected by the store.
type Offering struct {
	ID             uint64    `json:"id"`
	CourseID       uint64    `json:"course_id"`
	TeacherID      uint64    `json:"teacher_id"`
	Section        *string   `json:"section"`
	TermID         *uint64   `json:"term_id"`
	DepartmentID   *uint64   `json:"department_id"`
	ProgramID      *uint64   `json:"program_id"`
	SemesterNumber *int      `json:"semester_number"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
