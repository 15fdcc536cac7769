package model

import "time"

// Roles stored in users.role. Teachers are catalog records, not logins.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User represents a row of the `users` table. Students carry the intake
// metadata parsed from their institution email at signup; admins leave
// those fields empty. IsActive stays false until the signup OTP is
// verified. Nullable columns are scanned into pointer fields.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	Role         string
	FirstName    string
	LastName     string
	IntakeSeason string // "fa" or "sp", from the email local part
	IntakeYear   int    // full year, 2000 + the two-digit email suffix
	DegreeShort  string // degree code such as "bse" or "bcs"
	RollNumber   string // kept as text to preserve leading zeros
	// SemesterNumber is the half-year semester count since intake.
	SemesterNumber *int
	DepartmentID   *uint64
	ProgramID      *uint64
	// Section and the fields below it arrive at the complete-profile step.
	Section         *string
	Phone           *string
	CGPA            *float64
	ProfileComplete bool
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FullName joins first and last name, tolerating either being empty.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
