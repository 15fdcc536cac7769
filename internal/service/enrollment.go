package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/adnanhaider/course-review-portal/internal/model"
	"github.com/adnanhaider/course-review-portal/internal/repository"
)

// Institution email shape: fa22-bse-031@cuivehari.edu.pk. The local part
// encodes intake season+year, degree short code and roll number.
var studentEmailPattern = regexp.MustCompile(`^(fa|sp)(\d{2})-([a-z]{2,4})-(\d{3})@cuivehari\.edu\.pk$`)

// StudentEmail is the parsed local part of an institution address.
type StudentEmail struct {
	Season      string
	IntakeYear  int
	DegreeShort string
	RollNumber  string
}

// ParseStudentEmail validates and decomposes an institution email. The
// input is lowercased before matching.
func ParseStudentEmail(email string) (StudentEmail, bool) {
	m := studentEmailPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(email)))
	if m == nil {
		return StudentEmail{}, false
	}
	yy, _ := strconv.Atoi(m[2])
	return StudentEmail{
		Season:      m[1],
		IntakeYear:  2000 + yy,
		DegreeShort: m[3],
		RollNumber:  m[4],
	}, true
}

// periodIndex maps a date onto half-year periods. Feb-Sep is period 0 of
// its year, Oct-Dec period 1, and January belongs to the previous year's
// period 1.
func periodIndex(t time.Time) int {
	y, m := t.Year(), int(t.Month())
	switch {
	case m == 1:
		return (y-1)*2 + 1
	case m <= 9:
		return y * 2
	default:
		return y*2 + 1
	}
}

// SemesterNumber counts half-year semesters since intake, clamped to a
// minimum of 1. Fall intakes start in period 1 of their year, spring
// intakes in period 0.
func SemesterNumber(season string, intakeYear int, now time.Time) int {
	intake := intakeYear * 2
	if season == "fa" {
		intake++
	}
	n := periodIndex(now) - intake + 1
	if n < 1 {
		n = 1
	}
	return n
}

// degreePrograms maps degree short codes from the email local part to
// department and program names. Extend as new programs enroll.
var degreePrograms = map[string]struct{ Department, Program string }{
	"bse": {"Computer Science", "Software Engineering"},
	"ben": {"Computer Science", "Computer Engineering"},
	"bcs": {"Computer Science", "Computer Science"},
	"bba": {"Business", "Business Administration"},
}

// ResolveProgram returns the department and program names for a degree
// short code, or ok=false when the code is unmapped.
func ResolveProgram(degreeShort string) (department, program string, ok bool) {
	e, ok := degreePrograms[strings.ToLower(degreeShort)]
	return e.Department, e.Program, ok
}

// OfferingOpenTo is the shared enrollment predicate: an offering without
// a section or semester number is a wildcard open to everyone, otherwise
// both must match the student's. Used by give-options and again when a
// rating is created, so the two can never disagree.
func OfferingOpenTo(o repository.OfferingDetail, section string, semesterNumber *int) bool {
	section = strings.TrimSpace(section)
	if o.Section != nil && strings.TrimSpace(*o.Section) != "" && strings.TrimSpace(*o.Section) != section {
		return false
	}
	if o.SemesterNumber != nil {
		if semesterNumber == nil || *o.SemesterNumber != *semesterNumber {
			return false
		}
	}
	return true
}

// GiveOptions is the payload for the "what can I rate" screen.
type GiveOptions struct {
	Offerings    []repository.OfferingDetail `json:"offerings"`
	ActiveTerm   *model.Term                 `json:"active_term"`
	NextTerm     *model.Term                 `json:"next_term"`
	SelectedTerm *uint64                     `json:"selected_term"`
	Status       string                      `json:"status,omitempty"`
}

type eligibilityTermStore interface {
	GetActive(ctx context.Context) (model.Term, error)
	GetByName(ctx context.Context, name string) (model.Term, error)
}

type eligibilityOfferingStore interface {
	ListByTerm(ctx context.Context, termID uint64) ([]repository.OfferingDetail, error)
}

type eligibilityRatingStore interface {
	DistinctOfferingIDs(ctx context.Context, studentID uint64) (map[uint64]bool, error)
}

// EligibilityService resolves the set of offerings a caller may rate in
// the active term.
type EligibilityService struct {
	Terms     eligibilityTermStore
	Offerings eligibilityOfferingStore
	Ratings   eligibilityRatingStore
}

// Resolve returns eligible offerings for the user. No active term is a
// normal state, not an error: the result is empty with an explanatory
// status. Admins skip the enrollment predicate but still lose offerings
// they have already rated.
func (s *EligibilityService) Resolve(ctx context.Context, user model.User) (GiveOptions, error) {
	active, err := s.Terms.GetActive(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return GiveOptions{Offerings: []repository.OfferingDetail{}, Status: "No active term found"}, nil
	}
	if err != nil {
		return GiveOptions{}, err
	}

	all, err := s.Offerings.ListByTerm(ctx, active.ID)
	if err != nil {
		return GiveOptions{}, err
	}

	rated, err := s.Ratings.DistinctOfferingIDs(ctx, user.ID)
	if err != nil {
		return GiveOptions{}, err
	}

	section := ""
	if user.Section != nil {
		section = *user.Section
	}
	eligible := make([]repository.OfferingDetail, 0, len(all))
	for _, o := range all {
		if rated[o.ID] {
			continue
		}
		if user.Role != model.RoleAdmin && !OfferingOpenTo(o, section, user.SemesterNumber) {
			continue
		}
		eligible = append(eligible, o)
	}

	out := GiveOptions{
		Offerings:    eligible,
		ActiveTerm:   &active,
		SelectedTerm: &active.ID,
	}
	// Look up the succeeding term by derived name; never create it here.
	if nextName, ok := NextTermName(active.Name); ok {
		if next, err := s.Terms.GetByName(ctx, nextName); err == nil {
			out.NextTerm = &next
		}
	}
	return out, nil
}
