package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/adnanhaider/course-review-portal/internal/model"
	"github.com/adnanhaider/course-review-portal/internal/repository"
)

func TestParseStudentEmail(t *testing.T) {
	se, ok := ParseStudentEmail("fa22-bse-031@cuivehari.edu.pk")
	if !ok {
		t.Fatal("valid email rejected")
	}
	if se.Season != "fa" || se.IntakeYear != 2022 || se.DegreeShort != "bse" || se.RollNumber != "031" {
		t.Fatalf("parsed = %+v", se)
	}

	if _, ok := ParseStudentEmail("  SP25-BBA-007@CUIVEHARI.EDU.PK  "); !ok {
		t.Fatal("case and whitespace should be normalized before matching")
	}

	invalid := []string{
		"fa22-bse-031@gmail.com",
		"wi22-bse-031@cuivehari.edu.pk",
		"fa22-b-031@cuivehari.edu.pk",
		"fa22-bse-31@cuivehari.edu.pk",
		"fa2022-bse-031@cuivehari.edu.pk",
		"admin@cuivehari.edu.pk",
		"",
	}
	for _, e := range invalid {
		if _, ok := ParseStudentEmail(e); ok {
			t.Fatalf("%q should be rejected", e)
		}
	}
}

func TestSemesterNumber(t *testing.T) {
	date := func(y int, m time.Month) time.Time {
		return time.Date(y, m, 15, 0, 0, 0, 0, time.UTC)
	}
	cases := []struct {
		season string
		intake int
		now    time.Time
		want   int
	}{
		{"fa", 2022, date(2022, time.October), 1},
		{"fa", 2022, date(2023, time.January), 1}, // January still belongs to the fall period
		{"fa", 2022, date(2023, time.February), 2},
		{"fa", 2022, date(2023, time.September), 2},
		{"fa", 2022, date(2023, time.October), 3},
		{"fa", 2022, date(2025, time.March), 6},
		{"sp", 2022, date(2022, time.March), 1},
		{"sp", 2022, date(2022, time.October), 2},
		{"sp", 2022, date(2023, time.January), 2},
		{"sp", 2022, date(2022, time.January), 1}, // before intake clamps to 1
		{"fa", 2024, date(2024, time.March), 1},   // before intake clamps to 1
	}
	for _, c := range cases {
		if got := SemesterNumber(c.season, c.intake, c.now); got != c.want {
			t.Fatalf("SemesterNumber(%s, %d, %s) = %d, want %d", c.season, c.intake, c.now.Format("2006-01"), got, c.want)
		}
	}
}

func TestResolveProgram(t *testing.T) {
	dept, prog, ok := ResolveProgram("bse")
	if !ok || dept != "Computer Science" || prog != "Software Engineering" {
		t.Fatalf("bse resolved to %q/%q ok=%v", dept, prog, ok)
	}
	if _, _, ok := ResolveProgram("BBA"); !ok {
		t.Fatal("lookup should be case-insensitive")
	}
	if _, _, ok := ResolveProgram("xyz"); ok {
		t.Fatal("unknown code should not resolve")
	}
}

func TestOfferingOpenTo(t *testing.T) {
	strp := func(s string) *string { return &s }
	intp := func(n int) *int { return &n }

	cases := []struct {
		name     string
		offering repository.OfferingDetail
		section  string
		semester *int
		want     bool
	}{
		{"both wildcards", repository.OfferingDetail{}, "A", nil, true},
		{"empty section is wildcard", repository.OfferingDetail{Section: strp("  ")}, "B", intp(3), true},
		{"section match", repository.OfferingDetail{Section: strp("A")}, "A", nil, true},
		{"section padded", repository.OfferingDetail{Section: strp(" A ")}, "A", nil, true},
		{"section mismatch", repository.OfferingDetail{Section: strp("A")}, "B", nil, false},
		{"semester match", repository.OfferingDetail{SemesterNumber: intp(3)}, "", intp(3), true},
		{"semester mismatch", repository.OfferingDetail{SemesterNumber: intp(3)}, "", intp(4), false},
		{"semester required but unknown", repository.OfferingDetail{SemesterNumber: intp(3)}, "", nil, false},
		{"both constrained both match", repository.OfferingDetail{Section: strp("A"), SemesterNumber: intp(5)}, "A", intp(5), true},
	}
	for _, c := range cases {
		if got := OfferingOpenTo(c.offering, c.section, c.semester); got != c.want {
			t.Fatalf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

type fakeEligibilityTerms struct {
	active  *model.Term
	byName  map[string]model.Term
	activeE error
}

func (f *fakeEligibilityTerms) GetActive(context.Context) (model.Term, error) {
	if f.activeE != nil {
		return model.Term{}, f.activeE
	}
	return *f.active, nil
}

func (f *fakeEligibilityTerms) GetByName(_ context.Context, name string) (model.Term, error) {
	t, ok := f.byName[name]
	if !ok {
		return model.Term{}, sql.ErrNoRows
	}
	return t, nil
}

type fakeEligibilityOfferings struct{ byTerm map[uint64][]repository.OfferingDetail }

func (f *fakeEligibilityOfferings) ListByTerm(_ context.Context, termID uint64) ([]repository.OfferingDetail, error) {
	return f.byTerm[termID], nil
}

type fakeEligibilityRatings struct{ rated map[uint64]bool }

func (f *fakeEligibilityRatings) DistinctOfferingIDs(context.Context, uint64) (map[uint64]bool, error) {
	return f.rated, nil
}

func TestEligibilityResolveNoActiveTerm(t *testing.T) {
	svc := &EligibilityService{
		Terms:     &fakeEligibilityTerms{activeE: sql.ErrNoRows},
		Offerings: &fakeEligibilityOfferings{},
		Ratings:   &fakeEligibilityRatings{},
	}
	out, err := svc.Resolve(context.Background(), model.User{ID: 1, Role: model.RoleStudent})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Status != "No active term found" {
		t.Fatalf("status = %q", out.Status)
	}
	if out.Offerings == nil || len(out.Offerings) != 0 {
		t.Fatalf("offerings should be an empty slice, got %#v", out.Offerings)
	}
	if out.ActiveTerm != nil || out.NextTerm != nil {
		t.Fatal("no terms expected")
	}
}

func TestEligibilityResolveFiltersAndNextTerm(t *testing.T) {
	strp := func(s string) *string { return &s }
	intp := func(n int) *int { return &n }

	active := model.Term{ID: 1, Name: "fa24", IsActive: true}
	next := model.Term{ID: 2, Name: "sp25"}
	offerings := []repository.OfferingDetail{
		{ID: 10, Section: strp("A"), SemesterNumber: intp(3)}, // matches
		{ID: 11, Section: strp("B"), SemesterNumber: intp(3)}, // wrong section
		{ID: 12},                                              // wildcard, but already rated
		{ID: 13},                                              // wildcard
	}
	svc := &EligibilityService{
		Terms:     &fakeEligibilityTerms{active: &active, byName: map[string]model.Term{"sp25": next}},
		Offerings: &fakeEligibilityOfferings{byTerm: map[uint64][]repository.OfferingDetail{1: offerings}},
		Ratings:   &fakeEligibilityRatings{rated: map[uint64]bool{12: true}},
	}

	student := model.User{ID: 7, Role: model.RoleStudent, Section: strp("A"), SemesterNumber: intp(3)}
	out, err := svc.Resolve(context.Background(), student)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(out.Offerings) != 2 || out.Offerings[0].ID != 10 || out.Offerings[1].ID != 13 {
		t.Fatalf("student offerings = %#v", out.Offerings)
	}
	if out.ActiveTerm == nil || out.ActiveTerm.ID != 1 {
		t.Fatalf("active term = %#v", out.ActiveTerm)
	}
	if out.NextTerm == nil || out.NextTerm.Name != "sp25" {
		t.Fatalf("next term = %#v", out.NextTerm)
	}
	if out.SelectedTerm == nil || *out.SelectedTerm != 1 {
		t.Fatalf("selected term = %v", out.SelectedTerm)
	}

	// Admins skip the enrollment predicate but still lose rated offerings.
	admin := model.User{ID: 8, Role: model.RoleAdmin}
	out, err = svc.Resolve(context.Background(), admin)
	if err != nil {
		t.Fatalf("resolve admin: %v", err)
	}
	if len(out.Offerings) != 3 {
		t.Fatalf("admin offerings = %#v", out.Offerings)
	}
}
