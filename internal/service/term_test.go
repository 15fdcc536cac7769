package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/adnanhaider/course-review-portal/internal/model"
)

func TestValidTermName(t *testing.T) {
	for _, name := range []string{"fa24", "sp25", "fa00", "sp99"} {
		if !ValidTermName(name) {
			t.Fatalf("%q should be valid", name)
		}
	}
	for _, name := range []string{"", "fa2024", "wi24", "FA24", "fa24 ", "fa2"} {
		if ValidTermName(name) {
			t.Fatalf("%q should be invalid", name)
		}
	}
}

func TestNextTermName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"fa24", "sp25"},
		{"sp24", "fa24"},
		{"fa99", "sp100"},
		{"sp00", "fa00"},
	}
	for _, c := range cases {
		got, ok := NextTermName(c.in)
		if !ok || got != c.want {
			t.Fatalf("NextTermName(%q) = %q, %v; want %q", c.in, got, ok, c.want)
		}
	}
	if _, ok := NextTermName("bogus"); ok {
		t.Fatal("bogus name should not derive a successor")
	}
}

// fakeTerms is an in-memory termStore.
type fakeTerms struct {
	terms  map[uint64]*model.Term
	nextID uint64

	deactivateCalls int
	created         []string
}

func newFakeTerms(terms ...model.Term) *fakeTerms {
	f := &fakeTerms{terms: map[uint64]*model.Term{}}
	for i := range terms {
		tm := terms[i]
		f.terms[tm.ID] = &tm
		if tm.ID > f.nextID {
			f.nextID = tm.ID
		}
	}
	return f
}

func (f *fakeTerms) GetByID(_ context.Context, id uint64) (model.Term, error) {
	tm, ok := f.terms[id]
	if !ok {
		return model.Term{}, sql.ErrNoRows
	}
	return *tm, nil
}

func (f *fakeTerms) GetByName(_ context.Context, name string) (model.Term, error) {
	for _, tm := range f.terms {
		if tm.Name == name {
			return *tm, nil
		}
	}
	return model.Term{}, sql.ErrNoRows
}

func (f *fakeTerms) GetActive(context.Context) (model.Term, error) {
	for _, tm := range f.terms {
		if tm.IsActive {
			return *tm, nil
		}
	}
	return model.Term{}, sql.ErrNoRows
}

func (f *fakeTerms) Create(_ context.Context, name string, start, end *time.Time, active bool) (model.Term, error) {
	f.nextID++
	tm := model.Term{ID: f.nextID, Name: name, StartDate: start, EndDate: end, IsActive: active}
	f.terms[tm.ID] = &tm
	f.created = append(f.created, name)
	return tm, nil
}

func (f *fakeTerms) SetDates(_ context.Context, id uint64, start, end *time.Time) error {
	tm, ok := f.terms[id]
	if !ok {
		return sql.ErrNoRows
	}
	if start != nil {
		tm.StartDate = start
	}
	if end != nil {
		tm.EndDate = end
	}
	return nil
}

func (f *fakeTerms) DeactivateAll(context.Context) error {
	f.deactivateCalls++
	for _, tm := range f.terms {
		tm.IsActive = false
	}
	return nil
}

func (f *fakeTerms) Activate(_ context.Context, id uint64) error {
	tm, ok := f.terms[id]
	if !ok {
		return sql.ErrNoRows
	}
	tm.IsActive = true
	return nil
}

type fakeOfferingIDs struct {
	byTerm map[uint64][]uint64
	err    error
}

func (f *fakeOfferingIDs) IDsByTerm(_ context.Context, termID uint64) ([]uint64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byTerm[termID], nil
}

type fakeOfferingRatings struct {
	byOffering map[uint64][]model.Rating
	failFor    map[uint64]error
}

func (f *fakeOfferingRatings) ListForOffering(_ context.Context, offeringID uint64) ([]model.Rating, error) {
	if err := f.failFor[offeringID]; err != nil {
		return nil, err
	}
	return f.byOffering[offeringID], nil
}

type fakeSummaries struct {
	stored []model.RatingSummary
	err    error
}

func (f *fakeSummaries) Upsert(_ context.Context, s model.RatingSummary) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, s)
	return nil
}

type fakeAudit struct{ actions []string }

func (f *fakeAudit) Record(_ context.Context, action string, _ *uint64, _ string, _ *uint64, _ any) {
	f.actions = append(f.actions, action)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newTermService(terms *fakeTerms, offerings *fakeOfferingIDs, ratings *fakeOfferingRatings, summaries *fakeSummaries) (*TermService, *fakeAudit) {
	audit := &fakeAudit{}
	if offerings == nil {
		offerings = &fakeOfferingIDs{}
	}
	if ratings == nil {
		ratings = &fakeOfferingRatings{}
	}
	if summaries == nil {
		summaries = &fakeSummaries{}
	}
	return &TermService{Terms: terms, Offerings: offerings, Ratings: ratings, Summaries: summaries, Audit: audit}, audit
}

func TestCreateTermRejectsBadName(t *testing.T) {
	svc, _ := newTermService(newFakeTerms(), nil, nil, nil)
	if _, err := svc.CreateTerm(context.Background(), nil, "fall24", nil, nil, false); !errors.Is(err, ErrTermName) {
		t.Fatalf("err = %v, want ErrTermName", err)
	}
}

func TestCreateTermActiveDisplacesCurrent(t *testing.T) {
	terms := newFakeTerms(model.Term{ID: 1, Name: "fa24", IsActive: true})
	svc, audit := newTermService(terms, nil, nil, nil)

	created, err := svc.CreateTerm(context.Background(), nil, "sp25", nil, nil, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.IsActive {
		t.Fatal("created term should be active")
	}
	if old := terms.terms[1]; old.IsActive {
		t.Fatal("previous active term should have been deactivated")
	}
	if len(audit.actions) != 1 || audit.actions[0] != "term.create" {
		t.Fatalf("audit actions = %v", audit.actions)
	}
}

func TestActivateTermRequiresDates(t *testing.T) {
	terms := newFakeTerms(model.Term{ID: 1, Name: "fa24"})
	svc, _ := newTermService(terms, nil, nil, nil)

	if _, err := svc.ActivateTerm(context.Background(), nil, 1); !errors.Is(err, ErrTermDates) {
		t.Fatalf("err = %v, want ErrTermDates", err)
	}

	terms.terms[1].StartDate = datePtr(2024, time.September, 1)
	terms.terms[1].EndDate = datePtr(2025, time.January, 15)
	got, err := svc.ActivateTerm(context.Background(), nil, 1)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !got.IsActive || !terms.terms[1].IsActive {
		t.Fatal("term should be active")
	}
}

func TestPromoteTerm(t *testing.T) {
	comment := "great course overall"
	terms := newFakeTerms(
		model.Term{ID: 1, Name: "fa24", IsActive: true,
			StartDate: datePtr(2024, time.September, 1), EndDate: datePtr(2025, time.January, 15)},
		model.Term{ID: 2, Name: "sp25",
			StartDate: datePtr(2025, time.February, 1), EndDate: datePtr(2025, time.June, 15)},
	)
	offerings := &fakeOfferingIDs{byTerm: map[uint64][]uint64{1: {10, 11, 12}}}
	ratings := &fakeOfferingRatings{
		byOffering: map[uint64][]model.Rating{
			10: {
				{OverallRating: 4, ObtainedMarks: 80, Comment: &comment},
				{OverallRating: 2, ObtainedMarks: 60},
			},
			// 11 has no ratings and must be skipped.
		},
		failFor: map[uint64]error{12: errors.New("boom")},
	}
	summaries := &fakeSummaries{}
	svc, audit := newTermService(terms, offerings, ratings, summaries)

	out, err := svc.PromoteTerm(context.Background(), nil, 2, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}

	if out.Activated.ID != 2 || !out.Activated.IsActive {
		t.Fatalf("activated = %+v", out.Activated)
	}
	if terms.terms[1].IsActive {
		t.Fatal("outgoing term should be inactive")
	}
	if out.Next.Name != "fa25" || out.Next.IsActive {
		t.Fatalf("next = %+v", out.Next)
	}
	if out.Summarized != 1 || out.Skipped != 1 || out.Failed != 1 {
		t.Fatalf("counters = %+v", out)
	}

	if len(summaries.stored) != 1 {
		t.Fatalf("stored %d summaries, want 1", len(summaries.stored))
	}
	s := summaries.stored[0]
	if s.OfferingID != 10 || s.TermID != 1 {
		t.Fatalf("summary keyed %d/%d, want 10/1", s.OfferingID, s.TermID)
	}
	if s.AvgOverall != 3 || s.AvgMarks != 70 {
		t.Fatalf("summary averages %v/%v, want 3/70", s.AvgOverall, s.AvgMarks)
	}
	if s.Count != 1 { // one rating carried a comment
		t.Fatalf("summary count = %d, want 1", s.Count)
	}

	if len(audit.actions) == 0 || audit.actions[len(audit.actions)-1] != "term.promote" {
		t.Fatalf("audit actions = %v", audit.actions)
	}
}

func TestPromoteTermIdempotentSuccessor(t *testing.T) {
	terms := newFakeTerms(
		model.Term{ID: 2, Name: "sp25",
			StartDate: datePtr(2025, time.February, 1), EndDate: datePtr(2025, time.June, 15)},
		model.Term{ID: 3, Name: "fa25"},
	)
	svc, _ := newTermService(terms, nil, nil, nil)

	out, err := svc.PromoteTerm(context.Background(), nil, 2, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if out.Next.ID != 3 {
		t.Fatalf("existing successor should be reused, got %+v", out.Next)
	}
	if len(terms.created) != 0 {
		t.Fatalf("no term should be created, got %v", terms.created)
	}
}

func TestPromoteTermRequiresDates(t *testing.T) {
	terms := newFakeTerms(model.Term{ID: 2, Name: "sp25"})
	svc, _ := newTermService(terms, nil, nil, nil)

	if _, err := svc.PromoteTerm(context.Background(), nil, 2, nil, nil, nil, nil); !errors.Is(err, ErrTermDates) {
		t.Fatalf("err = %v, want ErrTermDates", err)
	}

	// Supplying dates in the promote call persists them first.
	start, end := datePtr(2025, time.February, 1), datePtr(2025, time.June, 15)
	out, err := svc.PromoteTerm(context.Background(), nil, 2, start, end, nil, nil)
	if err != nil {
		t.Fatalf("promote with dates: %v", err)
	}
	if out.Activated.StartDate == nil || !out.Activated.StartDate.Equal(*start) {
		t.Fatalf("start date not persisted: %+v", out.Activated)
	}
}

func TestPromoteTermMissingTarget(t *testing.T) {
	svc, _ := newTermService(newFakeTerms(), nil, nil, nil)
	if _, err := svc.PromoteTerm(context.Background(), nil, 99, nil, nil, nil, nil); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}
