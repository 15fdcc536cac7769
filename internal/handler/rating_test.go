package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/adnanhaider/course-review-portal/internal/middleware"
	"github.com/adnanhaider/course-review-portal/internal/model"
	"github.com/adnanhaider/course-review-portal/internal/repository"
)

func TestPageParams(t *testing.T) {
	cases := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 25},
		{"page=3&limit=50", 3, 50},
		{"page=0&limit=0", 1, 25},
		{"page=-2&limit=-5", 1, 25},
		{"page=abc&limit=xyz", 1, 25},
		{"limit=200", 1, 200},
		{"limit=5000", 1, 200},
	}
	e := echo.New()
	for _, c := range cases {
		req := httptest.NewRequest("GET", "/api/ratings?"+c.query, nil)
		ctx := e.NewContext(req, httptest.NewRecorder())
		page, limit := pageParams(ctx)
		if page != c.wantPage || limit != c.wantLimit {
			t.Fatalf("query %q: got page=%d limit=%d, want page=%d limit=%d",
				c.query, page, limit, c.wantPage, c.wantLimit)
		}
	}
}

type fakeRatingStore struct {
	createErr error
	rows      map[uint64]model.Rating
	patched   *repository.RatingPatch
}

func (f *fakeRatingStore) Create(_ context.Context, _ model.Rating) (uint64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	return 1, nil
}

func (f *fakeRatingStore) GetByID(_ context.Context, id uint64) (model.Rating, error) {
	rt, ok := f.rows[id]
	if !ok {
		return model.Rating{}, sql.ErrNoRows
	}
	return rt, nil
}

func (f *fakeRatingStore) Update(_ context.Context, _ uint64, p repository.RatingPatch) error {
	f.patched = &p
	return nil
}

func (f *fakeRatingStore) List(_ context.Context, _ repository.SearchQuery) ([]repository.RatingRow, int64, repository.Aggregates, error) {
	return nil, 0, repository.Aggregates{}, nil
}

func (f *fakeRatingStore) AggregateForOffering(_ context.Context, _ uint64) (repository.Aggregates, error) {
	return repository.Aggregates{}, nil
}

type fakeOfferingDetails struct {
	details map[uint64]repository.OfferingDetail
}

func (f *fakeOfferingDetails) GetDetail(_ context.Context, id uint64) (repository.OfferingDetail, error) {
	d, ok := f.details[id]
	if !ok {
		return repository.OfferingDetail{}, sql.ErrNoRows
	}
	return d, nil
}

type fakeProfiles struct {
	users map[uint64]model.User
}

func (f *fakeProfiles) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

func ratingCtx(e *echo.Echo, method, target, body string, uid uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.CtxUserID, uid)
	c.Set(middleware.CtxRole, role)
	return c, rec
}

func TestCreateRatingDuplicateConflict(t *testing.T) {
	h := &RatingHandler{
		Ratings:   &fakeRatingStore{createErr: repository.ErrDuplicateRating},
		Offerings: &fakeOfferingDetails{details: map[uint64]repository.OfferingDetail{4: {ID: 4, TermActive: true}}},
		Users:     &fakeProfiles{users: map[uint64]model.User{7: {ID: 7, Role: model.RoleStudent}}},
	}
	e := echo.New()
	c, rec := ratingCtx(e, http.MethodPost, "/api/ratings",
		`{"offering_id":4,"overall_rating":4,"obtained_marks":71.5}`, 7, model.RoleStudent)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("second rating for same offering: got status %d, want %d", rec.Code, http.StatusConflict)
	}
	if !strings.Contains(rec.Body.String(), "already rated") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestCreateRatingClosedTerm(t *testing.T) {
	h := &RatingHandler{
		Ratings:   &fakeRatingStore{},
		Offerings: &fakeOfferingDetails{details: map[uint64]repository.OfferingDetail{4: {ID: 4, TermActive: false}}},
		Users:     &fakeProfiles{users: map[uint64]model.User{7: {ID: 7, Role: model.RoleStudent}}},
	}
	e := echo.New()
	c, rec := ratingCtx(e, http.MethodPost, "/api/ratings",
		`{"offering_id":4,"overall_rating":3,"obtained_marks":50}`, 7, model.RoleStudent)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("rating a past-term offering: got status %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestUpdateRatingClosedAfterPromotion(t *testing.T) {
	h := &RatingHandler{
		Ratings: &fakeRatingStore{rows: map[uint64]model.Rating{
			5: {ID: 5, StudentID: 7, OfferingID: 4, OverallRating: 4},
		}},
		Offerings: &fakeOfferingDetails{details: map[uint64]repository.OfferingDetail{4: {ID: 4, TermActive: false}}},
	}
	e := echo.New()
	c, rec := ratingCtx(e, http.MethodPut, "/api/ratings/5", `{"overall_rating":2}`, 7, model.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues("5")
	if err := h.Update(c); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("edit after promotion: got status %d, want %d", rec.Code, http.StatusForbidden)
	}
	if !strings.Contains(rec.Body.String(), "closed") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestUpdateRatingWrongOwner(t *testing.T) {
	h := &RatingHandler{
		Ratings: &fakeRatingStore{rows: map[uint64]model.Rating{
			5: {ID: 5, StudentID: 7, OfferingID: 4},
		}},
		Offerings: &fakeOfferingDetails{details: map[uint64]repository.OfferingDetail{4: {ID: 4, TermActive: true}}},
	}
	e := echo.New()
	c, rec := ratingCtx(e, http.MethodPut, "/api/ratings/5", `{"overall_rating":2}`, 8, model.RoleStudent)
	c.SetParamNames("id")
	c.SetParamValues("5")
	if err := h.Update(c); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("editing someone else's rating: got status %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAdminUpdateClearsComment(t *testing.T) {
	rts := &fakeRatingStore{rows: map[uint64]model.Rating{
		5: {ID: 5, StudentID: 7, OfferingID: 4},
	}}
	h := &RatingHandler{Ratings: rts}
	e := echo.New()

	c, rec := ratingCtx(e, http.MethodPut, "/api/admin/ratings/5", `{"comment":"   "}`, 1, model.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("5")
	if err := h.AdminUpdate(c); err != nil {
		t.Fatalf("AdminUpdate: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	if rts.patched == nil || !rts.patched.ClearComment || rts.patched.Comment != nil {
		t.Fatalf("blank comment should request a clear, got %+v", rts.patched)
	}

	c, rec = ratingCtx(e, http.MethodPut, "/api/admin/ratings/5", `{"comment":"better than expected"}`, 1, model.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("5")
	if err := h.AdminUpdate(c); err != nil {
		t.Fatalf("AdminUpdate: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	if rts.patched.ClearComment || rts.patched.Comment == nil || *rts.patched.Comment != "better than expected" {
		t.Fatalf("non-empty comment should pass through, got %+v", rts.patched)
	}
}
