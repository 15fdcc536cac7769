package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/adnanhaider/course-review-portal/internal/middleware"
	"github.com/adnanhaider/course-review-portal/internal/model"
	"github.com/adnanhaider/course-review-portal/internal/repository"
	"github.com/adnanhaider/course-review-portal/internal/service"
)

// Narrow store views over the repositories, so the write paths can be
// exercised against fakes. The concrete repos satisfy them as-is.
type ratingStore interface {
	Create(ctx context.Context, rt model.Rating) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.Rating, error)
	Update(ctx context.Context, id uint64, p repository.RatingPatch) error
	List(ctx context.Context, q repository.SearchQuery) ([]repository.RatingRow, int64, repository.Aggregates, error)
	AggregateForOffering(ctx context.Context, offeringID uint64) (repository.Aggregates, error)
}

type offeringDetailStore interface {
	GetDetail(ctx context.Context, id uint64) (repository.OfferingDetail, error)
}

type activeTermStore interface {
	GetActive(ctx context.Context) (model.Term, error)
}

type profileStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

type summaryReadStore interface {
	GetByOfferingTerm(ctx context.Context, offeringID, termID uint64) (model.RatingSummary, error)
	ListInactive(ctx context.Context, search string, page, limit int) ([]repository.SummaryRow, int64, error)
}

// RatingHandler serves the rating API: listing with aggregates, one
// rating per student per offering, owner edits while the term is open,
// and the stored-summary endpoints.
type RatingHandler struct {
	Ratings     ratingStore
	Offerings   offeringDetailStore
	Terms       activeTermStore
	Users       profileStore
	Summaries   summaryReadStore
	Eligibility *service.EligibilityService
	Cache       *service.SummaryCache
	Audit       service.AuditSink
}

type createRatingReq struct {
	OfferingID    uint64   `json:"offering_id"`
	OverallRating *int     `json:"overall_rating"`
	ObtainedMarks *float64 `json:"obtained_marks"`
	Comment       *string  `json:"comment"`
}

type updateRatingReq struct {
	OverallRating *int     `json:"overall_rating"`
	ObtainedMarks *float64 `json:"obtained_marks"`
	Comment       *string  `json:"comment"`
	Anonymized    *bool    `json:"anonymized"`
}

// commentPatch splits a comment edit into its patch value and a clear
// flag. An explicit empty (or blank) comment means "remove it", which a
// plain coalescing update cannot express.
func commentPatch(c *string) (*string, bool) {
	if c == nil {
		return nil, false
	}
	if strings.TrimSpace(*c) == "" {
		return nil, true
	}
	return c, false
}

// pageParams clamps page to >=1 and limit to 1..200 with a default of 25.
func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = 25
	}
	if limit > 200 {
		limit = 200
	}
	return page, limit
}

// List serves GET /api/ratings with filters, sorting, pagination and
// whole-set aggregates.
func (h *RatingHandler) List(c echo.Context) error {
	page, limit := pageParams(c)
	q := repository.SearchQuery{
		Search: c.QueryParam("search"),
		Sort:   c.QueryParam("sort"),
		Order:  c.QueryParam("order"),
		Page:   page,
		Limit:  limit,
	}
	if v := c.QueryParam("minMarks"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			q.MinMarks = &f
		}
	}
	if v := c.QueryParam("minStars"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.MinStars = &n
		}
	}
	if v := c.QueryParam("student"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			q.Student = &id
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// Accept either parameter name for the active-term restriction.
	termActive := c.QueryParam("termActive")
	if termActive == "" {
		termActive = c.QueryParam("activeTerm")
	}
	if termActive == "true" {
		active, err := h.Terms.GetActive(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			// No active term means an explicitly empty result set.
			return ok(c, http.StatusOK, echo.Map{
				"items": []repository.RatingRow{}, "total": 0,
				"page": page, "limit": limit,
				"aggregates": repository.Aggregates{},
			})
		}
		if err != nil {
			return fail(c, http.StatusInternalServerError, "query failed")
		}
		q.TermID = &active.ID
	}

	items, total, agg, err := h.Ratings.List(ctx, q)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	return ok(c, http.StatusOK, echo.Map{
		"items": items, "total": total, "page": page, "limit": limit, "aggregates": agg,
	})
}

// GetOne serves the student edit page.
func (h *RatingHandler) GetOne(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rt, err := h.Ratings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	detail, err := h.Offerings.GetDetail(ctx, rt.OfferingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	return ok(c, http.StatusOK, echo.Map{"rating": rt, "offering": detail})
}

// GiveOptions lists the offerings the caller may still rate in the
// active term.
func (h *RatingHandler) GiveOptions(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(uint64)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load user failed")
	}
	opts, err := h.Eligibility.Resolve(ctx, u)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	return ok(c, http.StatusOK, opts)
}

// Create submits a rating for an active-term offering. The enrollment
// predicate applied here is the same one give-options uses, so a student
// can only ever submit for offerings that screen showed them.
func (h *RatingHandler) Create(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(uint64)
	role, _ := c.Get(middleware.CtxRole).(string)

	var req createRatingReq
	if err := c.Bind(&req); err != nil || req.OfferingID == 0 {
		return fail(c, http.StatusBadRequest, "offering_id required")
	}
	if req.OverallRating == nil || *req.OverallRating < 1 || *req.OverallRating > 5 {
		return fail(c, http.StatusBadRequest, "overall_rating must be an integer between 1 and 5")
	}
	if req.ObtainedMarks == nil || *req.ObtainedMarks < 0 {
		return fail(c, http.StatusBadRequest, "obtained_marks must be zero or greater")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	detail, err := h.Offerings.GetDetail(ctx, req.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "offering not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if !detail.TermActive {
		return fail(c, http.StatusForbidden, "ratings for this offering are closed")
	}

	if role != model.RoleAdmin {
		u, err := h.Users.GetByID(ctx, uid)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "load user failed")
		}
		section := ""
		if u.Section != nil {
			section = *u.Section
		}
		if !service.OfferingOpenTo(detail, section, u.SemesterNumber) {
			return fail(c, http.StatusForbidden, "this offering is not open to your section or semester")
		}
	}

	id, err := h.Ratings.Create(ctx, model.Rating{
		StudentID:     uid,
		OfferingID:    req.OfferingID,
		OverallRating: *req.OverallRating,
		ObtainedMarks: *req.ObtainedMarks,
		Comment:       req.Comment,
		Anonymized:    true, // always stored anonymous regardless of input
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRating) {
			return fail(c, http.StatusConflict, "you already rated this offering")
		}
		return fail(c, http.StatusInternalServerError, "create failed")
	}
	h.record(ctx, "rating.create", &uid, "Rating", &id, echo.Map{"offering_id": req.OfferingID})
	return ok(c, http.StatusCreated, echo.Map{"id": id})
}

// Update lets the owner edit a rating while its term is still active.
// Promotion closes edits permanently.
func (h *RatingHandler) Update(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(uint64)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var req updateRatingReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.OverallRating != nil && (*req.OverallRating < 1 || *req.OverallRating > 5) {
		return fail(c, http.StatusBadRequest, "overall_rating must be an integer between 1 and 5")
	}
	if req.ObtainedMarks != nil && *req.ObtainedMarks < 0 {
		return fail(c, http.StatusBadRequest, "obtained_marks must be zero or greater")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rt, err := h.Ratings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if rt.StudentID != uid {
		return fail(c, http.StatusForbidden, "you can only edit your own rating")
	}
	detail, err := h.Offerings.GetDetail(ctx, rt.OfferingID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if !detail.TermActive {
		return fail(c, http.StatusForbidden, "term has been promoted and ratings are closed")
	}

	comment, clear := commentPatch(req.Comment)
	err = h.Ratings.Update(ctx, id, repository.RatingPatch{
		OverallRating: req.OverallRating,
		ObtainedMarks: req.ObtainedMarks,
		Comment:       comment,
		ClearComment:  clear,
		// Owner edits never un-anonymize.
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "not found")
		}
		return fail(c, http.StatusInternalServerError, "update failed")
	}
	h.record(ctx, "rating.update", &uid, "Rating", &id, nil)
	return ok(c, http.StatusOK, echo.Map{"message": "updated"})
}

// AdminUpdate patches any rating field, including anonymized. Role-gated
// by the router.
func (h *RatingHandler) AdminUpdate(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(uint64)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var req updateRatingReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Ratings.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	comment, clear := commentPatch(req.Comment)
	err = h.Ratings.Update(ctx, id, repository.RatingPatch{
		OverallRating: req.OverallRating,
		ObtainedMarks: req.ObtainedMarks,
		Comment:       comment,
		ClearComment:  clear,
		Anonymized:    req.Anonymized,
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "update failed")
	}
	h.record(ctx, "rating.adminUpdate", &uid, "Rating", &id, nil)
	return ok(c, http.StatusOK, echo.Map{"message": "updated"})
}

// Summary serves GET /api/ratings/summary?offering=N. Summaries are
// only ever produced by promotion: an active-term offering reports
// status "active", a past offering without a stored row reports
// "pending" with live aggregates.
func (h *RatingHandler) Summary(c echo.Context) error {
	offeringID, err := strconv.ParseUint(c.QueryParam("offering"), 10, 64)
	if err != nil || offeringID == 0 {
		return fail(c, http.StatusBadRequest, "offering required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	detail, err := h.Offerings.GetDetail(ctx, offeringID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "offering not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if detail.TermActive {
		return ok(c, http.StatusOK, echo.Map{
			"status":  "active",
			"message": "offering belongs to the active term; no stored summary",
		})
	}

	if detail.TermID != nil {
		if s, hit := h.Cache.GetStored(ctx, offeringID, *detail.TermID); hit {
			return ok(c, http.StatusOK, storedSummaryPayload(s))
		}
		s, err := h.Summaries.GetByOfferingTerm(ctx, offeringID, *detail.TermID)
		if err == nil {
			h.Cache.PutStored(ctx, s)
			return ok(c, http.StatusOK, storedSummaryPayload(s))
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusInternalServerError, "query failed")
		}
	}

	agg, err := h.Ratings.AggregateForOffering(ctx, offeringID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	return ok(c, http.StatusOK, echo.Map{
		"status":      "pending",
		"message":     "no stored summary",
		"count":       agg.Count,
		"avg_overall": agg.AvgOverall,
		"avg_marks":   agg.AvgMarks,
	})
}

func storedSummaryPayload(s model.RatingSummary) echo.Map {
	return echo.Map{
		"status":      "stored",
		"summary":     s.Summary,
		"avg_overall": s.AvgOverall,
		"avg_marks":   s.AvgMarks,
		"count":       s.Count,
		"created_at":  s.CreatedAt,
		"updated_at":  s.UpdatedAt,
	}
}

// ListSummaries serves GET /api/ratings/summaries: frozen digests of
// inactive terms, searchable and paginated, cached per page.
func (h *RatingHandler) ListSummaries(c echo.Context) error {
	page, limit := pageParams(c)
	search := strings.TrimSpace(c.QueryParam("search"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if raw, hit := h.Cache.GetList(ctx, search, page, limit); hit {
		var payload echo.Map
		if json.Unmarshal(raw, &payload) == nil {
			return ok(c, http.StatusOK, payload)
		}
	}

	items, total, err := h.Summaries.ListInactive(ctx, search, page, limit)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	payload := echo.Map{"items": items, "total": total, "page": page, "limit": limit}
	if raw, err := json.Marshal(payload); err == nil {
		h.Cache.PutList(ctx, search, page, limit, raw)
	}
	return ok(c, http.StatusOK, payload)
}

func (h *RatingHandler) record(ctx context.Context, action string, actorID *uint64, targetType string, targetID *uint64, details any) {
	if h.Audit != nil {
		h.Audit.Record(ctx, action, actorID, targetType, targetID, details)
	}
}
