package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/adnanhaider/course-review-portal/internal/middleware"
	"github.com/adnanhaider/course-review-portal/internal/repository"
	"github.com/adnanhaider/course-review-portal/internal/service"
)

// AdminTermHandler exposes the term lifecycle to administrators. The
// actual workflow lives in service.TermService; this layer parses,
// authorizes and maps errors.
type AdminTermHandler struct {
	Terms     *repository.TermRepo
	Lifecycle *service.TermService
	Cache     *service.SummaryCache
}

type termReq struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`
	IsActive  bool   `json:"is_active"`
}

type promoteReq struct {
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	NextStartDate string `json:"next_start_date"`
	NextEndDate   string `json:"next_end_date"`
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func actorID(c echo.Context) *uint64 {
	if uid, ok := c.Get(middleware.CtxUserID).(uint64); ok && uid != 0 {
		return &uid
	}
	return nil
}

// List returns every term, newest first.
func (h *AdminTermHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	terms, err := h.Terms.List(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	return ok(c, http.StatusOK, terms)
}

// Create adds a term; creating it active displaces the current one.
func (h *AdminTermHandler) Create(c echo.Context) error {
	var req termReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return fail(c, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return fail(c, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	term, err := h.Lifecycle.CreateTerm(ctx, actorID(c), strings.TrimSpace(req.Name), start, end, req.IsActive)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTermName):
			return fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrTermNameExists):
			return fail(c, http.StatusConflict, "term name already exists")
		default:
			return fail(c, http.StatusInternalServerError, "create failed")
		}
	}
	return ok(c, http.StatusCreated, term)
}

// UpdateDates patches start/end dates without touching activation.
func (h *AdminTermHandler) UpdateDates(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var req termReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return fail(c, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return fail(c, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Terms.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "term not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if err := h.Terms.SetDates(ctx, id, start, end); err != nil {
		return fail(c, http.StatusInternalServerError, "update failed")
	}
	term, err := h.Terms.GetByID(ctx, id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	return ok(c, http.StatusOK, term)
}

// Activate makes one term the single active term.
func (h *AdminTermHandler) Activate(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	term, err := h.Lifecycle.ActivateTerm(ctx, actorID(c), id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fail(c, http.StatusNotFound, "term not found")
		case errors.Is(err, service.ErrTermDates):
			return fail(c, http.StatusBadRequest, err.Error())
		default:
			return fail(c, http.StatusInternalServerError, "activate failed")
		}
	}
	return ok(c, http.StatusOK, term)
}

// Promote runs the end-of-term workflow and invalidates the summary
// cache afterwards, since the stored summaries just changed.
func (h *AdminTermHandler) Promote(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var req promoteReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return fail(c, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return fail(c, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
	}
	nextStart, err := parseDate(req.NextStartDate)
	if err != nil {
		return fail(c, http.StatusBadRequest, "next_start_date must be YYYY-MM-DD")
	}
	nextEnd, err := parseDate(req.NextEndDate)
	if err != nil {
		return fail(c, http.StatusBadRequest, "next_end_date must be YYYY-MM-DD")
	}

	// Promotion walks every offering of the outgoing term; give it more
	// room than the usual per-query timeout.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	outcome, err := h.Lifecycle.PromoteTerm(ctx, actorID(c), id, start, end, nextStart, nextEnd)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fail(c, http.StatusNotFound, "term not found")
		case errors.Is(err, service.ErrTermDates), errors.Is(err, service.ErrTermName):
			return fail(c, http.StatusBadRequest, err.Error())
		default:
			return fail(c, http.StatusInternalServerError, "promote failed")
		}
	}
	h.Cache.InvalidateAll(ctx)
	return ok(c, http.StatusOK, outcome)
}
