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

	"github.com/adnanhaider/course-review-portal/internal/config"
	"github.com/adnanhaider/course-review-portal/internal/model"
	"github.com/adnanhaider/course-review-portal/internal/repository"
	"github.com/adnanhaider/course-review-portal/internal/service"
)

// AdminUserHandler manages user accounts for administrators.
type AdminUserHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
	Audit service.AuditSink
}

type adminCreateUserReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type adminUpdateUserReq struct {
	Role            *string `json:"role"`
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Section         *string `json:"section"`
	SemesterNumber  *int    `json:"semester_number"`
	ProfileComplete *bool   `json:"profile_complete"`
	IsActive        *bool   `json:"is_active"`
}

// userView strips the password hash from API responses.
type userView struct {
	ID              uint64   `json:"id"`
	Email           string   `json:"email"`
	Role            string   `json:"role"`
	Name            string   `json:"name"`
	IntakeSeason    string   `json:"intake_season,omitempty"`
	IntakeYear      int      `json:"intake_year,omitempty"`
	DegreeShort     string   `json:"degree_short,omitempty"`
	RollNumber      string   `json:"roll_number,omitempty"`
	SemesterNumber  *int     `json:"semester_number"`
	Section         *string  `json:"section"`
	CGPA            *float64 `json:"cgpa"`
	ProfileComplete bool     `json:"profile_complete"`
	IsActive        bool     `json:"is_active"`
}

func toUserView(u model.User) userView {
	return userView{
		ID:              u.ID,
		Email:           u.Email,
		Role:            u.Role,
		Name:            u.FullName(),
		IntakeSeason:    u.IntakeSeason,
		IntakeYear:      u.IntakeYear,
		DegreeShort:     u.DegreeShort,
		RollNumber:      u.RollNumber,
		SemesterNumber:  u.SemesterNumber,
		Section:         u.Section,
		CGPA:            u.CGPA,
		ProfileComplete: u.ProfileComplete,
		IsActive:        u.IsActive,
	}
}

// List serves GET /api/admin/users with role/search filters.
func (h *AdminUserHandler) List(c echo.Context) error {
	page, limit := pageParams(c)
	f := repository.UserFilter{
		Role:   strings.TrimSpace(c.QueryParam("role")),
		Search: c.QueryParam("search"),
		Page:   page,
		Limit:  limit,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, total, err := h.Users.List(ctx, f)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	return ok(c, http.StatusOK, echo.Map{"items": views, "total": total, "page": page, "limit": limit})
}

// Get returns one user.
func (h *AdminUserHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "user not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	return ok(c, http.StatusOK, toUserView(u))
}

// Create adds an account directly. Admin-created accounts skip OTP and
// start active; student emails still get their intake fields parsed.
func (h *AdminUserHandler) Create(c echo.Context) error {
	var req adminCreateUserReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email and password required")
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != model.RoleAdmin {
		role = model.RoleStudent
	}

	u := model.User{
		Email:     req.Email,
		Role:      role,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		IsActive:  true,
	}
	if role == model.RoleStudent {
		if parsed, okEmail := service.ParseStudentEmail(req.Email); okEmail {
			sem := service.SemesterNumber(parsed.Season, parsed.IntakeYear, time.Now())
			u.IntakeSeason = parsed.Season
			u.IntakeYear = parsed.IntakeYear
			u.DegreeShort = parsed.DegreeShort
			u.RollNumber = parsed.RollNumber
			u.SemesterNumber = &sem
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, u, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "email already registered")
		}
		return fail(c, http.StatusInternalServerError, "create failed")
	}
	h.record(c, ctx, "user.adminCreate", &uid)
	return ok(c, http.StatusCreated, echo.Map{"id": uid, "email": req.Email, "role": role})
}

// Update applies a partial patch to any user.
func (h *AdminUserHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var req adminUpdateUserReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.Role != nil {
		r := strings.ToLower(strings.TrimSpace(*req.Role))
		if r != model.RoleAdmin && r != model.RoleStudent {
			return fail(c, http.StatusBadRequest, "role must be student or admin")
		}
		req.Role = &r
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusNotFound, "user not found")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	err = h.Users.AdminUpdate(ctx, id, repository.AdminPatch{
		Role:            req.Role,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Section:         req.Section,
		SemesterNumber:  req.SemesterNumber,
		ProfileComplete: req.ProfileComplete,
		IsActive:        req.IsActive,
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "update failed")
	}
	h.record(c, ctx, "user.adminUpdate", &id)
	return ok(c, http.StatusOK, echo.Map{"message": "updated"})
}

// Delete removes an account without ratings.
func (h *AdminUserHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return fail(c, http.StatusConflict, "user has ratings and cannot be deleted")
		case errors.Is(err, sql.ErrNoRows):
			return fail(c, http.StatusNotFound, "user not found")
		default:
			return fail(c, http.StatusInternalServerError, "delete failed")
		}
	}
	h.record(c, ctx, "user.adminDelete", &id)
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminUserHandler) record(c echo.Context, ctx context.Context, action string, targetID *uint64) {
	if h.Audit != nil {
		h.Audit.Record(ctx, action, actorID(c), "User", targetID, nil)
	}
}
