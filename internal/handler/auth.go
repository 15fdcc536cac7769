package handler

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/adnanhaider/course-review-portal/internal/config"
	"github.com/adnanhaider/course-review-portal/internal/middleware"
	"github.com/adnanhaider/course-review-portal/internal/model"
	"github.com/adnanhaider/course-review-portal/internal/queue"
	"github.com/adnanhaider/course-review-portal/internal/repository"
	"github.com/adnanhaider/course-review-portal/internal/service"
	"github.com/adnanhaider/course-review-portal/internal/utils"
)

// AuthHandler bundles dependencies for the account lifecycle endpoints:
// signup, OTP verification, login, token refresh, logout and profile.
type AuthHandler struct {
	Cfg           config.Config
	Users         *repository.UserRepo
	Tokens        *repository.TokenRepo
	Verifications *repository.VerificationRepo
	Catalog       *repository.CatalogRepo
	Revoked       *repository.RevocationRepo
	Audit         service.AuditSink
}

// ----- DTOs -----

type signupReq struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

type otpReq struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type resetPasswordReq struct {
	Email           string `json:"email"`
	OTP             string `json:"otp"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type completeProfileReq struct {
	Section *string  `json:"section"`
	Phone   *string  `json:"phone"`
	CGPA    *float64 `json:"cgpa"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Signup creates an inactive student account from an institution email
// and queues an OTP email. The email local part fixes intake, degree and
// roll number; semester number is derived from the current date.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email and password required")
	}
	if req.Password != req.ConfirmPassword {
		return fail(c, http.StatusBadRequest, "passwords do not match")
	}
	parsed, okEmail := service.ParseStudentEmail(req.Email)
	if !okEmail {
		return fail(c, http.StatusBadRequest,
			"please use your university email in the format fa22-bse-031@cuivehari.edu.pk")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sem := service.SemesterNumber(parsed.Season, parsed.IntakeYear, time.Now())
	u := model.User{
		Email:          req.Email,
		Role:           model.RoleStudent,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		IntakeSeason:   parsed.Season,
		IntakeYear:     parsed.IntakeYear,
		DegreeShort:    parsed.DegreeShort,
		RollNumber:     parsed.RollNumber,
		SemesterNumber: &sem,
	}
	// Best-effort degree-code mapping; signup proceeds without it.
	if deptName, progName, found := service.ResolveProgram(parsed.DegreeShort); found {
		if dept, err := h.Catalog.FindOrCreateDepartment(ctx, deptName); err == nil {
			if prog, err := h.Catalog.FindOrCreateProgram(ctx, progName, dept.ID); err == nil {
				u.DepartmentID = &dept.ID
				u.ProgramID = &prog.ID
			}
		}
	}

	uid, err := h.Users.Create(ctx, u, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "email already registered")
		}
		return fail(c, http.StatusInternalServerError, "create user failed")
	}

	if err := h.issueOTP(ctx, req.Email, &uid, model.PurposeSignup); err != nil {
		return fail(c, http.StatusInternalServerError, "issue verification code failed")
	}
	h.record(ctx, "user.signup", &uid, "User", &uid, nil)

	return ok(c, http.StatusCreated, echo.Map{
		"id":      uid,
		"email":   req.Email,
		"message": "verification code sent to your university email",
	})
}

// issueOTP stores a hashed one-time code and publishes the delivery
// request; the mailer worker sends the actual email.
func (h *AuthHandler) issueOTP(ctx context.Context, email string, userID *uint64, purpose string) error {
	otp, err := utils.NewOTP(h.Cfg.OTPLength)
	if err != nil {
		return err
	}
	exp := time.Now().UTC().Add(time.Duration(h.Cfg.OTPTTLMin) * time.Minute)
	if err := h.Verifications.Create(ctx, email, userID, utils.HashToken(otp), purpose, exp); err != nil {
		return err
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := queue.PublishOtpEmail(pubCtx, queue.OtpEmailEvent{
			Email:     email,
			Code:      otp,
			Purpose:   purpose,
			ExpiresAt: exp.Format(time.RFC3339),
		})
		if err != nil {
			log.Printf("auth: queue otp email for %s: %v", email, err)
		}
	}()
	return nil
}

// VerifySignup activates an account when the submitted OTP matches the
// latest unconsumed signup token.
func (h *AuthHandler) VerifySignup(c echo.Context) error {
	var req otpReq
	if err := c.Bind(&req); err != nil || req.Email == "" || req.OTP == "" {
		return fail(c, http.StatusBadRequest, "email and otp required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tok, err := h.Verifications.Latest(ctx, req.Email, model.PurposeSignup)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusBadRequest, "no pending verification for this email")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if time.Now().UTC().After(tok.ExpiresAt) {
		return fail(c, http.StatusBadRequest, "verification code expired")
	}
	if utils.HashToken(strings.TrimSpace(req.OTP)) != tok.TokenHash {
		return fail(c, http.StatusBadRequest, "invalid verification code")
	}
	if tok.UserID == nil {
		return fail(c, http.StatusBadRequest, "no account for this verification")
	}
	if err := h.Users.Activate(ctx, *tok.UserID); err != nil {
		return fail(c, http.StatusInternalServerError, "activate failed")
	}
	if err := h.Verifications.Consume(ctx, tok.ID); err != nil {
		return fail(c, http.StatusInternalServerError, "consume token failed")
	}
	h.record(ctx, "user.verify", tok.UserID, "User", tok.UserID, nil)
	return ok(c, http.StatusOK, echo.Map{"message": "account activated, you can log in now"})
}

// ResendOTP issues a fresh signup code for a still-inactive account. The
// response is identical whether or not the email exists.
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req otpReq
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return fail(c, http.StatusBadRequest, "email required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err == nil && !u.IsActive {
		if err := h.issueOTP(ctx, u.Email, &u.ID, model.PurposeSignup); err != nil {
			return fail(c, http.StatusInternalServerError, "issue verification code failed")
		}
	}
	return ok(c, http.StatusOK, echo.Map{"message": "if the account exists, a new code was sent"})
}

// Login authenticates an active account and returns an access/refresh
// token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email and password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusUnauthorized, "invalid credentials")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	if !u.IsActive {
		return fail(c, http.StatusForbidden, "account not verified yet")
	}

	resp, err := h.issuePair(ctx, u)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	h.record(ctx, "user.login", &u.ID, "User", &u.ID, nil)
	return ok(c, http.StatusOK, resp)
}

func (h *AuthHandler) issuePair(ctx context.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, errors.New("issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, errors.New("issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, errors.New("save refresh failed")
	}
	return authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role, Name: u.FullName()},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

// Refresh rotates a refresh token: validate by hash, revoke the old one,
// issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "refresh_token required")
	}
	hash := utils.HashToken(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load user failed")
	}
	resp, err := h.issuePair(ctx, u)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return ok(c, http.StatusOK, resp)
}

// RefreshAccess returns a fresh access token without rotating the
// refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "refresh_token required")
	}
	hash := utils.HashToken(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusUnauthorized, "invalid refresh")
		}
		return fail(c, http.StatusInternalServerError, "load user failed")
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue access failed")
	}
	return ok(c, http.StatusOK, echo.Map{"access": tokenPart{Token: access.Token, Expires: access.Exp}})
}

// Logout revokes the caller's refresh tokens and pushes the presented
// access token into the revocation registry so it dies immediately
// instead of at natural expiry. Runs behind JWTAuth.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(uint64)
	if uid == 0 {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var req refreshReq
	_ = c.Bind(&req)
	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		// Single-session logout: revoke just this refresh token.
		hash := utils.HashToken(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return fail(c, http.StatusUnauthorized, "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return fail(c, http.StatusInternalServerError, "logout failed")
		}
	} else if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return fail(c, http.StatusInternalServerError, "logout failed")
	}

	if hash, okHash := c.Get(middleware.CtxTokenHash).(string); okHash {
		exp, _ := c.Get(middleware.CtxTokenExp).(time.Time)
		if err := h.Revoked.Revoke(ctx, hash, exp); err != nil {
			log.Printf("auth: revoke access token: %v", err)
		}
	}
	h.record(ctx, "user.logout", &uid, "User", &uid, nil)
	return c.NoContent(http.StatusNoContent)
}

// ForgotPassword issues a password-reset OTP. Always answers 200 so the
// endpoint cannot be used to probe for accounts.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req otpReq
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return fail(c, http.StatusBadRequest, "email required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if u, err := h.Users.GetByEmail(ctx, req.Email); err == nil && u.IsActive {
		if err := h.issueOTP(ctx, u.Email, &u.ID, model.PurposePassword); err != nil {
			return fail(c, http.StatusInternalServerError, "issue reset code failed")
		}
	}
	return ok(c, http.StatusOK, echo.Map{"message": "if the account exists, a reset code was sent"})
}

// ResetPassword verifies a password-reset OTP, rehashes the password and
// revokes every refresh token of the account.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil || req.Email == "" || req.OTP == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email, otp and password required")
	}
	if req.Password != req.ConfirmPassword {
		return fail(c, http.StatusBadRequest, "passwords do not match")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tok, err := h.Verifications.Latest(ctx, req.Email, model.PurposePassword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusBadRequest, "no pending reset for this email")
		}
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if time.Now().UTC().After(tok.ExpiresAt) {
		return fail(c, http.StatusBadRequest, "reset code expired")
	}
	if utils.HashToken(strings.TrimSpace(req.OTP)) != tok.TokenHash {
		return fail(c, http.StatusBadRequest, "invalid reset code")
	}
	if tok.UserID == nil {
		return fail(c, http.StatusBadRequest, "no account for this reset")
	}

	if err := h.Users.UpdatePassword(ctx, *tok.UserID, req.Password, h.Cfg.BcryptCost); err != nil {
		return fail(c, http.StatusInternalServerError, "update password failed")
	}
	if err := h.Verifications.Consume(ctx, tok.ID); err != nil {
		return fail(c, http.StatusInternalServerError, "consume token failed")
	}
	_ = h.Tokens.RevokeAllForUser(ctx, *tok.UserID)
	h.record(ctx, "user.resetPassword", tok.UserID, "User", tok.UserID, nil)
	return ok(c, http.StatusOK, echo.Map{"message": "password updated, log in with the new password"})
}

// Me returns the caller's profile with department/program names resolved.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(uint64)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load user failed")
	}
	// Accounts created before the degree-code map knew their program get
	// the mapping backfilled on first profile read.
	if u.DepartmentID == nil && u.DegreeShort != "" {
		if deptName, progName, found := service.ResolveProgram(u.DegreeShort); found {
			if dept, err := h.Catalog.FindOrCreateDepartment(ctx, deptName); err == nil {
				if prog, err := h.Catalog.FindOrCreateProgram(ctx, progName, dept.ID); err == nil {
					if h.Users.BackfillProgram(ctx, u.ID, dept.ID, prog.ID) == nil {
						u.DepartmentID = &dept.ID
						u.ProgramID = &prog.ID
					}
				}
			}
		}
	}
	dept, prog, err := h.Catalog.ProgramNames(ctx, u.DepartmentID, u.ProgramID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load program failed")
	}
	return ok(c, http.StatusOK, echo.Map{
		"id":               u.ID,
		"email":            u.Email,
		"role":             u.Role,
		"name":             u.FullName(),
		"intake_season":    u.IntakeSeason,
		"intake_year":      u.IntakeYear,
		"degree_short":     u.DegreeShort,
		"roll_number":      u.RollNumber,
		"semester_number":  u.SemesterNumber,
		"section":          u.Section,
		"phone":            u.Phone,
		"cgpa":             u.CGPA,
		"department":       dept,
		"program":          prog,
		"profile_complete": u.ProfileComplete,
	})
}

// CompleteProfile backfills section, phone and CGPA after activation.
// CGPA is only accepted past the first semester.
func (h *AuthHandler) CompleteProfile(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(uint64)

	var req completeProfileReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.Section != nil {
		s := strings.TrimSpace(*req.Section)
		if s == "" {
			return fail(c, http.StatusBadRequest, "section cannot be empty")
		}
		req.Section = &s
	}
	if req.CGPA != nil && (*req.CGPA < 0 || *req.CGPA > 4) {
		return fail(c, http.StatusBadRequest, "cgpa must be between 0 and 4")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load user failed")
	}
	cgpa := req.CGPA
	if u.SemesterNumber == nil || *u.SemesterNumber <= 1 {
		cgpa = nil // first-semester students have no CGPA yet
	}
	if err := h.Users.CompleteProfile(ctx, uid, req.Section, req.Phone, cgpa); err != nil {
		return fail(c, http.StatusInternalServerError, "update profile failed")
	}
	h.record(ctx, "user.completeProfile", &uid, "User", &uid, nil)
	return ok(c, http.StatusOK, echo.Map{"message": "profile updated"})
}

func (h *AuthHandler) record(ctx context.Context, action string, actorID *uint64, targetType string, targetID *uint64, details any) {
	if h.Audit != nil {
		h.Audit.Record(ctx, action, actorID, targetType, targetID, details)
	}
}
