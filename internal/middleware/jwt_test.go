package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/adnanhaider/course-review-portal/internal/utils"
)

func runJWT(t *testing.T, secret, header string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	h := JWTAuth(secret, nil)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := h(ctx); err != nil {
		t.Fatalf("handler: %v", err)
	}
	return rec, ctx
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	at, err := utils.NewAccessToken("secret", 42, "ADMIN", 5)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	rec, ctx := runJWT(t, "secret", "Bearer "+at.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := ctx.Get(CtxUserID); got != uint64(42) {
		t.Fatalf("user id = %v", got)
	}
	if got := ctx.Get(CtxRole); got != "ADMIN" {
		t.Fatalf("role = %v", got)
	}
	if got := ctx.Get(CtxTokenHash); got != utils.HashToken(at.Token) {
		t.Fatalf("token hash = %v", got)
	}
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	rec, _ := runJWT(t, "secret", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestJWTAuthRejectsForgedToken(t *testing.T) {
	at, err := utils.NewAccessToken("other-secret", 1, "STUDENT", 5)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	rec, _ := runJWT(t, "secret", "Bearer "+at.Token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	cases := []struct {
		role     any
		allowed  []string
		wantCode int
	}{
		{"ADMIN", []string{"ADMIN"}, http.StatusOK},
		{"STUDENT", []string{"STUDENT", "ADMIN"}, http.StatusOK},
		{"STUDENT", []string{"ADMIN"}, http.StatusForbidden},
		{nil, []string{"ADMIN"}, http.StatusForbidden},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)
		if c.role != nil {
			ctx.Set(CtxRole, c.role)
		}
		if err := RequireRole(c.allowed...)(next)(ctx); err != nil {
			t.Fatalf("handler: %v", err)
		}
		if rec.Code != c.wantCode {
			t.Fatalf("role %v allowed %v: status = %d, want %d", c.role, c.allowed, rec.Code, c.wantCode)
		}
	}
}
