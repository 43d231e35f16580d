package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

var testSecret = []byte("unit-test-secret")

func authedHandler(t *testing.T) echo.HandlerFunc {
	t.Helper()
	return func(c echo.Context) error {
		sub, ok := SubjectFromContext(c.Request().Context())
		if !ok {
			t.Fatalf("subject missing from request context")
		}
		if got := c.Get("user_id").(string); got != sub {
			t.Fatalf("user_id %q != subject %q", got, sub)
		}
		return c.String(http.StatusOK, sub)
	}
}

func TestEchoAuthMiddlewareBearerHeader(t *testing.T) {
	e := echo.New()
	tok, err := SignJWT("user-1", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	mw := EchoAuthMiddleware(testSecret)
	if err := mw(authedHandler(t))(ctx); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "user-1" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestEchoAuthMiddlewareCookie(t *testing.T) {
	e := echo.New()
	tok, err := SignJWT("user-2", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: tok})
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	mw := EchoAuthMiddleware(testSecret)
	if err := mw(authedHandler(t))(ctx); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if rec.Body.String() != "user-2" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestEchoAuthMiddlewareMissingToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	mw := EchoAuthMiddleware(testSecret)
	err := mw(func(c echo.Context) error {
		t.Fatalf("handler should not run")
		return nil
	})(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %#v", err)
	}
}

func TestEchoAuthMiddlewareRejectsBadSignature(t *testing.T) {
	e := echo.New()
	tok, err := SignJWT("user-1", []byte("some-other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	mw := EchoAuthMiddleware(testSecret)
	authErr := mw(func(c echo.Context) error { return nil })(ctx)
	httpErr, ok := authErr.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %#v", authErr)
	}
}

func TestEchoAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	e := echo.New()
	tok, err := SignJWT("user-1", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	mw := EchoAuthMiddleware(testSecret)
	authErr := mw(func(c echo.Context) error { return nil })(ctx)
	httpErr, ok := authErr.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %#v", authErr)
	}
}

func TestSubjectFromContextMissing(t *testing.T) {
	if _, ok := SubjectFromContext(nil); ok {
		t.Fatalf("nil context should have no subject")
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := SubjectFromContext(req.Context()); ok {
		t.Fatalf("plain context should have no subject")
	}
}
