package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/zainabsaad99/EECE798S-Project/internal/agent"
	"github.com/zainabsaad99/EECE798S-Project/internal/gap"
)

func TestAnalyzeRequiresKey(t *testing.T) {
	e := echo.New()
	h := &GapHandler{}

	ctx, _ := postJSON(e, "/api/gap/analyze", `{"businesses":[{"name":"Acme","products":[]}]}`)
	err := h.analyze(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %#v", err)
	}
	if httpErr.Message != "openai_api_key required" {
		t.Fatalf("message = %v", httpErr.Message)
	}
}

func TestAnalyzeRequiresBusinesses(t *testing.T) {
	e := echo.New()
	h := &GapHandler{}

	ctx, _ := postJSON(e, "/api/gap/analyze", `{"openai_api_key":"sk-x"}`)
	err := h.analyze(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %#v", err)
	}
	if httpErr.Message != "businesses required" {
		t.Fatalf("message = %v", httpErr.Message)
	}
}

func TestExtractRequiresWebsiteURL(t *testing.T) {
	e := echo.New()
	h := &GapHandler{}

	ctx, _ := postJSON(e, "/api/catalog/extract", `{"firecrawl_api_key":"fc-x"}`)
	err := h.extract(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %#v", err)
	}
	if httpErr.Message != "website_url required" {
		t.Fatalf("message = %v", httpErr.Message)
	}
}

func TestGapErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"insufficient data", gap.ErrInsufficientData, http.StatusBadRequest},
		{"wrapped insufficient data", fmt.Errorf("gap: %w", gap.ErrInsufficientData), http.StatusBadRequest},
		{"auth rejected", &agent.AuthError{Provider: "firecrawl", Reason: "invalid key"}, http.StatusUnauthorized},
		{"upstream failure", errors.New("map request failed"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			httpErr, ok := gapError(tc.err).(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError")
			}
			if httpErr.Code != tc.code {
				t.Fatalf("code = %d, want %d", httpErr.Code, tc.code)
			}
		})
	}
}

func TestGapErrorAuthMessageNamesProvider(t *testing.T) {
	err := gapError(&agent.AuthError{Provider: "phantombuster", Reason: "session expired"})
	httpErr := err.(*echo.HTTPError)
	msg, _ := httpErr.Message.(string)
	if !strings.Contains(strings.ToLower(msg), "phantombuster") {
		t.Fatalf("message = %q", msg)
	}
}
