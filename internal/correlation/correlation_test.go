package correlation_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eveiled/hotel-booking/internal/correlation"
)

func TestMiddleware_PropagatesSuppliedID(t *testing.T) {
	var seen string
	h := correlation.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = correlation.FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(correlation.Header, "corr-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "corr-123" {
		t.Errorf("expected context id corr-123, got %q", seen)
	}
	if got := rec.Header().Get(correlation.Header); got != "corr-123" {
		t.Errorf("expected echoed header corr-123, got %q", got)
	}
}

func TestMiddleware_GeneratesIDWhenMissing(t *testing.T) {
	var seen string
	h := correlation.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = correlation.FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Fatal("expected generated correlation id in context")
	}
	if rec.Header().Get(correlation.Header) != seen {
		t.Errorf("response header %q does not match context id %q", rec.Header().Get(correlation.Header), seen)
	}
}

func TestFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if id := correlation.FromContext(req.Context()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}
