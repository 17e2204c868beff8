package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newOKHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGlobalLimiter_AllowsUpToMaxThenRejects(t *testing.T) {
	limiter := NewGlobalLimiter(RateLimitConfig{Enabled: true, Max: 3, WindowSeconds: 60}, nil)
	handler := limiter.Middleware(newOKHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/forex/rates", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/forex/rates", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected the 4th request within the window to be rejected, got %d", rec.Code)
	}
}

func TestGlobalLimiter_ExcludedPathBypassesLimit(t *testing.T) {
	limiter := NewGlobalLimiter(RateLimitConfig{Enabled: true, Max: 1, WindowSeconds: 60}, []string{"/health"})
	handler := limiter.Middleware(newOKHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d to excluded path: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestGlobalLimiter_Disabled_NeverLimits(t *testing.T) {
	limiter := NewGlobalLimiter(RateLimitConfig{Enabled: false}, nil)
	handler := limiter.Middleware(newOKHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/forex/rates", nil)
		req.RemoteAddr = "10.0.0.3:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected disabled limiter to always allow, got %d", i+1, rec.Code)
		}
	}
}

func TestAuthLimiter_OnlyAppliesToConfiguredPaths(t *testing.T) {
	limiter := NewAuthLimiter(RateLimitConfig{Enabled: true, Max: 1, WindowSeconds: 60}, []string{"/api/tasks/create"})
	handler := limiter.Middleware(newOKHandler())

	// Unmatched path is never limited.
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/forex/rates", nil)
		req.RemoteAddr = "10.0.0.4:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("unmatched path request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	// Matched path is limited to 1 per window.
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/create", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first matched request to pass, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/tasks/create", nil)
	req2.RemoteAddr = "10.0.0.5:1234"
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second matched request within the window to be rejected, got %d", rec2.Code)
	}
}
