package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/synctest"
	"time"

	"postengine/internal/telemetry"
)

func TestIPRateLimiterMiddleware(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.DiscardHandler)
	metrics := telemetry.Disabled(logger).Metrics

	limiter := NewIPRateLimiter(t.Context(), 1, 2, false, metrics)
	handler := limiter.Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := range 2 {
		if rec := send("203.0.113.1:1000"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := send("203.0.113.1:1001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the burst is spent, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}

	// other clients keep their own bucket
	if rec := send("203.0.113.2:1000"); rec.Code != http.StatusOK {
		t.Errorf("expected 200 for another client, got %d", rec.Code)
	}

	if rec := send("not-an-ip"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an invalid address, got %d", rec.Code)
	}
}

func TestIPRateLimiterCleanup(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		metrics := telemetry.Disabled(slog.New(slog.DiscardHandler)).Metrics
		limiter := NewIPRateLimiter(t.Context(), 10, 10, false, metrics)

		if _, err := limiter.getLimiter("203.0.113.1"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Minute)
		if _, err := limiter.getLimiter("203.0.113.2"); err != nil {
			t.Fatal(err)
		}

		// first client idle for 4 minutes, second for 2
		time.Sleep(2*time.Minute + time.Second)
		synctest.Wait()

		if got := limiter.Len(); got != 1 {
			t.Errorf("expected 1 tracked client, got %d", got)
		}
	})
}
