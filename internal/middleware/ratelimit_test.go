package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

func requestFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralBurst != 120 || cfg.SignInBurst != 10 {
		t.Errorf("bursts = %d/%d, want 120/10", cfg.GeneralBurst, cfg.SignInBurst)
	}
	if float64(cfg.GeneralRate) != 2.0 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
}

func TestGeneralMiddleware_AllowsBurstThenRejects(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{GeneralRate: 0.01, GeneralBurst: 3, SignInRate: 1, SignInBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("203.0.113.7:5000"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("203.0.113.7:5001"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retry != 100 {
		t.Errorf("Retry-After = %q, want 100", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q", body.Code)
	}
}

// 異なるIPアドレスのリミッターは独立している
func TestGeneralMiddleware_PerClient(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{GeneralRate: 0.01, GeneralBurst: 1, SignInRate: 1, SignInBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler())

	for _, addr := range []string{"198.51.100.1:1000", "198.51.100.2:1000"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(addr))
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", addr, w.Code, http.StatusOK)
		}
	}
	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", got)
	}
}

// サインインの制限はAPI全般の制限とは独立に消費される
func TestSignInMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{GeneralRate: 0.01, GeneralBurst: 5, SignInRate: 0.01, SignInBurst: 1})
	signIn := rl.SignInMiddleware()(okHandler())
	general := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	signIn.ServeHTTP(w, requestFrom("192.0.2.1:1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first sign-in: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	signIn.ServeHTTP(w, requestFrom("192.0.2.1:1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second sign-in: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestFrom("192.0.2.1:1"))
	if w.Code != http.StatusOK {
		t.Errorf("general: status = %d, want %d", w.Code, http.StatusOK)
	}
	if rl.SignInLimiterCount() != 1 {
		t.Errorf("SignInLimiterCount = %d, want 1", rl.SignInLimiterCount())
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{GeneralRate: 1, GeneralBurst: 1, SignInRate: 1, SignInBurst: 1, CleanupInterval: time.Minute})
	rl.general.get("idle", time.Now().Add(-5*time.Minute))
	rl.general.get("active", time.Now())
	rl.signIn.get("idle", time.Now().Add(-5*time.Minute))

	rl.cleanup(time.Now())

	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("GeneralLimiterCount = %d, want 1", rl.GeneralLimiterCount())
	}
	if rl.SignInLimiterCount() != 0 {
		t.Errorf("SignInLimiterCount = %d, want 0", rl.SignInLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	if got := clientKey(req); got != "2001:db8::1" {
		t.Errorf("clientKey = %q", got)
	}

	req.RemoteAddr = "no-port"
	if got := clientKey(req); got != "no-port" {
		t.Errorf("clientKey = %q", got)
	}
}
