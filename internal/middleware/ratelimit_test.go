package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// newTestLimiter はテスト用の小さなバーストのリミッターを生成する。
func newTestLimiter(t *testing.T, generalBurst, messageBurst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:      rate.Limit(0.001), // 補充をほぼ無効化
		GeneralBurst:     generalBurst,
		MessageSendRate:  rate.Limit(0.001),
		MessageSendBurst: messageBurst,
		CleanupInterval:  time.Hour,
	})
	t.Cleanup(rl.Stop)
	return rl
}

// doRequest は認証済みコンテキストでリクエストを実行する。
func doRequest(handler http.Handler, customerID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req = req.WithContext(ContextWithCustomerID(req.Context(), customerID))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// バースト超過で429が返ることを検証
func TestGeneralMiddleware_ExceedsBurst(t *testing.T) {
	rl := newTestLimiter(t, 2, 1)
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if w := doRequest(handler, "cust-1"); w.Code != http.StatusOK {
		t.Errorf("1st request: status = %d, want 200", w.Code)
	}
	if w := doRequest(handler, "cust-1"); w.Code != http.StatusOK {
		t.Errorf("2nd request: status = %d, want 200", w.Code)
	}

	w := doRequest(handler, "cust-1")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}
}

// 顧客ごとに独立したリミッターであることを検証
func TestGeneralMiddleware_PerCustomer(t *testing.T) {
	rl := newTestLimiter(t, 1, 1)
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doRequest(handler, "cust-1")
	if w := doRequest(handler, "cust-1"); w.Code != http.StatusTooManyRequests {
		t.Errorf("cust-1 second request: status = %d, want 429", w.Code)
	}
	if w := doRequest(handler, "cust-2"); w.Code != http.StatusOK {
		t.Errorf("cust-2 first request: status = %d, want 200 (independent bucket)", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("limiter entries = %d, want 2", rl.GeneralLimiterCount())
	}
}

// メッセージ送信の制限がAPI全般と独立であることを検証
func TestMessageSendMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := newTestLimiter(t, 10, 1)
	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	message := rl.MessageSendMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// メッセージ送信の枠を使い切る
	doRequest(message, "cust-1")
	if w := doRequest(message, "cust-1"); w.Code != http.StatusTooManyRequests {
		t.Errorf("message send: status = %d, want 429", w.Code)
	}

	// API全般の枠は残っている
	if w := doRequest(general, "cust-1"); w.Code != http.StatusOK {
		t.Errorf("general: status = %d, want 200", w.Code)
	}
}

// 未認証コンテキストが401になることを検証
func TestRateLimitMiddleware_RequiresAuthContext(t *testing.T) {
	rl := newTestLimiter(t, 1, 1)
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// 期限切れエントリのクリーンアップを検証
func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:      rate.Limit(1),
		GeneralBurst:     1,
		MessageSendRate:  rate.Limit(1),
		MessageSendBurst: 1,
		CleanupInterval:  time.Nanosecond,
	})
	defer rl.Stop()

	rl.getOrCreate(&rl.generalMu, rl.generalLimiters, "cust-1", rl.config.GeneralRate, rl.config.GeneralBurst)
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("limiter entries = %d, want 1", rl.GeneralLimiterCount())
	}

	// lastAccessを過去に倒してクリーンアップを強制する
	rl.generalMu.Lock()
	rl.generalLimiters["cust-1"].lastAccess = time.Now().Add(-time.Hour)
	rl.generalMu.Unlock()

	rl.cleanup()
	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("limiter entries after cleanup = %d, want 0", rl.GeneralLimiterCount())
	}
}
