package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devionx/uidshield/internal/core/domain"
)

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestRouter(routerFakes{}, RouterOptions{
		RateLimitRPS:   1,
		RateLimitBurst: 1,
	})

	req1 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestAuthPassthroughRejectsDeniedVerdict(t *testing.T) {
	handler := newTestRouter(routerFakes{
		reader: &readerFake{page: &domain.RecordPage{}},
	}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/cards", nil)
	req.Header.Set("X-Auth-Permitted", "false")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for denied verdict, got %d", res.Code)
	}
}

func TestAuthPassthroughAllowsPermittedAndAbsentVerdicts(t *testing.T) {
	handler := newTestRouter(routerFakes{
		reader: &readerFake{page: &domain.RecordPage{}},
	}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/cards", nil)
	req.Header.Set("X-Auth-Permitted", "true")
	req.Header.Set("X-Auth-Consumer", "partner-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for permitted verdict, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/cards", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 without verdict headers, got %d", res.Code)
	}
}

func TestAuthPassthroughSkipsHealthz(t *testing.T) {
	handler := newTestRouter(routerFakes{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Auth-Permitted", "false")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("health probes bypass auth, got %d", res.Code)
	}
}

func TestRequestIDMiddlewareEchoesAndGenerates(t *testing.T) {
	handler := newTestRouter(routerFakes{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}
