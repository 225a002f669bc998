package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/config"
	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/utils"
)

const testSecret = "test-secret"

type fakeSessions map[string]uint64

func (f fakeSessions) Validate(_ context.Context, hash string) (uint64, error) {
	if id, ok := f[hash]; ok {
		return id, nil
	}
	return 0, errors.New("not found")
}

// whoami echoes the identity placed in the context.
func whoami(c echo.Context) error {
	id, _ := c.Get(KeyUserID).(uint64)
	role, _ := c.Get(KeyRole).(string)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": role})
}

func serve(t *testing.T, mw []echo.MiddlewareFunc, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/x", whoami, mw...)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, id uint64, role string) string {
	t.Helper()
	at, err := utils.NewAccessToken(testSecret, id, role, 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	return "Bearer " + at.Token
}

func TestJWTAuth(t *testing.T) {
	mw := []echo.MiddlewareFunc{JWTAuth(testSecret)}
	if rec := serve(t, mw, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", rec.Code)
	}
	if rec := serve(t, mw, map[string]string{"Authorization": "Bearer nope"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d", rec.Code)
	}
	other, _ := utils.NewAccessToken("other-secret", 1, model.RoleAdmin, 5)
	if rec := serve(t, mw, map[string]string{"Authorization": "Bearer " + other.Token}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("foreign secret: got %d", rec.Code)
	}
	rec := serve(t, mw, map[string]string{"Authorization": token(t, 7, model.RoleITStaff)})
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"id\":7,\"role\":\"it_staff\"}\n" {
		t.Fatalf("valid token: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	mw := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole(model.RoleAdmin)}
	if rec := serve(t, mw, map[string]string{"Authorization": token(t, 2, model.RoleManager)}); rec.Code != http.StatusForbidden {
		t.Fatalf("manager on admin route: got %d", rec.Code)
	}
	if rec := serve(t, mw, map[string]string{"Authorization": token(t, 1, model.RoleAdmin)}); rec.Code != http.StatusOK {
		t.Fatalf("admin on admin route: got %d", rec.Code)
	}
}

func TestPublicAndAnyAuth(t *testing.T) {
	sessions := fakeSessions{utils.HashToken("good"): 42}

	pub := []echo.MiddlewareFunc{PublicAuth(sessions)}
	if rec := serve(t, pub, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing x-user-token: got %d", rec.Code)
	}
	if rec := serve(t, pub, map[string]string{PublicTokenHeader: "bad"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown session: got %d", rec.Code)
	}
	rec := serve(t, pub, map[string]string{PublicTokenHeader: "good"})
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"id\":42,\"role\":\"public\"}\n" {
		t.Fatalf("valid session: %d %s", rec.Code, rec.Body.String())
	}

	anyAuth := []echo.MiddlewareFunc{AnyAuth(testSecret, sessions)}
	if rec := serve(t, anyAuth, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no credentials: got %d", rec.Code)
	}
	if rec := serve(t, anyAuth, map[string]string{PublicTokenHeader: "good"}); rec.Code != http.StatusOK {
		t.Fatalf("public session: got %d", rec.Code)
	}
	rec = serve(t, anyAuth, map[string]string{"Authorization": token(t, 3, model.RoleAdmin), PublicTokenHeader: "good"})
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"id\":3,\"role\":\"admin\"}\n" {
		t.Fatalf("bearer must win: %d %s", rec.Code, rec.Body.String())
	}
}

func TestOptionalAuth(t *testing.T) {
	mw := []echo.MiddlewareFunc{OptionalAuth(testSecret)}
	rec := serve(t, mw, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"id\":0,\"role\":\"\"}\n" {
		t.Fatalf("anonymous: %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(t, mw, map[string]string{"Authorization": "Bearer junk"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token must still be rejected: got %d", rec.Code)
	}
}

func TestMemoryRateLimit(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, KeyStrategy: "ip", Prefix: "t"}
	mw := []echo.MiddlewareFunc{NewTokenBucket(cfg, nil)}
	for i := 0; i < 2; i++ {
		if rec := serve(t, mw, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, rec.Code)
		}
	}
	rec := serve(t, mw, nil)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "3600" {
		t.Fatalf("third request: %d retry=%q", rec.Code, rec.Header().Get("Retry-After"))
	}

	cfg.Enabled = false
	off := []echo.MiddlewareFunc{NewTokenBucket(cfg, nil)}
	for i := 0; i < 5; i++ {
		if rec := serve(t, off, nil); rec.Code != http.StatusOK {
			t.Fatalf("disabled limiter blocked request %d", i)
		}
	}
}

func TestCacheWithoutRedisIsPassThrough(t *testing.T) {
	mw := []echo.MiddlewareFunc{NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil)}
	rec := serve(t, mw, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
		t.Fatalf("expected untouched response, got %d %q", rec.Code, rec.Header().Get("X-Cache"))
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != `{"a":1}` {
		t.Fatalf("decodePayload = %d %v %q %v", status, got, body, ok)
	}
	if _, _, _, ok := decodePayload([]byte{0, 0}); ok {
		t.Fatalf("short payload must be rejected")
	}
}

func TestCallerKey(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if got := callerKey(c); got != "anon" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set(KeyUserID, uint64(9))
	c.Set(KeyRole, model.RolePublic)
	if got := callerKey(c); got != "public:9" {
		t.Fatalf("public key = %q", got)
	}
}
