package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/mall-admin/internal/config"
	"github.com/iliyamo/mall-admin/internal/service"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func serve(t *testing.T, auth string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	var actor string
	h := func(c echo.Context) error {
		actor = service.ActorFrom(c.Request().Context())
		return c.String(http.StatusOK, c.Get(KeyUserID).(string))
	}
	e.GET("/v1/x", h, JWTAuth(secret), RequireRole(RoleAdmin))

	req := httptest.NewRequest(http.MethodGet, "/v1/x", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, actor
}

func TestJWTAuth(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	tests := []struct {
		name   string
		auth   string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing bearer token"},
		{"garbage", "Bearer nope", http.StatusUnauthorized, "invalid token"},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7", "role": "ADMIN", "exp": time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized, "invalid token"},
		{"no exp", "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7", "role": "ADMIN"}), http.StatusUnauthorized, "invalid token"},
		{"wrong alg", "Bearer " + sign(t, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "7", "role": "ADMIN", "exp": exp}), http.StatusUnauthorized, "invalid token"},
		{"no subject", "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"role": "ADMIN", "exp": exp}), http.StatusUnauthorized, "invalid claims"},
		{"not admin", "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7", "role": "OWNER", "exp": exp}), http.StatusForbidden, "forbidden"},
		{"admin", "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7", "role": "ADMIN", "exp": exp}), http.StatusOK, "7"},
		{"numeric subject", "Bearer " + sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": 42, "role": "ADMIN", "exp": exp}), http.StatusOK, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := serve(t, tt.auth)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestJWTAuthSetsActor(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin-9", "role": "ADMIN", "exp": time.Now().Add(time.Hour).Unix()})
	rec, actor := serve(t, "Bearer "+tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-9", actor)
}

func newContext(method, target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestCacheKey(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "mall-admin", KeyStrategy: "route_query"}

	c := newContext(http.MethodGet, "/v1/currencies?page=1")
	c.SetPath("/v1/currencies")
	k1 := cacheKeyFrom(cfg, "currencies", 3, c)
	assert.Regexp(t, `^mall-admin:currencies:g3:[0-9a-f]{40}$`, k1)

	// bumping the generation changes the key
	assert.NotEqual(t, k1, cacheKeyFrom(cfg, "currencies", 4, c))

	// so does the query under route_query, but not under route
	c2 := newContext(http.MethodGet, "/v1/currencies?page=2")
	c2.SetPath("/v1/currencies")
	assert.NotEqual(t, k1, cacheKeyFrom(cfg, "currencies", 3, c2))
	cfg.KeyStrategy = "route"
	assert.Equal(t, cacheKeyFrom(cfg, "currencies", 3, c), cacheKeyFrom(cfg, "currencies", 3, c2))

	// path params always count
	a := newContext(http.MethodGet, "/v1/currencies/1")
	a.SetPath("/v1/currencies/:id")
	a.SetParamNames("id")
	a.SetParamValues("1")
	b := newContext(http.MethodGet, "/v1/currencies/2")
	b.SetPath("/v1/currencies/:id")
	b.SetParamNames("id")
	b.SetParamValues("2")
	assert.NotEqual(t, cacheKeyFrom(cfg, "currencies", 0, a), cacheKeyFrom(cfg, "currencies", 0, b))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:6])
	assert.False(t, ok)
	_, _, _, ok = decodePayload(append([]byte{0, 0, 0, 200, 0, 0, 1, 0}, 'x'))
	assert.False(t, ok)
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	assert.False(t, cw.truncated())
	_, _ = cw.Write([]byte("def"))
	assert.True(t, cw.truncated())
	assert.Equal(t, "abcd", cw.buf.String())
	assert.Equal(t, "abcdef", rec.Body.String())
}

func TestMiddlewaresDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "fresh") },
		NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil, nil, "events", nil),
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "fresh", rec.Body.String())
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
}

func TestRateKey(t *testing.T) {
	c := newContext(http.MethodPost, "/v1/currencies/pivot")
	c.SetPath("/v1/currencies/pivot")
	c.Set(KeyUserID, "7")
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}
	assert.Equal(t, "rl:user:7:route:POST /v1/currencies/pivot", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	anon := newContext(http.MethodGet, "/")
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, anon))

	cfg.KeyStrategy = "bogus"
	assert.Equal(t, "rl:ip:192.0.2.1:user:anon:route:GET ", buildRateKey(cfg, anon))
	assert.Equal(t, 2, retryAfterSeconds(1001))
	assert.Equal(t, 0, retryAfterSeconds(-5))
}
