package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-booking/internal/config"
)

const secret = "test-secret"

func token(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func serve(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRole(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"uid": currentUserID(c), "role": c.Get("role")})
	}, JWTAuth(secret))
	e.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		JWTAuth(secret), RequireRole("admin"))

	exp := time.Now().Add(time.Hour).Unix()
	user := token(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": 7, "role": "user", "exp": exp})
	admin := token(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": 1, "role": "admin", "exp": exp})
	expired := token(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": 7, "role": "user", "exp": time.Now().Add(-time.Minute).Unix()})
	foreign := token(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": 7, "exp": exp})

	rec := serve(e, http.MethodGet, "/me", user)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":"7","role":"user"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication required")

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", expired).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", foreign).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/admin", user).Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/admin", admin).Code)
}

func TestJWTAuthRejectsUnsignedTokens(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, JWTAuth(secret))

	none := token(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": 7, "role": "admin"})
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", none).Code)
}

func TestLocalTokenBucket(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: 5 * time.Hour, KeyStrategy: "ip", Prefix: "rl"}
	e := echo.New()
	e.Use(NewTokenBucket(cfg, nil, logger))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "").Code)
	rec := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

	rec = serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLocalBucketsDropIdleKeys(t *testing.T) {
	l := newLocalBuckets(config.RateLimitConfig{Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Minute})
	now := time.Now()

	assert.True(t, l.take("a", now).allowed)
	assert.False(t, l.take("a", now).allowed)
	l.take("b", now.Add(2*time.Minute))
	assert.NotContains(t, l.buckets, "a")
	assert.True(t, l.take("a", now.Add(2*time.Minute)).allowed)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")
	c.Set("user_id", float64(12))

	cfg := config.RateLimitConfig{Prefix: "rl"}
	assert.Equal(t, "rl:ip:10.0.0.9:user:12:route:POST /v1/bookings", buildRateKey(cfg, c))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:12", buildRateKey(cfg, c))
}

func TestResponseCacheHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	logger, _ := test.NewNullLogger()
	rc := NewResponseCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true},
		Paths: map[string]bool{"/v1/events": true}, Prefix: "cache", TTL: time.Minute}, db, logger)

	e := echo.New()
	called := false
	e.GET("/v1/events", func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "fresh")
	}, rc.Middleware())

	req := httptest.NewRequest(http.MethodGet, "/v1/events?category=Concert", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/events")
	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{"events":[]}`))
	require.NoError(t, err)
	mock.ExpectGet(rc.key(c)).SetVal(string(payload))

	rec := serve(e, http.MethodGet, "/v1/events?category=Concert", "")
	assert.False(t, called)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, `{"events":[]}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseCacheSkipsOtherRoutes(t *testing.T) {
	db, mock := redismock.NewClientMock()
	logger, _ := test.NewNullLogger()
	rc := NewResponseCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true},
		Paths: map[string]bool{"/v1/events": true}, Prefix: "cache"}, db, logger)

	e := echo.New()
	e.GET("/v1/bookings/mine", func(c echo.Context) error { return c.String(http.StatusOK, "mine") }, rc.Middleware())

	rec := serve(e, http.MethodGet, "/v1/bookings/mine", "")
	assert.Equal(t, "mine", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayloadCodec(t *testing.T) {
	p, err := encodePayload(http.StatusCreated, http.Header{"X-A": {"1"}}, []byte("body"))
	require.NoError(t, err)

	status, hdr, body, ok := decodePayload(p)
	require.True(t, ok)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "1", hdr.Get("X-A"))
	assert.Equal(t, "body", string(body))

	_, _, _, ok = decodePayload(p[:6])
	assert.False(t, ok)
}

func TestRequestLogLevels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e := echo.New()
	e.Use(RequestLog(logger))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError, "boom") })

	serve(e, http.MethodGet, "/ok", "")
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "/ok", hook.LastEntry().Data["route"])

	rec := serve(e, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	serve(e, http.MethodGet, "/missing", "")
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
