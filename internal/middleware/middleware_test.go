package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/movie-booking/internal/config"
)

// fakeScripter answers every script call with a fixed result.
type fakeScripter struct {
	result []interface{}
	err    error
	keys   []string
}

func (f *fakeScripter) reply(keys []string) *redis.Cmd {
	f.keys = keys
	return redis.NewCmdResult(f.result, f.err)
}

func (f *fakeScripter) Eval(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.reply(keys)
}

func (f *fakeScripter) EvalSha(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.reply(keys)
}

func (f *fakeScripter) EvalRO(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.reply(keys)
}

func (f *fakeScripter) EvalShaRO(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return f.reply(keys)
}

func (f *fakeScripter) ScriptExists(context.Context, ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{true}, nil)
}

func (f *fakeScripter) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func rateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func okHandler(c echo.Context) error { return c.JSON(http.StatusOK, echo.Map{"ok": true}) }

func TestTokenBucket_Blocks(t *testing.T) {
	rdb := &fakeScripter{result: []interface{}{int64(0), int64(0), int64(1500)}}
	e := echo.New()
	e.POST("/api/bookings", okHandler, NewTokenBucket(rateConfig(), rdb, nil))

	rec := serve(e, http.MethodPost, "/api/bookings")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, []string{"rl:ip:10.0.0.1:route:POST /api/bookings"}, rdb.keys)
}

func TestTokenBucket_Allows(t *testing.T) {
	rdb := &fakeScripter{result: []interface{}{int64(1), int64(1), int64(0)}}
	e := echo.New()
	e.POST("/api/bookings", okHandler, NewTokenBucket(rateConfig(), rdb, nil))

	rec := serve(e, http.MethodPost, "/api/bookings")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
}

func TestTokenBucket_FailsOpen(t *testing.T) {
	rdb := &fakeScripter{err: errors.New("connection refused")}
	e := echo.New()
	e.POST("/api/bookings", okHandler, NewTokenBucket(rateConfig(), rdb, nil))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/api/bookings").Code)

	cfg := rateConfig()
	cfg.Enabled = false
	e.POST("/off", okHandler, NewTokenBucket(cfg, nil, nil))
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/off").Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/bookings?customerEmail=Ada@Example.com", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/bookings")

	cfg := rateConfig()
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.9", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip_email_route"
	assert.Equal(t, "rl:ip:10.0.0.9:email:ada@example.com:route:POST /api/bookings", buildRateKey(cfg, c))
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(7), asInt64(int64(7)))
	assert.Equal(t, int64(7), asInt64(7))
	assert.Equal(t, int64(7), asInt64("7"))
	assert.Equal(t, int64(0), asInt64(nil))
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestCacheKeyFrom(t *testing.T) {
	e := echo.New()
	newCtx := func(target string) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/api/movies/:id")
		return c
	}
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	a := cacheKeyFrom(cfg, newCtx("/api/movies/1"))
	b := cacheKeyFrom(cfg, newCtx("/api/movies/2"))
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, a)

	cfg.KeyStrategy = "route"
	assert.Equal(t, cacheKeyFrom(cfg, newCtx("/api/movies/1")), cacheKeyFrom(cfg, newCtx("/api/movies/2")))
}

func TestResponseCache_DisabledIsNoop(t *testing.T) {
	rc := NewResponseCache(config.CacheConfig{Enabled: true}, nil, nil)
	rc.Invalidate(context.Background())

	e := echo.New()
	e.GET("/x", okHandler, rc.Middleware())
	rec := serve(e, http.MethodGet, "/x")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))

	var nilCache *ResponseCache
	nilCache.Invalidate(context.Background())
}

func TestCaptureWriter_Truncates(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("def"))
	assert.True(t, cw.truncated)
	assert.Equal(t, "abcdef", rec.Body.String(), "client still receives the full body")
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ok", okHandler)
	e.GET("/boom", func(c echo.Context) error {
		c.Set(ErrorContextKey, errors.New("db gone"))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	})
	e.GET("/missing", func(c echo.Context) error { return echo.ErrNotFound })

	serve(e, http.MethodGet, "/ok")
	serve(e, http.MethodGet, "/boom")
	rec := serve(e, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "db gone", entries[1].ContextMap()["error"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "/missing", entries[2].ContextMap()["route"])
}
