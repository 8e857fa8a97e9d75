package middleware

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strconv"
    "sync"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/notes-marketplace/internal/config"
    "github.com/iliyamo/notes-marketplace/internal/logging"
    "github.com/iliyamo/notes-marketplace/internal/utils"
)

func whoami(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"user_id": UserID(c)})
}

func serve(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, target, nil)
    if token != "" {
        req.Header.Set("Authorization", "Bearer "+token)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestJWTAuth(t *testing.T) {
    e := echo.New()
    e.GET("/me", whoami, JWTAuth("secret"))
    tok, err := utils.NewAccessToken("secret", 42, 5)
    require.NoError(t, err)

    rec := serve(e, http.MethodGet, "/me", tok.Token)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"user_id":42}`, rec.Body.String())

    rec = serve(e, http.MethodGet, "/me", "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    assert.Contains(t, rec.Body.String(), "missing bearer token")

    other, err := utils.NewAccessToken("other-secret", 42, 5)
    require.NoError(t, err)
    rec = serve(e, http.MethodGet, "/me", other.Token)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalJWT(t *testing.T) {
    e := echo.New()
    e.GET("/who", whoami, OptionalJWT("secret"))

    rec := serve(e, http.MethodGet, "/who", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"user_id":0}`, rec.Body.String())

    tok, err := utils.NewAccessToken("secret", 7, 5)
    require.NoError(t, err)
    rec = serve(e, http.MethodGet, "/who", tok.Token)
    assert.JSONEq(t, `{"user_id":7}`, rec.Body.String())

    rec = serve(e, http.MethodGet, "/who", "garbage")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBuildRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/v1/notes/search", nil)
    req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/notes/search")

    assert.Equal(t, "rl:ip:10.0.0.1:user:guest:route:GET /v1/notes/search",
        buildRateKey(config.RateLimitConfig{Prefix: "rl"}, c))
    c.Set(ContextUserID, uint64(9))
    assert.Equal(t, "rl:user:9", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
    assert.Equal(t, "rl:auth:ip:10.0.0.1:route:GET /v1/notes/search",
        buildRateKey(config.RateLimitConfig{Prefix: "rl:auth", KeyStrategy: "ip_route"}, c))
}

func TestParseBucketResult(t *testing.T) {
    allowed, remaining, retry, ok := parseBucketResult([]any{int64(1), int64(4), int64(0)})
    assert.True(t, ok)
    assert.True(t, allowed)
    assert.Equal(t, int64(4), remaining)
    assert.Zero(t, retry)

    allowed, _, retry, ok = parseBucketResult([]any{"0", "0", "1500"})
    assert.True(t, ok)
    assert.False(t, allowed)
    assert.Equal(t, int64(1500), retry)

    _, _, _, ok = parseBucketResult("nope")
    assert.False(t, ok)
}

func TestTokenBucketFailsOpen(t *testing.T) {
    rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
    defer rdb.Close()
    e := echo.New()
    e.GET("/x", whoami, NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1, Prefix: "rl"}, rdb, logging.Nop()))

    for i := 0; i < 3; i++ {
        assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "").Code)
    }
}

func TestTokenBucketDisabled(t *testing.T) {
    e := echo.New()
    e.GET("/x", whoami, NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, nil))
    rec := serve(e, http.MethodGet, "/x", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

type memKV struct {
    mu   sync.Mutex
    data map[string][]byte
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    v, ok := m.data[key]
    if !ok {
        return nil, redis.Nil
    }
    return v, nil
}

func (m *memKV) SetEx(_ context.Context, key string, val []byte, _ time.Duration) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.data[key] = append([]byte(nil), val...)
    return nil
}

func (m *memKV) Incr(_ context.Context, key string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    n, _ := strconv.Atoi(string(m.data[key]))
    m.data[key] = []byte(strconv.Itoa(n + 1))
    return nil
}

func TestSearchCacheHitMissAndInvalidate(t *testing.T) {
    cache := newSearchCache(config.CacheConfig{Enabled: true, TTL: time.Minute}, &memKV{data: map[string][]byte{}})
    calls := 0
    e := echo.New()
    e.GET("/v1/notes/search", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"calls": calls})
    }, cache.Middleware())

    rec := serve(e, http.MethodGet, "/v1/notes/search?university=LU", "")
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"calls":1}`, rec.Body.String())

    rec = serve(e, http.MethodGet, "/v1/notes/search?university=LU", "")
    assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"calls":1}`, rec.Body.String())
    assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))

    rec = serve(e, http.MethodGet, "/v1/notes/search?university=KTH", "")
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

    require.NoError(t, cache.Invalidate(context.Background()))
    rec = serve(e, http.MethodGet, "/v1/notes/search?university=LU", "")
    assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"calls":3}`, rec.Body.String())
}

func TestSearchCacheSkipsErrorsAndLargeBodies(t *testing.T) {
    cache := newSearchCache(config.CacheConfig{Enabled: true, MaxBodyBytes: 8}, &memKV{data: map[string][]byte{}})
    e := echo.New()
    e.GET("/bad", func(c echo.Context) error {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation"})
    }, cache.Middleware())
    e.GET("/big", func(c echo.Context) error {
        return c.String(http.StatusOK, "this body is longer than eight bytes")
    }, cache.Middleware())

    serve(e, http.MethodGet, "/bad", "")
    assert.Equal(t, "MISS", serve(e, http.MethodGet, "/bad", "").Header().Get("X-Cache"))
    serve(e, http.MethodGet, "/big", "")
    assert.Equal(t, "MISS", serve(e, http.MethodGet, "/big", "").Header().Get("X-Cache"))
}

func TestNilSearchCache(t *testing.T) {
    var cache *SearchCache = NewSearchCache(config.CacheConfig{Enabled: true}, nil)
    assert.Nil(t, cache)
    assert.NoError(t, cache.Invalidate(context.Background()))

    e := echo.New()
    e.GET("/x", whoami, cache.Middleware())
    rec := serve(e, http.MethodGet, "/x", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestPayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
    require.NoError(t, err)
    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, "application/json", got.Get("Content-Type"))
    assert.Equal(t, `{"a":1}`, string(body))

    _, _, _, ok = decodePayload([]byte{0, 1})
    assert.False(t, ok)
}
