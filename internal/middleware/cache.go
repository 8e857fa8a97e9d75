package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/notes-marketplace/internal/config"
)

// kv is the slice of Redis the search cache needs.  Get returns
// redis.Nil on a miss.
type kv interface {
    Get(ctx context.Context, key string) ([]byte, error)
    SetEx(ctx context.Context, key string, val []byte, ttl time.Duration) error
    Incr(ctx context.Context, key string) error
}

type redisKV struct{ rdb *redis.Client }

func (r redisKV) Get(ctx context.Context, key string) ([]byte, error) {
    return r.rdb.Get(ctx, key).Bytes()
}

func (r redisKV) SetEx(ctx context.Context, key string, val []byte, ttl time.Duration) error {
    return r.rdb.SetEx(ctx, key, val, ttl).Err()
}

func (r redisKV) Incr(ctx context.Context, key string) error {
    return r.rdb.Incr(ctx, key).Err()
}

// SearchCache caches successful search responses in Redis.  Entries are
// namespaced by a generation counter; Invalidate bumps it so every page
// cached before a write becomes unreachable and expires on its own.
type SearchCache struct {
    cfg   config.CacheConfig
    store kv
}

// NewSearchCache returns nil when caching is disabled or rdb is nil.  A nil
// *SearchCache is valid: its middleware is a pass-through and Invalidate
// is a no-op.
func NewSearchCache(cfg config.CacheConfig, rdb *redis.Client) *SearchCache {
    if !cfg.Enabled || rdb == nil {
        return nil
    }
    return newSearchCache(cfg, redisKV{rdb: rdb})
}

func newSearchCache(cfg config.CacheConfig, store kv) *SearchCache {
    if cfg.TTL <= 0 {
        cfg.TTL = 30 * time.Second
    }
    if cfg.Prefix == "" {
        cfg.Prefix = "search"
    }
    return &SearchCache{cfg: cfg, store: store}
}

func (s *SearchCache) genKey() string { return s.cfg.Prefix + ":gen" }

func (s *SearchCache) generation(ctx context.Context) (string, error) {
    b, err := s.store.Get(ctx, s.genKey())
    if errors.Is(err, redis.Nil) {
        return "0", nil
    }
    if err != nil {
        return "", err
    }
    return string(b), nil
}

// Invalidate retires every cached search page.
func (s *SearchCache) Invalidate(ctx context.Context) error {
    if s == nil {
        return nil
    }
    return s.store.Incr(ctx, s.genKey())
}

func (s *SearchCache) key(gen string, c echo.Context) string {
    r := c.Request()
    sum := sha1.Sum([]byte(c.Path() + "?" + r.URL.Query().Encode()))
    return fmt.Sprintf("%s:%s:%x", s.cfg.Prefix, gen, sum[:])
}

// Middleware serves GET requests from the cache and stores 200 responses.
func (s *SearchCache) Middleware() echo.MiddlewareFunc {
    if s == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    maxBody := int64(s.cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if c.Request().Method != http.MethodGet {
                return next(c)
            }
            ctx := c.Request().Context()
            gen, err := s.generation(ctx)
            if err != nil {
                return next(c)
            }
            key := s.key(gen, c)

            if bs, err := s.store.Get(ctx, key); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, "Content-Length") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    _, _ = c.Response().Write(body)
                    return nil
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated() {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
                _ = s.store.SetEx(context.WithoutCancel(ctx), key, payload, s.cfg.TTL)
            }
            return nil
        }
    }
}

// captureWriter forwards the response while keeping up to limit bytes.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    cw.size += int64(len(b))
    if !cw.truncated() {
        cw.buf.Write(b)
    }
    return cw.ResponseWriter.Write(b)
}

func (cw *captureWriter) truncated() bool { return cw.limit > 0 && cw.size > cw.limit }

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    header = make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, header, bs[8+hlen:], true
}
