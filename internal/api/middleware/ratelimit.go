package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gymmaster/internal/api/response"
)

const defaultRateLimit = 60

// RateLimitStore counts hits per key inside a window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// MemoryStore keeps a sliding window of hit timestamps per key. Counters live
// in this process only.
type MemoryStore struct {
	windows sync.Map // key -> *hitWindow
	now     func() time.Time
}

type hitWindow struct {
	mu   sync.Mutex
	hits []time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	value, _ := s.windows.LoadOrStore(key, &hitWindow{})
	w := value.(*hitWindow)

	now := s.now()
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.hits[:0]
	for _, at := range w.hits {
		if now.Sub(at) < window {
			kept = append(kept, at)
		}
	}
	w.hits = kept

	if len(w.hits) >= limit {
		return false, nil
	}
	w.hits = append(w.hits, now)
	return true, nil
}

// RedisStore counts in fixed windows so every API replica shares one budget.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "gymmaster:ratelimit:"}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	slot := time.Now().UnixNano() / window.Nanoseconds()
	redisKey := s.prefix + key + ":" + strconv.FormatInt(slot, 10)

	var hits *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return hits.Val() <= int64(limit), nil
}

var fallbackStore = NewMemoryStore()

// RateLimit limits a route per client IP ("ip") or per authenticated user
// ("user_id"; anonymous callers fall back to their IP).
func RateLimit(store RateLimitStore, by string, limit int, window time.Duration) gin.HandlerFunc {
	return limitBy(store, limit, window, func(c *gin.Context) string {
		if by == "user_id" {
			if claims, ok := GetClaims(c); ok && claims.UserID != "" {
				return "user:" + claims.UserID
			}
		}
		return "ip:" + c.ClientIP()
	})
}

// RateLimitByJSONField keys the limit on a body field such as the login email,
// so one address cannot be hammered from many IPs.
func RateLimitByJSONField(store RateLimitStore, field string, limit int, window time.Duration) gin.HandlerFunc {
	return limitBy(store, limit, window, func(c *gin.Context) string {
		value := strings.ToLower(jsonStringField(c, field))
		if value == "" {
			return field + ":none:" + c.ClientIP()
		}
		return field + ":" + value
	})
}

func limitBy(store RateLimitStore, limit int, window time.Duration, keyOf func(*gin.Context) string) gin.HandlerFunc {
	if store == nil {
		store = fallbackStore
	}
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if window <= 0 {
		window = time.Minute
	}
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(c *gin.Context) {
		key := c.FullPath() + "|" + keyOf(c)

		allowed, err := store.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			zap.L().Warn("rate limit store unavailable, allowing request",
				zap.String("route", c.FullPath()), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", retryAfter)
			response.Fail(c, http.StatusTooManyRequests, response.ErrRateLimited, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}

// jsonStringField reads one string field from the body and rewinds it for
// the handler.
func jsonStringField(c *gin.Context, field string) string {
	if c.Request == nil {
		return ""
	}
	raw := bufferRequestBody(c)
	if len(raw) == 0 {
		return ""
	}

	var payload map[string]json.RawMessage
	if json.Unmarshal(raw, &payload) != nil {
		return ""
	}
	var value string
	if json.Unmarshal(payload[field], &value) != nil {
		return ""
	}
	return strings.TrimSpace(value)
}
