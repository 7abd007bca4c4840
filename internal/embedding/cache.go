package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa/internal/contextutil"
)

// Cache stores query vectors by key. Get reports ok=false on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (vec []float32, ok bool, err error)
	Set(ctx context.Context, key string, vec []float32) error
}

// CachedEncoder memoizes EncodeQuery results. Batch encoding is passed through untouched.
// Cache failures are logged and bypassed; they never fail a request.
type CachedEncoder struct {
	next  Encoder
	cache Cache
	model string
}

// NewCachedEncoder wraps next with cache. model namespaces keys so a model change never
// serves stale vectors.
func NewCachedEncoder(next Encoder, cache Cache, model string) *CachedEncoder {
	return &CachedEncoder{next: next, cache: cache, model: model}
}

// Dimension implements Encoder.
func (e *CachedEncoder) Dimension() int { return e.next.Dimension() }

// Encode implements Encoder.
func (e *CachedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	return e.next.Encode(ctx, texts)
}

// EncodeQuery implements Encoder.
func (e *CachedEncoder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)
	key := CacheKey(e.model, text)

	vec, ok, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "embedding cache read failed", "error", err)
	case ok && len(vec) == e.next.Dimension():
		return vec, nil
	case ok:
		logger.WarnContext(ctx, "discarding cached embedding with wrong dimension", "got", len(vec), "want", e.next.Dimension())
	}

	vec, err = e.next.EncodeQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Set(ctx, key, vec); err != nil {
		logger.WarnContext(ctx, "embedding cache write failed", "error", err)
	}
	return vec, nil
}

// CacheKey builds the cache key for a query under a model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(sum[:])
}

// RedisCache stores vectors as little-endian float32 bytes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache parses a redis:// URL and returns a cache with the given entry TTL.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

// Ping verifies the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	if err := c.client.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector of %d bytes", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec, nil
}
