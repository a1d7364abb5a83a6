package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache TTLs
const (
	TTLCaseStudy = 5 * time.Minute  // rendered case studies (read-heavy)
	TTLHistory   = 2 * time.Minute  // version history views
	TTLJob       = 30 * time.Second // propagation job progress (polled)
	TTLSetting   = 10 * time.Minute // generation settings (rarely change)
	TTLDefault   = 5 * time.Minute
)

// Cache key prefixes
const (
	PrefixCaseStudy = "case:"
	PrefixHistory   = "history:"
	PrefixJob       = "job:"
	PrefixSetting   = "setting:"
)

// ErrCacheMiss is returned when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// Service Redis-backed cache service interface
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Case study cache
	GetCaseStudy(ctx context.Context, id string) ([]byte, error)
	SetCaseStudy(ctx context.Context, id string, data interface{}) error
	InvalidateCaseStudy(ctx context.Context, id string) error

	// Propagation job progress mirror
	GetJobProgress(ctx context.Context, jobID string, dest interface{}) error
	SetJobProgress(ctx context.Context, jobID string, data interface{}) error

	// Generation setting cache
	InvalidateSetting(ctx context.Context, key string) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

// redisCache Redis-backed implementation
type redisCache struct {
	client *redis.Client
}

// NewService creates a new cache service
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *redisCache) GetCaseStudy(ctx context.Context, id string) ([]byte, error) {
	data, err := c.client.Get(ctx, PrefixCaseStudy+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return data, err
}

func (c *redisCache) SetCaseStudy(ctx context.Context, id string, data interface{}) error {
	return c.Set(ctx, PrefixCaseStudy+id, data, TTLCaseStudy)
}

func (c *redisCache) InvalidateCaseStudy(ctx context.Context, id string) error {
	return c.Delete(ctx, PrefixCaseStudy+id, PrefixHistory+id)
}

func (c *redisCache) GetJobProgress(ctx context.Context, jobID string, dest interface{}) error {
	return c.Get(ctx, PrefixJob+jobID, dest)
}

func (c *redisCache) SetJobProgress(ctx context.Context, jobID string, data interface{}) error {
	return c.Set(ctx, PrefixJob+jobID, data, TTLJob)
}

func (c *redisCache) InvalidateSetting(ctx context.Context, key string) error {
	return c.Delete(ctx, fmt.Sprintf("%s%s", PrefixSetting, key))
}
