// Package cache stores LLM title suggestions and the home feed in redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

const (
	defaultPrefix   = "papershare:"
	defaultTitleTTL = 24 * time.Hour
	defaultFeedTTL  = time.Minute

	feedKey = "feed:home"
)

// TitleCache maps a search query to the titles suggested for it.
type TitleCache interface {
	// GetTitles returns the cached titles for query. ok is false on a miss.
	GetTitles(ctx context.Context, query string) (titles []string, ok bool, err error)
	// SetTitles stores titles for query.
	SetTitles(ctx context.Context, query string, titles []string) error
}

// FeedCache holds the home feed.
type FeedCache interface {
	// GetFeed returns the cached feed. ok is false on a miss.
	GetFeed(ctx context.Context) (papers []domain.Paper, ok bool, err error)
	// SetFeed stores the feed.
	SetFeed(ctx context.Context, papers []domain.Paper) error
	// InvalidateFeed drops the cached feed.
	InvalidateFeed(ctx context.Context) error
}

// Options configures a RedisCache. Zero values select defaults.
type Options struct {
	Prefix   string
	TitleTTL time.Duration
	FeedTTL  time.Duration
}

// RedisCache implements TitleCache and FeedCache on redis with JSON values.
type RedisCache struct {
	client   redis.UniversalClient
	prefix   string
	titleTTL time.Duration
	feedTTL  time.Duration
}

// NewRedisCache creates a redis-backed cache.
func NewRedisCache(client redis.UniversalClient, opts Options) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if strings.TrimSpace(opts.Prefix) == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.TitleTTL <= 0 {
		opts.TitleTTL = defaultTitleTTL
	}
	if opts.FeedTTL <= 0 {
		opts.FeedTTL = defaultFeedTTL
	}
	return &RedisCache{
		client:   client,
		prefix:   opts.Prefix,
		titleTTL: opts.TitleTTL,
		feedTTL:  opts.FeedTTL,
	}, nil
}

// Connect opens a redis client and verifies it answers PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// GetTitles implements TitleCache.
func (c *RedisCache) GetTitles(ctx context.Context, query string) ([]string, bool, error) {
	var titles []string
	ok, err := c.getJSON(ctx, c.titleKey(query), &titles)
	if err != nil || !ok {
		return nil, ok, err
	}
	return titles, true, nil
}

// SetTitles implements TitleCache.
func (c *RedisCache) SetTitles(ctx context.Context, query string, titles []string) error {
	if titles == nil {
		titles = []string{}
	}
	return c.setJSON(ctx, c.titleKey(query), titles, c.titleTTL)
}

// GetFeed implements FeedCache.
func (c *RedisCache) GetFeed(ctx context.Context) ([]domain.Paper, bool, error) {
	var papers []domain.Paper
	ok, err := c.getJSON(ctx, c.prefix+feedKey, &papers)
	if err != nil || !ok {
		return nil, ok, err
	}
	return papers, true, nil
}

// SetFeed implements FeedCache.
func (c *RedisCache) SetFeed(ctx context.Context, papers []domain.Paper) error {
	if papers == nil {
		papers = []domain.Paper{}
	}
	return c.setJSON(ctx, c.prefix+feedKey, papers, c.feedTTL)
}

// InvalidateFeed implements FeedCache.
func (c *RedisCache) InvalidateFeed(ctx context.Context) error {
	if err := c.client.Del(ctx, c.prefix+feedKey).Err(); err != nil {
		return fmt.Errorf("invalidate feed cache: %w", err)
	}
	return nil
}

func (c *RedisCache) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		// A corrupt entry is dropped and reported as a miss.
		_ = c.client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *RedisCache) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) titleKey(query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return c.prefix + "titles:" + hex.EncodeToString(sum[:])
}

// NormalizeQuery lower-cases query and collapses runs of whitespace, so that
// equivalent queries share a cache entry.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Nop is a cache that never stores anything.
type Nop struct{}

// GetTitles always misses.
func (Nop) GetTitles(context.Context, string) ([]string, bool, error) { return nil, false, nil }

// SetTitles discards titles.
func (Nop) SetTitles(context.Context, string, []string) error { return nil }

// GetFeed always misses.
func (Nop) GetFeed(context.Context) ([]domain.Paper, bool, error) { return nil, false, nil }

// SetFeed discards papers.
func (Nop) SetFeed(context.Context, []domain.Paper) error { return nil }

// InvalidateFeed does nothing.
func (Nop) InvalidateFeed(context.Context) error { return nil }

var (
	_ TitleCache = (*RedisCache)(nil)
	_ FeedCache  = (*RedisCache)(nil)
	_ TitleCache = Nop{}
	_ FeedCache  = Nop{}
)
