package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/models"
)

// CacheError reports that the persistence layer failed; callers degrade to a miss
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Key builds the cache key for a source URL; bumping version orphans every older entry
func Key(version, sourceURL string) string {
	return url.QueryEscape(version + sourceURL)
}

// Entry is a cached batch of scored items for one source
type Entry struct {
	Items   []models.NewsItem
	Expires time.Time
}

type envelope struct {
	Data    []models.NewsItem `json:"data"`
	Expires int64             `json:"expires"` // epoch milliseconds
}

// FreshnessCache serves per-source news batches until their freshness TTL elapses
type FreshnessCache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// New creates a cache whose Set uses ttl when called with a zero duration
func New(store Store, ttl time.Duration) *FreshnessCache {
	return &FreshnessCache{store: store, ttl: ttl, now: time.Now}
}

// Get returns the entry for key while now < expiry. A miss or a stale entry
// returns nil with no error; a persistence failure returns a *CacheError.
// An undecodable envelope is deleted so the next Set starts clean.
func (c *FreshnessCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, &CacheError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if derr := c.store.Delete(ctx, key); derr != nil {
			err = errors.Join(err, derr)
		}
		return nil, &CacheError{Op: "decode", Key: key, Err: err}
	}

	expires := time.UnixMilli(env.Expires)
	if !c.now().Before(expires) {
		return nil, nil
	}
	if env.Data == nil {
		env.Data = []models.NewsItem{}
	}
	return &Entry{Items: env.Data, Expires: expires}, nil
}

// Set stores items under key, fresh for ttl (the cache default when ttl is zero).
// It returns only once the store acknowledged the write.
func (c *FreshnessCache) Set(ctx context.Context, key string, items []models.NewsItem, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if items == nil {
		items = []models.NewsItem{}
	}

	data, err := json.Marshal(envelope{Data: items, Expires: c.now().Add(ttl).UnixMilli()})
	if err != nil {
		return &CacheError{Op: "encode", Key: key, Err: err}
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		return &CacheError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Sweep runs store housekeeping when the store supports it
func (c *FreshnessCache) Sweep(ctx context.Context) (int, error) {
	sw, ok := c.store.(Sweeper)
	if !ok {
		return 0, nil
	}
	n, err := sw.Sweep(ctx)
	if err != nil {
		return n, &CacheError{Op: "sweep", Err: err}
	}
	return n, nil
}
