package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/storage"
	"github.com/sirupsen/logrus"
)

// Store is the durable byte-level key/value boundary under the freshness cache
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that need explicit housekeeping
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

const objectPrefix = "cache/"

// StorageStore keeps cache records as objects of a storage backend. Each record
// carries its own housekeeping expiry, independent of the freshness TTL.
type StorageStore struct {
	backend storage.StorageInterface
	ttl     time.Duration
	now     func() time.Time
}

var (
	_ Store   = (*StorageStore)(nil)
	_ Sweeper = (*StorageStore)(nil)
)

type record struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt int64           `json:"expiresAt"`
}

// NewStorageStore wraps backend; records older than housekeepingTTL are treated as absent and swept
func NewStorageStore(backend storage.StorageInterface, housekeepingTTL time.Duration) *StorageStore {
	return &StorageStore{backend: backend, ttl: housekeepingTTL, now: time.Now}
}

func objectName(key string) string {
	return objectPrefix + key + ".json"
}

func (s *StorageStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := s.backend.Retrieve(objectName(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("corrupt cache record %s: %w", key, err)
	}
	if rec.ExpiresAt > 0 && s.now().UnixMilli() >= rec.ExpiresAt {
		return nil, false, nil
	}
	return rec.Value, true, nil
}

func (s *StorageStore) Set(_ context.Context, key string, value []byte) error {
	rec := record{Value: value}
	if s.ttl > 0 {
		rec.ExpiresAt = s.now().Add(s.ttl).UnixMilli()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.backend.Store(objectName(key), data)
}

func (s *StorageStore) Delete(_ context.Context, key string) error {
	return s.backend.Delete(objectName(key))
}

// Sweep deletes records past their housekeeping expiry and unreadable records
func (s *StorageStore) Sweep(ctx context.Context) (int, error) {
	names, err := s.backend.List(objectPrefix)
	if err != nil {
		return 0, err
	}

	now := s.now().UnixMilli()
	removed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := s.backend.Retrieve(name)
		if err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err == nil && (rec.ExpiresAt == 0 || now < rec.ExpiresAt) {
			continue
		}
		if err := s.backend.Delete(name); err != nil {
			logrus.Warnf("Failed to delete expired cache record %s: %v", name, err)
			continue
		}
		removed++
	}
	return removed, nil
}
