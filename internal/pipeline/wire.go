package pipeline

import (
	"fmt"

	"github.com/brentwatch/brent-news-bot/internal/cache"
	"github.com/brentwatch/brent-news-bot/internal/config"
	"github.com/brentwatch/brent-news-bot/internal/market"
	"github.com/brentwatch/brent-news-bot/internal/notifications"
	"github.com/brentwatch/brent-news-bot/internal/sentiment"
	"github.com/brentwatch/brent-news-bot/internal/sources"
	"github.com/brentwatch/brent-news-bot/internal/storage"
	"github.com/sirupsen/logrus"
)

// FetcherConfigFrom maps the fetch settings of cfg onto a FetcherConfig with browser-like headers
func FetcherConfigFrom(cfg *config.Config) sources.FetcherConfig {
	fc := sources.DefaultFetcherConfig()
	fc.Retries = cfg.FetchRetries
	fc.RetryDelay = cfg.FetchRetryDelay
	fc.MaxRedirects = cfg.FetchMaxRedirects
	fc.Timeout = cfg.FetchTimeout
	fc.RatePerSecond = cfg.FetchRatePerSecond
	return fc
}

// LoadRegistry reads the configured sources file or falls back to the built-in registry
func LoadRegistry(cfg *config.Config) (*sources.Registry, error) {
	if cfg.SourcesFile == "" {
		return sources.DefaultRegistry(), nil
	}
	registry, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Loaded %d sources from %s", len(registry.Sources), cfg.SourcesFile)
	return registry, nil
}

// NewClassifier returns the classifier selected by cfg
func NewClassifier(cfg *config.Config) sentiment.Classifier {
	if cfg.Classifier == "lexicon" {
		return sentiment.NewLexiconClassifier()
	}
	return sentiment.NewExecClassifier(cfg.ClassifierCommand, cfg.ClassifierScript, cfg.ClassifierTimeout)
}

// NewCacheStore opens the configured cache backend. The returned func releases it.
func NewCacheStore(cfg *config.Config) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case "redis":
		store, err := cache.NewRedisStore(cache.RedisConfig{Addr: cfg.RedisAddr}, cfg.CacheHousekeepingTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		backend, err := storage.NewLocalStorage(cfg.CacheDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cache directory: %w", err)
		}
		return cache.NewStorageStore(backend, cfg.CacheHousekeepingTTL), func() {}, nil
	}
}

// NewSnapshotStorage returns Azure Blob storage when an account is configured, a local directory otherwise
func NewSnapshotStorage(cfg *config.Config) (storage.StorageInterface, error) {
	if cfg.StorageAccount != "" {
		return storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
	}
	return storage.NewLocalStorage(cfg.SnapshotDir)
}

// NewDependencies assembles every collaborator from cfg. The returned func releases them.
func NewDependencies(cfg *config.Config) (Dependencies, func(), error) {
	registry, err := LoadRegistry(cfg)
	if err != nil {
		return Dependencies{}, nil, err
	}

	store, closeStore, err := NewCacheStore(cfg)
	if err != nil {
		return Dependencies{}, nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	snapshots, err := NewSnapshotStorage(cfg)
	if err != nil {
		closeStore()
		return Dependencies{}, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	deps := Dependencies{
		Registry:  registry,
		Fetcher:   FetcherConfigFrom(cfg),
		Scorer:    sentiment.NewScorer(NewClassifier(cfg), cfg.ScorerConcurrency),
		Cache:     cache.New(store, cfg.CacheTTL),
		Snapshots: snapshots,
		Prices:    market.NewYahooClient(cfg.PriceSymbol),
	}
	if cfg.NotificationsEnabled() {
		deps.Notifier = notifications.NewService(cfg)
	}

	return deps, closeStore, nil
}
