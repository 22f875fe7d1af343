package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/analysis"
	"github.com/brentwatch/brent-news-bot/internal/cache"
	"github.com/brentwatch/brent-news-bot/internal/config"
	"github.com/brentwatch/brent-news-bot/internal/models"
	"github.com/brentwatch/brent-news-bot/internal/notifications"
	"github.com/brentwatch/brent-news-bot/internal/prediction"
	"github.com/brentwatch/brent-news-bot/internal/sentiment"
	"github.com/brentwatch/brent-news-bot/internal/sources"
	"github.com/brentwatch/brent-news-bot/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// NewsLimit caps the listing returned by GetNews
const NewsLimit = 50

// CollectTimeout bounds a shared collection run independently of its callers
const CollectTimeout = 10 * time.Minute

// PredictionUnavailable replaces a prediction the engine could not produce
const PredictionUnavailable = "unavailable"

// PriceProvider supplies price history and the latest quote
type PriceProvider interface {
	HistoricalData(ctx context.Context, period string) (*models.HistoricalData, error)
	CurrentPrice(ctx context.Context) (*models.CurrentPrice, error)
}

// Dependencies are the collaborators a Service orchestrates. Snapshots, Prices
// and Notifier are optional.
type Dependencies struct {
	Registry  *sources.Registry
	Fetcher   sources.FetcherConfig
	Scorer    *sentiment.Scorer
	Cache     *cache.FreshnessCache
	Snapshots storage.StorageInterface
	Prices    PriceProvider
	Notifier  notifications.NotificationInterface
}

// Service runs the news pipeline and derives forecasts from its output
type Service struct {
	config   *config.Config
	deps     Dependencies
	location *time.Location
	now      func() time.Time
	collect  singleflight.Group
	timeout  time.Duration
	metrics  *Metrics
	mu       sync.RWMutex
}

// Metrics describes the most recent collection run
type Metrics struct {
	RunID              string         `json:"run_id"`
	TotalHeadlines     int            `json:"total_headlines"`
	LastRun            time.Time      `json:"last_run"`
	LastRunDuration    string         `json:"last_run_duration"`
	SourceMetrics      map[string]int `json:"source_metrics"`
	CacheHits          int            `json:"cache_hits"`
	FailedSources      []string       `json:"failed_sources"`
	SentimentBreakdown map[string]int `json:"sentiment_breakdown"`
	ErrorCount         int            `json:"error_count"`
}

// NewService creates a pipeline service
func NewService(cfg *config.Config, deps Dependencies) *Service {
	if deps.Registry == nil {
		deps.Registry = sources.DefaultRegistry()
	}
	return &Service{
		config:   cfg,
		deps:     deps,
		location: cfg.Location(),
		now:      time.Now,
		timeout:  CollectTimeout,
		metrics: &Metrics{
			SourceMetrics:      make(map[string]int),
			SentimentBreakdown: make(map[string]int),
		},
	}
}

type sourceResult struct {
	items  []models.NewsItem
	cached bool
	err    error
}

// CollectNews returns the merged, scored items of every enabled source in
// registry order. A failing source is logged and skipped. Concurrent callers
// share a single run, which outlives any caller that gives up waiting.
func (s *Service) CollectNews(ctx context.Context) ([]models.NewsItem, error) {
	ch := s.collect.DoChan("collect", func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.runCollection(runCtx)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("news collection cancelled: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.NewsItem), nil
	}
}

func (s *Service) runCollection(ctx context.Context) ([]models.NewsItem, error) {
	start := s.now()
	runID := uuid.NewString()
	log := logrus.WithField("run_id", runID)

	enabled := s.deps.Registry.Enabled()
	log.Infof("Starting news collection over %d sources", len(enabled))

	results := make([]sourceResult, len(enabled))

	concurrency := s.config.SourceConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, src := range enabled {
		i, src := i, src
		g.Go(func() error {
			items, cached, err := s.processSource(gctx, src)
			results[i] = sourceResult{items: items, cached: cached, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("news collection cancelled: %w", err)
	}

	allItems := []models.NewsItem{}
	var failed []string
	cacheHits := 0
	for i, res := range results {
		src := enabled[i]
		if res.err != nil {
			log.WithFields(logrus.Fields{"source": src.Name, "url": src.URL}).Errorf("Source failed: %v", res.err)
			failed = append(failed, src.Name)
			continue
		}
		if res.cached {
			cacheHits++
		}
		allItems = append(allItems, res.items...)
	}

	log.Infof("Collected %d headlines (%d from cache, %d sources failed)", len(allItems), cacheHits, len(failed))

	s.saveSnapshot(allItems)
	s.updateMetrics(runID, allItems, enabled, results, failed, cacheHits, s.now().Sub(start))

	if len(enabled) > 0 && len(failed) == len(enabled) {
		s.alertAllSourcesFailed(runID, failed)
	}

	return allItems, nil
}

// processSource serves a fresh cached batch or runs fetch, parse and score for one source
func (s *Service) processSource(ctx context.Context, src sources.FeedSource) ([]models.NewsItem, bool, error) {
	log := logrus.WithFields(logrus.Fields{"source": src.Name, "url": src.URL})
	key := cache.Key(s.config.CacheVersion, src.URL)

	if s.deps.Cache != nil {
		entry, err := s.deps.Cache.Get(ctx, key)
		if err != nil {
			log.Warnf("Cache read failed, refetching: %v", err)
		} else if entry != nil {
			log.Debugf("Using cached batch of %d headlines", len(entry.Items))
			return entry.Items, true, nil
		}
	}

	session, err := sources.NewSession(s.deps.Fetcher)
	if err != nil {
		return nil, false, err
	}

	raw, err := src.FetchEntries(ctx, session)
	if err != nil {
		return nil, false, err
	}

	items := sources.Normalize(raw, src.Name, s.location)
	if dropped := len(raw) - len(items); dropped > 0 {
		log.Warnf("Dropped %d entries with unparseable dates", dropped)
	}

	scored := []models.NewsItem{}
	if len(items) > 0 {
		scored, err = s.deps.Scorer.Score(ctx, items)
		if err != nil {
			return nil, false, err
		}
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, key, scored, 0); err != nil {
			log.Warnf("Cache write failed: %v", err)
		}
	}

	log.Infof("Fetched and scored %d headlines", len(scored))
	return scored, false, nil
}

// SnapshotName is the daily audit artifact for day
func SnapshotName(day time.Time) string {
	return fmt.Sprintf("brent-news-%s.json", day.Format("2006-01-02"))
}

func (s *Service) saveSnapshot(items []models.NewsItem) {
	if s.deps.Snapshots == nil {
		return
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		logrus.Errorf("Failed to marshal news snapshot: %v", err)
		return
	}

	name := SnapshotName(s.now().In(s.location))
	if err := s.deps.Snapshots.Store(name, data); err != nil {
		logrus.Errorf("Failed to store news snapshot %s: %v", name, err)
		return
	}
	logrus.Infof("Saved %d headlines to %s", len(items), name)
}

func (s *Service) alertAllSourcesFailed(runID string, failed []string) {
	if s.deps.Notifier == nil {
		return
	}
	alert := &models.Alert{
		ID:        runID,
		Type:      "critical",
		Title:     "All news sources failed",
		Message:   fmt.Sprintf("No headline could be collected from %d sources: %v", len(failed), failed),
		CreatedAt: s.now(),
	}
	if err := s.deps.Notifier.SendAlert(alert); err != nil {
		logrus.Errorf("Failed to send alert: %v", err)
	}
}

// RefreshNews runs a collection for its side effects on cache, snapshot and metrics
func (s *Service) RefreshNews(ctx context.Context) error {
	_, err := s.CollectNews(ctx)
	return err
}

// GetNews returns the merged batch newest first, capped at NewsLimit
func (s *Service) GetNews(ctx context.Context) ([]models.NewsItem, error) {
	items, err := s.CollectNews(ctx)
	if err != nil {
		return nil, err
	}
	return latest(items, NewsLimit), nil
}

func latest(items []models.NewsItem, limit int) []models.NewsItem {
	sorted := make([]models.NewsItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// Predict aggregates news sentiment and forecasts the next price from history
func (s *Service) Predict(history []models.PricePoint, news []models.NewsItem) (*models.Prediction, error) {
	now := s.now().In(s.location)
	return prediction.Generate(history, analysis.Analyze(news, now), now)
}

// HistoricalData returns the price series for period
func (s *Service) HistoricalData(ctx context.Context, period string) (*models.HistoricalData, error) {
	if s.deps.Prices == nil {
		return nil, fmt.Errorf("no price provider configured")
	}
	return s.deps.Prices.HistoricalData(ctx, period)
}

// CurrentPrice returns the latest quote
func (s *Service) CurrentPrice(ctx context.Context) (*models.CurrentPrice, error) {
	if s.deps.Prices == nil {
		return nil, fmt.Errorf("no price provider configured")
	}
	return s.deps.Prices.CurrentPrice(ctx)
}

// AllData bundles price, history, news and a prediction. A failed prediction
// is reported as unavailable instead of failing the whole response.
func (s *Service) AllData(ctx context.Context, period string) (*models.Dashboard, error) {
	var (
		price   *models.CurrentPrice
		history *models.HistoricalData
		news    []models.NewsItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		price, err = s.CurrentPrice(gctx)
		return err
	})
	g.Go(func() (err error) {
		history, err = s.HistoricalData(gctx, period)
		return err
	})
	g.Go(func() (err error) {
		news, err = s.GetNews(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dashboard := &models.Dashboard{
		CurrentPrice:   *price,
		HistoricalData: history.Data,
		News:           news,
	}

	p, err := s.Predict(history.Data, news)
	if err != nil {
		logrus.Warnf("Prediction unavailable: %v", err)
		dashboard.PredictionError = PredictionUnavailable
	} else {
		dashboard.Prediction = p
	}

	return dashboard, nil
}

// SweepCache drops cache records past their housekeeping expiry
func (s *Service) SweepCache(ctx context.Context) error {
	if s.deps.Cache == nil {
		return nil
	}
	removed, err := s.deps.Cache.Sweep(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		logrus.Infof("Cache housekeeping removed %d expired records", removed)
	}
	return nil
}

func (s *Service) updateMetrics(runID string, items []models.NewsItem, enabled []sources.FeedSource, results []sourceResult, failed []string, cacheHits int, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.RunID = runID
	s.metrics.TotalHeadlines = len(items)
	s.metrics.LastRun = s.now()
	s.metrics.LastRunDuration = duration.String()
	s.metrics.CacheHits = cacheHits
	s.metrics.FailedSources = failed
	s.metrics.ErrorCount = len(failed)

	s.metrics.SourceMetrics = make(map[string]int)
	s.metrics.SentimentBreakdown = make(map[string]int)

	for i, res := range results {
		if res.err == nil {
			s.metrics.SourceMetrics[enabled[i].Name] = len(res.items)
		}
	}
	for _, item := range items {
		s.metrics.SentimentBreakdown[item.Sentiment]++
	}
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
