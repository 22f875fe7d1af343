package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/cache"
	"github.com/brentwatch/brent-news-bot/internal/config"
	"github.com/brentwatch/brent-news-bot/internal/models"
	"github.com/brentwatch/brent-news-bot/internal/sentiment"
	"github.com/brentwatch/brent-news-bot/internal/sources"
	"github.com/brentwatch/brent-news-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage is a mock implementation of the storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Store(filename string, data []byte) error {
	args := m.Called(filename, data)
	return args.Error(0)
}

func (m *MockStorage) Retrieve(filename string) ([]byte, error) {
	args := m.Called(filename)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorage) List(prefix string) ([]string, error) {
	args := m.Called(prefix)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) Delete(filename string) error {
	args := m.Called(filename)
	return args.Error(0)
}

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendReport(report *models.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

func (m *MockNotificationService) SendAlert(alert *models.Alert) error {
	args := m.Called(alert)
	return args.Error(0)
}

// MockPrices is a mock implementation of PriceProvider
type MockPrices struct {
	mock.Mock
}

func (m *MockPrices) HistoricalData(ctx context.Context, period string) (*models.HistoricalData, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HistoricalData), args.Error(1)
}

func (m *MockPrices) CurrentPrice(ctx context.Context) (*models.CurrentPrice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CurrentPrice), args.Error(1)
}

type failingClassifier struct{}

func (failingClassifier) Classify(_ context.Context, text string) (models.SentimentScores, error) {
	return models.SentimentScores{}, &sentiment.ScoringError{Text: text, Reason: "classifier offline"}
}

var fixedNow = time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

type headline struct {
	title string
	date  time.Time
}

func rssFeed(items ...headline) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>`)
	for i, it := range items {
		fmt.Fprintf(&b, "<item><title>%s</title><link>https://news.test/%d</link><pubDate>%s</pubDate></item>",
			it.title, i, it.date.Format(time.RFC1123Z))
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func atomFeed(items ...headline) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><title>t</title>`)
	for i, it := range items {
		fmt.Fprintf(&b, `<entry><title>%s</title><link href="https://prix.test/%d"/><published>%s</published></entry>`,
			it.title, i, it.date.Format(time.RFC3339))
	}
	b.WriteString(`</feed>`)
	return b.String()
}

type feedServer struct {
	*httptest.Server
	hits map[string]*int32
}

func newFeedServer(t *testing.T, feeds map[string]string) *feedServer {
	fs := &feedServer{hits: make(map[string]*int32)}
	mux := http.NewServeMux()
	for path, body := range feeds {
		path, body := path, body
		fs.hits[path] = new(int32)
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(fs.hits[path], 1)
			w.Write([]byte(body))
		})
	}
	fs.hits["/loop"] = new(int32)
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(fs.hits["/loop"], 1)
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	fs.hits["/broken"] = new(int32)
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(fs.hits["/broken"], 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *feedServer) count(path string) int32 {
	return atomic.LoadInt32(fs.hits[path])
}

func rssSource(name, url string) sources.FeedSource {
	return sources.FeedSource{
		Name: name, URL: url, Dialect: sources.DialectRSS,
		EntriesPath: "rss.channel.item", TitlePath: "title", LinkPath: "link", DatePath: "pubDate",
	}
}

func atomSource(name, url string) sources.FeedSource {
	return sources.FeedSource{
		Name: name, URL: url, Dialect: sources.DialectAtom,
		EntriesPath: "feed.entry", TitlePath: "title", LinkPath: "link.$.href", DatePath: "published",
	}
}

func testConfig() *config.Config {
	return &config.Config{
		TimeZone:          "UTC",
		CacheVersion:      "v1.0.0",
		SourceConcurrency: 1,
		ScorerConcurrency: 1,
	}
}

func testFetcher() sources.FetcherConfig {
	cfg := sources.DefaultFetcherConfig()
	cfg.Retries = 2
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRedirects = 3
	cfg.Timeout = 5 * time.Second
	cfg.RatePerSecond = 0
	return cfg
}

func testCache(t *testing.T) *cache.FreshnessCache {
	backend, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return cache.New(cache.NewStorageStore(backend, 2*time.Hour), time.Hour)
}

func newTestService(cfg *config.Config, deps Dependencies) *Service {
	if deps.Scorer == nil {
		deps.Scorer = sentiment.NewScorer(sentiment.NewLexiconClassifier(), cfg.ScorerConcurrency)
	}
	if deps.Fetcher.Retries == 0 {
		deps.Fetcher = testFetcher()
	}
	svc := NewService(cfg, deps)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestService_CollectNews_IsolatesFailingSources(t *testing.T) {
	fs := newFeedServer(t, map[string]string{
		"/prix": atomFeed(
			headline{"Le Brent grimpe", fixedNow.Add(-2 * time.Hour)},
		),
		"/reuters": rssFeed(
			headline{"Oil prices surge after OPEC+ cuts", fixedNow.Add(-time.Hour)},
			headline{"Brent prices tumble on demand worries", fixedNow.Add(-26 * time.Hour)},
		),
	})

	snapshots := new(MockStorage)
	var snapshot []byte
	snapshots.On("Store", "brent-news-2024-03-04.json", mock.Anything).Run(func(args mock.Arguments) {
		snapshot = args.Get(1).([]byte)
	}).Return(nil)

	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			cfg := testConfig()
			cfg.SourceConcurrency = concurrency
			svc := newTestService(cfg, Dependencies{
				Registry: &sources.Registry{Sources: []sources.FeedSource{
					atomSource("prix", fs.URL+"/prix"),
					rssSource("loop", fs.URL+"/loop"),
					rssSource("broken", fs.URL+"/broken"),
					rssSource("reuters", fs.URL+"/reuters"),
				}},
				Cache:     testCache(t),
				Snapshots: snapshots,
			})

			items, err := svc.CollectNews(context.Background())
			require.NoError(t, err)
			require.Len(t, items, 3)

			assert.Equal(t, "Le Brent grimpe", items[0].Title)
			assert.Equal(t, "prix", items[0].Source)
			assert.Equal(t, "https://prix.test/0", items[0].URL)
			assert.Equal(t, models.SentimentPositive, items[0].Sentiment)

			assert.Equal(t, "reuters", items[1].Source)
			assert.Equal(t, "2024-03-04", items[1].Date)
			assert.Equal(t, models.SentimentPositive, items[1].Sentiment)

			assert.Equal(t, "2024-03-03", items[2].Date)
			assert.Equal(t, models.SentimentNegative, items[2].Sentiment)

			var metrics Metrics
			require.NoError(t, json.Unmarshal([]byte(svc.GetMetrics()), &metrics))
			assert.Equal(t, []string{"loop", "broken"}, metrics.FailedSources)
			assert.Equal(t, 3, metrics.TotalHeadlines)
			assert.Equal(t, map[string]int{"prix": 1, "reuters": 2}, metrics.SourceMetrics)

			var saved []models.NewsItem
			require.NoError(t, json.Unmarshal(snapshot, &saved))
			assert.Equal(t, items, saved)
		})
	}
}

func TestService_CollectNews_CacheIsIdempotent(t *testing.T) {
	fs := newFeedServer(t, map[string]string{
		"/reuters": rssFeed(headline{"Oil prices rise", fixedNow.Add(-time.Hour)}),
	})

	svc := newTestService(testConfig(), Dependencies{
		Registry: &sources.Registry{Sources: []sources.FeedSource{rssSource("reuters", fs.URL+"/reuters")}},
		Cache:    testCache(t),
	})

	first, err := svc.CollectNews(context.Background())
	require.NoError(t, err)
	second, err := svc.CollectNews(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), fs.count("/reuters"))

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))

	var metrics Metrics
	require.NoError(t, json.Unmarshal([]byte(svc.GetMetrics()), &metrics))
	assert.Equal(t, 1, metrics.CacheHits)
}

func TestService_CollectNews_ScoringFailureIsNotCached(t *testing.T) {
	fs := newFeedServer(t, map[string]string{
		"/reuters": rssFeed(headline{"Oil prices rise", fixedNow.Add(-time.Hour)}),
	})

	notifier := new(MockNotificationService)
	notifier.On("SendAlert", mock.MatchedBy(func(a *models.Alert) bool {
		return a.Type == "critical" && strings.Contains(a.Message, "reuters")
	})).Return(nil)

	svc := newTestService(testConfig(), Dependencies{
		Registry: &sources.Registry{Sources: []sources.FeedSource{rssSource("reuters", fs.URL+"/reuters")}},
		Scorer:   sentiment.NewScorer(failingClassifier{}, 1),
		Cache:    testCache(t),
		Notifier: notifier,
	})

	for i := 0; i < 2; i++ {
		items, err := svc.CollectNews(context.Background())
		require.NoError(t, err)
		assert.Empty(t, items)
	}

	assert.Equal(t, int32(2), fs.count("/reuters"))
	notifier.AssertNumberOfCalls(t, "SendAlert", 2)
}

func TestService_CollectNews_RedirectLoopTerminates(t *testing.T) {
	fs := newFeedServer(t, map[string]string{
		"/reuters": rssFeed(headline{"Oil prices rise", fixedNow.Add(-time.Hour)}),
	})

	svc := newTestService(testConfig(), Dependencies{
		Registry: &sources.Registry{Sources: []sources.FeedSource{
			rssSource("loop", fs.URL+"/loop"),
			rssSource("reuters", fs.URL+"/reuters"),
		}},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	items, err := svc.CollectNews(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "reuters", items[0].Source)
	// one attempt of four requests, not retried
	assert.Equal(t, int32(4), fs.count("/loop"))
}

func TestService_GetNews_SortedAndCapped(t *testing.T) {
	var hs []headline
	for i := 0; i < 60; i++ {
		hs = append(hs, headline{fmt.Sprintf("Brent headline %d", i), fixedNow.Add(-time.Duration(60-i) * time.Minute)})
	}
	fs := newFeedServer(t, map[string]string{"/many": rssFeed(hs...)})

	svc := newTestService(testConfig(), Dependencies{
		Registry: &sources.Registry{Sources: []sources.FeedSource{rssSource("many", fs.URL+"/many")}},
	})

	news, err := svc.GetNews(context.Background())
	require.NoError(t, err)
	require.Len(t, news, NewsLimit)
	assert.Equal(t, "Brent headline 59", news[0].Title)
	for i := 1; i < len(news); i++ {
		assert.GreaterOrEqual(t, news[i-1].Timestamp, news[i].Timestamp)
	}
}

func pricePoints(closes ...float64) []models.PricePoint {
	points := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = models.PricePoint{Date: fmt.Sprintf("2024-02-%02d", i+1), Close: c}
	}
	return points
}

func TestService_Predict(t *testing.T) {
	svc := newTestService(testConfig(), Dependencies{})

	news := []models.NewsItem{
		{Title: "up", Date: "2024-03-04", Source: "s", Sentiment: models.SentimentPositive, Sentiments: models.SentimentScores{Compound: 0.5}},
		{Title: "old", Date: "2024-03-01", Source: "s", Sentiment: models.SentimentNegative, Sentiments: models.SentimentScores{Compound: -0.3}},
		{Title: "a", Date: "2024-03-04", Source: "s", Sentiment: models.SentimentNeutral},
		{Title: "b", Date: "2024-03-04", Source: "s", Sentiment: models.SentimentNeutral},
	}

	p, err := svc.Predict(pricePoints(100, 101, 102, 103, 104), news)
	require.NoError(t, err)

	// three items today: sentiment confidence 80
	assert.InDelta(t, 105.56, p.PredictedPrice, 1e-9)
	assert.Equal(t, 90, p.Confidence)
	assert.Equal(t, "2024-03-04", p.PredictionDate)
	assert.InDelta(t, -0.3, p.ScoreHistory["2024-03-01"], 1e-9)
	require.Len(t, p.Factors, 3)
	assert.Equal(t, "up", p.Factors[2].Description)

	_, err = svc.Predict(pricePoints(100, 101), news)
	assert.Error(t, err)
}

func TestService_AllData(t *testing.T) {
	fs := newFeedServer(t, map[string]string{
		"/reuters": rssFeed(headline{"Oil prices rise", fixedNow.Add(-time.Hour)}),
	})

	tests := []struct {
		name           string
		history        []models.PricePoint
		wantPrediction bool
	}{
		{"Enough history", pricePoints(80, 81, 82, 83, 84, 85), true},
		{"Too short history", pricePoints(80, 81), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices := new(MockPrices)
			prices.On("CurrentPrice", mock.Anything).Return(&models.CurrentPrice{Price: 85, Currency: "USD"}, nil)
			prices.On("HistoricalData", mock.Anything, "1mo").Return(&models.HistoricalData{Data: tt.history}, nil)

			svc := newTestService(testConfig(), Dependencies{
				Registry: &sources.Registry{Sources: []sources.FeedSource{rssSource("reuters", fs.URL+"/reuters")}},
				Prices:   prices,
			})

			dashboard, err := svc.AllData(context.Background(), "1mo")
			require.NoError(t, err)
			assert.Equal(t, 85.0, dashboard.CurrentPrice.Price)
			assert.Len(t, dashboard.HistoricalData, len(tt.history))
			assert.Len(t, dashboard.News, 1)

			if tt.wantPrediction {
				require.NotNil(t, dashboard.Prediction)
				assert.Empty(t, dashboard.PredictionError)
			} else {
				assert.Nil(t, dashboard.Prediction)
				assert.Equal(t, PredictionUnavailable, dashboard.PredictionError)
			}
		})
	}
}

func TestService_AllData_PriceFailure(t *testing.T) {
	prices := new(MockPrices)
	prices.On("CurrentPrice", mock.Anything).Return(nil, errors.New("upstream down"))
	prices.On("HistoricalData", mock.Anything, mock.Anything).Return(&models.HistoricalData{}, nil)

	svc := newTestService(testConfig(), Dependencies{
		Registry: &sources.Registry{},
		Prices:   prices,
	})

	_, err := svc.AllData(context.Background(), "1mo")
	assert.EqualError(t, err, "upstream down")
}

func TestService_SendDailyReport(t *testing.T) {
	fs := newFeedServer(t, map[string]string{
		"/reuters": rssFeed(
			headline{"Oil prices surge", fixedNow.Add(-time.Hour)},
			headline{"OPEC meeting scheduled", fixedNow.Add(-2 * time.Hour)},
		),
	})

	prices := new(MockPrices)
	prices.On("CurrentPrice", mock.Anything).Return(&models.CurrentPrice{Price: 84}, nil)
	prices.On("HistoricalData", mock.Anything, "1mo").Return(&models.HistoricalData{Data: pricePoints(80, 81, 82, 83, 84)}, nil)

	notifier := new(MockNotificationService)
	notifier.On("SendReport", mock.MatchedBy(func(r *models.Report) bool {
		return r.Period == "daily" &&
			r.TotalHeadlines == 2 &&
			r.Summary[models.SentimentPositive] == 1 &&
			r.Summary[models.SentimentNeutral] == 1 &&
			r.Prediction != nil &&
			r.CurrentPrice.Price == 84
	})).Return(nil)

	svc := newTestService(testConfig(), Dependencies{
		Registry: &sources.Registry{Sources: []sources.FeedSource{rssSource("reuters", fs.URL+"/reuters")}},
		Prices:   prices,
		Notifier: notifier,
	})

	require.NoError(t, svc.SendDailyReport(context.Background()))
	notifier.AssertExpectations(t)
}

func TestService_SendDailyReport_NoNotifier(t *testing.T) {
	svc := newTestService(testConfig(), Dependencies{Registry: &sources.Registry{}})
	assert.NoError(t, svc.SendDailyReport(context.Background()))
}

func TestSnapshotName(t *testing.T) {
	assert.Equal(t, "brent-news-2024-03-04.json", SnapshotName(fixedNow))
}

func TestService_CollectNews_CallerCancellationDoesNotAbortSharedRun(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(rssFeed(headline{"Oil prices rise", fixedNow.Add(-time.Hour)})))
	}))
	t.Cleanup(srv.Close)

	svc := newTestService(testConfig(), Dependencies{
		Registry: &sources.Registry{Sources: []sources.FeedSource{rssSource("reuters", srv.URL)}},
	})

	impatient, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var impatientErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, impatientErr = svc.CollectNews(impatient)
	}()

	<-started
	items, err := svc.CollectNews(context.Background())
	<-done

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Oil prices rise", items[0].Title)

	assert.ErrorIs(t, impatientErr, context.DeadlineExceeded)
}
