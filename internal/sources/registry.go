package sources

import (
	"context"
	"fmt"
	"os"

	"github.com/brentwatch/brent-news-bot/internal/models"
	"gopkg.in/yaml.v3"
)

// Dialect is the XML schema family of a feed
type Dialect string

const (
	DialectAtom Dialect = "atom"
	DialectRSS  Dialect = "rss"
	// DialectAuto hands the payload to gofeed instead of the path walker
	DialectAuto Dialect = "auto"
)

// FeedSource describes one configured news origin and where its fields live in the parsed tree
type FeedSource struct {
	Name        string  `yaml:"name" json:"name"`
	URL         string  `yaml:"url" json:"url"`
	Dialect     Dialect `yaml:"dialect" json:"dialect"`
	EntriesPath string  `yaml:"entries_path" json:"entries_path"`
	TitlePath   string  `yaml:"title_path" json:"title_path"`
	LinkPath    string  `yaml:"link_path" json:"link_path"`
	DatePath    string  `yaml:"date_path" json:"date_path"`
	Enabled     *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Registry is the ordered list of sources processed by a run
type Registry struct {
	Sources []FeedSource `yaml:"sources" json:"sources"`
}

func (s FeedSource) GetName() string {
	return s.Name
}

// IsEnabled treats a missing flag as enabled
func (s FeedSource) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// FetchEntries downloads the feed through session and extracts its raw entries
func (s FeedSource) FetchEntries(ctx context.Context, session *Session) ([]models.RawEntry, error) {
	resp, err := session.Fetch(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	return ParseFeed(resp.Body, s)
}

// Validate checks that the descriptor can be fetched and walked
func (s FeedSource) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if s.URL == "" {
		return fmt.Errorf("source %s: url is required", s.Name)
	}
	switch s.Dialect {
	case DialectAtom, DialectRSS:
		if s.EntriesPath == "" || s.TitlePath == "" || s.DatePath == "" {
			return fmt.Errorf("source %s: entries_path, title_path and date_path are required for dialect %s", s.Name, s.Dialect)
		}
	case DialectAuto:
	default:
		return fmt.Errorf("source %s: unknown dialect %q", s.Name, s.Dialect)
	}
	return nil
}

// Enabled returns the enabled sources in registry order
func (r *Registry) Enabled() []FeedSource {
	var enabled []FeedSource
	for _, src := range r.Sources {
		if src.IsEnabled() {
			enabled = append(enabled, src)
		}
	}
	return enabled
}

// LoadRegistry reads a YAML registry file; an empty path yields the built-in registry
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to decode sources file %s: %w", path, err)
	}

	if len(reg.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s declares no sources", path)
	}

	seen := make(map[string]bool, len(reg.Sources))
	for _, src := range reg.Sources {
		if err := src.Validate(); err != nil {
			return nil, err
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
	}

	return &reg, nil
}

func disabled() *bool {
	b := false
	return &b
}

const googleNewsRSS = "https://news.google.com/rss/search?q=%s+brent&when:24h+allinurl:%s&hl=en-US&gl=US&ceid=US:en"

func googleNewsSource(name, query, site string) FeedSource {
	return FeedSource{
		Name:        name,
		URL:         fmt.Sprintf(googleNewsRSS, query, site),
		Dialect:     DialectRSS,
		EntriesPath: "rss.channel.item",
		TitlePath:   "title",
		LinkPath:    "link",
		DatePath:    "pubDate",
	}
}

// DefaultRegistry returns the built-in Brent news sources
func DefaultRegistry() *Registry {
	eia := googleNewsSource("EIA", "eia.com", "eia.gov")
	eia.Enabled = disabled()

	return &Registry{Sources: []FeedSource{
		{
			Name:        "prixdubaril.com",
			URL:         "https://prixdubaril.com/news-petrole.feed?type=atom",
			Dialect:     DialectAtom,
			EntriesPath: "feed.entry",
			TitlePath:   "title",
			LinkPath:    "link.$.href",
			DatePath:    "published",
		},
		googleNewsSource("Reuters – Commodities / Energy", "Reuters", "reuters.com"),
		googleNewsSource("Bloomberg – Energy News", "bloomberg", "bloomberg.com"),
		{
			Name:        "Investing.com – Oil News",
			URL:         "https://www.investing.com/rss/news_301.rss",
			Dialect:     DialectRSS,
			EntriesPath: "rss.channel.item",
			TitlePath:   "title",
			LinkPath:    "link",
			DatePath:    "pubDate",
			Enabled:     disabled(),
		},
		{
			Name:    "OilPrice.com",
			URL:     "https://oilprice.com/rss/main",
			Dialect: DialectAuto,
			Enabled: disabled(),
		},
		eia,
	}}
}
