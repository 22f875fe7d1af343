package sources

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/brentwatch/brent-news-bot/internal/models"
)

// DateLayout is the calendar-day format used for NewsItem.Date and score history keys
const DateLayout = "2006-01-02"

// NormalizeDate parses a feed date in any common format and returns its calendar
// day in loc together with the instant in epoch milliseconds
func NormalizeDate(raw string, loc *time.Location) (string, int64, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := dateparse.ParseIn(raw, loc)
	if err != nil {
		return "", 0, fmt.Errorf("unparseable date %q: %w", raw, err)
	}
	return t.In(loc).Format(DateLayout), t.UnixMilli(), nil
}

// Normalize converts raw entries into unscored news items, dropping entries whose date cannot be parsed
func Normalize(entries []models.RawEntry, sourceName string, loc *time.Location) []models.NewsItem {
	items := make([]models.NewsItem, 0, len(entries))
	for _, e := range entries {
		day, ts, err := NormalizeDate(e.Published, loc)
		if err != nil {
			continue
		}
		items = append(items, models.NewsItem{
			Title:     e.Title,
			Date:      day,
			Timestamp: ts,
			URL:       e.Link,
			Source:    sourceName,
		})
	}
	return items
}
