package sources

import (
	"context"

	"github.com/brentwatch/brent-news-bot/internal/models"
)

// Source is one news origin that can be pulled into raw, unscored entries
type Source interface {
	GetName() string
	IsEnabled() bool
	FetchEntries(ctx context.Context, session *Session) ([]models.RawEntry, error)
}

var _ Source = FeedSource{}
