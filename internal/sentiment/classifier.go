package sentiment

import (
	"context"
	"fmt"

	"github.com/brentwatch/brent-news-bot/internal/models"
)

// Classifier scores one piece of text
type Classifier interface {
	Classify(ctx context.Context, text string) (models.SentimentScores, error)
}

// ScoringError reports that a classifier could not produce a usable score
type ScoringError struct {
	Text   string
	Reason string
	Err    error
}

func (e *ScoringError) Error() string {
	msg := fmt.Sprintf("scoring %q: %s", truncate(e.Text, 60), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ScoringError) Unwrap() error { return e.Err }

// LabelFor derives the discrete label from the sign of the compound score
func LabelFor(compound float64) string {
	switch {
	case compound > 0:
		return models.SentimentPositive
	case compound < 0:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
