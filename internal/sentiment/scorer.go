package sentiment

import (
	"context"
	"fmt"

	"github.com/brentwatch/brent-news-bot/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Scorer attaches sentiment to normalized news items
type Scorer struct {
	classifier  Classifier
	concurrency int
}

// NewScorer bounds in-flight classifier calls to concurrency; values below 1 mean serial
func NewScorer(classifier Classifier, concurrency int) *Scorer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scorer{classifier: classifier, concurrency: concurrency}
}

// Score classifies each item's title and returns the scored items in input
// order. Items whose scoring fails are skipped. When every item fails the
// first ScoringError is returned.
func (s *Scorer) Score(ctx context.Context, items []models.NewsItem) ([]models.NewsItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]*models.SentimentScores, len(items))
	errs := make([]error, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range items {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			scores, err := s.classifier.Classify(gctx, items[i].Title)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &scores
			return nil
		})
	}
	_ = g.Wait()

	scored := make([]models.NewsItem, 0, len(items))
	var firstErr error
	for i, item := range items {
		if results[i] == nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			logrus.WithField("source", item.Source).Warnf("Skipping headline: %v", errs[i])
			continue
		}
		item.Sentiments = *results[i]
		item.Sentiment = LabelFor(results[i].Compound)
		scored = append(scored, item)
	}

	if len(scored) == 0 {
		return nil, fmt.Errorf("all %d headlines failed scoring: %w", len(items), firstErr)
	}
	return scored, nil
}
