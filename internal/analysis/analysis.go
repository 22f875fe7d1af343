// Package analysis turns a merged batch of scored headlines into a daily
// sentiment series and today's influence factors.
package analysis

import (
	"math"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/models"
)

const dateLayout = "2006-01-02"

const (
	baseConfidence    = 50
	confidencePerItem = 10
	maxConfidence     = 100

	recencyDecayPerDay = 0.2
	recencyThreshold   = 0.5
)

// Analyze sums compound scores of sentiment-bearing items per calendar day and
// derives score, factors and confidence from the items dated today in now's location.
func Analyze(items []models.NewsItem, now time.Time) models.SentimentAnalysis {
	result := models.SentimentAnalysis{
		Factors:      []models.InfluenceFactor{},
		ScoreHistory: make(map[string]float64),
	}

	today := now.Format(dateLayout)
	todayCount := 0

	for _, item := range items {
		bearing := item.Sentiment == models.SentimentPositive || item.Sentiment == models.SentimentNegative

		if _, ok := result.ScoreHistory[item.Date]; !ok {
			result.ScoreHistory[item.Date] = 0
		}
		if bearing {
			result.ScoreHistory[item.Date] += item.Sentiments.Compound
		}

		if item.Date != today {
			continue
		}
		todayCount++
		if !bearing {
			continue
		}

		result.Score += item.Sentiments.Compound
		if RecencyWeight(now, item.Date) > recencyThreshold {
			result.Factors = append(result.Factors, models.InfluenceFactor{
				Title:  item.Title,
				Impact: impactFor(item.Sentiment),
				Source: item.Source,
			})
		}
	}

	result.Confidence = Confidence(todayCount)
	return result
}

// Confidence grows with the number of headlines dated today, from 50 up to 100
func Confidence(todayCount int) int {
	if todayCount < 0 {
		todayCount = 0
	}
	c := baseConfidence + todayCount*confidencePerItem
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}

// RecencyWeight decays by 0.2 per whole day between date and now, floored at 0.
// Analyze only consults it for items dated today, where it is always 1.
func RecencyWeight(now time.Time, date string) float64 {
	d, err := time.ParseInLocation(dateLayout, date, now.Location())
	if err != nil {
		return 0
	}
	daysOld := math.Trunc(now.Sub(d).Hours() / 24)
	return math.Max(0, 1-daysOld*recencyDecayPerDay)
}

func impactFor(sentiment string) string {
	switch sentiment {
	case models.SentimentPositive:
		return models.ImpactPositive
	case models.SentimentNegative:
		return models.ImpactNegative
	default:
		return models.ImpactNeutral
	}
}
