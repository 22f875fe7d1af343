package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)

func item(title, date, sentiment string, compound float64) models.NewsItem {
	return models.NewsItem{
		Title:      title,
		Date:       date,
		Source:     "src",
		Sentiment:  sentiment,
		Sentiments: models.SentimentScores{Compound: compound},
	}
}

func TestAnalyze_TwoHeadlinesToday(t *testing.T) {
	items := []models.NewsItem{
		item("OPEC+ extends cuts", "2024-03-04", models.SentimentPositive, 0.6),
		item("Demand worries weigh", "2024-03-04", models.SentimentNegative, -0.2),
	}

	result := Analyze(items, now)

	assert.InDelta(t, 0.4, result.Score, 1e-9)
	assert.InDelta(t, 0.4, result.ScoreHistory["2024-03-04"], 1e-9)
	assert.Equal(t, 70, result.Confidence)
	require.Len(t, result.Factors, 2)
	assert.Equal(t, models.InfluenceFactor{Title: "OPEC+ extends cuts", Impact: models.ImpactPositive, Source: "src"}, result.Factors[0])
	assert.Equal(t, models.InfluenceFactor{Title: "Demand worries weigh", Impact: models.ImpactNegative, Source: "src"}, result.Factors[1])
}

func TestAnalyze_History(t *testing.T) {
	items := []models.NewsItem{
		item("a", "2024-03-02", models.SentimentPositive, 0.5),
		item("b", "2024-03-02", models.SentimentNegative, -0.1),
		item("c", "2024-03-03", models.SentimentNeutral, 0),
		item("d", "2024-03-04", models.SentimentNeutral, 0),
	}

	result := Analyze(items, now)

	assert.Equal(t, map[string]float64{
		"2024-03-02": 0.4,
		"2024-03-03": 0,
		"2024-03-04": 0,
	}, roundAll(result.ScoreHistory))

	// only today's items count, and neutral ones still raise confidence
	assert.Equal(t, 0.0, result.Score)
	assert.Empty(t, result.Factors)
	assert.Equal(t, 60, result.Confidence)
}

func TestAnalyze_Empty(t *testing.T) {
	result := Analyze(nil, now)

	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, 50, result.Confidence)
	assert.NotNil(t, result.Factors)
	assert.NotNil(t, result.ScoreHistory)
	assert.Empty(t, result.ScoreHistory)
}

func TestAnalyze_TodayFollowsLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	items := []models.NewsItem{item("late", "2024-03-05", models.SentimentPositive, 0.3)}

	// 15:30 UTC is already March 5th in Tokyo
	result := Analyze(items, now.In(tokyo))
	assert.InDelta(t, 0.3, result.Score, 1e-9)
	assert.Len(t, result.Factors, 1)

	result = Analyze(items, now)
	assert.Equal(t, 0.0, result.Score)
}

func TestConfidence(t *testing.T) {
	for count := -1; count <= 12; count++ {
		t.Run(fmt.Sprintf("%d items", count), func(t *testing.T) {
			c := Confidence(count)
			assert.GreaterOrEqual(t, c, 50)
			assert.LessOrEqual(t, c, 100)
		})
	}
	assert.Equal(t, 50, Confidence(0))
	assert.Equal(t, 100, Confidence(5))
	assert.Equal(t, 100, Confidence(9))
}

func TestRecencyWeight(t *testing.T) {
	tests := []struct {
		date     string
		expected float64
	}{
		{"2024-03-04", 1.0},
		{"2024-03-03", 0.8},
		{"2024-03-02", 0.6},
		{"2024-03-01", 0.4},
		{"2024-02-20", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RecencyWeight(now, tt.date), 1e-9)
		})
	}
}

func roundAll(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = float64(int64(v*1e6+0.5)) / 1e6
	}
	return out
}
