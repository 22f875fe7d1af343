// Package prediction blends a short technical trend with news sentiment into
// a one-step-ahead price forecast.
package prediction

import (
	"fmt"
	"math"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/models"
)

// MinHistory is the number of price points the engine needs
const MinHistory = 5

const (
	trendStep           = 0.01
	sentimentWeight     = 0.01
	volatilityPenalty   = 1000
	highVolatility      = 0.02
	technicalFactorName = "Technical trend"
	volatilityName      = "Recent volatility"
	newsFactorName      = "News"
)

// InsufficientDataError reports a price history too short to forecast from
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient historical data: have %d points, need at least %d", e.Have, e.Need)
}

// Generate forecasts the next close from the last five closes and the sentiment analysis
func Generate(history []models.PricePoint, sentiment models.SentimentAnalysis, now time.Time) (*models.Prediction, error) {
	if len(history) < MinHistory {
		return nil, &InsufficientDataError{Have: len(history), Need: MinHistory}
	}

	recent := make([]float64, MinHistory)
	for i, p := range history[len(history)-MinHistory:] {
		recent[i] = p.Close
	}
	lastPrice := recent[len(recent)-1]

	movingAverage := mean(recent)
	above := lastPrice > movingAverage
	trend := -trendStep
	if above {
		trend = trendStep
	}

	changes := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		changes = append(changes, (recent[i]-recent[i-1])/recent[i-1])
	}
	volatility := stddev(changes)

	predictedChange := trend + sentiment.Score*sentimentWeight
	predictedPrice := lastPrice * (1 + predictedChange)

	volatilityConfidence := math.Max(0, 100-volatility*volatilityPenalty)
	confidence := int(math.Round((volatilityConfidence + float64(sentiment.Confidence)) / 2))
	confidence = clamp(confidence, 0, 100)

	factors := make([]models.InfluenceFactor, 0, 2+len(sentiment.Factors))
	factors = append(factors, trendFactor(above), volatilityFactor(volatility))
	for _, f := range sentiment.Factors {
		factors = append(factors, models.InfluenceFactor{
			Name:        newsFactorName,
			Description: f.Title,
			Source:      f.Source,
			Impact:      f.Impact,
		})
	}

	change := predictedPrice - lastPrice
	changePercent := 0.0
	if lastPrice != 0 {
		changePercent = change / lastPrice * 100
	}

	scoreHistory := sentiment.ScoreHistory
	if scoreHistory == nil {
		scoreHistory = map[string]float64{}
	}

	return &models.Prediction{
		CurrentPrice:   lastPrice,
		PredictedPrice: predictedPrice,
		Change:         change,
		ChangePercent:  changePercent,
		Confidence:     confidence,
		Factors:        factors,
		PredictionDate: now.Format("2006-01-02"),
		ScoreHistory:   scoreHistory,
	}, nil
}

func trendFactor(above bool) models.InfluenceFactor {
	if above {
		return models.InfluenceFactor{
			Name:        technicalFactorName,
			Description: "Price above its 5-day moving average (bullish trend)",
			Impact:      models.ImpactPositive,
		}
	}
	return models.InfluenceFactor{
		Name:        technicalFactorName,
		Description: "Price below its 5-day moving average (bearish trend)",
		Impact:      models.ImpactNegative,
	}
}

func volatilityFactor(volatility float64) models.InfluenceFactor {
	impact := models.ImpactNeutral
	if volatility > highVolatility {
		impact = models.ImpactNegative
	}
	return models.InfluenceFactor{
		Name:        volatilityName,
		Description: fmt.Sprintf("Volatility of %.2f%% over the last 5 days", volatility*100),
		Impact:      impact,
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation
func stddev(values []float64) float64 {
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
