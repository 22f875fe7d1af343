package models

import "time"

// Sentiment labels derived from the compound score
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Impact labels carried by influence factors
const (
	ImpactPositive = "positif"
	ImpactNegative = "négatif"
	ImpactNeutral  = "neutre"
)

// RawEntry is one feed item as extracted from the feed document, before scoring
type RawEntry struct {
	Title     string `json:"title"`
	Published string `json:"published"`
	Link      string `json:"link"`
}

// SentimentScores is the output of a sentiment classifier for one text
type SentimentScores struct {
	Compound float64 `json:"compound"`
	Positive float64 `json:"pos"`
	Negative float64 `json:"neg"`
	Neutral  float64 `json:"neu"`
}

// NewsItem represents a scored, normalized headline
type NewsItem struct {
	Title      string          `json:"title"`
	Date       string          `json:"date"`      // YYYY-MM-DD
	Timestamp  int64           `json:"timestamp"` // epoch milliseconds
	URL        string          `json:"url"`
	Source     string          `json:"source"`
	Sentiment  string          `json:"sentiment"` // "positive", "neutral", "negative"
	Sentiments SentimentScores `json:"sentiments"`
}

// InfluenceFactor is one explanatory signal attached to a forecast
type InfluenceFactor struct {
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Impact      string `json:"impact"` // "positif", "négatif", "neutre"
	Source      string `json:"source,omitempty"`
}

// SentimentAnalysis is the aggregated view of a news batch
type SentimentAnalysis struct {
	Score        float64            `json:"score"`
	Factors      []InfluenceFactor  `json:"factors"`
	Confidence   int                `json:"confidence"`
	ScoreHistory map[string]float64 `json:"scoreHistory"`
}

// Prediction is a one-step-ahead price forecast
type Prediction struct {
	CurrentPrice   float64            `json:"currentPrice"`
	PredictedPrice float64            `json:"predictedPrice"`
	Change         float64            `json:"change"`
	ChangePercent  float64            `json:"changePercent"`
	Confidence     int                `json:"confidence"`
	Factors        []InfluenceFactor  `json:"factors"`
	PredictionDate string             `json:"predictionDate"`
	ScoreHistory   map[string]float64 `json:"scoreHistory"`
}

// PricePoint is one OHLC bar of the price history
type PricePoint struct {
	Date      string  `json:"date"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	AdjClose  float64 `json:"adjClose"`
}

// PriceMetadata describes the instrument and its latest quote
type PriceMetadata struct {
	Currency           string  `json:"currency"`
	Symbol             string  `json:"symbol"`
	ExchangeName       string  `json:"exchangeName"`
	InstrumentType     string  `json:"instrumentType"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	PreviousClose      float64 `json:"previousClose"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
	Change             float64 `json:"change"`
	ChangePercent      float64 `json:"changePercent"`
}

// HistoricalData is a price series for one period/interval pair
type HistoricalData struct {
	Metadata PriceMetadata `json:"metadata"`
	Data     []PricePoint  `json:"data"`
}

// CurrentPrice is the latest quote of the instrument
type CurrentPrice struct {
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Currency      string  `json:"currency,omitempty"`
	Timestamp     int64   `json:"timestamp"`
}

// Dashboard bundles everything the front end needs in one response
type Dashboard struct {
	CurrentPrice    CurrentPrice `json:"currentPrice"`
	HistoricalData  []PricePoint `json:"historicalData"`
	News            []NewsItem   `json:"news"`
	Prediction      *Prediction  `json:"prediction"`
	PredictionError string       `json:"predictionError,omitempty"`
}

// Report represents a periodic forecast report
type Report struct {
	GeneratedAt     time.Time      `json:"generated_at"`
	Period          string         `json:"period"`
	CurrentPrice    CurrentPrice   `json:"current_price"`
	Prediction      *Prediction    `json:"prediction,omitempty"`
	PredictionError string         `json:"prediction_error,omitempty"`
	TotalHeadlines  int            `json:"total_headlines"`
	Headlines       []NewsItem     `json:"headlines"`
	Summary         map[string]int `json:"summary"` // sentiment label -> count
}

// Alert represents an urgent notification
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "critical", "urgent", "info"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
