package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the Yahoo Finance chart endpoint
const DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// DefaultPeriod is used when a caller does not name one
const DefaultPeriod = "1mo"

// Periods maps each supported range to its sampling interval
var Periods = map[string]string{
	"1d":  "5m",
	"5d":  "30m",
	"1mo": "1d",
	"6mo": "1wk",
	"1y":  "1mo",
}

// ErrUnknownPeriod is returned for a range outside Periods
var ErrUnknownPeriod = errors.New("unknown period")

// YahooClient retrieves price history for one symbol
type YahooClient struct {
	client  *resty.Client
	baseURL string
	symbol  string
}

// NewYahooClient creates a client for symbol (BZ=F for Brent futures)
func NewYahooClient(symbol string) *YahooClient {
	return &YahooClient{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "Mozilla/5.0 (compatible; brent-news-bot/1.0)").
			SetLogger(logrus.StandardLogger()),
		baseURL: DefaultBaseURL,
		symbol:  symbol,
	}
}

// WithBaseURL points the client at another chart endpoint
func (c *YahooClient) WithBaseURL(baseURL string) *YahooClient {
	c.baseURL = baseURL
	return c
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Currency           string  `json:"currency"`
		Symbol             string  `json:"symbol"`
		ExchangeName       string  `json:"exchangeName"`
		InstrumentType     string  `json:"instrumentType"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
		RegularMarketTime  int64   `json:"regularMarketTime"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// HistoricalData returns the OHLC series and quote metadata for period
func (c *YahooClient) HistoricalData(ctx context.Context, period string) (*models.HistoricalData, error) {
	if period == "" {
		period = DefaultPeriod
	}
	interval, ok := Periods[period]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
	return c.chart(ctx, period, interval)
}

// CurrentPrice returns the latest quote using a one-day daily chart
func (c *YahooClient) CurrentPrice(ctx context.Context) (*models.CurrentPrice, error) {
	data, err := c.chart(ctx, "1d", "1d")
	if err != nil {
		return nil, err
	}
	return &models.CurrentPrice{
		Price:         data.Metadata.RegularMarketPrice,
		Change:        data.Metadata.Change,
		ChangePercent: data.Metadata.ChangePercent,
		Currency:      data.Metadata.Currency,
		Timestamp:     data.Metadata.RegularMarketTime,
	}, nil
}

func (c *YahooClient) chart(ctx context.Context, period, interval string) (*models.HistoricalData, error) {
	var body chartResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"region":               "US",
			"interval":             interval,
			"range":                period,
			"includeAdjustedClose": "true",
		}).
		SetResult(&body).
		Get(c.baseURL + url.PathEscape(c.symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart for %s: %w", c.symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("chart API returned status %d for %s", resp.StatusCode(), c.symbol)
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %s", c.symbol, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart API returned no result for %s", c.symbol)
	}

	return convert(body.Chart.Result[0]), nil
}

func convert(r chartResult) *models.HistoricalData {
	meta := models.PriceMetadata{
		Currency:           r.Meta.Currency,
		Symbol:             r.Meta.Symbol,
		ExchangeName:       r.Meta.ExchangeName,
		InstrumentType:     r.Meta.InstrumentType,
		RegularMarketPrice: r.Meta.RegularMarketPrice,
		PreviousClose:      r.Meta.ChartPreviousClose,
		RegularMarketTime:  r.Meta.RegularMarketTime,
	}
	meta.Change = meta.RegularMarketPrice - meta.PreviousClose
	if meta.PreviousClose != 0 {
		meta.ChangePercent = meta.Change / meta.PreviousClose * 100
	}

	out := &models.HistoricalData{Metadata: meta, Data: []models.PricePoint{}}
	if len(r.Indicators.Quote) == 0 {
		return out
	}
	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	for i, ts := range r.Timestamp {
		closePrice := at(q.Close, i)
		if closePrice == nil {
			// bars without a close are placeholders for the session in progress
			continue
		}
		p := models.PricePoint{
			Date:      time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Timestamp: ts,
			Open:      value(at(q.Open, i)),
			High:      value(at(q.High, i)),
			Low:       value(at(q.Low, i)),
			Close:     *closePrice,
			Volume:    value(at(q.Volume, i)),
			AdjClose:  *closePrice,
		}
		if a := at(adj, i); a != nil {
			p.AdjClose = *a
		}
		out.Data = append(out.Data, p)
	}
	return out
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
