package pipeline

import (
	"context"
	"fmt"

	"github.com/brentwatch/brent-news-bot/internal/market"
	"github.com/brentwatch/brent-news-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// reportHeadlines is how many of the newest headlines a report carries
const reportHeadlines = 10

// BuildReport collects news and prices and assembles a forecast report
func (s *Service) BuildReport(ctx context.Context, period string) (*models.Report, error) {
	news, err := s.CollectNews(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect news: %w", err)
	}

	report := &models.Report{
		GeneratedAt:    s.now().In(s.location),
		Period:         period,
		TotalHeadlines: len(news),
		Headlines:      latest(news, reportHeadlines),
		Summary:        make(map[string]int),
	}
	for _, item := range news {
		report.Summary[item.Sentiment]++
	}

	price, err := s.CurrentPrice(ctx)
	if err != nil {
		logrus.Warnf("Current price unavailable for report: %v", err)
	} else {
		report.CurrentPrice = *price
	}

	history, err := s.HistoricalData(ctx, market.DefaultPeriod)
	if err != nil {
		logrus.Warnf("Price history unavailable for report: %v", err)
		report.PredictionError = PredictionUnavailable
		return report, nil
	}

	p, err := s.Predict(history.Data, news)
	if err != nil {
		logrus.Warnf("Prediction unavailable for report: %v", err)
		report.PredictionError = PredictionUnavailable
		return report, nil
	}
	report.Prediction = p

	return report, nil
}

// SendDailyReport builds the daily forecast report and hands it to the notifier
func (s *Service) SendDailyReport(ctx context.Context) error {
	if s.deps.Notifier == nil {
		logrus.Info("No notification channel configured, skipping report")
		return nil
	}

	report, err := s.BuildReport(ctx, "daily")
	if err != nil {
		return err
	}

	if err := s.deps.Notifier.SendReport(report); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	logrus.Infof("Sent daily forecast report with %d headlines", report.TotalHeadlines)
	return nil
}
