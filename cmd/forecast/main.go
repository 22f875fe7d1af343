package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/config"
	"github.com/brentwatch/brent-news-bot/internal/models"
	"github.com/brentwatch/brent-news-bot/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	outDir := flag.String("out", "forecast_output", "directory the JSON report is written to")
	flag.Parse()

	fmt.Println("🛢️  Brent News Bot - One-shot Forecast")
	fmt.Println("=====================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.WarnLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	deps, release, err := pipeline.NewDependencies(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer release()
	// Print instead of notifying
	deps.Notifier = nil

	service := pipeline.NewService(cfg, deps)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	report, err := service.BuildReport(ctx, "one-shot")
	if err != nil {
		log.Fatalf("Forecast failed: %v", err)
	}

	printReport(report)

	if err := saveReport(report, *outDir); err != nil {
		fmt.Printf("\n⚠️  Warning: Could not save to file: %v\n", err)
	}
}

func printReport(report *models.Report) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("📊 BRENT FORECAST")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("🕒 Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("💵 Current price: %.2f %s\n", report.CurrentPrice.Price, report.CurrentPrice.Currency)

	if p := report.Prediction; p != nil {
		fmt.Printf("🔮 Predicted price: %.2f (%+.2f, %+.2f%%)\n", p.PredictedPrice, p.Change, p.ChangePercent)
		fmt.Printf("🎯 Confidence: %d%%\n", p.Confidence)
		fmt.Println("\n📍 Factors:")
		for _, f := range p.Factors {
			fmt.Printf("   • [%s] %s: %s\n", f.Impact, f.Name, f.Description)
		}
	} else {
		fmt.Printf("🔮 Prediction: %s\n", report.PredictionError)
	}

	fmt.Printf("\n💭 Sentiment over %d headlines:\n", report.TotalHeadlines)
	for _, label := range []string{models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative} {
		fmt.Printf("   %-10s %d\n", label+":", report.Summary[label])
	}

	fmt.Println("\n📝 Latest headlines:")
	for i, h := range report.Headlines {
		fmt.Printf("   %d. [%s] %s (%s, %.3f)\n", i+1, h.Source, h.Title, h.Date, h.Sentiments.Compound)
	}
	fmt.Println("\n" + strings.Repeat("=", 70))
}

func saveReport(report *models.Report, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	filename := filepath.Join(dir, fmt.Sprintf("brent_forecast_%s.json", report.GeneratedAt.Format("2006-01-02_15-04-05")))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return err
	}

	fmt.Printf("\n💾 Report saved to: %s\n", filename)
	return nil
}
