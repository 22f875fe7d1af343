package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/config"
	"github.com/brentwatch/brent-news-bot/internal/pipeline"
	"github.com/brentwatch/brent-news-bot/internal/sources"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("🔍 Brent News Bot - Source Connectivity Check")
	fmt.Println("=============================================")

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

	registry, err := pipeline.LoadRegistry(cfg)
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}

	fetcher := pipeline.FetcherConfigFrom(cfg)

	fmt.Println("\n📡 Testing feed sources...")
	fmt.Println(strings.Repeat("-", 45))

	for _, src := range registry.Sources {
		checkSource(src, fetcher, cfg)
	}

	fmt.Println("\n✅ Source check completed!")
}

func checkSource(source sources.Source, fetcher sources.FetcherConfig, cfg *config.Config) {
	fmt.Printf("🔸 Testing %s... ", source.GetName())

	if !source.IsEnabled() {
		fmt.Printf("⚠️  DISABLED\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session, err := sources.NewSession(fetcher)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		return
	}

	entries, err := source.FetchEntries(ctx, session)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		return
	}

	items := sources.Normalize(entries, source.GetName(), cfg.Location())
	fmt.Printf("✅ SUCCESS (%d entries, %d with valid dates)\n", len(entries), len(items))

	if len(items) > 0 {
		fmt.Printf("   📝 Sample: \"%s\" (%s)\n", items[0].Title, items[0].Date)
	}
}
