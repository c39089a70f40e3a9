package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"ratecast/domain/core"
	"ratecast/domain/drift"
	"ratecast/internal/config"
	"ratecast/internal/container"
)

// evaluation is the stdout payload of one driftwatch run.
type evaluation struct {
	Report drift.Report      `json:"report"`
	Trend  drift.TrendReport `json:"trend"`
}

func main() {
	configPath := flag.String("config", "", "config file path (empty means built-in defaults)")
	horizonLabel := flag.String("horizon", "daily", "horizon to evaluate: daily, biweekly or monthly")
	source := flag.String("source", "", "series file override")
	flag.Parse()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *source != "" {
		cfg.Series.Source = *source
	}

	horizon, err := core.ParseHorizon(*horizonLabel)
	if err != nil {
		log.Fatalf("parse horizon: %v", err)
	}

	ctx := context.Background()
	c, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}
	defer c.Shutdown()

	report, err := c.Drift.Evaluate(ctx, cfg.Series.Source, horizon)
	if err != nil {
		if core.IsRecoverable(err) {
			c.Log.Warn().Err(err).Str("horizon", horizon.String()).Msg("drift evaluation skipped")
			return
		}
		c.Log.Error().Err(err).Str("horizon", horizon.String()).Msg("drift evaluation failed")
		os.Exit(1)
	}

	trendReport, err := c.Drift.Trend(ctx, horizon)
	if err != nil {
		c.Log.Error().Err(err).Str("horizon", horizon.String()).Msg("trend analysis failed")
		os.Exit(1)
	}

	if trendReport.RequiresAction() {
		c.Log.Warn().
			Str("horizon", horizon.String()).
			Str("trend", string(trendReport.Trend)).
			Float64("latest_score", trendReport.LatestScore).
			Int("consecutive_high", trendReport.ConsecutiveHighCount).
			Msg("model retraining review required")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(evaluation{Report: report, Trend: trendReport}); err != nil {
		log.Fatalf("encode evaluation: %v", err)
	}
}
