package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"ratecast/domain/core"
	"ratecast/internal/config"
	"ratecast/internal/container"
)

func main() {
	configPath := flag.String("config", "", "config file path (empty means built-in defaults)")
	horizonLabel := flag.String("horizon", "daily", "horizon to validate: daily, biweekly or monthly")
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

	report, err := c.Validation.Run(ctx, cfg.Series.Source, horizon)
	if err != nil {
		if core.IsRecoverable(err) {
			c.Log.Warn().Err(err).Str("horizon", horizon.String()).Msg("validation skipped")
			return
		}
		c.Log.Error().Err(err).Str("horizon", horizon.String()).Msg("validation failed")
		os.Exit(1)
	}

	c.Log.Info().
		Str("run_id", report.RunID.String()).
		Int("folds", len(report.Folds)).
		Int("failed_folds", report.FailedFolds).
		Float64("mean_rmse", report.Summary.Mean.RMSE).
		Float64("coverage_95", report.Summary.Mean.Coverage95).
		Msg("validation run recorded")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatalf("encode report: %v", err)
	}
}
