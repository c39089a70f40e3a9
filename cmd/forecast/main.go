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
	horizonLabel := flag.String("horizon", "all", "horizon to forecast: daily, biweekly, monthly or all")
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

	ctx := context.Background()
	c, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}
	defer c.Shutdown()

	horizons, err := selectHorizons(*horizonLabel)
	if err != nil {
		log.Fatalf("select horizons: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, h := range horizons {
		result, err := c.Forecast.Run(ctx, cfg.Series.Source, h)
		if err != nil {
			// Short series clear on their own as observations accumulate;
			// a scheduled run must not page anyone over them.
			if core.IsRecoverable(err) {
				c.Log.Warn().Err(err).Str("horizon", h.String()).Msg("forecast skipped")
				continue
			}
			c.Log.Error().Err(err).Str("horizon", h.String()).Msg("forecast failed")
			os.Exit(1)
		}
		if err := enc.Encode(result); err != nil {
			log.Fatalf("encode result: %v", err)
		}
	}
}

func selectHorizons(label string) ([]core.Horizon, error) {
	if label == "all" {
		return core.Horizons(), nil
	}
	h, err := core.ParseHorizon(label)
	if err != nil {
		return nil, err
	}
	return []core.Horizon{h}, nil
}
