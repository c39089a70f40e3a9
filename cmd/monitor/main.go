package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ratecast/internal/config"
	"ratecast/internal/container"
)

func main() {
	configPath := flag.String("config", "", "config file path (empty means built-in defaults)")
	flag.Parse()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Server.Start()
	}()
	c.Log.Info().Str("addr", cfg.API.Addr).Msg("monitor listening")

	select {
	case err := <-errCh:
		if err != nil {
			c.Log.Error().Err(err).Msg("monitor server failed")
			os.Exit(1)
		}
	case <-ctx.Done():
		c.Log.Info().Msg("shutdown signal received")
		if err := c.Server.Shutdown(context.Background()); err != nil {
			c.Log.Error().Err(err).Msg("monitor shutdown failed")
		}
	}

	if err := c.Shutdown(); err != nil {
		c.Log.Error().Err(err).Msg("container shutdown failed")
	}
}
