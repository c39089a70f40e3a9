// Package container wires configuration into the adapters, engines and
// services the commands run. Construction is eager: a container that
// builds is a container whose dependencies all validated.
package container

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"ratecast/adapters/api"
	"ratecast/adapters/history"
	"ratecast/adapters/models"
	"ratecast/adapters/seriesfile"
	"ratecast/app"
	"ratecast/domain/core"
	"ratecast/internal/config"
	"ratecast/internal/driftscore"
	"ratecast/internal/ensemble"
	"ratecast/internal/logging"
	"ratecast/internal/trend"
	"ratecast/internal/walkforward"
	"ratecast/ports"
)

// Container holds all application dependencies and manages their
// lifecycle. Commands pick the pieces they need; unused pieces cost
// nothing at runtime.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	// Adapters
	Reader   ports.SeriesReader
	Adapters []ports.ModelAdapter
	History  ports.HistoryStore

	// Engines
	Combiner  *ensemble.Combiner
	Validator *walkforward.Validator
	Scorer    *driftscore.Scorer
	Trend     *trend.Analyzer

	// Services
	Forecast   *app.ForecastService
	Validation *app.ValidationService
	Drift      *app.DriftService
	Server     *api.Server

	// closer is set for database-backed history stores.
	closer io.Closer
}

// New builds the full dependency graph from cfg.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config: cfg,
		Log:    log,
	}

	if err := c.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("initialize history store: %w", err)
	}
	if err := c.initAdapters(); err != nil {
		return nil, fmt.Errorf("initialize adapters: %w", err)
	}
	if err := c.initEngines(); err != nil {
		return nil, fmt.Errorf("initialize engines: %w", err)
	}
	if err := c.initServices(); err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}

	log.Info().
		Str("history_backend", cfg.History.Backend).
		Int("models", len(c.Adapters)).
		Msg("container initialized")
	return c, nil
}

// initHistory selects the history store backend. The file backend is
// the deployment default; memory exists for tests and dry runs.
func (c *Container) initHistory(ctx context.Context) error {
	cfg := c.Config.History
	switch cfg.Backend {
	case "file":
		store, err := history.NewFileStore(history.FileStoreConfig{
			Dir:               cfg.Dir,
			LockTimeout:       cfg.LockTimeout,
			LockRetryInterval: cfg.LockRetryInterval,
			LockStaleAfter:    cfg.LockStaleAfter,
		}, c.Log)
		if err != nil {
			return err
		}
		c.History = store
	case "duckdb":
		store, err := history.OpenDuckDBStore(ctx, cfg.DSN, c.Log)
		if err != nil {
			return err
		}
		c.History = store
		c.closer = store
	case "postgres":
		store, err := history.OpenPostgresStore(ctx, cfg.DSN, cfg.LockTimeout, c.Log)
		if err != nil {
			return err
		}
		c.History = store
		c.closer = store
	case "memory":
		c.History = history.NewMemoryStore()
	default:
		return core.NewConfigError("history.backend", fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
	return nil
}

func (c *Container) initAdapters() error {
	c.Reader = seriesfile.NewReader(seriesfile.ReaderConfig{
		Sheet:       c.Config.Series.Sheet,
		DateColumn:  c.Config.Series.DateColumn,
		ValueColumn: c.Config.Series.ValueColumn,
	}, c.Log)

	adapters, err := models.Build(c.Config.Models.Enabled, models.Options{
		EWMAAlpha:       c.Config.Models.EWMAAlpha,
		TrendWindow:     c.Config.Models.TrendWindow,
		HoldoutFraction: c.Config.Models.HoldoutFraction,
	})
	if err != nil {
		return err
	}
	c.Adapters = adapters
	return nil
}

func (c *Container) initEngines() error {
	calibrator, err := ensemble.NewCalibrator(c.Config.Calibrator)
	if err != nil {
		return err
	}
	c.Combiner = ensemble.NewCombiner(calibrator, c.Log)

	c.Validator, err = walkforward.New(c.Config.Validation, c.Log)
	if err != nil {
		return err
	}

	c.Scorer, err = driftscore.New(c.Config.Drift.Scorer, c.Log)
	if err != nil {
		return err
	}

	c.Trend, err = trend.New(c.Config.Trend, c.Log)
	if err != nil {
		return err
	}
	return nil
}

func (c *Container) initServices() error {
	c.Forecast = app.NewForecastService(c.Reader, c.Adapters, c.Combiner, c.Log)
	c.Validation = app.NewValidationService(c.Reader, c.Adapters, c.Combiner, c.Validator, c.History, c.Log)

	driftSvc, err := app.NewDriftService(
		c.Reader, c.Scorer, c.Trend, c.History,
		c.Config.Drift.BaselineWindow, c.Config.Drift.TestWindow,
		c.Log,
	)
	if err != nil {
		return err
	}
	c.Drift = driftSvc

	c.Server = api.NewServer(api.Config{
		Addr:      c.Config.API.Addr,
		RateLimit: c.Config.API.RateLimit,
		RateBurst: c.Config.API.RateBurst,
	}, c.Drift, c.Validation, c.Log)
	return nil
}

// Shutdown releases held resources. Safe to call once New has
// succeeded; the HTTP server shuts down separately because only the
// monitor command starts it.
func (c *Container) Shutdown() error {
	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			return fmt.Errorf("close history store: %w", err)
		}
	}
	return nil
}
