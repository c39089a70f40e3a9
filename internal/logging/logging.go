// Package logging builds the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"ratecast/domain/core"
)

type Config struct {
	Level  string `yaml:"level" default:"info" validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	Format string `yaml:"format" default:"console" validate:"omitempty,oneof=console json"`
	// Output is stdout, stderr, or a file path.
	Output string `yaml:"output" default:"stderr"`
}

// New builds a logger from the config. Callers hand component-tagged
// children to each part of the system.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), core.NewConfigError("logging.level", cfg.Level)
	}

	var output io.Writer
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("open log file: %w", err)
		}
		output = file
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
}
