// Package logger builds the zap loggers used across tradesim.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the zap preset and overrides.
type Options struct {
	Level       string // "debug", "info", ...; empty keeps the preset default
	Development bool   // colored console output, debug level, stack traces on warn
	Format      string // "json" or "console"; empty keeps the preset default
}

// New builds a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if opts.Level != "" {
		lvl, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = lvl
	}

	switch opts.Format {
	case "":
	case "json", "console":
		cfg.Encoding = opts.Format
	default:
		return nil, fmt.Errorf("log format must be json or console, got %q", opts.Format)
	}

	return cfg.Build()
}
