// Package marketdata loads historical bars: from CSV or Parquet files, one
// per symbol under a data directory, or from the Yahoo Finance chart API.
package marketdata

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/config"
	"github.com/newthinker/tradesim/internal/core"
)

// Compile-time interface checks.
var (
	_ backtest.BarProvider = (*CSVProvider)(nil)
	_ backtest.BarProvider = (*ParquetProvider)(nil)
	_ backtest.BarProvider = (*YahooProvider)(nil)
)

// Writer stores bars, one file per symbol.
type Writer interface {
	Write(ctx context.Context, bars []core.Bar) error
}

// Compile-time interface checks.
var (
	_ Writer = (*CSVProvider)(nil)
	_ Writer = (*ParquetProvider)(nil)
)

// NewWriter returns the writer for format rooted at dir.
func NewWriter(format, dir string) (Writer, error) {
	switch strings.ToLower(format) {
	case "csv":
		return NewCSVProvider(dir), nil
	case "parquet":
		return NewParquetProvider(dir), nil
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown data format %q", format)
	}
}

// New returns the provider for cfg.Format: "csv" or "parquet" files rooted
// at cfg.Path, or the "yahoo" chart API at cfg.URL.
func New(cfg config.DataConfig) (backtest.BarProvider, error) {
	switch strings.ToLower(cfg.Format) {
	case "csv":
		return NewCSVProvider(cfg.Path), nil
	case "parquet":
		return NewParquetProvider(cfg.Path), nil
	case "yahoo":
		return NewYahooProvider(cfg.URL, cfg.Interval), nil
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown data format %q", cfg.Format)
	}
}

// inRange reports whether t is within [start, end]. A zero bound is open.
func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}

func filterBars(bars []core.Bar, start, end time.Time) []core.Bar {
	out := bars[:0]
	for _, b := range bars {
		if inRange(b.Time, start, end) {
			out = append(out, b)
		}
	}
	return out
}

func symbolFile(dir, symbol, ext string) (string, error) {
	if symbol == "" || strings.ContainsAny(symbol, `/\`) || strings.Contains(symbol, "..") {
		return "", core.Errorf(core.ErrValidation, "invalid symbol %q", symbol)
	}
	return filepath.Join(dir, strings.ToUpper(symbol)+"."+ext), nil
}
