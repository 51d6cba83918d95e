package marketdata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"
)

// BarRecord is the Parquet schema for bar data.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ParquetProvider reads and writes <dir>/<SYMBOL>.parquet files.
type ParquetProvider struct {
	Dir string
}

// NewParquetProvider creates a ParquetProvider rooted at dir.
func NewParquetProvider(dir string) *ParquetProvider {
	return &ParquetProvider{Dir: dir}
}

// Bars returns the bars for symbol within [start, end] ordered by time.
func (p *ParquetProvider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	path, err := symbolFile(p.Dir, symbol, "parquet")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.Errorf(core.ErrNoData, "no parquet data for %s", symbol)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })

	bars := make([]core.Bar, 0, len(rows))
	for _, r := range rows {
		b := r.toBar()
		if inRange(b.Time, start, end) {
			bars = append(bars, b)
		}
	}
	return bars, nil
}

// Write replaces the file for the symbol of bars.
func (p *ParquetProvider) Write(_ context.Context, bars []core.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	path, err := symbolFile(p.Dir, bars[0].Symbol, "parquet")
	if err != nil {
		return err
	}

	records := make([]BarRecord, len(bars))
	for i, b := range bars {
		records[i] = newBarRecord(b)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func newBarRecord(b core.Bar) BarRecord {
	return BarRecord{
		Symbol:    b.Symbol,
		Timestamp: b.Time.UnixMilli(),
		Open:      b.Open.InexactFloat64(),
		High:      b.High.InexactFloat64(),
		Low:       b.Low.InexactFloat64(),
		Close:     b.Close.InexactFloat64(),
		Volume:    b.Volume.InexactFloat64(),
	}
}

func (r BarRecord) toBar() core.Bar {
	return core.Bar{
		Symbol: r.Symbol,
		Time:   time.UnixMilli(r.Timestamp).UTC(),
		Open:   decimal.NewFromFloat(r.Open),
		High:   decimal.NewFromFloat(r.High),
		Low:    decimal.NewFromFloat(r.Low),
		Close:  decimal.NewFromFloat(r.Close),
		Volume: decimal.NewFromFloat(r.Volume),
	}
}
