package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/shopspring/decimal"
)

// CSVProvider reads <dir>/<SYMBOL>.csv files with a header row naming the
// columns time, open, high, low, close and optionally volume and symbol.
type CSVProvider struct {
	Dir string
}

// NewCSVProvider creates a CSVProvider rooted at dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{Dir: dir}
}

// Bars returns the bars for symbol within [start, end] in file order.
func (p *CSVProvider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	path, err := symbolFile(p.Dir, symbol, "csv")
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.Errorf(core.ErrNoData, "no csv data for %s", symbol)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars, err := ReadCSV(f, strings.ToUpper(symbol))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return filterBars(bars, start, end), nil
}

// Write replaces the file for the symbol of bars.
func (p *CSVProvider) Write(_ context.Context, bars []core.Bar) (err error) {
	if len(bars) == 0 {
		return nil
	}
	path, err := symbolFile(p.Dir, bars[0].Symbol, "csv")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, bars)
}

// ReadCSV parses bars from r. Rows without a symbol column get symbol.
func ReadCSV(r io.Reader, symbol string) ([]core.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.Errorf(core.ErrNoData, "empty csv")
		}
		return nil, core.WrapError(core.ErrValidation, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, core.Errorf(core.ErrValidation, "csv header missing %q column", required)
		}
	}

	var bars []core.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrValidation, err)
		}

		b, err := parseRow(rec, cols, symbol)
		if err != nil {
			return nil, core.Errorf(core.ErrValidation, "line %d: %v", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseRow(rec []string, cols map[string]int, symbol string) (core.Bar, error) {
	field := func(name string) string {
		if i, ok := cols[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	ts, err := parseTime(field("time"))
	if err != nil {
		return core.Bar{}, err
	}
	b := core.Bar{Symbol: symbol, Time: ts}
	if s := field("symbol"); s != "" {
		b.Symbol = strings.ToUpper(s)
	}

	for _, p := range []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"open", &b.Open},
		{"high", &b.High},
		{"low", &b.Low},
		{"close", &b.Close},
	} {
		if *p.dst, err = decimal.NewFromString(field(p.name)); err != nil {
			return core.Bar{}, fmt.Errorf("%s: %w", p.name, err)
		}
	}
	if v := field("volume"); v != "" {
		if b.Volume, err = decimal.NewFromString(v); err != nil {
			return core.Bar{}, fmt.Errorf("volume: %w", err)
		}
	}
	return b, nil
}

// parseTime accepts RFC 3339, a bare date or unix seconds.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// WriteCSV writes bars with a header row.
func WriteCSV(w io.Writer, bars []core.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "symbol", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		if err := cw.Write([]string{
			b.Time.UTC().Format(time.RFC3339),
			b.Symbol,
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			b.Volume.String(),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
