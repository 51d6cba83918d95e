// Package seriestest builds bar fixtures for tests.
package seriestest

import (
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/shopspring/decimal"
)

// Start is the timestamp of the first fixture bar.
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Bars returns one daily bar per close. Open equals close, high and low
// bracket it by 1%.
func Bars(symbol string, closes ...float64) []core.Bar {
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		px := decimal.NewFromFloat(c)
		bars[i] = core.Bar{
			Symbol: symbol,
			Time:   Start.AddDate(0, 0, i),
			Open:   px,
			High:   px.Mul(decimal.RequireFromString("1.01")),
			Low:    px.Mul(decimal.RequireFromString("0.99")),
			Close:  px,
			Volume: decimal.NewFromInt(1000),
		}
	}
	return bars
}

// Series loads Bars into a Series, failing the test on error.
func Series(t testing.TB, symbol string, closes ...float64) *series.Series {
	t.Helper()
	s, err := series.Load(Bars(symbol, closes...))
	if err != nil {
		t.Fatalf("loading fixture series: %v", err)
	}
	return s
}

// Bar returns a single bar with the given close at day offset i.
func Bar(symbol string, i int, close float64) core.Bar {
	b := Bars(symbol, close)[0]
	b.Time = Start.AddDate(0, 0, i)
	return b
}
