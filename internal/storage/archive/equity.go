package archive

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/shopspring/decimal"
)

// ReadEquityCSV parses an equity curve in the archive's CSV layout. Only the
// time and equity columns are required; risk columns are ignored since they
// are recomputed when the curve is replayed.
func ReadEquityCSV(r io.Reader) ([]core.PortfolioSnapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.Errorf(core.ErrNoData, "empty equity file")
		}
		return nil, core.WrapError(core.ErrValidation, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"time", "equity"} {
		if _, ok := cols[required]; !ok {
			return nil, core.Errorf(core.ErrValidation, "equity file missing %q column", required)
		}
	}

	var curve []core.PortfolioSnapshot
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrValidation, err)
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		dec := func(name string) (decimal.Decimal, error) {
			s := field(name)
			if s == "" {
				return decimal.Zero, nil
			}
			d, err := decimal.NewFromString(s)
			if err != nil {
				return decimal.Zero, core.Errorf(core.ErrValidation, "line %d: %s %q is not a decimal", line, name, s)
			}
			return d, nil
		}

		t, err := time.Parse(time.RFC3339, field("time"))
		if err != nil {
			return nil, core.Errorf(core.ErrValidation, "line %d: bad time %q", line, field("time"))
		}
		snap := core.PortfolioSnapshot{Time: t}
		if snap.Equity, err = dec("equity"); err != nil {
			return nil, err
		}
		if snap.Cash, err = dec("cash"); err != nil {
			return nil, err
		}
		if snap.GrossExposure, err = dec("gross_exposure"); err != nil {
			return nil, err
		}

		if n := len(curve); n > 0 && !t.After(curve[n-1].Time) {
			return nil, core.WrapError(core.ErrValidation, fmt.Errorf("line %d: time %s not after previous snapshot", line, t.Format(time.RFC3339)))
		}
		curve = append(curve, snap)
	}

	if len(curve) == 0 {
		return nil, core.Errorf(core.ErrNoData, "equity file has no rows")
	}
	return curve, nil
}
