package archive

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
)

const resultsRoot = "results"

var _ backtest.ResultSink = (*ResultStore)(nil)

// ResultStore archives backtest results as JSON under
// results/<strategy>/<run_id>.json, with the bar-level equity curve
// alongside as CSV.
type ResultStore struct {
	storage Storage
}

// NewResultStore wraps a storage backend.
func NewResultStore(s Storage) *ResultStore {
	return &ResultStore{storage: s}
}

func resultPath(strategy, runID, ext string) (string, error) {
	for _, part := range []string{strategy, runID} {
		if part == "" || strings.ContainsAny(part, `/\`) || strings.Contains(part, "..") {
			return "", core.Errorf(core.ErrValidation, "invalid result key %q", part)
		}
	}
	return path.Join(resultsRoot, strategy, runID+ext), nil
}

// SaveRun writes res. An existing result with the same run ID is replaced.
func (r *ResultStore) SaveRun(ctx context.Context, res *backtest.Result) error {
	p, err := resultPath(res.Strategy, res.RunID, ".json")
	if err != nil {
		return err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", res.RunID, err)
	}
	if err := r.storage.Write(ctx, p, data); err != nil {
		return fmt.Errorf("archiving result %s: %w", res.RunID, err)
	}

	csvPath, _ := resultPath(res.Strategy, res.RunID, ".equity.csv")
	var buf bytes.Buffer
	if err := writeEquityCSV(&buf, res); err != nil {
		return err
	}
	return r.storage.Write(ctx, csvPath, buf.Bytes())
}

// Load reads the result of runID for strategy.
func (r *ResultStore) Load(ctx context.Context, strategy, runID string) (*backtest.Result, error) {
	p, err := resultPath(strategy, runID, ".json")
	if err != nil {
		return nil, err
	}
	data, err := r.storage.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	var res backtest.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding result %s: %w", runID, err)
	}
	return &res, nil
}

// List returns the archived run IDs for strategy, or every
// "<strategy>/<run_id>" when strategy is empty.
func (r *ResultStore) List(ctx context.Context, strategy string) ([]string, error) {
	prefix := resultsRoot
	if strategy != "" {
		prefix = path.Join(resultsRoot, strategy)
	}
	paths, err := r.storage.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for _, p := range paths {
		if !strings.HasSuffix(p, ".json") {
			continue
		}
		rel := strings.TrimSuffix(strings.TrimPrefix(p, resultsRoot+"/"), ".json")
		if strategy != "" {
			rel = strings.TrimPrefix(rel, strategy+"/")
		}
		ids = append(ids, rel)
	}
	return ids, nil
}

// Delete removes the result and its equity curve.
func (r *ResultStore) Delete(ctx context.Context, strategy, runID string) error {
	p, err := resultPath(strategy, runID, ".json")
	if err != nil {
		return err
	}
	if err := r.storage.Delete(ctx, p); err != nil {
		return err
	}
	csvPath, _ := resultPath(strategy, runID, ".equity.csv")
	if err := r.storage.Delete(ctx, csvPath); err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	return nil
}

func writeEquityCSV(buf *bytes.Buffer, res *backtest.Result) error {
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"time", "cash", "equity", "gross_exposure", "drawdown", "volatility", "exposure", "score"}); err != nil {
		return err
	}
	for i, snap := range res.EquityCurve {
		row := []string{
			snap.Time.UTC().Format(time.RFC3339),
			snap.Cash.String(),
			snap.Equity.String(),
			snap.GrossExposure.String(),
		}
		if i < len(res.Risk) {
			m := res.Risk[i]
			for _, v := range []float64{m.Drawdown, m.Volatility, m.Exposure, m.Score} {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
