// Package journal persists backtest runs to SQLite.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/newthinker/tradesim/internal/analytics"
	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Run is the stored header of one backtest.
type Run struct {
	RunID       string            `json:"run_id"`
	Strategy    string            `json:"strategy"`
	Symbol      string            `json:"symbol"`
	Params      map[string]any    `json:"params,omitempty"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	InitialCash decimal.Decimal   `json:"initial_cash"`
	FinalEquity decimal.Decimal   `json:"final_equity"`
	Summary     analytics.Summary `json:"summary"`
	Duration    time.Duration     `json:"duration"`
	CreatedAt   time.Time         `json:"created_at"`
}

var _ backtest.ResultSink = (*SQLite)(nil)

// SQLite is a run journal backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying journal schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (j *SQLite) Close() error {
	return j.db.Close()
}

// SaveRun stores res and all of its fills, rejections, equity points and
// alerts in one transaction. Saving the same run twice fails.
func (j *SQLite) SaveRun(ctx context.Context, res *backtest.Result) (err error) {
	params, err := json.Marshal(res.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, strategy, symbol, params, start_time, end_time, initial_cash, final_equity, summary, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Strategy, res.Symbol, string(params),
		res.StartDate.UnixNano(), res.EndDate.UnixNano(),
		res.InitialCash.String(), res.FinalEquity().String(), string(summary),
		int64(res.Duration), j.now().UnixNano(),
	); err != nil {
		return fmt.Errorf("inserting run %s: %w", res.RunID, err)
	}

	fillSeq, rejectionSeq := logPositions(res)
	for i, f := range res.Fills {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO fills
			(run_id, seq, fill_id, time, symbol, side, quantity, price, fee, realized_pnl, closing, reason, log_seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, i, f.ID, f.Time.UnixNano(), f.Symbol, string(f.Side),
			f.Quantity.String(), f.Price.String(), f.Fee.String(), f.RealizedPnL.String(),
			f.Closing, f.Reason, fillSeq[i],
		); err != nil {
			return fmt.Errorf("inserting fill %d: %w", i, err)
		}
	}

	for i, r := range res.Rejections {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO rejections
			(run_id, seq, time, symbol, side, quantity, code, reason, intent_reason, log_seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, i, r.Time.UnixNano(), r.Intent.Symbol, string(r.Intent.Side),
			r.Intent.Quantity.String(), r.Code, r.Reason, r.Intent.Reason, rejectionSeq[i],
		); err != nil {
			return fmt.Errorf("inserting rejection %d: %w", i, err)
		}
	}

	for i, snap := range res.EquityCurve {
		var dd, vol, score float64
		if i < len(res.Risk) {
			dd, vol, score = res.Risk[i].Drawdown, res.Risk[i].Volatility, res.Risk[i].Score
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO equity
			(run_id, seq, time, cash, equity, gross_exposure, drawdown, volatility, score)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, i, snap.Time.UnixNano(), snap.Cash.String(), snap.Equity.String(),
			snap.GrossExposure.String(), dd, vol, score,
		); err != nil {
			return fmt.Errorf("inserting equity point %d: %w", i, err)
		}
	}

	for i, a := range res.Alerts {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO alerts
			(run_id, seq, time, rule, metric, operator, threshold, observed, severity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, i, a.Time.UnixNano(), a.Rule, a.Metric, a.Operator,
			a.Threshold, a.Observed, string(a.Severity),
		); err != nil {
			return fmt.Errorf("inserting alert %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetRun returns the stored header of runID.
func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT run_id, strategy, symbol, params, start_time, end_time, initial_cash, final_equity, summary, duration_ns, created_at
		FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, core.Errorf(core.ErrNotFound, "run %s", runID)
	}
	return run, err
}

// ListRuns returns runs newest first, optionally filtered by strategy.
// A limit of zero or less returns every run.
func (j *SQLite) ListRuns(ctx context.Context, strategy string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, strategy, symbol, params, start_time, end_time, initial_cash, final_equity, summary, duration_ns, created_at
		FROM runs
		WHERE ? = '' OR strategy = ?
		ORDER BY created_at DESC, run_id
		LIMIT ?`, strategy, strategy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes runID and everything recorded with it.
func (j *SQLite) DeleteRun(ctx context.Context, runID string) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Errorf(core.ErrNotFound, "run %s", runID)
	}
	return nil
}

// Fills returns the fills of runID in execution order.
func (j *SQLite) Fills(ctx context.Context, runID string) ([]core.Fill, error) {
	fills, _, err := j.fills(ctx, runID)
	return fills, err
}

// Rejections returns the rejected intents of runID in submission order.
func (j *SQLite) Rejections(ctx context.Context, runID string) ([]core.Rejection, error) {
	rejections, _, err := j.rejections(ctx, runID)
	return rejections, err
}

// TradeLog rebuilds the ordered trade log of runID, fills and rejections
// interleaved as they happened.
func (j *SQLite) TradeLog(ctx context.Context, runID string) ([]core.TradeLogEntry, error) {
	fills, fillSeq, err := j.fills(ctx, runID)
	if err != nil {
		return nil, err
	}
	rejections, rejectionSeq, err := j.rejections(ctx, runID)
	if err != nil {
		return nil, err
	}

	type positioned struct {
		seq   int
		entry core.TradeLogEntry
	}
	entries := make([]positioned, 0, len(fills)+len(rejections))
	for i := range fills {
		entries = append(entries, positioned{fillSeq[i], core.TradeLogEntry{Fill: &fills[i]}})
	}
	for i := range rejections {
		entries = append(entries, positioned{rejectionSeq[i], core.TradeLogEntry{Rejection: &rejections[i]}})
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].seq < entries[b].seq })

	log := make([]core.TradeLogEntry, len(entries))
	for i, e := range entries {
		log[i] = e.entry
	}
	return log, nil
}

func (j *SQLite) fills(ctx context.Context, runID string) ([]core.Fill, []int, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT fill_id, time, symbol, side, quantity, price, fee, realized_pnl, closing, reason, log_seq
		FROM fills WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		fills []core.Fill
		seqs  []int
	)
	for rows.Next() {
		var (
			f                          core.Fill
			ts                         int64
			seq                        int
			side, qty, price, fee, pnl string
		)
		if err := rows.Scan(&f.ID, &ts, &f.Symbol, &side, &qty, &price, &fee, &pnl, &f.Closing, &f.Reason, &seq); err != nil {
			return nil, nil, err
		}
		f.Time = fromNanos(ts)
		f.Side = core.Side(side)
		if f.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, nil, err
		}
		if f.Price, err = decimal.NewFromString(price); err != nil {
			return nil, nil, err
		}
		if f.Fee, err = decimal.NewFromString(fee); err != nil {
			return nil, nil, err
		}
		if f.RealizedPnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, nil, err
		}
		fills = append(fills, f)
		seqs = append(seqs, seq)
	}
	return fills, seqs, rows.Err()
}

func (j *SQLite) rejections(ctx context.Context, runID string) ([]core.Rejection, []int, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, symbol, side, quantity, code, reason, intent_reason, log_seq
		FROM rejections WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		rejections []core.Rejection
		seqs       []int
	)
	for rows.Next() {
		var (
			r         core.Rejection
			ts        int64
			seq       int
			side, qty string
		)
		if err := rows.Scan(&ts, &r.Intent.Symbol, &side, &qty, &r.Code, &r.Reason, &r.Intent.Reason, &seq); err != nil {
			return nil, nil, err
		}
		r.Time = fromNanos(ts)
		r.Intent.Side = core.Side(side)
		if r.Intent.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, nil, err
		}
		rejections = append(rejections, r)
		seqs = append(seqs, seq)
	}
	return rejections, seqs, rows.Err()
}

// logPositions returns the trade log position of every fill and rejection
// of res. A result without a matching log keeps fills ahead of rejections.
func logPositions(res *backtest.Result) (fills, rejections []int) {
	for i, e := range res.TradeLog {
		switch {
		case e.Fill != nil:
			fills = append(fills, i)
		case e.Rejection != nil:
			rejections = append(rejections, i)
		}
	}
	if len(fills) == len(res.Fills) && len(rejections) == len(res.Rejections) {
		return fills, rejections
	}

	fills = make([]int, len(res.Fills))
	for i := range fills {
		fills[i] = i
	}
	rejections = make([]int, len(res.Rejections))
	for i := range rejections {
		rejections[i] = len(res.Fills) + i
	}
	return fills, rejections
}

// Snapshots returns the equity curve of runID. Positions are not stored, so
// the snapshots carry cash, equity and gross exposure only.
func (j *SQLite) Snapshots(ctx context.Context, runID string) ([]core.PortfolioSnapshot, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, cash, equity, gross_exposure
		FROM equity WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var curve []core.PortfolioSnapshot
	for rows.Next() {
		var (
			ts                  int64
			cash, equity, gross string
			snap                core.PortfolioSnapshot
		)
		if err := rows.Scan(&ts, &cash, &equity, &gross); err != nil {
			return nil, err
		}
		snap.Time = fromNanos(ts)
		if snap.Cash, err = decimal.NewFromString(cash); err != nil {
			return nil, err
		}
		if snap.Equity, err = decimal.NewFromString(equity); err != nil {
			return nil, err
		}
		if snap.GrossExposure, err = decimal.NewFromString(gross); err != nil {
			return nil, err
		}
		curve = append(curve, snap)
	}
	return curve, rows.Err()
}

// Alerts returns the alerts raised during runID.
func (j *SQLite) Alerts(ctx context.Context, runID string) ([]core.RiskAlert, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, rule, metric, operator, threshold, observed, severity
		FROM alerts WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []core.RiskAlert
	for rows.Next() {
		var (
			a        core.RiskAlert
			ts       int64
			severity string
		)
		if err := rows.Scan(&ts, &a.Rule, &a.Metric, &a.Operator, &a.Threshold, &a.Observed, &severity); err != nil {
			return nil, err
		}
		a.Time = fromNanos(ts)
		a.Severity = core.Severity(severity)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run                             Run
		params, cash, equity, summary   string
		start, end, duration, createdAt int64
	)
	if err := s.Scan(&run.RunID, &run.Strategy, &run.Symbol, &params, &start, &end,
		&cash, &equity, &summary, &duration, &createdAt); err != nil {
		return Run{}, err
	}

	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return Run{}, fmt.Errorf("decoding params of %s: %w", run.RunID, err)
	}
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return Run{}, fmt.Errorf("decoding summary of %s: %w", run.RunID, err)
	}
	var err error
	if run.InitialCash, err = decimal.NewFromString(cash); err != nil {
		return Run{}, err
	}
	if run.FinalEquity, err = decimal.NewFromString(equity); err != nil {
		return Run{}, err
	}
	run.StartDate = fromNanos(start)
	run.EndDate = fromNanos(end)
	run.Duration = time.Duration(duration)
	run.CreatedAt = fromNanos(createdAt)
	return run, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
