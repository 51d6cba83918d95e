// Package alert evaluates threshold rules over risk metrics and delivers
// edge-triggered alerts to notifiers.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"go.uber.org/zap"
)

// Notifier delivers risk alerts.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert core.RiskAlert) error
}

// Evaluator evaluates rules against successive metric samples.
// An alert fires once when a rule enters breach and re-arms only after
// the condition has been observed false.
type Evaluator struct {
	rules     []Rule
	notifiers []Notifier
	logger    *zap.Logger

	// Rules currently in breach, already fired
	breached map[string]bool
	// Breach start for rules waiting on their For duration
	pending map[string]time.Time

	mu sync.Mutex
}

// NewEvaluator validates rules and creates an evaluator.
func NewEvaluator(rules []Rule, notifiers []Notifier, logger *zap.Logger) (*Evaluator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalized := make([]Rule, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		n, err := r.Normalize()
		if err != nil {
			return nil, err
		}
		if seen[n.Name] {
			return nil, core.Errorf(core.ErrConfigInvalid, "duplicate rule name %q", n.Name)
		}
		seen[n.Name] = true
		normalized = append(normalized, n)
	}
	return &Evaluator{
		rules:     normalized,
		notifiers: notifiers,
		logger:    logger,
		breached:  make(map[string]bool),
		pending:   make(map[string]time.Time),
	}, nil
}

// Evaluate checks every rule against metrics sampled at ts and returns the
// alerts that fired. Fired alerts are delivered to all notifiers; delivery
// failures are logged and do not stop evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, ts time.Time, metrics map[string]float64) []core.RiskAlert {
	e.mu.Lock()
	var fired []core.RiskAlert
	var messages []string
	for _, rule := range e.rules {
		observed, breach := rule.Evaluate(metrics)
		if !breach {
			// Recovered: re-arm
			delete(e.breached, rule.Name)
			delete(e.pending, rule.Name)
			continue
		}
		if e.breached[rule.Name] {
			continue
		}

		if rule.For > 0 {
			since, isPending := e.pending[rule.Name]
			if !isPending {
				e.pending[rule.Name] = ts
				continue
			}
			if ts.Sub(since) < rule.For {
				continue
			}
		}

		a := core.RiskAlert{
			Time:      ts,
			Rule:      rule.Name,
			Metric:    rule.Metric,
			Operator:  rule.Operator,
			Threshold: rule.Threshold,
			Observed:  observed,
			Severity:  rule.Severity,
		}
		fired = append(fired, a)
		messages = append(messages, rule.Message)
		e.breached[rule.Name] = true
		delete(e.pending, rule.Name)
	}
	e.mu.Unlock()

	for i, a := range fired {
		e.logger.Warn("risk alert",
			zap.String("rule", a.Rule),
			zap.String("severity", string(a.Severity)),
			zap.Float64("observed", a.Observed),
			zap.String("message", FormatMessage(a, messages[i])),
		)
		e.notify(ctx, a)
	}
	return fired
}

func (e *Evaluator) notify(ctx context.Context, a core.RiskAlert) {
	for _, n := range e.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			e.logger.Error("notifier failed",
				zap.String("notifier", n.Name()),
				zap.String("rule", a.Rule),
				zap.Error(err),
			)
		}
	}
}

// Reset clears breach state so every rule is armed again.
func (e *Evaluator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.breached = make(map[string]bool)
	e.pending = make(map[string]time.Time)
}
