package alert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

// Operators supported in rule expressions.
const (
	OpGreater      = ">"
	OpLess         = "<"
	OpGreaterEqual = ">="
	OpLessEqual    = "<="
)

var exprPattern = regexp.MustCompile(`^(\w+)\s*(>=|<=|>|<)\s*(-?[\d.]+)$`)

// Rule defines a threshold rule over one risk metric.
type Rule struct {
	Name      string        `mapstructure:"name" json:"name"`
	Metric    string        `mapstructure:"metric" json:"metric"`
	Operator  string        `mapstructure:"operator" json:"operator"`
	Threshold float64       `mapstructure:"threshold" json:"threshold"`
	Severity  core.Severity `mapstructure:"severity" json:"severity"`
	// Expr is an alternative to Metric/Operator/Threshold, e.g. "drawdown > 0.1".
	Expr string `mapstructure:"expr" json:"expr,omitempty"`
	// For requires the breach to persist this long (in bar time) before firing.
	For     time.Duration `mapstructure:"for" json:"for,omitempty"`
	Message string        `mapstructure:"message" json:"message,omitempty"`
}

// ParseExpr parses "metric op value".
func ParseExpr(expr string) (metric, op string, threshold float64, err error) {
	matches := exprPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if len(matches) != 4 {
		return "", "", 0, core.Errorf(core.ErrConfigInvalid, "invalid rule expression %q", expr)
	}
	threshold, err = strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return "", "", 0, core.Errorf(core.ErrConfigInvalid, "invalid threshold in %q: %v", expr, err)
	}
	return matches[1], matches[2], threshold, nil
}

// Normalize resolves Expr into Metric/Operator/Threshold and applies defaults.
func (r Rule) Normalize() (Rule, error) {
	if r.Expr != "" {
		metric, op, threshold, err := ParseExpr(r.Expr)
		if err != nil {
			return r, err
		}
		r.Metric, r.Operator, r.Threshold = metric, op, threshold
	}
	if r.Severity == "" {
		r.Severity = core.SeverityWarning
	}
	if r.Name == "" {
		r.Name = fmt.Sprintf("%s %s %g", r.Metric, r.Operator, r.Threshold)
	}
	return r, r.Validate()
}

// Validate checks the rule for errors.
func (r Rule) Validate() error {
	if r.Metric == "" {
		return core.Errorf(core.ErrConfigInvalid, "rule %q: metric is required", r.Name)
	}
	switch r.Operator {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
	default:
		return core.Errorf(core.ErrConfigInvalid, "rule %q: unsupported operator %q", r.Name, r.Operator)
	}
	if r.Severity != "" && !r.Severity.Valid() {
		return core.Errorf(core.ErrConfigInvalid, "rule %q: unknown severity %q", r.Name, r.Severity)
	}
	if r.For < 0 {
		return core.Errorf(core.ErrConfigInvalid, "rule %q: negative for duration", r.Name)
	}
	return nil
}

// Evaluate reports the observed value and whether the rule is in breach.
// A metric missing from metrics is never in breach.
func (r Rule) Evaluate(metrics map[string]float64) (float64, bool) {
	value, exists := metrics[r.Metric]
	if !exists {
		return 0, false
	}

	switch r.Operator {
	case OpGreater:
		return value, value > r.Threshold
	case OpLess:
		return value, value < r.Threshold
	case OpGreaterEqual:
		return value, value >= r.Threshold
	case OpLessEqual:
		return value, value <= r.Threshold
	default:
		return value, false
	}
}

// FormatMessage renders a one-line alert message.
func FormatMessage(a core.RiskAlert, message string) string {
	msg := fmt.Sprintf("[%s] %s: %s=%.4f %s %g",
		strings.ToUpper(string(a.Severity)), a.Rule, a.Metric, a.Observed, a.Operator, a.Threshold)
	if message != "" {
		msg += " - " + message
	}
	return msg
}
