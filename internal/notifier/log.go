package notifier

import (
	"context"

	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log writes alerts to a zap logger, at error level for critical alerts.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a log notifier.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("alerts")}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Notify(_ context.Context, a core.RiskAlert) error {
	level := zapcore.WarnLevel
	switch a.Severity {
	case core.SeverityInfo:
		level = zapcore.InfoLevel
	case core.SeverityCritical:
		level = zapcore.ErrorLevel
	}
	l.logger.Log(level, alert.FormatMessage(a, ""),
		zap.Time("time", a.Time),
		zap.String("rule", a.Rule),
		zap.String("metric", a.Metric),
		zap.Float64("observed", a.Observed),
		zap.Float64("threshold", a.Threshold),
	)
	return nil
}
