// Package notifier delivers risk alerts to external channels.
package notifier

import (
	"context"

	"github.com/newthinker/tradesim/internal/core"
)

// Notifier delivers risk alerts. Every Notifier is an alert.Notifier.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Notify delivers a single alert
	Notify(ctx context.Context, alert core.RiskAlert) error
}

// BatchNotifier delivers several alerts in one call.
type BatchNotifier interface {
	Notifier
	NotifyBatch(ctx context.Context, alerts []core.RiskAlert) error
}
