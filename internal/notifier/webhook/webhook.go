// Package webhook delivers risk alerts to an HTTP endpoint as JSON.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/core"
)

// Event is the body posted for a single alert.
type Event struct {
	Type      string        `json:"type"`
	Rule      string        `json:"rule"`
	Metric    string        `json:"metric"`
	Operator  string        `json:"operator"`
	Threshold float64       `json:"threshold"`
	Observed  float64       `json:"observed"`
	Severity  core.Severity `json:"severity"`
	Message   string        `json:"message"`
	Time      string        `json:"time"`
}

// Batch is the body posted for NotifyBatch.
type Batch struct {
	Type   string  `json:"type"`
	Count  int     `json:"count"`
	Alerts []Event `json:"alerts"`
}

func eventOf(a core.RiskAlert) Event {
	return Event{
		Type:      "risk_alert",
		Rule:      a.Rule,
		Metric:    a.Metric,
		Operator:  a.Operator,
		Threshold: a.Threshold,
		Observed:  a.Observed,
		Severity:  a.Severity,
		Message:   alert.FormatMessage(a, ""),
		Time:      a.Time.UTC().Format(time.RFC3339),
	}
}

// Webhook posts risk alerts to url with the configured extra headers.
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

func New(url string, headers map[string]string) *Webhook {
	return &Webhook{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Notify(ctx context.Context, a core.RiskAlert) error {
	return w.send(ctx, eventOf(a))
}

// NotifyBatch posts all alerts in one request. An empty batch is a no-op.
func (w *Webhook) NotifyBatch(ctx context.Context, alerts []core.RiskAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	b := Batch{Type: "batch", Count: len(alerts), Alerts: make([]Event, 0, len(alerts))}
	for _, a := range alerts {
		b.Alerts = append(b.Alerts, eventOf(a))
	}
	return w.send(ctx, b)
}

func (w *Webhook) send(ctx context.Context, body any) error {
	if w.url == "" {
		return core.Errorf(core.ErrConfigMissing, "webhook url")
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return core.Errorf(core.ErrNotifierFailed, "webhook: encoding: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(buf))
	if err != nil {
		return core.Errorf(core.ErrNotifierFailed, "webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return core.Errorf(core.ErrNotifierFailed, "webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return core.WrapError(core.ErrNotifierFailed, fmt.Errorf("webhook: %s responded %d", w.url, resp.StatusCode))
	}
	return nil
}
