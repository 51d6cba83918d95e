package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ notifier.BatchNotifier = (*Webhook)(nil)
	_ alert.Notifier         = (*Webhook)(nil)
)

func riskAlert(rule string) core.RiskAlert {
	return core.RiskAlert{
		Time:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Rule:      rule,
		Metric:    "drawdown",
		Operator:  ">",
		Threshold: 0.1,
		Observed:  0.15,
		Severity:  core.SeverityWarning,
	}
}

// receiver records the last request it was sent and answers with status.
type receiver struct {
	status int
	header http.Header
	body   []byte
}

func (rc *receiver) start(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc.header = r.Header.Clone()
		var raw json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&raw)
		rc.body = raw
		if rc.status == 0 {
			rc.status = http.StatusNoContent
		}
		w.WriteHeader(rc.status)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestWebhook_Notify(t *testing.T) {
	rc := &receiver{}
	hook := New(rc.start(t), map[string]string{"Authorization": "Bearer test-token"})

	require.NoError(t, hook.Notify(context.Background(), riskAlert("dd")))

	assert.Equal(t, "application/json", rc.header.Get("Content-Type"))
	assert.Equal(t, "Bearer test-token", rc.header.Get("Authorization"))

	var ev Event
	require.NoError(t, json.Unmarshal(rc.body, &ev))
	assert.Equal(t, "risk_alert", ev.Type)
	assert.Equal(t, "dd", ev.Rule)
	assert.Equal(t, 0.15, ev.Observed)
	assert.Equal(t, core.SeverityWarning, ev.Severity)
	assert.Equal(t, "2024-03-01T00:00:00Z", ev.Time)
	assert.NotEmpty(t, ev.Message)
}

func TestWebhook_NotifyBatch(t *testing.T) {
	rc := &receiver{}
	hook := New(rc.start(t), nil)

	require.NoError(t, hook.NotifyBatch(context.Background(), []core.RiskAlert{riskAlert("a"), riskAlert("b")}))

	var b Batch
	require.NoError(t, json.Unmarshal(rc.body, &b))
	assert.Equal(t, "batch", b.Type)
	assert.Equal(t, 2, b.Count)
	require.Len(t, b.Alerts, 2)
	assert.Equal(t, "b", b.Alerts[1].Rule)

	// Nothing is sent for an empty batch.
	rc.body = nil
	require.NoError(t, hook.NotifyBatch(context.Background(), nil))
	assert.Nil(t, rc.body)
}

func TestWebhook_Errors(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		err := New("", nil).Notify(context.Background(), riskAlert("dd"))
		assert.ErrorIs(t, err, core.ErrConfigMissing)
	})

	t.Run("server error", func(t *testing.T) {
		rc := &receiver{status: http.StatusBadGateway}
		err := New(rc.start(t), nil).Notify(context.Background(), riskAlert("dd"))
		assert.ErrorIs(t, err, core.ErrNotifierFailed)
		assert.ErrorContains(t, err, "502")
	})

	t.Run("cancelled", func(t *testing.T) {
		rc := &receiver{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := New(rc.start(t), nil).Notify(ctx, riskAlert("dd"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, core.ErrNotifierFailed)
	})
}

func TestWebhook_Name(t *testing.T) {
	assert.Equal(t, "webhook", New("http://example.com/hook", nil).Name())
}
