package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockNotifier struct {
	name       string
	sendCalled int
	shouldFail bool
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Notify(_ context.Context, _ core.RiskAlert) error {
	m.sendCalled++
	if m.shouldFail {
		return errors.New("send failed")
	}
	return nil
}

type mockBatchNotifier struct {
	mockNotifier
	batchCalls int
}

func (m *mockBatchNotifier) NotifyBatch(_ context.Context, _ []core.RiskAlert) error {
	m.batchCalls++
	return nil
}

func testAlert(rule string) core.RiskAlert {
	return core.RiskAlert{
		Time:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Rule:      rule,
		Metric:    "drawdown",
		Operator:  ">",
		Threshold: 0.1,
		Observed:  0.12,
		Severity:  core.SeverityCritical,
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	mock := &mockNotifier{name: "test"}
	err := r.Register(mock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Duplicate registration should fail
	err = r.Register(mock)
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid for duplicate registration, got %v", err)
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "test"})

	n, err := r.Get("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "test" {
		t.Errorf("expected 'test', got '%s'", n.Name())
	}

	// Non-existent notifier
	_, err = r.Get("nonexistent")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_GetAllSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "b"})
	r.Register(&mockNotifier{name: "a"})

	all := r.GetAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 notifiers, got %d", len(all))
	}
	if all[0].Name() != "a" || all[1].Name() != "b" {
		t.Errorf("expected name order, got %s, %s", all[0].Name(), all[1].Name())
	}
	if len(r.AlertNotifiers()) != 2 {
		t.Errorf("expected 2 alert notifiers")
	}
}

func TestRegistry_NotifyAllBatch_CollectsErrors(t *testing.T) {
	r := NewRegistry()

	mock1 := &mockNotifier{name: "n1"}
	mock2 := &mockNotifier{name: "n2", shouldFail: true}
	r.Register(mock1)
	r.Register(mock2)

	errs := r.NotifyAllBatch(context.Background(), []core.RiskAlert{testAlert("dd")})

	if len(errs) != 1 {
		t.Errorf("expected 1 error, got %d", len(errs))
	}
	if _, ok := errs["n2"]; !ok {
		t.Error("expected error from n2")
	}
	if mock1.sendCalled != 1 || mock2.sendCalled != 1 {
		t.Errorf("expected every notifier called once, got %d and %d", mock1.sendCalled, mock2.sendCalled)
	}
}

func TestRegistry_NotifyAllBatch(t *testing.T) {
	r := NewRegistry()

	batch := &mockBatchNotifier{mockNotifier: mockNotifier{name: "batch"}}
	single := &mockNotifier{name: "single"}
	r.Register(batch)
	r.Register(single)

	errs := r.NotifyAllBatch(context.Background(), []core.RiskAlert{testAlert("a"), testAlert("b")})

	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
	if batch.batchCalls != 1 || batch.sendCalled != 0 {
		t.Errorf("expected one batch call, got batch=%d single=%d", batch.batchCalls, batch.sendCalled)
	}
	if single.sendCalled != 2 {
		t.Errorf("expected 2 single sends, got %d", single.sendCalled)
	}
}

func TestLog_Notify(t *testing.T) {
	observed, logs := observer.New(zap.InfoLevel)
	n := NewLog(zap.New(observed))

	if n.Name() != "log" {
		t.Errorf("expected 'log', got %s", n.Name())
	}
	if err := n.Notify(context.Background(), testAlert("deep")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Level != zap.ErrorLevel {
		t.Errorf("critical alert should log at error, got %s", entries[0].Level)
	}
	if entries[0].Message != "[CRITICAL] deep: drawdown=0.1200 > 0.1" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
}
