package risk

import (
	"context"
	"sync"

	"github.com/newthinker/tradesim/internal/core"
	"go.uber.org/zap"
)

// Update is one monitoring result delivered to subscribers.
type Update struct {
	Metrics Metrics          `json:"metrics"`
	Alerts  []core.RiskAlert `json:"alerts,omitempty"`
}

// Monitor runs an Engine over a live snapshot stream. A single goroutine
// (Run) owns the engine; subscribers receive copies and never block it.
type Monitor struct {
	engine   *Engine
	logger   *zap.Logger
	observer func(Update)

	mu     sync.Mutex
	subs   map[int]chan Update
	nextID int
	closed bool
	// Dropped counts updates discarded because a subscriber was full.
	dropped int
}

// NewMonitor creates a monitor around engine.
func NewMonitor(engine *Engine, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		engine: engine,
		logger: logger,
		subs:   make(map[int]chan Update),
	}
}

// SetObserver installs a callback run synchronously for every update,
// before fan-out. Used for metrics export. It runs without the monitor lock
// held, so it may call back into the monitor.
func (m *Monitor) SetObserver(fn func(Update)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// Subscribe returns a buffered channel of updates and a cancel function.
// The channel is closed when the monitor stops or cancel is called.
func (m *Monitor) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Update, buffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if sub, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(sub)
			}
		})
	}
}

// Dropped returns the number of updates discarded for slow subscribers.
func (m *Monitor) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Run consumes snapshots until in is closed or ctx is cancelled, then
// closes every subscriber channel.
func (m *Monitor) Run(ctx context.Context, in <-chan core.PortfolioSnapshot) error {
	defer m.close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-in:
			if !ok {
				return nil
			}
			metrics, alerts := m.engine.Update(ctx, snap)
			m.publish(Update{Metrics: metrics, Alerts: alerts})
		}
	}
}

func (m *Monitor) publish(u Update) {
	m.mu.Lock()
	observer := m.observer
	m.mu.Unlock()
	if observer != nil {
		observer(u)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subs {
		msg := Update{Metrics: u.Metrics, Alerts: append([]core.RiskAlert(nil), u.Alerts...)}
		select {
		case ch <- msg:
		default:
			m.dropped++
			m.logger.Debug("subscriber full, dropping risk update", zap.Int("subscriber", id))
		}
	}
}

func (m *Monitor) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
}
