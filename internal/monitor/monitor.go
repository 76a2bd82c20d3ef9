package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/ws-heartbeat/internal/connection"
)

// StatsSource provides a stats snapshot. *connection.Manager satisfies it.
type StatsSource interface {
	Stats() connection.Stats
}

// Sink receives sampled stats.
type Sink interface {
	HandleStats(stats connection.Stats)
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(connection.Stats)

func (f SinkFunc) HandleStats(s connection.Stats) {
	f(s)
}

// Config holds monitor configuration.
type Config struct {
	Interval time.Duration // Sample interval (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
	}
}

// Monitor samples a set of stats sources on an interval.
type Monitor struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger

	mu      sync.Mutex
	sources []StatsSource

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Monitor. sink may be nil.
func New(cfg Config, sink Sink, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Monitor{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
	}
}

// Add registers a source. Safe to call while running.
func (m *Monitor) Add(src StatsSource) {
	m.mu.Lock()
	m.sources = append(m.sources, src)
	m.mu.Unlock()
}

// Start begins the sampling loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("stats monitor started", "interval", m.cfg.Interval)
	return nil
}

// Stop takes a final sample and shuts the loop down.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.sampleAll()
		m.logger.Info("stats monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sampleAll()
		}
	}
}

// sampleAll logs and forwards one snapshot per source.
func (m *Monitor) sampleAll() {
	m.mu.Lock()
	sources := append([]StatsSource(nil), m.sources...)
	m.mu.Unlock()

	var open int
	for _, src := range sources {
		s := src.Stats()
		if s.Phase == connection.PhaseOpen {
			open++
		}

		m.logger.Info("connection stats",
			"session", s.SessionID,
			"target", s.Target,
			"phase", s.Phase,
			"ready_state", s.ReadyState,
			"attempts", s.Attempts,
			"reconnects", s.Reconnects,
			"messages_in", s.MessagesIn,
			"pings_sent", s.PingsSent,
			"last_rtt", s.LastRTT,
		)

		if m.sink != nil {
			m.sink.HandleStats(s)
		}
	}

	m.logger.Debug("stats cycle complete", "sources", len(sources), "open", open)
}
