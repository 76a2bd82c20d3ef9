package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/ws-heartbeat/internal/connection"
)

// staticSource returns fixed stats and counts calls.
type staticSource struct {
	stats connection.Stats
	calls atomic.Int32
}

func (s *staticSource) Stats() connection.Stats {
	s.calls.Add(1)
	return s.stats
}

func TestMonitor_SampleAll(t *testing.T) {
	a := &staticSource{stats: connection.Stats{SessionID: "a", Phase: connection.PhaseOpen}}
	b := &staticSource{stats: connection.Stats{SessionID: "b", Phase: connection.PhaseReconnecting}}

	var mu sync.Mutex
	var seen []string
	sink := SinkFunc(func(s connection.Stats) {
		mu.Lock()
		seen = append(seen, s.SessionID)
		mu.Unlock()
	})

	m := New(Config{Interval: time.Hour}, sink, nil)
	m.Add(a)
	m.Add(b)

	m.sampleAll()

	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Errorf("seen = %v, want [a b]", seen)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	src := &staticSource{stats: connection.Stats{SessionID: "a"}}
	var samples atomic.Int32
	sink := SinkFunc(func(connection.Stats) { samples.Add(1) })

	m := New(Config{Interval: 20 * time.Millisecond}, sink, nil)
	m.Add(src)

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait for at least one tick.
	time.Sleep(70 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := m.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Ticks plus the final sample on Stop.
	if got := samples.Load(); got < 2 {
		t.Errorf("samples = %d, want >= 2", got)
	}
}

func TestMonitor_NilSink(t *testing.T) {
	src := &staticSource{}
	m := New(Config{}, nil, nil)
	m.Add(src)

	m.sampleAll()

	if src.calls.Load() != 1 {
		t.Errorf("source sampled %d times, want 1", src.calls.Load())
	}
	if m.cfg.Interval != DefaultConfig().Interval {
		t.Errorf("Interval = %v, want default", m.cfg.Interval)
	}
}
