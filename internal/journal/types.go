package journal

import "time"

// Kind names a lifecycle event.
type Kind string

const (
	KindOpen      Kind = "open"
	KindMessage   Kind = "message"
	KindError     Kind = "error"
	KindClose     Kind = "close"
	KindReconnect Kind = "reconnect"
	KindLatency   Kind = "latency"
	KindStats     Kind = "stats"
)

// Event is one journal entry.
type Event struct {
	SessionID string
	Target    string
	Kind      Kind
	Code      int           // close code or reconnect attempt
	Detail    string        // error text, close reason, payload prefix or stats summary
	RTT       time.Duration // latency events only
	At        time.Time
}

// Sink accepts events without blocking.
type Sink interface {
	Record(ev Event)
}

// WriterConfig holds batch writer configuration.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// WriterMetrics holds writer counters.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
}

// eventRow is a row of connection_events.
type eventRow struct {
	SessionID  string
	Target     string
	Kind       string
	Code       *int32
	Detail     *string
	RTTMicros  *int64
	OccurredAt time.Time
}
