package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/ws-heartbeat/internal/buffer"
)

const insertEvent = `
	INSERT INTO connection_events (session_id, target, kind, code, detail, rtt_us, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Batcher sends a queued batch. *pgxpool.Pool satisfies it.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Writer consumes events from its input buffer and writes them to the
// connection_events table.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *buffer.GrowableBuffer[Event]

	// Database; nil discards flushed rows
	db Batcher

	// Batching
	batch       []eventRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx          context.Context
	cancel       context.CancelFunc
	consumerDone chan struct{}
	wg           sync.WaitGroup

	metrics WriterMetrics
}

// NewWriter creates a Writer reading from input.
func NewWriter(
	cfg WriterConfig,
	input *buffer.GrowableBuffer[Event],
	db Batcher,
	logger *slog.Logger,
) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &Writer{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]eventRow, 0, cfg.BatchSize),
		ctx:    context.Background(),
	}
}

// Record queues an event. It never blocks; events recorded after Stop are
// dropped.
func (w *Writer) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	w.input.Send(ev)
}

// Start begins consuming events and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)
	w.consumerDone = make(chan struct{})

	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the input, drains what is already queued, and writes the
// final batch using ctx.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.input.Close()

	if w.consumerDone != nil {
		select {
		case <-w.consumerDone:
		case <-ctx.Done():
			w.logger.Warn("journal writer drain timed out", "pending", w.input.Len())
		}
	} else {
		// Never started
		for _, ev := range w.input.DrainTo(0) {
			w.handleEvent(ev)
		}
	}

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}
	w.wg.Wait()

	// Final flush
	w.flush(ctx)

	stats := w.Stats()
	w.logger.Info("journal writer stopped",
		"inserts", stats.Inserts,
		"errors", stats.Errors,
	)
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop moves events into the batch until the input is closed and
// drained.
func (w *Writer) consumeLoop() {
	defer close(w.consumerDone)

	for {
		ev, ok := w.input.Receive()
		if !ok {
			return
		}
		w.handleEvent(ev)
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

func (w *Writer) handleEvent(ev Event) {
	row := transform(ev)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts an Event to a row, mapping zero values to NULL.
func transform(ev Event) eventRow {
	row := eventRow{
		SessionID:  ev.SessionID,
		Target:     ev.Target,
		Kind:       string(ev.Kind),
		OccurredAt: ev.At.UTC(),
	}
	if ev.Code != 0 {
		code := int32(ev.Code)
		row.Code = &code
	}
	if ev.Detail != "" {
		detail := ev.Detail
		row.Detail = &detail
	}
	if ev.Kind == KindLatency || (ev.Kind == KindStats && ev.RTT > 0) {
		us := ev.RTT.Microseconds()
		row.RTTMicros = &us
	}
	return row
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed connection events",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch.
func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) error {
	if w.db == nil {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertEvent, r.SessionID, r.Target, r.Kind, r.Code, r.Detail, r.RTTMicros, r.OccurredAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
