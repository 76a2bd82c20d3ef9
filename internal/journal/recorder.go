package journal

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/rickgao/ws-heartbeat/internal/connection"
)

// maxDetail caps the payload prefix stored for message events.
const maxDetail = 256

// Recorder is a connection.Handler that journals every hook before
// passing it on to the wrapped handler.
type Recorder struct {
	next      connection.Handler
	sink      Sink
	sessionID string
	target    string

	// RecordMessages journals inbound messages too. Off by default since
	// message volume usually dwarfs lifecycle events.
	RecordMessages bool

	now func() time.Time
}

// NewRecorder wraps next. A nil next only records.
func NewRecorder(next connection.Handler, sink Sink, sessionID, target string) *Recorder {
	if next == nil {
		next = connection.HandlerFuncs{}
	}
	return &Recorder{
		next:      next,
		sink:      sink,
		sessionID: sessionID,
		target:    target,
		now:       time.Now,
	}
}

func (r *Recorder) OnOpen() {
	r.record(KindOpen, 0, "", 0)
	r.next.OnOpen()
}

func (r *Recorder) OnMessage(data []byte) {
	if r.RecordMessages {
		r.record(KindMessage, len(data), truncate(data, maxDetail), 0)
	}
	r.next.OnMessage(data)
}

func (r *Recorder) OnError(err error) {
	detail := ""
	code := 0
	if err != nil {
		detail = err.Error()
	}
	var ce *connection.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
	}
	r.record(KindError, code, detail, 0)
	r.next.OnError(err)
}

func (r *Recorder) OnClose(code int, reason string) {
	r.record(KindClose, code, reason, 0)
	r.next.OnClose(code, reason)
}

func (r *Recorder) OnReconnect(attempt int) {
	r.record(KindReconnect, attempt, "", 0)
	r.next.OnReconnect(attempt)
}

// OnLatency records the sample and forwards it if the wrapped handler
// wants latency.
func (r *Recorder) OnLatency(rtt time.Duration) {
	r.record(KindLatency, 0, "", rtt)
	if lh, ok := r.next.(connection.LatencyHandler); ok {
		lh.OnLatency(rtt)
	}
}

func (r *Recorder) record(kind Kind, code int, detail string, rtt time.Duration) {
	r.sink.Record(Event{
		SessionID: r.sessionID,
		Target:    r.target,
		Kind:      kind,
		Code:      code,
		Detail:    detail,
		RTT:       rtt,
		At:        r.now(),
	})
}

// truncate returns at most n bytes of data without splitting a rune.
func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(data[cut]) {
		cut--
	}
	return string(data[:cut])
}
