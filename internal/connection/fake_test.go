package connection

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/ws-heartbeat/internal/transport"
)

// fakeSocket is a scripted transport.Socket. Tests drive it with open,
// message, fail and drop; Close by the manager reports the requested code
// unless the socket already finished.
type fakeSocket struct {
	address   string
	protocols []string

	mu       sync.Mutex
	h        transport.Handler
	orig     transport.Handler
	state    transport.ReadyState
	finished bool
	detached bool
	sent     []string
	closes   []int
}

func (s *fakeSocket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != transport.StateOpen {
		return transport.ErrNotOpen
	}
	s.sent = append(s.sent, string(data))
	return nil
}

func (s *fakeSocket) Close(code int) error {
	s.mu.Lock()
	s.closes = append(s.closes, code)
	if s.finished {
		s.mu.Unlock()
		return nil
	}
	s.finished = true
	s.state = transport.StateClosed
	h := s.h
	s.mu.Unlock()

	if h != nil {
		h.OnClose(code, "")
	}
	return nil
}

func (s *fakeSocket) ReadyState() transport.ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSocket) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h = nil
	s.detached = true
}

func (s *fakeSocket) handler() transport.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h
}

func (s *fakeSocket) open() {
	s.mu.Lock()
	s.state = transport.StateOpen
	h := s.h
	s.mu.Unlock()
	if h != nil {
		h.OnOpen()
	}
}

func (s *fakeSocket) message(data string) {
	if h := s.handler(); h != nil {
		h.OnMessage([]byte(data))
	}
}

// fail reports an error followed by an abnormal close.
func (s *fakeSocket) fail(err error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.state = transport.StateClosed
	h := s.h
	s.mu.Unlock()
	if h != nil {
		h.OnError(err)
		h.OnClose(transport.CloseAbnormal, "")
	}
}

// drop reports a close initiated by the peer.
func (s *fakeSocket) drop(code int, reason string) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.state = transport.StateClosed
	h := s.h
	s.mu.Unlock()
	if h != nil {
		h.OnClose(code, reason)
	}
}

func (s *fakeSocket) sentMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *fakeSocket) closeCodes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.closes...)
}

func (s *fakeSocket) isDetached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

// waitSent polls until msg has been sent on the socket.
func (s *fakeSocket) waitSent(t *testing.T, msg string, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		for _, m := range s.sentMessages() {
			if m == msg {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("socket never sent %q, sent %v", msg, s.sentMessages())
}

type fakeDialer struct {
	mu      sync.Mutex
	sockets []*fakeSocket
	opened  chan *fakeSocket
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{opened: make(chan *fakeSocket, 100)}
}

func (d *fakeDialer) Open(address string, protocols []string, h transport.Handler) transport.Socket {
	s := &fakeSocket{address: address, protocols: protocols, h: h, orig: h}
	d.mu.Lock()
	d.sockets = append(d.sockets, s)
	d.mu.Unlock()
	d.opened <- s
	return s
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sockets)
}

func (d *fakeDialer) next(t *testing.T) *fakeSocket {
	t.Helper()
	select {
	case s := <-d.opened:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for the manager to open a socket")
		return nil
	}
}

// hookRecorder records every hook as a string event.
type hookRecorder struct {
	events chan string

	mu         sync.Mutex
	errs       []error
	closes     []int
	reconnects []int
	rtts       []time.Duration
	messages   []string
}

func newHookRecorder() *hookRecorder {
	return &hookRecorder{events: make(chan string, 1000)}
}

func (r *hookRecorder) OnOpen() { r.events <- "open" }

func (r *hookRecorder) OnMessage(data []byte) {
	r.mu.Lock()
	r.messages = append(r.messages, string(data))
	r.mu.Unlock()
	r.events <- "message"
}

func (r *hookRecorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.events <- "error"
}

func (r *hookRecorder) OnClose(code int, reason string) {
	r.mu.Lock()
	r.closes = append(r.closes, code)
	r.mu.Unlock()
	r.events <- "close"
}

func (r *hookRecorder) OnReconnect(attempt int) {
	r.mu.Lock()
	r.reconnects = append(r.reconnects, attempt)
	r.mu.Unlock()
	r.events <- "reconnect"
}

func (r *hookRecorder) OnLatency(rtt time.Duration) {
	r.mu.Lock()
	r.rtts = append(r.rtts, rtt)
	r.mu.Unlock()
	r.events <- "latency"
}

// waitFor discards events until one named kind arrives.
func (r *hookRecorder) waitFor(t *testing.T, kind string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	var seen []string
	for {
		select {
		case ev := <-r.events:
			if ev == kind {
				return
			}
			seen = append(seen, ev)
		case <-timeout:
			t.Fatalf("timeout waiting for %s hook, saw [%s]", kind, strings.Join(seen, " "))
		}
	}
}

func (r *hookRecorder) snapshot() (errs []error, closes, reconnects []int, rtts []time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...),
		append([]int(nil), r.closes...),
		append([]int(nil), r.reconnects...),
		append([]time.Duration(nil), r.rtts...)
}

func waitDone(t *testing.T, m *Manager) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("manager did not reach a terminal phase, phase = %v", m.Phase())
	}
}
