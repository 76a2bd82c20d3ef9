package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/ws-heartbeat/internal/buffer"
	"github.com/rickgao/ws-heartbeat/internal/transport"
)

type eventKind uint8

const (
	evOpen eventKind = iota
	evMessage
	evError
	evClose
	evTimer
	evCloseRequest
)

// loopEvent is one unit of work for the event loop.
type loopEvent struct {
	kind eventKind
	gen  uint64 // socket generation, transport events only

	data   []byte
	err    error
	code   int
	reason string

	timer timerKind
	seq   uint64
}

// socketEvents forwards one socket's events into the mailbox, tagged with
// the generation the socket was created for.
type socketEvents struct {
	m   *Manager
	gen uint64
}

func (s socketEvents) OnOpen() {
	s.m.post(loopEvent{kind: evOpen, gen: s.gen})
}

func (s socketEvents) OnMessage(data []byte) {
	s.m.post(loopEvent{kind: evMessage, gen: s.gen, data: data})
}

func (s socketEvents) OnError(err error) {
	s.m.post(loopEvent{kind: evError, gen: s.gen, err: err})
}

func (s socketEvents) OnClose(code int, reason string) {
	s.m.post(loopEvent{kind: evClose, gen: s.gen, code: code, reason: reason})
}

type socketRef struct {
	sock transport.Socket
}

// Manager keeps one logical connection alive over a sequence of sockets.
type Manager struct {
	opts      Options
	dialer    transport.Dialer
	handler   Handler
	logger    *slog.Logger
	sessionID uuid.UUID

	mailbox *buffer.GrowableBuffer[loopEvent]
	done    chan struct{}

	// Owned by the event loop
	sock             transport.Socket
	sockClosed       bool // close event for sock already handled
	gen              uint64
	attempts         int
	phase            Phase
	reconnectLocked  bool
	forbidReconnect  bool
	terminalNotified bool
	gaveUp           bool // reconnect limit reached, the next close is final
	lastPingAt       time.Time
	connectTimer     *rearmTimer
	pingTimer        *rearmTimer
	pongTimer        *rearmTimer
	reconnectTimer   *rearmTimer

	// Read by Send and ReadyState from any goroutine
	current atomic.Pointer[socketRef]

	statsMu sync.RWMutex
	stats   Stats
}

// NewManager validates opts, applies defaults and starts the first
// connection attempt. A nil dialer uses the WebSocket transport with
// default settings; a nil handler ignores all hooks.
func NewManager(opts Options, dialer transport.Dialer, handler Handler, logger *slog.Logger) (*Manager, error) {
	if opts.Address == "" {
		return nil, ErrAddressRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dialer == nil {
		dialer = transport.NewWebSocketDialer(transport.DefaultConfig(), logger)
	}
	if handler == nil {
		handler = HandlerFuncs{}
	}

	id := opts.SessionID
	if id == uuid.Nil {
		id = uuid.New()
	}
	m := &Manager{
		opts:      opts.withDefaults(),
		dialer:    dialer,
		handler:   handler,
		logger:    logger.With("session", id.String(), "target", opts.Address),
		sessionID: id,
		mailbox:   buffer.NewGrowableBuffer[loopEvent](64),
		done:      make(chan struct{}),
		phase:     PhaseConnecting,
	}
	m.connectTimer = newRearmTimer(timerConnect, m.postTimer)
	m.pingTimer = newRearmTimer(timerPing, m.postTimer)
	m.pongTimer = newRearmTimer(timerPong, m.postTimer)
	m.reconnectTimer = newRearmTimer(timerReconnect, m.postTimer)
	m.stats = Stats{SessionID: id.String(), Target: opts.Address, Phase: PhaseConnecting}

	// The loop is not running yet, so this is the only goroutine touching state.
	m.openConnection()
	go m.run()

	return m, nil
}

// Send transmits data if the current socket is open and drops it otherwise.
func (m *Manager) Send(data []byte) {
	ref := m.current.Load()
	if ref == nil || ref.sock.ReadyState() != transport.StateOpen {
		return
	}
	if err := ref.sock.Send(data); err != nil {
		m.logger.Debug("send failed", "error", err)
	}
}

// Close shuts the manager down for good. code is sent in the close frame;
// CloseNoStatus sends none. The close hook fires once the transport
// confirms the close.
func (m *Manager) Close(code int) {
	m.post(loopEvent{kind: evCloseRequest, code: code})
}

// ReadyState mirrors the current socket. It is StateConnecting (0) when no
// socket exists and StateClosed once the manager is terminal.
func (m *Manager) ReadyState() transport.ReadyState {
	if m.Phase().Terminal() {
		return transport.StateClosed
	}
	ref := m.current.Load()
	if ref == nil {
		return transport.StateConnecting
	}
	return ref.sock.ReadyState()
}

// Phase returns the lifecycle phase.
func (m *Manager) Phase() Phase {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return m.stats.Phase
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	m.statsMu.RLock()
	s := m.stats
	m.statsMu.RUnlock()
	s.ReadyState = m.ReadyState()
	return s
}

// SessionID identifies this manager instance in logs and the journal.
func (m *Manager) SessionID() uuid.UUID {
	return m.sessionID
}

// Done is closed once the manager reaches a terminal phase.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the manager is terminal or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) post(ev loopEvent) {
	m.mailbox.Send(ev)
}

func (m *Manager) postTimer(kind timerKind, seq uint64) {
	m.post(loopEvent{kind: evTimer, timer: kind, seq: seq})
}

// run is the event loop.
func (m *Manager) run() {
	defer close(m.done)

	for {
		ev, ok := m.mailbox.Receive()
		if !ok {
			return
		}
		m.dispatch(ev)
		if m.phase.Terminal() {
			m.release()
			return
		}
	}
}

func (m *Manager) dispatch(ev loopEvent) {
	switch ev.kind {
	case evOpen, evMessage, evError, evClose:
		if ev.gen != m.gen {
			m.logger.Debug("dropping event from superseded socket", "generation", ev.gen)
			return
		}
	}

	switch ev.kind {
	case evOpen:
		m.handleOpen()
	case evMessage:
		m.handleMessage(ev.data)
	case evError:
		m.handleError(ev.err)
	case evClose:
		m.handleClose(ev.code, ev.reason)
	case evTimer:
		m.handleTimer(ev.timer, ev.seq)
	case evCloseRequest:
		m.logger.Info("close requested", "code", ev.code)
		m.shutdown(ev.code)
	}
}

// openConnection replaces the current socket with a fresh one.
func (m *Manager) openConnection() {
	if m.forbidReconnect {
		m.logger.Debug("reconnect forbidden, not opening")
		return
	}

	m.teardown()

	m.gen++
	m.sockClosed = false
	m.lastPingAt = time.Time{}
	var protocols []string
	if m.opts.SubProtocol != "" {
		protocols = []string{m.opts.SubProtocol}
	}
	m.sock = m.dialer.Open(m.opts.Address, protocols, socketEvents{m: m, gen: m.gen})
	m.current.Store(&socketRef{sock: m.sock})
	m.setPhase(PhaseConnecting)

	m.logger.Debug("opening socket", "generation", m.gen)
	m.connectTimer.Arm(m.opts.ConnectTimeout)
}

// teardown detaches the current socket before closing it so that none of
// its late events reach the manager. Heartbeat timers belong to the old
// socket and are disarmed with it.
func (m *Manager) teardown() {
	m.resetHeartbeat()
	if m.sock == nil {
		return
	}
	m.sock.Detach()
	m.sock.Close(transport.CloseNoStatus)
	m.sock = nil
	m.current.Store(nil)
}

func (m *Manager) handleOpen() {
	m.connectTimer.Cancel()
	m.attempts = 0
	m.setPhase(PhaseOpen)
	m.updateStats(func(s *Stats) {
		s.Attempts = 0
		s.Opens++
	})

	m.logger.Info("connection open")
	m.invoke("open", m.handler.OnOpen)
	m.heartbeatCheck()
}

func (m *Manager) handleMessage(data []byte) {
	m.updateStats(func(s *Stats) { s.MessagesIn++ })
	m.invoke("message", func() { m.handler.OnMessage(data) })

	// Any inbound traffic proves liveness.
	m.heartbeatCheck()

	if string(data) == m.opts.PongMessage && !m.lastPingAt.IsZero() {
		m.reportLatency(time.Since(m.lastPingAt))
	}
}

func (m *Manager) handleError(err error) {
	// An error before open is a failed connect.
	m.connectTimer.Cancel()
	m.logger.Warn("websocket error", "error", err)

	if !m.attemptReconnect() {
		m.notifyError(fmt.Errorf("%w: %w", ErrTransport, err))
	}
}

func (m *Manager) handleClose(code int, reason string) {
	m.sockClosed = true
	m.connectTimer.Cancel()

	if m.gaveUp {
		m.forbidReconnect = true
		m.resetHeartbeat()
		m.logger.Info("connection closed after giving up", "code", code, "reason", reason)
		if !m.terminalNotified {
			m.notifyError(&CloseError{Code: code, Reason: reason})
		}
		m.setPhase(PhaseClosedFinal)
		return
	}

	if IsNormalClose(code) {
		m.forbidReconnect = true
		m.resetHeartbeat()
		m.terminalNotified = true
		m.logger.Info("connection closed", "code", code, "reason", reason)
		m.invoke("close", func() { m.handler.OnClose(code, reason) })
		m.setPhase(PhaseClosedNormal)
		return
	}

	m.logger.Warn("abnormal closure", "code", code, "reason", reason)
	if m.attemptReconnect() {
		return
	}
	if !m.terminalNotified {
		m.notifyError(&CloseError{Code: code, Reason: reason})
	}
	m.setPhase(PhaseClosedFinal)
}

func (m *Manager) handleTimer(kind timerKind, seq uint64) {
	t := m.timerFor(kind)
	if !t.fired(seq) {
		return
	}

	switch kind {
	case timerConnect:
		m.logger.Warn("connect timeout", "timeout", m.opts.ConnectTimeout)
		if !m.attemptReconnect() {
			m.notifyError(ErrConnectTimeout)
		}
	case timerPing:
		m.sendPing()
	case timerPong:
		m.logger.Warn("pong timeout", "timeout", m.opts.PongTimeout)
		if !m.attemptReconnect() {
			m.notifyError(ErrLivenessTimeout)
		}
	case timerReconnect:
		m.openConnection()
		m.reconnectLocked = false
	}
}

func (m *Manager) timerFor(kind timerKind) *rearmTimer {
	switch kind {
	case timerConnect:
		return m.connectTimer
	case timerPing:
		return m.pingTimer
	case timerPong:
		return m.pongTimer
	default:
		return m.reconnectTimer
	}
}

// attemptReconnect decides whether to retry and schedules the retry.
// It returns false when the failure should be surfaced to the caller.
// The lock is checked before the limit on purpose: a pending final retry
// must absorb the error and close pair of the socket it replaces.
func (m *Manager) attemptReconnect() bool {
	// A scheduled retry absorbs further failure signals from the same
	// dying socket.
	if m.reconnectLocked {
		return true
	}
	if m.opts.RepeatLimit != Unlimited && m.attempts >= m.opts.RepeatLimit {
		m.logger.Warn("reconnect limit reached", "attempts", m.attempts, "limit", m.opts.RepeatLimit)
		m.gaveUp = true
		m.shutdown(transport.CloseNoStatus)
		return false
	}
	if m.forbidReconnect {
		return false
	}

	m.reconnectLocked = true
	m.resetHeartbeat()
	m.attempts++
	m.setPhase(PhaseReconnecting)
	m.updateStats(func(s *Stats) {
		s.Attempts = m.attempts
		s.Reconnects++
	})

	m.logger.Info("reconnecting",
		"attempt", m.attempts,
		"limit", m.opts.RepeatLimit,
		"delay", m.opts.ReconnectDelay,
	)
	attempt := m.attempts
	m.invoke("reconnect", func() { m.handler.OnReconnect(attempt) })

	m.reconnectTimer.Arm(m.opts.ReconnectDelay)
	return true
}

// shutdown forbids further reconnects and closes the current socket. If
// the socket's close was already handled, a close event is synthesized so
// the normal close path still runs.
func (m *Manager) shutdown(code int) {
	m.forbidReconnect = true
	m.resetHeartbeat()

	if m.sock == nil || m.sockClosed {
		m.post(loopEvent{kind: evClose, gen: m.gen, code: code})
		return
	}
	if err := m.sock.Close(code); err != nil {
		m.logger.Debug("close failed", "error", err)
	}
}

func (m *Manager) resetHeartbeat() {
	m.pingTimer.Cancel()
	m.pongTimer.Cancel()
}

func (m *Manager) startHeartbeat() {
	if m.forbidReconnect {
		return
	}
	m.pingTimer.Arm(m.opts.PingTimeout)
}

func (m *Manager) heartbeatCheck() {
	m.resetHeartbeat()
	m.startHeartbeat()
}

func (m *Manager) sendPing() {
	if m.sock != nil && m.sock.ReadyState() == transport.StateOpen {
		if err := m.sock.Send([]byte(m.opts.PingMessage)); err != nil {
			m.logger.Debug("ping send failed", "error", err)
		}
	}
	m.lastPingAt = time.Now()
	m.updateStats(func(s *Stats) { s.PingsSent++ })
	m.pongTimer.Arm(m.opts.PongTimeout)
}

func (m *Manager) reportLatency(rtt time.Duration) {
	m.logger.Debug("pong", "rtt", rtt)
	m.updateStats(func(s *Stats) {
		s.LastRTT = rtt
		s.LastPongAt = time.Now()
	})
	if lh, ok := m.handler.(LatencyHandler); ok {
		m.invoke("latency", func() { lh.OnLatency(rtt) })
	}
}

func (m *Manager) notifyError(err error) {
	m.terminalNotified = true
	m.logger.Error("giving up", "error", err)
	m.invoke("error", func() { m.handler.OnError(err) })
}

// release drops every resource once the manager is terminal.
func (m *Manager) release() {
	m.connectTimer.Cancel()
	m.pingTimer.Cancel()
	m.pongTimer.Cancel()
	m.reconnectTimer.Cancel()

	if m.sock != nil {
		m.sock.Detach()
		m.sock = nil
	}
	m.current.Store(nil)
	m.mailbox.Close()

	m.logger.Info("connection manager stopped", "phase", m.phase)
}

func (m *Manager) setPhase(p Phase) {
	m.phase = p
	m.updateStats(func(s *Stats) { s.Phase = p })
}

func (m *Manager) updateStats(fn func(*Stats)) {
	m.statsMu.Lock()
	fn(&m.stats)
	m.statsMu.Unlock()
}

// invoke runs a caller hook, containing any panic.
func (m *Manager) invoke(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("hook panicked", "hook", hook, "panic", r)
		}
	}()
	fn()
}
