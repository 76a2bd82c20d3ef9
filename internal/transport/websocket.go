package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// webSocketDialer implements Dialer with gorilla/websocket.
type webSocketDialer struct {
	cfg    Config
	logger *slog.Logger
}

// NewWebSocketDialer creates a Dialer for ws:// and wss:// addresses.
func NewWebSocketDialer(cfg Config, logger *slog.Logger) Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = def.CloseTimeout
	}
	return &webSocketDialer{cfg: cfg, logger: logger}
}

// Open starts dialing address in the background and returns the socket.
func (d *webSocketDialer) Open(address string, protocols []string, h Handler) Socket {
	ctx, cancel := context.WithCancel(context.Background())
	s := &wsSocket{
		cfg:        d.cfg,
		logger:     d.logger.With("url", address),
		cancelDial: cancel,
	}
	s.handler.Store(&handlerRef{h: h})
	go s.run(ctx, address, protocols)
	return s
}

type handlerRef struct {
	h Handler
}

// wsSocket is a single WebSocket connection attempt.
type wsSocket struct {
	cfg    Config
	logger *slog.Logger

	handler atomic.Pointer[handlerRef]
	state   atomic.Int32

	// Guarded by mu
	mu             sync.Mutex
	conn           *websocket.Conn
	closeRequested bool
	closeCode      int

	cancelDial context.CancelFunc
	writeMu    sync.Mutex
	finishOnce sync.Once
}

// Send writes a text frame.
func (s *wsSocket) Send(data []byte) error {
	if s.ReadyState() != StateOpen {
		return ErrNotOpen
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close starts the closing handshake. While dialing, the dial is
// cancelled and code is reported as-is.
func (s *wsSocket) Close(code int) error {
	s.mu.Lock()
	if s.closeRequested || s.ReadyState() == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.closeRequested = true
	s.closeCode = code
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		s.cancelDial()
		return nil
	}

	s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))

	deadline := time.Now().Add(s.cfg.WriteTimeout)
	if err := conn.WriteControl(websocket.CloseMessage, closePayload(code), deadline); err != nil {
		s.logger.Debug("failed to send close frame", "error", err)
		return conn.Close()
	}

	// Bound the wait for the peer's echo; the read loop reports the result.
	return conn.SetReadDeadline(time.Now().Add(s.cfg.CloseTimeout))
}

// ReadyState returns the current state.
func (s *wsSocket) ReadyState() ReadyState {
	return ReadyState(s.state.Load())
}

// Detach stops handler calls.
func (s *wsSocket) Detach() {
	s.handler.Store(nil)
}

func (s *wsSocket) run(ctx context.Context, address string, protocols []string) {
	defer s.cancelDial()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		Subprotocols:     protocols,
	}

	conn, resp, err := dialer.DialContext(ctx, address, s.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if code, ok := s.requestedClose(); ok {
			s.finish(code, "")
			return
		}
		s.emitError(fmt.Errorf("dial %s: %w", address, err))
		s.finish(CloseAbnormal, "")
		return
	}

	s.mu.Lock()
	if s.closeRequested {
		code := s.closeCode
		s.mu.Unlock()
		conn.Close()
		s.finish(code, "")
		return
	}
	s.conn = conn
	s.state.Store(int32(StateOpen))
	s.mu.Unlock()

	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}

	// Answer server pings
	conn.SetPingHandler(func(data string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.cfg.WriteTimeout))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			s.logger.Debug("failed to answer ping", "error", err)
		}
		return nil
	})

	s.logger.Debug("websocket connected", "subprotocol", conn.Subprotocol())
	if h := s.current(); h != nil {
		h.OnOpen()
	}

	s.readLoop(conn)
}

// readLoop delivers inbound frames until the connection ends.
func (s *wsSocket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			s.handleReadError(err)
			return
		}
		if h := s.current(); h != nil {
			h.OnMessage(data)
		}
	}
}

func (s *wsSocket) handleReadError(err error) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		s.finish(ce.Code, ce.Text)
		return
	}
	// We asked to close and the peer went away or never echoed.
	if code, ok := s.requestedClose(); ok {
		s.finish(code, "")
		return
	}
	s.emitError(fmt.Errorf("read: %w", err))
	s.finish(CloseAbnormal, "")
}

func (s *wsSocket) requestedClose() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCode, s.closeRequested
}

func (s *wsSocket) emitError(err error) {
	s.logger.Debug("websocket error", "error", err)
	if h := s.current(); h != nil {
		h.OnError(err)
	}
}

// finish reports the close exactly once.
func (s *wsSocket) finish(code int, reason string) {
	s.finishOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.logger.Debug("websocket closed", "code", code, "reason", reason)
		if h := s.current(); h != nil {
			h.OnClose(code, reason)
		}
	})
}

func (s *wsSocket) current() Handler {
	if ref := s.handler.Load(); ref != nil {
		return ref.h
	}
	return nil
}

// closePayload builds the close frame body. Codes that must not appear
// on the wire produce an empty body, which the peer reads as 1005.
func closePayload(code int) []byte {
	switch code {
	case CloseNoStatus, CloseAbnormal, CloseTLSFailure:
		return []byte{}
	}
	if code < 1000 || code > 4999 {
		return []byte{}
	}
	return websocket.FormatCloseMessage(code, "")
}
