package transport

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Errors
var (
	ErrNotOpen = errors.New("socket not open")
)

// Close codes (RFC 6455 section 7.4.1).
const (
	CloseNormal     = websocket.CloseNormalClosure
	CloseGoingAway  = websocket.CloseGoingAway
	CloseNoStatus   = websocket.CloseNoStatusReceived
	CloseAbnormal   = websocket.CloseAbnormalClosure
	CloseTLSFailure = websocket.CloseTLSHandshake
)

// ReadyState mirrors the WebSocket readyState attribute.
type ReadyState int32

const (
	StateConnecting ReadyState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler receives socket lifecycle events. Calls for one socket are
// made from a single goroutine and never overlap.
type Handler interface {
	OnOpen()
	OnMessage(data []byte)
	OnError(err error)
	OnClose(code int, reason string)
}

// Socket is one underlying connection attempt.
type Socket interface {
	// Send writes a text frame. Returns ErrNotOpen unless the socket is open.
	Send(data []byte) error

	// Close starts the closing handshake with the given code. The result
	// is reported through OnClose. Calling Close more than once is a no-op.
	Close(code int) error

	// ReadyState returns the current state.
	ReadyState() ReadyState

	// Detach stops all further handler calls.
	Detach()
}

// Dialer opens sockets. Open returns immediately; the handshake runs in
// the background.
type Dialer interface {
	Open(address string, protocols []string, h Handler) Socket
}

// Config configures the WebSocket dialer.
type Config struct {
	HandshakeTimeout time.Duration // Upper bound for the opening handshake
	WriteTimeout     time.Duration // Write deadline per frame
	CloseTimeout     time.Duration // Wait for the peer's close frame after we send ours
	ReadLimit        int64         // Max inbound message size (0 = unlimited)
	Header           http.Header   // Extra handshake headers
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		CloseTimeout:     3 * time.Second,
	}
}
