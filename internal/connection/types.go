package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/ws-heartbeat/internal/transport"
)

// Errors
var (
	ErrAddressRequired = errors.New("address is required")
	ErrConnectTimeout  = errors.New("websocket connect timeout")
	ErrLivenessTimeout = errors.New("websocket pong timeout")
	ErrTransport       = errors.New("transport error")
)

// Close codes accepted by Manager.Close.
const (
	CloseNormal   = transport.CloseNormal
	CloseNoStatus = transport.CloseNoStatus
)

// CloseError reports an abnormal closure that was not retried.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("websocket closed abnormally (code %d)", e.Code)
	}
	return fmt.Sprintf("websocket closed abnormally (code %d): %s", e.Code, e.Reason)
}

// IsNormalClose reports whether a close code ends the manager for good.
func IsNormalClose(code int) bool {
	return code == transport.CloseNormal || code == transport.CloseNoStatus
}

// Unlimited disables the reconnect limit.
const Unlimited = -1

// Options configures a Manager.
type Options struct {
	Address        string        // Target endpoint (required)
	SubProtocol    string        // Optional WebSocket subprotocol
	PingTimeout    time.Duration // Silence before a ping is sent
	PongTimeout    time.Duration // Wait for any message after a ping
	ConnectTimeout time.Duration // Wait for the open event
	ReconnectDelay time.Duration // Delay before each retry
	PingMessage    string        // Ping sentinel
	PongMessage    string        // Pong sentinel, compared exactly

	// RepeatLimit caps consecutive reconnect attempts. 0 never retries,
	// Unlimited retries forever. Start from DefaultOptions to get 2.
	RepeatLimit int

	// SessionID tags logs and journal rows. A random one is generated
	// when left as uuid.Nil.
	SessionID uuid.UUID
}

// DefaultOptions returns sensible defaults. Address must still be set.
func DefaultOptions() Options {
	return Options{
		PingTimeout:    15 * time.Second,
		PongTimeout:    6 * time.Second,
		ConnectTimeout: 4 * time.Second,
		ReconnectDelay: 2 * time.Second,
		PingMessage:    "ping",
		PongMessage:    "pong",
		RepeatLimit:    2,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PingTimeout <= 0 {
		o.PingTimeout = def.PingTimeout
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = def.PongTimeout
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = def.ReconnectDelay
	}
	if o.PingMessage == "" {
		o.PingMessage = def.PingMessage
	}
	if o.PongMessage == "" {
		o.PongMessage = def.PongMessage
	}
	if o.RepeatLimit < Unlimited {
		o.RepeatLimit = Unlimited
	}
	return o
}

// Phase is the manager's lifecycle phase.
type Phase uint8

const (
	PhaseConnecting Phase = iota
	PhaseOpen
	PhaseReconnecting
	PhaseClosedNormal
	PhaseClosedFinal
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseOpen:
		return "open"
	case PhaseReconnecting:
		return "reconnecting"
	case PhaseClosedNormal:
		return "closed_normal"
	case PhaseClosedFinal:
		return "closed_final"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase is final.
func (p Phase) Terminal() bool {
	return p == PhaseClosedNormal || p == PhaseClosedFinal
}

// Stats is a point-in-time view of a manager.
type Stats struct {
	SessionID  string
	Target     string
	Phase      Phase
	ReadyState transport.ReadyState
	Attempts   int   // Consecutive attempts since the last open
	Reconnects int64 // Total reconnect attempts
	Opens      int64
	MessagesIn int64
	PingsSent  int64
	LastRTT    time.Duration
	LastPongAt time.Time
}
