package connection

import "time"

// Handler receives lifecycle hooks. Hooks run on the manager's event loop,
// one at a time, and may call Send or Close.
type Handler interface {
	OnOpen()
	OnMessage(data []byte)
	OnError(err error)
	OnClose(code int, reason string)
	OnReconnect(attempt int)
}

// LatencyHandler is implemented by handlers that want heartbeat
// round-trip samples.
type LatencyHandler interface {
	OnLatency(rtt time.Duration)
}

// HandlerFuncs adapts optional functions to Handler. Nil fields are no-ops.
type HandlerFuncs struct {
	Open      func()
	Message   func(data []byte)
	Error     func(err error)
	Close     func(code int, reason string)
	Reconnect func(attempt int)
	Latency   func(rtt time.Duration)
}

func (h HandlerFuncs) OnOpen() {
	if h.Open != nil {
		h.Open()
	}
}

func (h HandlerFuncs) OnMessage(data []byte) {
	if h.Message != nil {
		h.Message(data)
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

func (h HandlerFuncs) OnClose(code int, reason string) {
	if h.Close != nil {
		h.Close(code, reason)
	}
}

func (h HandlerFuncs) OnReconnect(attempt int) {
	if h.Reconnect != nil {
		h.Reconnect(attempt)
	}
}

func (h HandlerFuncs) OnLatency(rtt time.Duration) {
	if h.Latency != nil {
		h.Latency(rtt)
	}
}
