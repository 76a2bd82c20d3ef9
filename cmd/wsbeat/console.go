package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// consoleHandler logs lifecycle hooks and prints inbound payloads, one
// per line, prefixed with the target when more than one is running.
type consoleHandler struct {
	logger *slog.Logger
	out    io.Writer
	outMu  *sync.Mutex
	prefix string
	pong   string
}

func newConsoleHandler(logger *slog.Logger, out io.Writer, outMu *sync.Mutex, prefix, pong string) *consoleHandler {
	return &consoleHandler{
		logger: logger,
		out:    out,
		outMu:  outMu,
		prefix: prefix,
		pong:   pong,
	}
}

func (h *consoleHandler) OnOpen() {
	h.logger.Info("connected")
}

func (h *consoleHandler) OnMessage(data []byte) {
	// Heartbeat replies are reported as latency.
	if string(data) == h.pong {
		return
	}
	h.outMu.Lock()
	defer h.outMu.Unlock()
	if h.prefix != "" {
		fmt.Fprintf(h.out, "%s: %s\n", h.prefix, data)
		return
	}
	fmt.Fprintf(h.out, "%s\n", data)
}

func (h *consoleHandler) OnError(err error) {
	h.logger.Error("connection failed", "error", err)
}

func (h *consoleHandler) OnClose(code int, reason string) {
	h.logger.Info("disconnected", "code", code, "reason", reason)
}

func (h *consoleHandler) OnReconnect(attempt int) {
	h.logger.Warn("connection lost, retrying", "attempt", attempt)
}

func (h *consoleHandler) OnLatency(rtt time.Duration) {
	h.logger.Debug("heartbeat", "rtt", rtt)
}
