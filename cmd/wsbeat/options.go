package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/rickgao/ws-heartbeat/internal/config"
	"github.com/rickgao/ws-heartbeat/internal/connection"
	"github.com/rickgao/ws-heartbeat/internal/transport"
	"github.com/rickgao/ws-heartbeat/internal/version"
)

// managerOptions builds the options for one target.
func managerOptions(cfg config.ConnectionConfig, target string, id uuid.UUID) connection.Options {
	opts := connection.Options{
		Address:        target,
		SubProtocol:    cfg.SubProtocol,
		PingTimeout:    cfg.PingTimeout,
		PongTimeout:    cfg.PongTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
		ReconnectDelay: cfg.ReconnectDelay,
		PingMessage:    cfg.PingMessage,
		PongMessage:    cfg.PongMessage,
		RepeatLimit:    connection.DefaultOptions().RepeatLimit,
		SessionID:      id,
	}
	if cfg.RepeatLimit != nil {
		opts.RepeatLimit = *cfg.RepeatLimit
	}
	return opts
}

// transportConfig maps the transport section onto the dialer config.
func transportConfig(cfg config.TransportConfig) transport.Config {
	tc := transport.DefaultConfig()
	if cfg.HandshakeTimeout > 0 {
		tc.HandshakeTimeout = cfg.HandshakeTimeout
	}
	if cfg.WriteTimeout > 0 {
		tc.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.CloseTimeout > 0 {
		tc.CloseTimeout = cfg.CloseTimeout
	}
	tc.ReadLimit = cfg.ReadLimit

	tc.Header = http.Header{}
	tc.Header.Set("User-Agent", version.UserAgent())
	for k, v := range cfg.Headers {
		tc.Header.Set(k, v)
	}
	return tc
}

// newLogger builds the slog logger selected by the log section.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}
