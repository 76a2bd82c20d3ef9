package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPingTimeout      = 15 * time.Second
	DefaultPongTimeout      = 6 * time.Second
	DefaultConnectTimeout   = 4 * time.Second
	DefaultReconnectDelay   = 2 * time.Second
	DefaultPingMessage      = "ping"
	DefaultPongMessage      = "pong"
	DefaultRepeatLimit      = 2
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultCloseTimeout     = 3 * time.Second
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultBatchSize        = 500
	DefaultFlushInterval    = 1 * time.Second
	DefaultBufferSize       = 1024
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultMonitorInterval  = 30 * time.Second
)

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	// Connection defaults
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.PongTimeout == 0 {
		c.Connection.PongTimeout = DefaultPongTimeout
	}
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.ReconnectDelay == 0 {
		c.Connection.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Connection.PingMessage == "" {
		c.Connection.PingMessage = DefaultPingMessage
	}
	if c.Connection.PongMessage == "" {
		c.Connection.PongMessage = DefaultPongMessage
	}
	if c.Connection.RepeatLimit == nil {
		limit := DefaultRepeatLimit
		c.Connection.RepeatLimit = &limit
	}

	// Transport defaults
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.CloseTimeout == 0 {
		c.Transport.CloseTimeout = DefaultCloseTimeout
	}

	// Journal defaults
	applyDBDefaults(&c.Journal.Database)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = DefaultMonitorInterval
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
