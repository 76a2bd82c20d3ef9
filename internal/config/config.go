package config

import "time"

// Config is the root configuration for a wsbeat instance.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Transport  TransportConfig  `yaml:"transport"`
	Journal    JournalConfig    `yaml:"journal"`
	Log        LogConfig        `yaml:"log"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Health     HealthConfig     `yaml:"health"`
}

// ConnectionConfig holds connection manager settings shared by all targets.
type ConnectionConfig struct {
	Targets        []string      `yaml:"targets"`
	SubProtocol    string        `yaml:"sub_protocol"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingMessage    string        `yaml:"ping_message"`
	PongMessage    string        `yaml:"pong_message"`
	RepeatLimit    *int          `yaml:"repeat_limit"` // -1 retries forever, 0 never retries
}

// TransportConfig holds WebSocket dialer settings.
type TransportConfig struct {
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration     `yaml:"write_timeout"`
	CloseTimeout     time.Duration     `yaml:"close_timeout"`
	ReadLimit        int64             `yaml:"read_limit"`
	Headers          map[string]string `yaml:"headers"`
}

// JournalConfig holds the connection event journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// MonitorConfig holds stats sampler settings.
type MonitorConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// HealthConfig holds the health endpoint settings. Port 0 disables it.
type HealthConfig struct {
	Port int `yaml:"port"`
}
