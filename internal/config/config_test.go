package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
connection:
  targets:
    - wss://feed.example.com/stream
    - ws://localhost:8080/ws
  sub_protocol: beat.v1
  ping_timeout: 10s
  repeat_limit: 5
transport:
  headers:
    X-Client: wsbeat
log:
  format: json
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Connection.Targets) != 2 || cfg.Connection.Targets[0] != "wss://feed.example.com/stream" {
		t.Errorf("Connection.Targets = %v", cfg.Connection.Targets)
	}
	if cfg.Connection.SubProtocol != "beat.v1" {
		t.Errorf("Connection.SubProtocol = %q, want %q", cfg.Connection.SubProtocol, "beat.v1")
	}
	if cfg.Connection.PingTimeout != 10*time.Second {
		t.Errorf("Connection.PingTimeout = %v, want 10s", cfg.Connection.PingTimeout)
	}
	if cfg.Connection.RepeatLimit == nil || *cfg.Connection.RepeatLimit != 5 {
		t.Errorf("Connection.RepeatLimit = %v, want 5", cfg.Connection.RepeatLimit)
	}
	if cfg.Transport.Headers["X-Client"] != "wsbeat" {
		t.Errorf("Transport.Headers = %v", cfg.Transport.Headers)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_TARGET", "ws://localhost:9000/ws")

	yaml := `
connection:
  targets: [${TEST_TARGET}]
journal:
  enabled: true
  database:
    host: localhost
    name: beats
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Journal.Database.Password != "secret123" {
		t.Errorf("Journal.Database.Password = %q, want %q", cfg.Journal.Database.Password, "secret123")
	}
	if cfg.Connection.Targets[0] != "ws://localhost:9000/ws" {
		t.Errorf("Connection.Targets[0] = %q", cfg.Connection.Targets[0])
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("connection: [unterminated"))
	if err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
connection:
  targets: [ws://localhost:8080/ws]
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Connection.PingTimeout != DefaultPingTimeout {
		t.Errorf("Connection.PingTimeout = %v, want default %v", cfg.Connection.PingTimeout, DefaultPingTimeout)
	}
	if cfg.Connection.PongTimeout != DefaultPongTimeout {
		t.Errorf("Connection.PongTimeout = %v, want default %v", cfg.Connection.PongTimeout, DefaultPongTimeout)
	}
	if cfg.Connection.PingMessage != DefaultPingMessage || cfg.Connection.PongMessage != DefaultPongMessage {
		t.Errorf("sentinels = %q/%q", cfg.Connection.PingMessage, cfg.Connection.PongMessage)
	}
	if cfg.Connection.RepeatLimit == nil || *cfg.Connection.RepeatLimit != DefaultRepeatLimit {
		t.Errorf("Connection.RepeatLimit = %v, want default %d", cfg.Connection.RepeatLimit, DefaultRepeatLimit)
	}
	if cfg.Transport.CloseTimeout != DefaultCloseTimeout {
		t.Errorf("Transport.CloseTimeout = %v, want default %v", cfg.Transport.CloseTimeout, DefaultCloseTimeout)
	}
	if cfg.Journal.Database.Port != DefaultDBPort {
		t.Errorf("Journal.Database.Port = %d, want default %d", cfg.Journal.Database.Port, DefaultDBPort)
	}
	if cfg.Journal.BatchSize != DefaultBatchSize {
		t.Errorf("Journal.BatchSize = %d, want default %d", cfg.Journal.BatchSize, DefaultBatchSize)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Monitor.Interval != DefaultMonitorInterval {
		t.Errorf("Monitor.Interval = %v, want default %v", cfg.Monitor.Interval, DefaultMonitorInterval)
	}
}

func TestLoadWithDefaults_ExplicitZeroRepeatLimit(t *testing.T) {
	yaml := `
connection:
  targets: [ws://localhost:8080/ws]
  repeat_limit: 0
`
	cfg, err := LoadWithDefaults(writeTempFile(t, yaml))
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Connection.RepeatLimit == nil || *cfg.Connection.RepeatLimit != 0 {
		t.Errorf("Connection.RepeatLimit = %v, want explicit 0 kept", cfg.Connection.RepeatLimit)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "connection:\n  targets: [http://localhost]\n")
	_, err := LoadAndValidate(path)
	if err == nil || !strings.Contains(err.Error(), "validate config") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func validConfig() Config {
	cfg := Config{
		Connection: ConnectionConfig{Targets: []string{"ws://localhost:8080/ws"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	intPtr := func(v int) *int { return &v }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing targets",
			mutate:  func(c *Config) { c.Connection.Targets = nil },
			wantErr: "connection.targets requires at least one address",
		},
		{
			name:    "bad scheme",
			mutate:  func(c *Config) { c.Connection.Targets = []string{"http://localhost"} },
			wantErr: `connection.targets[0]: scheme must be ws or wss, got "http"`,
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Connection.Targets = []string{"ws://"} },
			wantErr: "connection.targets[0]: host is required",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Connection.PongTimeout = -time.Second },
			wantErr: "connection timeouts must not be negative",
		},
		{
			name:    "repeat limit below unlimited",
			mutate:  func(c *Config) { c.Connection.RepeatLimit = intPtr(-2) },
			wantErr: "connection.repeat_limit must be >= -1, got -2",
		},
		{
			name:    "identical sentinels",
			mutate:  func(c *Config) { c.Connection.PongMessage = "ping" },
			wantErr: "connection.ping_message and connection.pong_message must differ",
		},
		{
			name:    "journal missing host",
			mutate:  func(c *Config) { c.Journal.Enabled = true },
			wantErr: "journal.database.host is required",
		},
		{
			name: "journal min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 2, MinConns: 5}
			},
			wantErr: "journal.database.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name:    "journal disabled skips database",
			mutate:  func(c *Config) { c.Journal.Database = DBConfig{} },
			wantErr: "",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
		{
			name:    "health port out of range",
			mutate:  func(c *Config) { c.Health.Port = 70000 },
			wantErr: "health.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "unlimited retries",
			mutate:  func(c *Config) { c.Connection.RepeatLimit = intPtr(-1) },
			wantErr: "",
		},
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestLogConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := LogConfig{Level: tt.level}.SlogLevel()
			if (err != nil) != tt.wantErr {
				t.Fatalf("SlogLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
