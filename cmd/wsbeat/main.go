// wsbeat keeps WebSocket connections alive with an application heartbeat
// and prints what arrives on them.
//
// Usage:
//
//	wsbeat --url ws://localhost:8080/ws
//	wsbeat --config configs/wsbeat.yaml --stdin
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/ws-heartbeat/internal/buffer"
	"github.com/rickgao/ws-heartbeat/internal/config"
	"github.com/rickgao/ws-heartbeat/internal/connection"
	"github.com/rickgao/ws-heartbeat/internal/database"
	"github.com/rickgao/ws-heartbeat/internal/journal"
	"github.com/rickgao/ws-heartbeat/internal/monitor"
	"github.com/rickgao/ws-heartbeat/internal/transport"
	"github.com/rickgao/ws-heartbeat/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file")
	url := flag.String("url", "", "target address, overrides connection.targets")
	stdin := flag.Bool("stdin", false, "send each stdin line to every connection")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("wsbeat " + version.String())
		return
	}

	cfg, err := loadConfig(*configPath, *url)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting wsbeat",
		"version", version.Version,
		"commit", version.Commit,
		"targets", len(cfg.Connection.Targets),
	)

	if err := run(cfg, *stdin, logger); err != nil {
		logger.Error("wsbeat stopped with errors", "error", err)
		os.Exit(1)
	}
	logger.Info("wsbeat stopped")
}

// loadConfig reads the config file when given, otherwise starts from
// defaults. A non-empty url replaces the configured targets.
func loadConfig(path, url string) (*config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.LoadWithDefaults(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg.ApplyDefaults()
	}

	if url != "" {
		cfg.Connection.Targets = []string{url}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func run(cfg *config.Config, pipeStdin bool, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Journal
	var (
		pool   *pgxpool.Pool
		writer *journal.Writer
	)
	if cfg.Journal.Enabled {
		var err error
		pool, writer, err = startJournal(ctx, cfg.Journal, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			writer.Stop(stopCtx)
		}()
	}

	// Stats monitor
	var sink monitor.Sink
	if writer != nil {
		sink = monitor.SinkFunc(func(s connection.Stats) {
			writer.Record(journal.StatsEvent(s))
		})
	}
	mon := monitor.New(monitor.Config{Interval: cfg.Monitor.Interval}, sink, logger.With("component", "monitor"))

	// Managers
	dialer := transport.NewWebSocketDialer(transportConfig(cfg.Transport), logger.With("component", "transport"))
	managers, err := startManagers(cfg.Connection, dialer, writer, logger)
	if err != nil {
		return err
	}

	sources := make([]monitor.StatsSource, 0, len(managers))
	for _, m := range managers {
		mon.Add(m)
		sources = append(sources, m)
	}
	if err := mon.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	// Health endpoint
	var healthServer *http.Server
	if cfg.Health.Port > 0 {
		var db pinger
		if pool != nil {
			db = pool
		}
		healthServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
			Handler:           createHealthHandler(sources, db, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting health server", "port", cfg.Health.Port)
			if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	if pipeStdin {
		go pumpLines(os.Stdin, managers, cfg.Transport.ReadLimit, logger)
	}

	// Every manager either gives up, closes normally, or is closed on shutdown.
	var g errgroup.Group
	for _, m := range managers {
		m := m
		g.Go(func() error {
			<-m.Done()
			if m.Phase() == connection.PhaseClosedFinal {
				return fmt.Errorf("%s: gave up after retries", m.Stats().Target)
			}
			return nil
		})
	}
	allDone := make(chan error, 1)
	go func() { allDone <- g.Wait() }()

	var runErr error
	select {
	case runErr = <-allDone:
		logger.Info("all connections finished")
	case <-ctx.Done():
		logger.Info("shutting down...")
		for _, m := range managers {
			m.Close(connection.CloseNormal)
		}
		select {
		case <-allDone:
		case <-time.After(shutdownTimeout):
			logger.Warn("connections did not close in time")
		}
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := mon.Stop(stopCtx); err != nil {
		logger.Warn("monitor stop failed", "error", err)
	}
	if healthServer != nil {
		healthServer.Shutdown(stopCtx)
	}

	return runErr
}

func startJournal(ctx context.Context, cfg config.JournalConfig, logger *slog.Logger) (*pgxpool.Pool, *journal.Writer, error) {
	logger.Info("connecting to journal database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect journal database: %w", err)
	}
	if err := journal.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	writer := journal.NewWriter(
		journal.WriterConfig{BatchSize: cfg.BatchSize, FlushInterval: cfg.FlushInterval},
		buffer.NewGrowableBuffer[journal.Event](cfg.BufferSize),
		pool,
		logger.With("component", "journal"),
	)
	if err := writer.Start(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("start journal writer: %w", err)
	}
	return pool, writer, nil
}

func startManagers(cfg config.ConnectionConfig, dialer transport.Dialer, writer *journal.Writer, logger *slog.Logger) ([]*connection.Manager, error) {
	var outMu sync.Mutex
	managers := make([]*connection.Manager, 0, len(cfg.Targets))

	for _, target := range cfg.Targets {
		id := uuid.New()
		hlog := logger.With("session", id.String(), "target", target)

		prefix := ""
		if len(cfg.Targets) > 1 {
			prefix = target
		}
		var handler connection.Handler = newConsoleHandler(hlog, os.Stdout, &outMu, prefix, cfg.PongMessage)
		if writer != nil {
			handler = journal.NewRecorder(handler, writer, id.String(), target)
		}

		m, err := connection.NewManager(managerOptions(cfg, target, id), dialer, handler, logger)
		if err != nil {
			for _, started := range managers {
				started.Close(connection.CloseNormal)
			}
			return nil, fmt.Errorf("start connection to %s: %w", target, err)
		}
		managers = append(managers, m)
	}
	return managers, nil
}

// defaultMaxLine bounds a stdin line when no read limit is configured.
const defaultMaxLine = 1 << 20

// newLineScanner splits r into lines of up to maxLine bytes.
func newLineScanner(r io.Reader, maxLine int64) *bufio.Scanner {
	if maxLine <= 0 {
		maxLine = defaultMaxLine
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), int(maxLine))
	return scanner
}

// pumpLines sends each line of r to every manager. Lines read while a
// connection is not open are dropped for that connection.
func pumpLines(r io.Reader, managers []*connection.Manager, maxLine int64, logger *slog.Logger) {
	scanner := newLineScanner(r, maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		for _, m := range managers {
			m.Send(append([]byte(nil), line...))
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("reading stdin failed", "error", err)
	}

	logger.Debug("stdin closed")
}
