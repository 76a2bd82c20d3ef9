// echoserver is a WebSocket endpoint for trying wsbeat by hand. It answers
// the ping sentinel with the pong sentinel and echoes everything else.
//
// Usage:
//
//	echoserver --addr :8080 --drop-after 5
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/ws-heartbeat/internal/version"
)

// serverConfig controls how the server misbehaves.
type serverConfig struct {
	Ping      string
	Pong      string
	Echo      bool
	Silent    bool // never answer pings
	DropAfter int  // drop the TCP connection after this many messages; 0 never
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	ping := flag.String("ping", "ping", "ping sentinel")
	pong := flag.String("pong", "pong", "pong sentinel")
	echo := flag.Bool("echo", true, "echo non-ping messages")
	silent := flag.Bool("silent", false, "never answer pings")
	dropAfter := flag.Int("drop-after", 0, "drop connections after N messages")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg := serverConfig{
		Ping:      *ping,
		Pong:      *pong,
		Echo:      *echo,
		Silent:    *silent,
		DropAfter: *dropAfter,
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           newHandler(cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	go func() {
		logger.Info("echoserver listening", "addr", *addr, "version", version.Version)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
	logger.Info("echoserver stopped")
}

func newHandler(cfg serverConfig, logger *slog.Logger) http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	var connID atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		id := connID.Add(1)
		clog := logger.With("conn", id, "remote", r.RemoteAddr)
		clog.Info("client connected", "user_agent", r.UserAgent())

		serve(conn, cfg, clog)
	})
	return mux
}

// serve handles one client until it leaves or is dropped.
func serve(conn *websocket.Conn, cfg serverConfig, logger *slog.Logger) {
	count := 0
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				logger.Info("client closed", "code", ce.Code, "reason", ce.Text)
			} else {
				logger.Info("client gone", "error", err)
			}
			return
		}
		count++

		if cfg.DropAfter > 0 && count >= cfg.DropAfter {
			logger.Info("dropping connection", "messages", count)
			return
		}

		var reply []byte
		switch {
		case string(data) == cfg.Ping:
			if cfg.Silent {
				continue
			}
			reply = []byte(cfg.Pong)
		case cfg.Echo:
			reply = data
		default:
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(mt, reply); err != nil {
			logger.Warn("write failed", "error", err)
			return
		}
	}
}
