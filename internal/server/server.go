// Package server assembles liteDB's process-global pieces — the primary
// keyspace, the AOF, the listening socket, and the event loop — into a
// single explicit value an operator constructs once at startup. The
// original C server keeps the primary map, the AOF handle, the connection
// table, and the listener fd as process globals; here they are fields the
// event loop and engine are handed rather than symbols they reach for.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dreamware/litedb/internal/aof"
	"github.com/dreamware/litedb/internal/conn"
	"github.com/dreamware/litedb/internal/engine"
	"github.com/dreamware/litedb/internal/eventloop"
	"github.com/dreamware/litedb/internal/protocol"
)

// flushInterval is how often the background flusher goroutine pushes
// buffered AOF writes out to the OS.
const flushInterval = 5 * time.Second

// Config is every knob the runner's CLI flag surface exposes: the listen
// port, the AOF path, the debug/SO_REUSEADDR switch, and the metrics
// listen address (empty disables the metrics listener).
type Config struct {
	Port        int
	AOFPath     string
	Debug       bool
	MetricsAddr string
}

// Server owns everything the event loop needs to run: the engine (and
// through it the keyspace and the AOF handle), and the loop itself.
type Server struct {
	cfg    Config
	log    *zap.Logger
	aof    *aof.AOF
	engine *engine.Engine
	loop   *eventloop.Loop
	metric *http.Server

	flusherStop chan struct{}
}

// New opens the AOF, replays it into a fresh keyspace, switches it to
// append mode, and wires an event loop bound to cfg.Port. It does not
// start accepting connections or flushing — call Run for that.
func New(cfg Config, log *zap.Logger) (*Server, error) {
	a, err := aof.Open(cfg.AOFPath, aof.ModeRead)
	if err != nil {
		return nil, fmt.Errorf("server: open aof: %w", err)
	}

	eng := engine.New(a, log)
	replayed, err := replay(a, eng)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("server: replay aof: %w", err)
	}
	log.Info("replayed aof", zap.Int("commands", replayed))

	if err := a.SwitchMode(aof.ModeAppend); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("server: switch aof to append: %w", err)
	}

	handler := conn.Handler(func(req protocol.Request) protocol.Response {
		return eng.Execute(req)
	})

	loop, err := eventloop.New(cfg.Port, cfg.Debug, handler, log)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("server: new event loop: %w", err)
	}

	var metricSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	return &Server{
		cfg:         cfg,
		log:         log,
		aof:         a,
		engine:      eng,
		loop:        loop,
		metric:      metricSrv,
		flusherStop: make(chan struct{}),
	}, nil
}

// replay reads every line of a (opened in ModeRead) and dispatches it
// through eng.Replay, which never touches the AOF or produces a client
// response: replayed writes must not re-append themselves to the log
// they came from.
func replay(a *aof.AOF, eng *engine.Engine) (int, error) {
	count := 0
	for {
		line, ok, err := a.ReadLine()
		if err != nil {
			return count, err
		}
		if !ok {
			return count, nil
		}
		req, err := protocol.ParseRequest([]byte(line))
		if err != nil {
			return count, fmt.Errorf("malformed aof line %q: %w", line, err)
		}
		if req.Name == "" {
			continue
		}
		eng.Replay(req)
		count++
	}
}

// Run starts the AOF flusher goroutine and blocks in the event loop until
// stop is closed, at which point both are torn down: the event loop drops
// every connection and closes the listener, the metrics listener (if any)
// is shut down, the flusher is stopped, and the AOF is flushed and closed.
func (s *Server) Run(stop <-chan struct{}) error {
	go s.aof.RunFlusher(flushInterval, s.flusherStop)

	if s.metric != nil {
		go func() {
			s.log.Info("metrics listening", zap.String("addr", s.metric.Addr))
			if err := s.metric.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Warn("metrics server exited", zap.Error(err))
			}
		}()
	}

	err := s.loop.Run(stop)

	if s.metric != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutErr := s.metric.Shutdown(ctx); shutErr != nil {
			s.log.Warn("metrics server shutdown error", zap.Error(shutErr))
		}
	}

	close(s.flusherStop)
	if closeErr := s.aof.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("server: close aof: %w", closeErr)
	}
	return err
}
