// Command litedb-server runs liteDB's single-node key-value server: a
// non-blocking TCP listener driven by a single-threaded epoll event loop,
// durable through an append-only log replayed at startup.
//
// Configuration is deliberately minimal: a listen port, an AOF path, and a
// debug flag enabling SO_REUSEADDR — stdlib flag is enough surface for
// that, so no third-party CLI library is pulled in.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dreamware/litedb/internal/logging"
	"github.com/dreamware/litedb/internal/server"
)

func main() {
	port := flag.Int("port", 9255, "TCP port to listen on")
	aofPath := flag.String("aof", "litedb.aof", "path to the append-only log file")
	debug := flag.Bool("d", false, "enable debug mode (SO_REUSEADDR, verbose logging)")
	flag.BoolVar(debug, "debug", *debug, "alias for -d")
	metricsAddr := flag.String("metrics-listen-address", "", "address to serve /metrics on (empty disables it)")
	flag.Parse()

	zlog, err := logging.New(*debug)
	if err != nil {
		log.Fatalf("litedb-server: logging setup: %v", err)
	}
	defer zlog.Sync()

	srv, err := server.New(server.Config{
		Port:        *port,
		AOFPath:     *aofPath,
		Debug:       *debug,
		MetricsAddr: *metricsAddr,
	}, zlog)
	if err != nil {
		zlog.Fatal("server setup failed", zap.Error(err))
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		zlog.Info("shutdown signal received")
		close(stop)
	}()

	zlog.Info("litedb-server listening", zap.Int("port", *port))
	if err := srv.Run(stop); err != nil {
		zlog.Fatal("server exited with error", zap.Error(err))
	}
	zlog.Info("litedb-server stopped")
}
