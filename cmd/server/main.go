// Command server is the entry point for the Reversi match server: it
// loads configuration, opens the logger, starts the coordinator, and
// serves the WebSocket/HTTP listener until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/itsakeyfut/reversi/internal/conf"
	"github.com/itsakeyfut/reversi/internal/coordinator"
	"github.com/itsakeyfut/reversi/internal/logging"
	"github.com/itsakeyfut/reversi/internal/wsserver"
)

// Default file name for the configuration file.
const defConfName = "server.toml"

func main() {
	confFile := flag.String("conf", defConfName, "Name of configuration file")
	flag.Parse()

	cfg, err := conf.Load(*confFile)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	logger, err := logging.Open(cfg.Log.File, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord := coordinator.New(cfg, logger, uuid.NewString)
	go coord.Run(ctx)

	handler := wsserver.New(coord, logger, cfg)
	srv := &http.Server{Addr: cfg.Net.Listen, Handler: handler}

	go func() {
		logger.Info("listening on %s", cfg.Net.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listener failed: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		logger.Info("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.ClientTimeout())
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	cancel()
}
