package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tidewave-oss/rtmp-ingest/internal/logger"
	"github.com/tidewave-oss/rtmp-ingest/internal/metrics"
	srv "github.com/tidewave-oss/rtmp-ingest/internal/rtmp/server"
)

func main() {
	cfg, err := parseCLI(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger.Init()
	logger.SetFormat(cfg.LogFormat)
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.LogLevel)
	}
	log := logger.Logger().With("component", "cli")

	server := srv.New(srv.Config{
		ListenAddr:      cfg.ListenAddr,
		ChunkSize:       cfg.ChunkSize,
		WindowAckSize:   cfg.WindowAckSize,
		LogLevel:        cfg.LogLevel,
		HookScripts:     cfg.HookScripts,
		HookWebhooks:    cfg.HookWebhooks,
		HookStdioFormat: cfg.HookStdioFormat,
		HookTimeout:     cfg.HookTimeout,
		HookConcurrency: cfg.HookConcurrency,
		MetricsAddr:     cfg.MetricsAddr,
	})

	if err := server.Start(); err != nil {
		log.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	log.Info("server started", "addr", server.Addr().String(), "version", version)

	// Set up signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, log.With("component", "metrics")); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
		log.Info("metrics server started", "addr", cfg.MetricsAddr)
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Perform shutdown in a separate goroutine in case it blocks; we just wait or force exit on timeout.
	done := make(chan struct{})
	go func() {
		if err := server.Stop(); err != nil {
			log.Error("server stop error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("server stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
}
