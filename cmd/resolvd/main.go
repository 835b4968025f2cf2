// Command resolvd is a recursive DNS resolver. It takes no flags: it binds
// the UDP listener, starts resolving client queries against the hard-coded
// root hint, and runs until interrupted.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrecursive/resolvd/internal/dns/resolver"
	"github.com/jrecursive/resolvd/internal/dns/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	engine := resolver.NewRecursionEngine(resolver.WithLogger(logger))
	srv := server.NewUdpServer(server.DefaultListenAddr, engine, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		logger.Error("resolver stopped", "error", err)
		os.Exit(1)
	case <-ctx.Done():
		logger.Info("shutting down")
	}
}
