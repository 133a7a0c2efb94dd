// server is the BugX toolkit binary. In http mode it serves the REST API,
// Prometheus metrics, team notifications over WebSocket and MCP over HTTP;
// in stdio mode it speaks MCP on stdin/stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fredcamaral/gomcp-sdk/transport"

	"bugx/internal/config"
	"bugx/internal/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	var (
		mode = flag.String("mode", "http", "Server mode: http or stdio")
		addr = flag.String("addr", "", "HTTP listen address, overrides the configured host and port")
	)
	flag.Parse()

	if err := run(*mode, *addr); err != nil {
		log.Fatalf("bugx server: %v", err)
	}
}

func run(mode, addr string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg, mode)
	logging.SetDefaultLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.initializeDatastore(ctx)

	switch mode {
	case "stdio":
		return a.serveStdio(ctx)
	case "http":
		if addr == "" {
			addr = cfg.Server.Address()
		}
		return a.serveHTTP(ctx, addr)
	default:
		_ = a.close()
		return fmt.Errorf("invalid mode %q, use 'http' or 'stdio'", mode)
	}
}

// newLogger keeps stdout free for the MCP transport in stdio mode
func newLogger(cfg *config.Config, mode string) logging.Logger {
	level := logging.ParseLogLevel(cfg.Logging.Level)
	useJSON := cfg.Logging.Format != "console"
	if mode == "stdio" {
		return logging.NewStderrLogger(level, useJSON)
	}
	return logging.NewLoggerWithFormat(level, useJSON)
}

func (a *app) serveStdio(ctx context.Context) error {
	defer func() {
		if err := a.close(); err != nil {
			a.logger.Error("Error during shutdown", "error", err)
		}
	}()

	a.logger.Info("Starting BugX MCP server in stdio mode")
	mcpServer := a.mcp.MCPServer()
	mcpServer.SetTransport(transport.NewStdioTransport())
	if err := mcpServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (a *app) serveHTTP(ctx context.Context, addr string) error {
	if a.hub != nil {
		go a.hub.Run(ctx)
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("BugX server listening",
			"addr", addr,
			"api", "/api/v1/bugx",
			"mcp", "/mcp",
			"metrics", "/metrics",
			"notifications", "/ws/notifications")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = a.router.Stop(context.Background())
			return fmt.Errorf("HTTP server error: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	// the parent context is already cancelled
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if a.hub != nil {
		select {
		case <-a.hub.Done():
		case <-shutdownCtx.Done():
		}
	}
	if err := a.router.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
