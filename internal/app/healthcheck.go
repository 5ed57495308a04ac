package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/specialistvlad/propshell/internal/remote"
)

// healthHandler answers liveness checks.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// Handler returns the mux served on the HTTP port.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.Handle("/metrics", a.metrics.Handler())
	mux.Handle("/shell", remote.NewHandler(a.ctx, a.session))
	return mux
}

// startHTTPServer listens on the configured address and port and serves
// Handler in the background. It returns the bound address.
func (a *App) startHTTPServer() (string, error) {
	a.logger.Debug("Configuring HTTP server.")
	if a.config.HTTPPort <= 0 {
		a.logger.Debug("HTTP server not started: disabled.")
		return "", nil
	}

	host := a.config.HTTPAddr
	if host == "" {
		host = DefaultHTTPAddr
	}
	listenAddr := net.JoinHostPort(host, strconv.Itoa(a.config.HTTPPort))
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	a.httpServer = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	addr := ln.Addr().String()
	go func() {
		a.logger.Info("HTTP server starting.", "address", addr, "endpoints", "/health /metrics /shell")
		// Serve returns ErrServerClosed on graceful shutdown.
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed unexpectedly.", "error", err)
		}
	}()
	return addr, nil
}

func (a *App) closeHTTPServer() error {
	if a.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()

	a.logger.Debug("Shutting down HTTP server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	a.httpServer = nil
	a.logger.Debug("HTTP server shut down gracefully.")
	return nil
}
