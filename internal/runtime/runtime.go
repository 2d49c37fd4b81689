// Package runtime owns process-wide infrastructure: telemetry providers and
// the optional local HTTP surface for health, metrics and live status.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-interview/internal/config"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	listener    net.Listener
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	mu     sync.RWMutex
	checks map[string]func() error
	status func() any
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "runtime")),
		checks: make(map[string]func() error),
	}
}

// AddCheck registers a health check reported by /healthz.
func (r *Runtime) AddCheck(name string, fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = fn
}

// SetStatus installs the provider served as JSON on /status.
func (r *Runtime) SetStatus(fn func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = fn
}

// SetReady flips the /readyz answer.
func (r *Runtime) SetReady(ready bool) {
	r.ready.Store(ready)
}

// Start installs telemetry providers and, when enabled, begins serving HTTP.
// It returns once the listener is bound.
func (r *Runtime) Start(ctx context.Context) error {
	shutdownTelemetry, metrics, err := setupTelemetry(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if !r.cfg.HTTP.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("/status", r.handleStatus)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	addr := net.JoinHostPort(r.cfg.HTTP.Bind, fmt.Sprint(r.cfg.HTTP.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_ = shutdownTelemetry(ctx)
		r.tracerClose = nil
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	r.listener = ln
	r.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.logger.Info("runtime started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound HTTP address, or "" when HTTP is disabled.
func (r *Runtime) Addr() string {
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

// Shutdown stops the HTTP server and flushes telemetry.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.ready.Store(false)
	var errs []error
	if r.httpServer != nil {
		if err := r.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		r.wg.Wait()
	}
	if r.tracerClose != nil {
		if err := r.tracerClose(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	r.mu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	var failures []string
	for _, name := range names {
		if err := r.checks[name](); err != nil {
			failures = append(failures, name+": "+err.Error())
		}
	}
	r.mu.RUnlock()

	if len(failures) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unhealthy: " + strings.Join(failures, "; ")))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) handleStatus(w http.ResponseWriter, _ *http.Request) {
	r.mu.RLock()
	status := r.status
	r.mu.RUnlock()
	if status == nil {
		http.Error(w, "no interview running", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status()); err != nil {
		r.logger.Warn("failed to encode status", slog.String("error", err.Error()))
	}
}
