// Package server exposes uploads, analysis and reports over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Veraticus/invoice-readiness/internal/analysis"
	"github.com/Veraticus/invoice-readiness/internal/ingest"
	"github.com/Veraticus/invoice-readiness/internal/model"
)

// APIVersion is reported by the index endpoint.
const APIVersion = "2.0.0"

// Store is the persistence the HTTP API needs.
type Store interface {
	analysis.UploadSource
	analysis.ReportStore
	SaveUpload(ctx context.Context, upload *model.Upload) error
	RecentReports(ctx context.Context, limit int) ([]model.ReportSummary, error)
	Ping(ctx context.Context) error
}

// Options configures the server.
type Options struct {
	Now            func() time.Time
	DefaultCountry string
	DefaultERP     string
	RateLimit      float64
	Burst          int
	MaxUploadBytes int64
}

// Server serves the readiness API.
type Server struct {
	started  time.Time
	store    Store
	analyzer *analysis.Engine
	parser   *ingest.Parser
	limiter  *rate.Limiter
	handler  http.Handler
	now      func() time.Time
	opts     Options
}

// New creates a server. Zero options take the defaults: 10 requests per
// second with a burst of 20, country UAE, ERP "Unknown" and 5 MiB uploads.
func New(store Store, analyzer *analysis.Engine, parser *ingest.Parser, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultCountry == "" {
		opts.DefaultCountry = "UAE"
	}
	if opts.DefaultERP == "" {
		opts.DefaultERP = "Unknown"
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = ingest.DefaultMaxBytes
	}
	if parser == nil {
		parser = ingest.NewParser(ingest.WithMaxBytes(opts.MaxUploadBytes))
	}

	s := &Server{
		store:    store,
		analyzer: analyzer,
		parser:   parser,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
		now:      opts.Now,
		opts:     opts,
	}
	s.started = s.now()
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /report/{id}", s.handleGetReport)
	mux.HandleFunc("GET /reports", s.handleRecentReports)

	return s.logRequests(s.cors(s.rateLimit(mux)))
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("Shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
