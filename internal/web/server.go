package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/karatlabs/karat/internal/entity"
	"github.com/karatlabs/karat/internal/services/quote"
	"github.com/karatlabs/karat/internal/updater"
)

// updateRunner triggers a price update run.
type updateRunner interface {
	RunUpdate(ctx context.Context, currency string, trigger entity.Trigger, opts updater.Options) (entity.UpdateLogEntry, error)
}

// healthReporter derives the engine's current health.
type healthReporter interface {
	Health() entity.Health
}

// logReader reads recent update runs, most recent first.
type logReader interface {
	Recent(limit int) []entity.UpdateLogEntry
}

// Server exposes the operations surface: a manual update trigger and a
// health endpoint. Authentication is the caller's precondition.
type Server struct {
	Addr     string
	Updater  updateRunner
	Reporter healthReporter
	Log      logReader
	Logger   *zap.Logger
}

// NewServer creates a new operations server.
func NewServer(addr string, u updateRunner, reporter healthReporter, log logReader, logger *zap.Logger) *Server {
	return &Server{Addr: addr, Updater: u, Reporter: reporter, Log: log, Logger: logger}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/prices/update", s.handleUpdate)
	mux.HandleFunc("/api/prices/health", s.handleHealth)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via
// ACME, plus an HTTP server on port 80 for the HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("https server shutdown error", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("http (acme) server error", zap.Error(err))
		}
	}()

	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type updateRequest struct {
	Currency               string `json:"currency"`
	SkipProductPropagation bool   `json:"skipProductPropagation"`
}

type pricesPayload struct {
	Gold     string `json:"gold"`
	Platinum string `json:"platinum"`
}

type productUpdatesPayload struct {
	Total   int      `json:"total"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

type updateResponse struct {
	Success        bool                   `json:"success"`
	Prices         *pricesPayload         `json:"prices,omitempty"`
	ProductUpdates *productUpdatesPayload `json:"productUpdates,omitempty"`
	DurationMs     int64                  `json:"durationMs"`
	Error          string                 `json:"error,omitempty"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	entry, err := s.Updater.RunUpdate(r.Context(), req.Currency, entity.TriggerManual, updater.Options{
		SkipPropagation: req.SkipProductPropagation,
	})

	resp := updateResponse{
		Success:    entry.Success,
		DurationMs: entry.DurationMs,
	}
	if entry.GoldPrice != nil && entry.PlatinumPrice != nil {
		resp.Prices = &pricesPayload{
			Gold:     entry.GoldPrice.StringFixed(2),
			Platinum: entry.PlatinumPrice.StringFixed(2),
		}
	}
	if !req.SkipProductPropagation && entry.Success {
		resp.ProductUpdates = &productUpdatesPayload{
			Total:   entry.ProductsTotal,
			Updated: entry.ProductsUpdated,
			Skipped: entry.ProductsSkipped,
			Errors:  entry.Errors,
		}
	}

	status := http.StatusOK
	if err != nil {
		resp.Error = firstError(entry)
		switch {
		case errors.Is(err, quote.ErrNotConfigured):
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusBadGateway
		}
	}

	s.writeJSON(w, status, resp)
}

type healthResponse struct {
	Status                entity.HealthStatus     `json:"status"`
	CacheValid            bool                    `json:"cacheValid"`
	LastUpdateAgeSeconds  *int64                  `json:"lastUpdateAgeSeconds,omitempty"`
	QuoteSourceConfigured bool                    `json:"quoteSourceConfigured"`
	Logs                  []entity.UpdateLogEntry `json:"logs,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h := s.Reporter.Health()
	resp := healthResponse{
		Status:                h.Status,
		CacheValid:            h.CacheValid,
		QuoteSourceConfigured: h.QuoteSourceConfigured,
	}
	if h.LastUpdateAge > 0 {
		age := int64(h.LastUpdateAge.Seconds())
		resp.LastUpdateAgeSeconds = &age
	}

	if r.URL.Query().Get("includeLogs") == "true" {
		limit := 10
		if raw := r.URL.Query().Get("logLimit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				http.Error(w, "logLimit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = parsed
		}
		resp.Logs = s.Log.Recent(limit)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("failed to encode response", zap.Error(err))
	}
}

func firstError(entry entity.UpdateLogEntry) string {
	if len(entry.Errors) > 0 {
		return entry.Errors[0]
	}
	return "price update failed"
}
