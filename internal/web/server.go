// Package web serves the ledger dashboard: JSON views, an SSE stream and manual reprotect.
// Reads are unauthenticated, so the dashboard belongs on loopback or a private
// network unless Token is set.
package web

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/trendbot/internal/domain"
	"github.com/vadiminshakov/trendbot/internal/services/executor"
	"github.com/vadiminshakov/trendbot/internal/storage/ledger"
)

const ledgerPollInterval = 2 * time.Second

type ledgerReader interface {
	RecordsAfter(index uint64) []ledger.Record
	UnprotectedEntries() []ledger.Entry
}

type reprotector interface {
	Reprotect(ctx context.Context, entryID string) (executor.ExecutionResult, error)
}

// Server exposes HTTP endpoints serving the HTML UI and an SSE stream.
type Server struct {
	Addr        string
	Ledger      ledgerReader
	Reprotector reprotector
	// Token, when set, must be sent as "Authorization: Bearer <token>" on POST /positions/reprotect.
	Token string

	logger       *zap.Logger
	pollInterval time.Duration
}

// NewServer creates a new web server instance. reprotect may be nil to disable POST /positions/reprotect.
func NewServer(addr string, l ledgerReader, reprotect reprotector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Addr:         addr,
		Ledger:       l,
		Reprotector:  reprotect,
		logger:       logger,
		pollInterval: ledgerPollInterval,
	}
}

// Handler returns the dashboard routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ledger", s.handleLedger)
	mux.HandleFunc("/ledger/stream", s.handleLedgerStream)
	mux.HandleFunc("/positions/unprotected", s.handleUnprotected)
	mux.HandleFunc("/positions/reprotect", s.handleReprotect)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
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

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "certs"
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
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("https server shutdown error", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http (acme) server error", zap.Error(err))
		}
	}()

	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if s.Ledger == nil {
		http.Error(w, "ledger not available", http.StatusServiceUnavailable)
		return
	}
	after, err := afterParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records := s.Ledger.RecordsAfter(after)
	if records == nil {
		records = []ledger.Record{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleUnprotected(w http.ResponseWriter, r *http.Request) {
	if s.Ledger == nil {
		http.Error(w, "ledger not available", http.StatusServiceUnavailable)
		return
	}
	entries := s.Ledger.UnprotectedEntries()
	if entries == nil {
		entries = []ledger.Entry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

type reprotectResponse struct {
	EntryID     string `json:"entry_id"`
	Status      string `json:"status"`
	StopOrderID string `json:"stop_order_id,omitempty"`
	StopPrice   string `json:"stop_price,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleReprotect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.Reprotector == nil {
		http.Error(w, "reprotect not available", http.StatusServiceUnavailable)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	// a disconnecting client must not abort a stop submission
	result, err := s.Reprotector.Reprotect(context.WithoutCancel(r.Context()), id)
	resp := reprotectResponse{EntryID: id, Status: result.Stop.Status.String()}
	if !result.StopPrice.IsZero() {
		resp.StopPrice = result.StopPrice.String()
	}
	resp.StopOrderID = result.Stop.Order.ID

	var unprotected *domain.UnprotectedPositionError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, ledger.ErrUnknownEntry):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &unprotected):
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusBadGateway, resp)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.Token == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(s.Token)) == 1
}

func (s *Server) handleLedgerStream(w http.ResponseWriter, r *http.Request) {
	if s.Ledger == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "ledger not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	lastIndex, err := afterParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	sendRecords := func() error {
		for _, record := range s.Ledger.RecordsAfter(lastIndex) {
			payload, err := json.Marshal(record)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: ledger\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendRecords(); err != nil {
		s.logger.Error("ledger stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendRecords(); err != nil {
				s.logger.Error("ledger stream poll", zap.Error(err))
			}
		}
	}
}

// afterParam reads ?after= or the SSE Last-Event-ID header.
func afterParam(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("after")
	if raw == "" {
		raw = r.Header.Get("Last-Event-ID")
	}
	if raw == "" {
		return 0, nil
	}
	after, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid after index: %s", raw)
	}
	return after, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}
