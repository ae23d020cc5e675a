// Package httpapi exposes block snapshots and form submissions over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"awful/internal/blocks"
	"awful/internal/service"
)

const maxBodyBytes = 4 << 20

// Options configures a Server.
type Options struct {
	// Metrics is served under /metrics when set.
	Metrics      http.Handler
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       zerolog.Logger
}

// Server routes HTTP requests to the block service.
type Server struct {
	blocks *service.BlockService
	opts   Options
	logger zerolog.Logger
	router *mux.Router
}

// New creates a Server.
func New(svc *service.BlockService, opts Options) *Server {
	s := &Server{
		blocks: svc,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "http").Logger(),
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics).Methods(http.MethodGet)
	}

	t := s.router.PathPrefix("/tenants/{tenant:[0-9]+}").Subrouter()
	t.HandleFunc("/{kind}/{id:[0-9]+}/blocks", s.handleGetBlocks).Methods(http.MethodGet)
	t.HandleFunc("/{kind}/{id:[0-9]+}/blocks", s.handleSubmitBlocks).Methods(http.MethodPost)
	// site blocks have no owner id of their own
	t.HandleFunc("/{kind:site}/blocks", s.handleGetBlocks).Methods(http.MethodGet)
	t.HandleFunc("/{kind:site}/blocks", s.handleSubmitBlocks).Methods(http.MethodPost)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	s.logger.Info().Str("addr", addr).Msg("listening")

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetBlocks(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, err := s.blocks.ParseOwner(vars["tenant"], vars["kind"], vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.blocks.Snapshot(r.Context(), owner)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// handleSubmitBlocks accepts {uuid: {type, data}}. The optional fields
// query parameter is a comma separated list of root fields the caller may
// change. A valid submission answers null; an invalid one answers 422 with
// the error tree.
func (s *Server) handleSubmitBlocks(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, err := s.blocks.ParseOwner(vars["tenant"], vars["kind"], vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var incoming map[string]blocks.Incoming
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&incoming); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	errs, err := s.blocks.Submit(r.Context(), owner, incoming, parseFields(r.URL.Query().Get("fields")))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if errs != nil {
		respondJSON(w, http.StatusUnprocessableEntity, errs)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func parseFields(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// internalError logs err and answers with a message that does not leak it.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	respondError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		response = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
