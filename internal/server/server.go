// Package server exposes the resolution engine over HTTP for the conversation layer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"partsbot/internal"
)

const shutdownGrace = 10 * time.Second

type Resolver interface {
	ResolveOem(ctx context.Context, vehicle internal.VehicleDescriptor, part internal.PartQuery, opts internal.ResolveOptions) internal.ResolutionResult
}

type History interface {
	GetResolution(traceID string) (*internal.ResolutionRecord, error)
}

type Server struct {
	resolver Resolver
	history  History
	log      zerolog.Logger
}

func New(resolver Resolver, history History, log zerolog.Logger) *Server {
	return &Server{resolver: resolver, history: history, log: log}
}

type resolveRequest struct {
	Vehicle internal.VehicleDescriptor `json:"vehicle"`
	Part    internal.PartQuery         `json:"part"`
	Options internal.ResolveOptions    `json:"options"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/oem", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
		r.Get("/resolutions/{traceId}", s.handleGetResolution)
	})
	return r
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	if strings.TrimSpace(req.Part.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "part.text is required"})
		return
	}

	// A disconnecting client must not cut the run short; the resolve timeout
	// still bounds it and the result is recorded either way.
	res := s.resolver.ResolveOem(context.WithoutCancel(r.Context()), req.Vehicle, req.Part, req.Options)
	s.log.Info().
		Str("request_id", chimiddleware.GetReqID(r.Context())).
		Str("trace_id", res.TraceID).
		Str("status", string(res.Status)).
		Msg("resolve request served")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetResolution(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceId")
	rec, err := s.history.GetResolution(traceID)
	if err != nil {
		s.log.Error().Err(err).Str("trace_id", traceID).Msg("loading resolution failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "storage error"})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "resolution not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
