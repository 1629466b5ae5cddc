// Package server exposes style transfer over HTTP.
//
// Routes:
//
//	GET  /healthz      build information
//	POST /v1/stylize   multipart "content", "style" and optional "saliency"
//	                   images; returns the stylized PNG
//	GET  /v1/runs      recent run records, newest first (?limit=N)
//
// Options for /v1/stylize come from query parameters (method, targets,
// gamma, delta, schedule, reverse_schedule, refresh) on top of the server
// defaults. Uploading a saliency map turns on saliency modulation.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/stylewct/pkg/buildinfo"
	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/imageio"
	"github.com/matzehuels/stylewct/pkg/observability"
	"github.com/matzehuels/stylewct/pkg/pipeline"
	"github.com/matzehuels/stylewct/pkg/store"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

// DefaultMaxUploadBytes bounds the multipart body of /v1/stylize.
const DefaultMaxUploadBytes = 32 << 20

// shutdownTimeout bounds in-flight requests on shutdown.
const shutdownTimeout = 30 * time.Second

// AlignFunc prepares an uploaded image for the model's levels.
type AlignFunc func(img *tensor.Tensor, levels []pipeline.Level) (*tensor.Tensor, error)

// Config wires a Server.
type Config struct {
	Runner         *pipeline.Runner
	Store          store.Store      // nil keeps an in-memory history
	Defaults       pipeline.Options // base options for every request
	Image          imageio.Options  // decoding options for uploads
	Align          AlignFunc        // nil leaves images untouched
	MaxUploadBytes int64            // zero means DefaultMaxUploadBytes
	Logger         *log.Logger
}

// Server handles API requests. It is safe for concurrent use.
type Server struct {
	cfg    Config
	logger *log.Logger
}

// New creates a server from cfg.
func New(cfg Config) *Server {
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore(0)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Server{cfg: cfg, logger: cfg.Logger}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/stylize", s.handleStylize)
		r.Get("/runs", s.handleRuns)
	})
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// logRequests logs each request and reports it to the HTTP hooks.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, route)
		hooks.OnResponse(r.Context(), r.Method, route, status, time.Since(start))
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	runs, err := s.cfg.Store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

type errorBody struct {
	Code      errors.Code `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
}

// writeError maps an error to a status code and a JSON body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "err", err, "request_id", middleware.GetReqID(r.Context()))
	}
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, errorBody{
		Code:      code,
		Message:   errors.UserMessage(err),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func statusFor(err error) int {
	switch {
	case errors.IsPrecondition(err):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrCodeNotFound), errors.Is(err, errors.ErrCodeFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrCodeTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, errors.ErrCodeUnsupported):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
