// Package api exposes the client's HTTP surface to the presentation layer:
// parse start/cancel, progress snapshots, cached result pages, and token
// management.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/telescan/telescan/internal/config"
	"github.com/telescan/telescan/internal/domain/parsing"
	"github.com/telescan/telescan/pkg/common/logger"
	"github.com/telescan/telescan/pkg/common/otel"
)

// JobService is the slice of the job controller the API uses.
type JobService interface {
	Start(ctx context.Context, collection parsing.Collection, locator string, opts parsing.StartOptions) (uuid.UUID, error)
	Cancel(ctx context.Context, collection parsing.Collection) error
	State(collection parsing.Collection) parsing.JobState
}

// PageReader is the slice of the page cache the API uses.
type PageReader interface {
	GetPage(ctx context.Context, collection parsing.Collection, page int) ([]parsing.ResultItem, error)
	Invalidate(ctx context.Context, collection parsing.Collection)
}

// Server routes presentation-layer requests to the application services.
type Server struct {
	cfg      *config.Config
	logger   *logger.Logger
	tracer   trace.Tracer
	jobs     JobService
	pages    PageReader
	tokens   parsing.TokenDirectory
	progress *ProgressStore
	validate *validator.Validate
	handler  http.Handler
}

// NewServer wires the HTTP routes and middleware.
func NewServer(
	cfg *config.Config,
	log *logger.Logger,
	tracer trace.Tracer,
	jobs JobService,
	pages PageReader,
	tokens parsing.TokenDirectory,
	progress *ProgressStore,
) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   log.With("component", "api_server"),
		tracer:   tracer,
		jobs:     jobs,
		pages:    pages,
		tokens:   tokens,
		progress: progress,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("POST /v1/{collection}/parse", s.handleStartParse)
	mux.HandleFunc("POST /v1/{collection}/parse/cancel", s.handleCancelParse)
	mux.HandleFunc("GET /v1/{collection}/parse/progress", s.handleProgress)
	mux.HandleFunc("GET /v1/{collection}/pages/{page}", s.handleGetPage)
	mux.HandleFunc("POST /v1/{collection}/invalidate", s.handleInvalidate)
	mux.HandleFunc("GET /v1/tokens", s.handleListTokens)
	mux.HandleFunc("POST /v1/tokens", s.handleCreateToken)
	mux.HandleFunc("DELETE /v1/tokens/{id}", s.handleDeleteToken)

	var handler http.Handler = mux
	if len(cfg.API.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.API.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}).Handler(handler)
	}
	handler = s.loggerMiddleware(handler)
	handler = otelhttp.NewHandler(handler, "api")

	s.handler = handler
	return s
}

// Handler exposes the composed handler, mostly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves the API until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    net.JoinHostPort(s.cfg.API.Host, s.cfg.API.Port),
		Handler: s.handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "failed to shutdown server", "error", err)
		}
	}()

	s.logger.Info(ctx, "starting server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			ctx := r.Context()
			s.logger.Info(ctx, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.status,
				"duration", time.Since(start),
				"trace_id", otel.GetTraceID(ctx),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type parseRequest struct {
	Link      string `json:"link" validate:"required"`
	PostLimit int    `json:"post_limit" validate:"gte=0"`
}

type tokenCreateRequest struct {
	APIID    string `json:"api_id" validate:"required"`
	APIHash  string `json:"api_hash" validate:"required"`
	Phone    string `json:"phone"`
	BotToken string `json:"bot_token"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartParse(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.collection(w, r)
	if !ok {
		return
	}

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.jobs.Start(r.Context(), collection, req.Link, parsing.StartOptions{PostLimit: req.PostLimit})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID.String()})
}

func (s *Server) handleCancelParse(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.collection(w, r)
	if !ok {
		return
	}

	if err := s.jobs.Cancel(r.Context(), collection); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.collection(w, r)
	if !ok {
		return
	}

	resp := struct {
		State     string    `json:"state"`
		LastEvent *Snapshot `json:"last_event,omitempty"`
	}{State: s.jobs.State(collection).String()}

	if snap, found := s.progress.Latest(collection); found {
		resp.LastEvent = &snap
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.collection(w, r)
	if !ok {
		return
	}

	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "page must be an integer")
		return
	}

	items, err := s.pages.GetPage(r.Context(), collection, page)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		Page  int                  `json:"page"`
		Items []parsing.ResultItem `json:"items"`
	}{Page: page, Items: items})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.collection(w, r)
	if !ok {
		return
	}

	s.pages.Invalidate(r.Context(), collection)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.tokens.ListTokens(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if tokens == nil {
		tokens = []parsing.Token{}
	}
	s.writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req tokenCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.tokens.CreateToken(r.Context(), parsing.TokenInput{
		APIID:    req.APIID,
		APIHash:  req.APIHash,
		Phone:    req.Phone,
		BotToken: req.BotToken,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, token)
}

func (s *Server) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "token id must be an integer")
		return
	}

	if err := s.tokens.DeleteToken(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) collection(w http.ResponseWriter, r *http.Request) (parsing.Collection, bool) {
	collection, err := parsing.ParseCollection(r.PathValue("collection"))
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err.Error())
		return "", false
	}
	return collection, true
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *parsing.RemoteRejectedError
	switch {
	case errors.Is(err, parsing.ErrValidation):
		s.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, parsing.ErrJobInProgress):
		s.writeError(w, r, http.StatusConflict, err.Error())
	case errors.As(err, &rejected):
		s.writeError(w, r, http.StatusBadGateway, rejected.Message)
	case errors.Is(err, parsing.ErrMalformedStatus):
		s.writeError(w, r, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error(r.Context(), "request failed", "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error(context.Background(), "failed to encode response", "error", err)
	}
}
