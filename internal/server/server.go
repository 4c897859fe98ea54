// Package server exposes a session over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tordrt/foodstats"
)

// Session is the part of a foodstats session the API serves.
type Session interface {
	Backend() string
	RunQuery(ctx context.Context, id int) (*foodstats.Result, error)
	RunView(ctx context.Context, name string, opts foodstats.ViewOptions) (*foodstats.ViewResult, error)
	KPIs(ctx context.Context) (*foodstats.Result, error)
	Preview(ctx context.Context, table string, n int) (*foodstats.Result, error)
	Adhoc(ctx context.Context, text string) (*foodstats.Result, error)
	Reload(ctx context.Context) error
}

// Options configures a Server. The zero value is usable.
type Options struct {
	// Timeout bounds each backend call; 0 means no limit
	Timeout time.Duration
	Logger  *zap.Logger
}

// Server routes API requests to a session.
type Server struct {
	session  Session
	metrics  *Metrics
	registry *prometheus.Registry
	timeout  time.Duration
	logger   *zap.Logger
	router   chi.Router
}

// New creates a server for session
func New(session Session, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()

	s := &Server{
		session:  session,
		metrics:  NewMetrics(reg, session.Backend()),
		registry: reg,
		timeout:  opts.Timeout,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/questions", s.handleQuestions)
		r.Get("/questions/{id}", s.handleQuestion)
		r.Get("/views", s.handleViews)
		r.Get("/views/{name}", s.handleView)
		r.Get("/kpis", s.handleKPIs)
		r.Get("/tables/{table}", s.handleTable)
		r.Post("/adhoc", s.handleAdhoc)
		r.Post("/reload", s.handleReload)
	})
	return r
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", zap.String("addr", addr), zap.String("backend", s.session.Backend()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down the server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// run calls fn with the request timeout applied and records the outcome.
func (s *Server) run(r *http.Request, operation string, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := fn(ctx)
	s.metrics.observe(operation, outcome(err), time.Since(start))
	if err != nil && statusFor(err) >= http.StatusInternalServerError {
		s.logger.Warn("Operation failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("operation", operation),
			zap.Error(err))
	}
	return v, err
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, operation string, fn func(ctx context.Context) (any, error)) {
	v, err := s.run(r, operation, fn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": s.session.Backend()})
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, foodstats.Questions())
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	s.serve(w, r, "query", func(ctx context.Context) (any, error) {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, newRequestError(http.StatusNotFound, foodstats.ErrUnknownQuery.Error()+": "+raw)
		}
		return s.session.RunQuery(ctx, id)
	})
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, foodstats.Views())
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	query := r.URL.Query()
	s.serve(w, r, "view", func(ctx context.Context) (any, error) {
		opts := foodstats.ViewOptions{FoodType: query.Get("food_type")}
		if raw := query.Get("top"); raw != "" {
			top, err := strconv.Atoi(raw)
			if err != nil || top < 0 {
				return nil, newRequestError(http.StatusBadRequest, "top must be a non-negative integer")
			}
			opts.Top = top
		}
		return s.session.RunView(ctx, name, opts)
	})
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, "kpis", func(ctx context.Context) (any, error) {
		return s.session.KPIs(ctx)
	})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	raw := r.URL.Query().Get("limit")
	s.serve(w, r, "preview", func(ctx context.Context) (any, error) {
		limit := 0
		if raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return nil, newRequestError(http.StatusBadRequest, "limit must be a non-negative integer")
			}
			limit = n
		}
		return s.session.Preview(ctx, table, limit)
	})
}

// adhocRequest is the body of POST /api/adhoc.
type adhocRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleAdhoc(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, "adhoc", func(ctx context.Context) (any, error) {
		var req adhocRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, newRequestError(http.StatusBadRequest, "invalid request body: "+err.Error())
		}
		return s.session.Adhoc(ctx, req.Query)
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, "reload", func(ctx context.Context) (any, error) {
		if err := s.session.Reload(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"status": "reloaded"}, nil
	})
}
