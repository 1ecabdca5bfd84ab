// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package webapp

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/bibfilter/pkg/types"
)

const (
	defaultMaxBodyBytes    = 4 << 20
	defaultShutdownTimeout = 5 * time.Second
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

var validate = newValidator()

// newValidator adds maxbytes, which bounds a string by its encoded length
// in bytes. The built-in max counts runes.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return v
}

// Options configures a Server. Zero fields take defaults.
type Options struct {
	Server   types.ServerConfig
	Defaults types.FilterConfig
	Factory  Factory
	Logger   *slog.Logger
	Registry *prometheus.Registry
	IDs      FieldIDs
	Version  string
}

// Server serves the filter page, the JSON filter API, health and metrics.
type Server struct {
	cfg      types.ServerConfig
	defaults types.FilterConfig
	factory  Factory
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	ids      FieldIDs
	version  string
}

// NewServer returns a Server using opts.
func NewServer(opts Options) *Server {
	s := &Server{
		cfg:      opts.Server,
		defaults: opts.Defaults,
		factory:  opts.Factory,
		logger:   opts.Logger,
		registry: opts.Registry,
		ids:      opts.IDs,
		version:  opts.Version,
	}
	if s.factory == nil {
		s.factory = NewFilter
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.ids == (FieldIDs{}) {
		s.ids = DefaultFieldIDs
	}
	if s.cfg.MaxBodyBytes <= 0 {
		s.cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if s.cfg.ShutdownTimeout <= 0 {
		s.cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	s.metrics = NewMetrics(s.registry)
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)

	// One limiter shared by the page and the API.
	var limit func(http.Handler) http.Handler
	if s.cfg.RateLimitPerMin > 0 {
		limit = httprate.LimitByIP(s.cfg.RateLimitPerMin, time.Minute)
	}

	r.Group(func(wr chi.Router) {
		if limit != nil {
			wr.Use(limit)
		}
		wr.Post("/filter", s.handleFilterForm)
	})

	r.Route("/api", func(ar chi.Router) {
		if len(s.cfg.AllowedOrigins) > 0 {
			ar.Use(cors.Handler(cors.Options{
				AllowedOrigins: s.cfg.AllowedOrigins,
				AllowedMethods: []string{"POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type"},
				ExposedHeaders: []string{"X-Request-Id"},
				MaxAge:         300,
			}))
		}
		if limit != nil {
			ar.Use(limit)
		}
		ar.Post("/filter", s.handleFilterAPI)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
		s.logger.Info("shutting down", "timeout", s.cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	}
}

type pageView struct {
	IDs     FieldIDs
	Input   string
	Include string
	Exclude string
	Output  string
	Error   string
	Version string
}

func (s *Server) view(doc Document, errMsg string) pageView {
	return pageView{
		IDs:     s.ids,
		Input:   doc.Value(s.ids.Input),
		Include: doc.Value(s.ids.Include),
		Exclude: doc.Value(s.ids.Exclude),
		Output:  doc.Value(s.ids.Output),
		Error:   errMsg,
		Version: s.version,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, v pageView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, v); err != nil {
		s.requestLogger(r).Error("rendering page", "err", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	doc := NewMapDocument(map[string]string{
		s.ids.Include: s.defaults.Include,
		s.ids.Exclude: s.defaults.Exclude,
	})
	s.render(w, r, http.StatusOK, s.view(doc, ""))
}

// handleFilterForm is the page's trigger: the posted form is the document.
func (s *Server) handleFilterForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}

	doc := NewFormDocument(r.PostForm, s.ids)
	err := s.trigger("page", doc)
	if err != nil {
		s.requestLogger(r).Warn("filter failed", "surface", "page", "err", err)
		s.render(w, r, http.StatusUnprocessableEntity, s.view(doc, err.Error()))
		return
	}
	s.render(w, r, http.StatusOK, s.view(doc, ""))
}

// FilterRequest is the JSON body of POST /api/filter.
type FilterRequest struct {
	Input   string `json:"input"`
	Include string `json:"include" validate:"maxbytes=4096"`
	Exclude string `json:"exclude" validate:"maxbytes=4096"`
}

// FilterResponse is the JSON reply of POST /api/filter.
type FilterResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleFilterAPI(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, FilterResponse{Error: "invalid request body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, FilterResponse{Error: "invalid request: " + err.Error()})
		return
	}

	doc := NewMapDocument(map[string]string{
		s.ids.Input:   req.Input,
		s.ids.Include: req.Include,
		s.ids.Exclude: req.Exclude,
	})
	if err := s.trigger("api", doc); err != nil {
		s.requestLogger(r).Warn("filter failed", "surface", "api", "err", err)
		writeJSON(w, http.StatusUnprocessableEntity, FilterResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, FilterResponse{Output: doc.Value(s.ids.Output)})
}

func (s *Server) trigger(surface string, doc Document) error {
	start := time.Now()
	err := NewBinder(doc, s.factory, s.ids).Trigger()
	s.metrics.observe(surface, time.Since(start).Seconds(), err)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return s.logger.With("request_id", id)
	}
	return s.logger
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.requestLogger(r).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
