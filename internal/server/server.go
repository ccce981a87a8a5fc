// Package server exposes the diagnosis predictor over HTTP, with a JSON API
// for programs and rendered pages for people.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"diagnosis-service/internal/common"
	"diagnosis-service/internal/features"
	"diagnosis-service/internal/metrics"
	"diagnosis-service/internal/ml"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config carries the settings the HTTP layer needs.
type Config struct {
	Addr           string
	StrictSex      bool
	MaxBodyBytes   int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MetricsEnabled bool
}

// Server serves predictions from a single, read-only predictor.
type Server struct {
	cfg       Config
	predictor *ml.Predictor
	metrics   *metrics.Metrics
	mw        *metrics.Wrapper
	templates *template.Template
	started   time.Time
	server    *http.Server
}

// New wires routes and middleware. m may be nil when metrics are disabled.
func New(cfg Config, predictor *ml.Predictor, m *metrics.Metrics) (*Server, error) {
	if predictor == nil {
		return nil, common.ErrModelNotLoaded
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = common.DefaultMaxBodyBytes
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"label": fieldLabel,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		predictor: predictor,
		metrics:   m,
		templates: tmpl,
		started:   time.Now(),
	}
	if m != nil {
		s.mw = metrics.NewWrapper(m)
	}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /model/info", s.handleModelInfo)
	if s.cfg.MetricsEnabled && s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = s.recoverMiddleware(handler)
	handler = s.accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting diagnosis server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// fieldLabel turns "symptom_sore_throat" into "Sore throat".
func fieldLabel(name string) string {
	name = strings.TrimPrefix(name, "symptom_")
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

type indexPage struct {
	Symptoms []string
}

type resultPage struct {
	Results    []ml.Prediction
	Disclaimer string
}

type errorPage struct {
	Status  int
	Message string
}

func newIndexPage() indexPage {
	return indexPage{Symptoms: features.Symptoms}
}
