package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/aretw0/witmorph"
	"github.com/aretw0/witmorph/pkg/domain"
)

//go:embed openapi.yaml
var rawSpec []byte

// maxBodyBytes bounds request bodies; templates are small documents.
const maxBodyBytes = 4 << 20

// Planner defines the interface for the planning core.
type Planner interface {
	Plan(ctx context.Context, source, target *domain.ProcessTemplate, m *domain.Mapping) (*domain.Plan, error)
	Validate(ctx context.Context, source, target *domain.ProcessTemplate, m *domain.Mapping) error
}

// Server serves the planning API.
type Server struct {
	Planner  Planner
	spec     *openapi3.T
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics exposes g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}
	return doc, nil
}

// NewHandler creates a new HTTP handler for the planner.
func NewHandler(planner Planner, opts ...Option) (http.Handler, error) {
	spec, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}
	s := &Server{
		Planner: planner,
		spec:    spec,
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/plan", s.CreatePlan)
		r.Post("/validate", s.ValidateMapping)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r), nil
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>witmorph API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

type planRequest struct {
	Source  *domain.ProcessTemplate `json:"source"`
	Target  *domain.ProcessTemplate `json:"target"`
	Mapping *domain.Mapping         `json:"mapping"`
}

type validationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// decodeRequest checks the body against the PlanRequest schema before decoding it.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (*planRequest, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Invalid request body", "error", err)
		return nil, false
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Invalid request body", "error", err)
		return nil, false
	}
	schema := s.spec.Components.Schemas["PlanRequest"].Value
	if err := schema.VisitJSON(raw, openapi3.MultiErrors()); err != nil {
		http.Error(w, fmt.Sprintf("Request does not match schema: %v", err), http.StatusBadRequest)
		s.logger.Warn("Request rejected by schema", "error", err)
		return nil, false
	}
	var req planRequest
	if err := json.Unmarshal(data, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

// CreatePlan handles the POST /v1/plan request.
func (s *Server) CreatePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	plan, err := s.Planner.Plan(r.Context(), req.Source, req.Target, req.Mapping)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, fmt.Sprintf("Plan error: %v", err), status)
		s.logger.Error("Plan failed", "error", err)
		return
	}
	s.writeJSON(w, plan)
}

// ValidateMapping handles the POST /v1/validate request.
func (s *Server) ValidateMapping(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	res := validationResult{Valid: true}
	if err := s.Planner.Validate(r.Context(), req.Source, req.Target, req.Mapping); err != nil {
		res.Valid = false
		res.Errors = flatten(err)
	}
	s.writeJSON(w, res)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, map[string]string{
		"app":         "witmorph-http",
		"version":     strings.TrimSpace(witmorph.Version),
		"api_version": apiVersion,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

// flatten lists the leaves of a joined or aggregated error.
func flatten(err error) []string {
	var pe domain.PlanErrors
	if errors.As(err, &pe) {
		out := make([]string, len(pe))
		for i, e := range pe {
			out[i] = e.Error()
		}
		return out
	}
	return []string{err.Error()}
}
