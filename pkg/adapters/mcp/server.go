package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/cors"

	"github.com/aretw0/witmorph"
	"github.com/aretw0/witmorph/internal/presentation/tui"
	"github.com/aretw0/witmorph/pkg/adapters/file"
	"github.com/aretw0/witmorph/pkg/domain"
)

const latestPlanURI = "witmorph://plan/latest"

// Planner defines the planning operations exposed as tools.
type Planner interface {
	Plan(ctx context.Context, source, target *domain.ProcessTemplate, m *domain.Mapping) (*domain.Plan, error)
	Validate(ctx context.Context, source, target *domain.ProcessTemplate, m *domain.Mapping) error
}

// Server wraps the planner and exposes it as an MCP Server.
type Server struct {
	planner   Planner
	mcpServer *server.MCPServer

	mu     sync.Mutex
	latest *domain.Plan
}

// NewServer creates a new MCP Server instance.
func NewServer(planner Planner) *Server {
	s := &Server{
		planner:   planner,
		mcpServer: server.NewMCPServer("witmorph-mcp", strings.TrimSpace(witmorph.Version), server.WithResourceCapabilities(false, false)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           cors.AllowAll().Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		slog.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	inputs := []mcp.ToolOption{
		mcp.WithString("source", mcp.Required(), mcp.Description("Source template: a file or directory path, or inline YAML/JSON")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target template: a file or directory path, or inline YAML/JSON")),
		mcp.WithString("mapping", mcp.Required(), mcp.Description("Mapping: a file path or inline YAML/JSON")),
	}

	// TOOL: plan_migration
	planOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Compute the ordered migration plan between two process templates."),
		mcp.WithString("format", mcp.Description("Output format: json (default) or markdown"), mcp.Enum("json", "markdown")),
	}, inputs...)
	s.mcpServer.AddTool(mcp.NewTool("plan_migration", planOpts...), s.handlePlan)

	// TOOL: validate_mapping
	validateOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Check both templates and the mapping without computing a plan."),
	}, inputs...)
	s.mcpServer.AddTool(mcp.NewTool("validate_mapping", validateOpts...), s.handleValidate)
}

func (s *Server) handlePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, tgt, m, err := resolveInputs(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	plan, err := s.planner.Plan(ctx, src, tgt, m)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("plan failed: %v", err)), nil
	}
	s.mu.Lock()
	s.latest = plan
	s.mu.Unlock()

	if request.GetString("format", "json") == "markdown" {
		return mcp.NewToolResultText(tui.PlanMarkdown(plan)), nil
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, tgt, m, err := resolveInputs(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.planner.Validate(ctx, src, tgt, m); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("mapping is valid"), nil
}

func (s *Server) registerResources() {
	// EXPOSE: witmorph://plan/latest
	s.mcpServer.AddResource(mcp.NewResource(latestPlanURI, "Latest Migration Plan",
		mcp.WithResourceDescription("The plan computed by the most recent plan_migration call"),
		mcp.WithMIMEType("application/json"),
	), s.readLatest)
}

func (s *Server) readLatest(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s.mu.Lock()
	plan := s.latest
	s.mu.Unlock()
	if plan == nil {
		return nil, errors.New("no plan has been computed yet")
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      latestPlanURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func resolveInputs(ctx context.Context, request mcp.CallToolRequest) (*domain.ProcessTemplate, *domain.ProcessTemplate, *domain.Mapping, error) {
	sourceArg, err := request.RequireString("source")
	if err != nil {
		return nil, nil, nil, err
	}
	targetArg, err := request.RequireString("target")
	if err != nil {
		return nil, nil, nil, err
	}
	mappingArg, err := request.RequireString("mapping")
	if err != nil {
		return nil, nil, nil, err
	}

	src, err := resolveTemplate(ctx, sourceArg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("source: %w", err)
	}
	tgt, err := resolveTemplate(ctx, targetArg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("target: %w", err)
	}
	m, err := resolveMapping(ctx, mappingArg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("mapping: %w", err)
	}
	return src, tgt, m, nil
}

// isPath reports whether arg names an existing file or directory.
// Inline documents span lines and never do.
func isPath(arg string) bool {
	if strings.ContainsAny(arg, "\n{") {
		return false
	}
	_, err := os.Stat(arg)
	return err == nil
}

func resolveTemplate(ctx context.Context, arg string) (*domain.ProcessTemplate, error) {
	if isPath(arg) {
		loader, err := witmorph.OpenTemplate(arg)
		if err != nil {
			return nil, err
		}
		return loader.Load(ctx)
	}
	doc, err := SanitizeDocument(arg)
	if err != nil {
		return nil, err
	}
	var t domain.ProcessTemplate
	if err := file.Decode([]byte(doc), "", &t); err != nil {
		return nil, fmt.Errorf("invalid template document: %w", err)
	}
	return &t, nil
}

func resolveMapping(ctx context.Context, arg string) (*domain.Mapping, error) {
	if isPath(arg) {
		return file.NewMappingSource(arg).Mapping(ctx)
	}
	doc, err := SanitizeDocument(arg)
	if err != nil {
		return nil, err
	}
	var m domain.Mapping
	if err := file.Decode([]byte(doc), "", &m); err != nil {
		return nil, fmt.Errorf("invalid mapping document: %w", err)
	}
	return &m, nil
}
