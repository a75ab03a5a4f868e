package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/liteforge"
	"github.com/aretw0/liteforge/internal/logging"
	"github.com/aretw0/liteforge/pkg/domain"
	"github.com/aretw0/liteforge/pkg/manifest"
)

// ManifestURI names the manifest resource.
const ManifestURI = "liteforge://manifest"

// DefaultOutputLines bounds the toolchain output returned by build_app.
const DefaultOutputLines = 40

// Builder runs the rewrite and build pipeline.
type Builder interface {
	Build(ctx context.Context, req domain.BuildRequest) (<-chan domain.Event, error)
	Artifacts() ([]string, error)
}

// ManifestReader exposes the current manifest snapshot.
type ManifestReader interface {
	Get() manifest.Manifest
}

// BuildArgs are the arguments of the build_app tool.
type BuildArgs struct {
	URL         string `json:"url"`
	AppName     string `json:"appName"`
	PackageName string `json:"packageName"`
}

// BuildResponse is the structured result of build_app.
type BuildResponse struct {
	Status   domain.EventType `json:"status" jsonschema_description:"success or error"`
	Message  string           `json:"message,omitempty" jsonschema_description:"Failure reason or note on a missing artifact"`
	APKPath  string           `json:"apkPath,omitempty" jsonschema_description:"Filesystem path of the produced package"`
	APKName  string           `json:"apkName,omitempty"`
	BuildID  string           `json:"buildId,omitempty"`
	Steps    []string         `json:"steps" jsonschema_description:"Rewrite progress messages"`
	Warnings []string         `json:"warnings" jsonschema_description:"Skipped rewrite steps and best-effort failures"`
	Output   []string         `json:"output" jsonschema_description:"Last lines of toolchain output"`
}

// Server exposes LiteForge as an MCP server.
type Server struct {
	builder   Builder
	manifest  ManifestReader
	logger    *slog.Logger
	maxLines  int
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithManifest registers the manifest resource.
func WithManifest(m ManifestReader) Option {
	return func(s *Server) {
		s.manifest = m
	}
}

// WithOutputLines bounds the output tail returned by build_app.
func WithOutputLines(n int) Option {
	return func(s *Server) {
		s.maxLines = n
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(builder Builder, opts ...Option) *Server {
	s := &Server{
		builder:   builder,
		logger:    logging.NewNop(),
		maxLines:  DefaultOutputLines,
		mcpServer: server.NewMCPServer("liteforge-mcp", strings.TrimSpace(liteforge.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	buildTool := mcp.NewTool("build_app",
		mcp.WithDescription("Rewrite the template project for a website and build a release APK. Blocks until the build finishes."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Website URL loaded by the app (https:// is added when missing)")),
		mcp.WithString("appName", mcp.Required(), mcp.Description("Display name of the app")),
		mcp.WithString("packageName", mcp.Required(), mcp.Description("Android package name, e.g. com.example.app")),
		mcp.WithOutputSchema[BuildResponse](),
	)
	s.mcpServer.AddTool(buildTool, mcp.NewStructuredToolHandler(s.handleBuild))

	s.mcpServer.AddTool(mcp.NewTool("list_artifacts",
		mcp.WithDescription("List the APK files currently in the build output directory."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		paths, err := s.builder.Artifacts()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing artifacts failed: %v", err)), nil
		}
		names := make([]string, 0, len(paths))
		for _, p := range paths {
			names = append(names, filepath.Base(p))
		}
		jsonBytes, _ := json.Marshal(names)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleBuild(ctx context.Context, request mcp.CallToolRequest, args BuildArgs) (BuildResponse, error) {
	req, err := domain.NewBuildRequest(args.URL, args.AppName, args.PackageName)
	if err != nil {
		return BuildResponse{}, err
	}

	events, err := s.builder.Build(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrBuildInProgress) {
			s.logger.Warn("MCP build rejected", "package", req.PackageName)
		}
		return BuildResponse{}, fmt.Errorf("build not started: %w", err)
	}

	resp := BuildResponse{Steps: []string{}, Warnings: []string{}}
	var output outputTail
	output.max = s.maxLines
	result := liteforge.Wait(events, func(e domain.Event) {
		switch e.Type {
		case domain.EventProgress:
			resp.Steps = append(resp.Steps, e.Message)
		case domain.EventWarning:
			resp.Warnings = append(resp.Warnings, e.Message)
		case domain.EventStdout, domain.EventStderr:
			output.write(e.Data)
		}
	})

	resp.Status = result.Type
	resp.Message = result.Message
	resp.APKPath = result.APKPath
	resp.APKName = result.APKName
	resp.BuildID = result.BuildID
	resp.Output = output.lines()
	return resp, nil
}

// outputTail keeps the last max complete lines of a chunked stream.
type outputTail struct {
	max     int
	partial string
	kept    []string
}

func (o *outputTail) write(chunk string) {
	text := o.partial + chunk
	parts := strings.Split(text, "\n")
	o.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		o.kept = append(o.kept, line)
		if o.max > 0 && len(o.kept) > o.max {
			o.kept = o.kept[1:]
		}
	}
}

func (o *outputTail) lines() []string {
	out := append([]string{}, o.kept...)
	if o.partial != "" {
		out = append(out, o.partial)
		if o.max > 0 && len(out) > o.max {
			out = out[1:]
		}
	}
	return out
}

func (s *Server) registerResources() {
	if s.manifest == nil {
		return
	}
	s.mcpServer.AddResource(mcp.NewResource(ManifestURI, "Current App Manifest",
		mcp.WithMIMEType("application/json"),
	), s.readManifest)
}

func (s *Server) readManifest(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.manifest.Get())
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ManifestURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
