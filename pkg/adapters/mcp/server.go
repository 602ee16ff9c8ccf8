package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/chronicle"
	"github.com/aretw0/chronicle/internal/logging"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const executionURIPrefix = "chronicle://executions/"

// ExecutionArgs selects one execution.
type ExecutionArgs struct {
	ID string `json:"id"`
}

// DescendantsArgs are the arguments of get_descendants.
type DescendantsArgs struct {
	ID    string `json:"id"`
	Depth *int   `json:"depth,omitempty"`
	Order string `json:"order,omitempty"`
}

// DescendantsResponse is the structured result of get_descendants.
type DescendantsResponse struct {
	RootID      string              `json:"root_id" jsonschema_description:"The execution the walk started from"`
	Descendants []*domain.Execution `json:"descendants" jsonschema_description:"Descendant executions in the requested order"`
}

// CancelStateResponse is the structured result of get_cancel_state.
type CancelStateResponse struct {
	ID       string             `json:"id"`
	Canceled bool               `json:"canceled" jsonschema_description:"True only for a confirmed cancellation"`
	State    domain.CancelState `json:"state" jsonschema_description:"canceled, not_canceled or unknown"`
}

// Server wraps an ExecutionService and exposes it as an MCP Server.
type Server struct {
	service   ports.ExecutionService
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(service ports.ExecutionService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		service:   service,
		mcpServer: server.NewMCPServer("chronicle-mcp", chronicle.Version),
		logger:    logger,
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
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: get_execution
	s.mcpServer.AddTool(mcp.NewTool("get_execution",
		mcp.WithDescription("Get the stored execution record with the given id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Execution id")),
		mcp.WithOutputSchema[domain.Execution](),
	), mcp.NewStructuredToolHandler(s.handleGetExecution))

	// TOOL: get_descendants
	s.mcpServer.AddTool(mcp.NewTool("get_descendants",
		mcp.WithDescription("List the executions spawned below an execution, directly or transitively."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Root execution id")),
		mcp.WithNumber("depth", mcp.Description("Levels to descend; omit or use a negative number for no limit")),
		mcp.WithString("order", mcp.Description("'default' (depth-first) or 'sorted' (by start time)"), mcp.Enum("default", "sorted")),
		mcp.WithOutputSchema[DescendantsResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetDescendants))

	// TOOL: get_cancel_state
	s.mcpServer.AddTool(mcp.NewTool("get_cancel_state",
		mcp.WithDescription("Report whether an execution has been canceled."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Execution id")),
		mcp.WithOutputSchema[CancelStateResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetCancelState))
}

// Handler methods for structured tools

func (s *Server) handleGetExecution(ctx context.Context, request mcp.CallToolRequest, args ExecutionArgs) (domain.Execution, error) {
	if args.ID == "" {
		return domain.Execution{}, errors.New("id is required")
	}
	exec, err := s.service.GetExecution(ctx, args.ID)
	if err != nil {
		return domain.Execution{}, fmt.Errorf("get execution failed: %w", err)
	}
	return *exec, nil
}

func (s *Server) handleGetDescendants(ctx context.Context, request mcp.CallToolRequest, args DescendantsArgs) (DescendantsResponse, error) {
	if args.ID == "" {
		return DescendantsResponse{}, errors.New("id is required")
	}
	depth := domain.Unbounded
	if args.Depth != nil {
		depth = *args.Depth
	}

	res, err := s.service.GetDescendants(ctx, args.ID, depth, domain.ParseDescendantOrder(args.Order))
	if err != nil {
		s.logger.Error("MCP get_descendants failed", "execution_id", args.ID, "err", err)
		return DescendantsResponse{}, fmt.Errorf("get descendants failed: %w", err)
	}
	return DescendantsResponse{RootID: args.ID, Descendants: res}, nil
}

func (s *Server) handleGetCancelState(ctx context.Context, request mcp.CallToolRequest, args ExecutionArgs) (CancelStateResponse, error) {
	state := s.service.ExecutionCancelState(ctx, args.ID)
	return CancelStateResponse{ID: args.ID, Canceled: state.Canceled(), State: state}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: chronicle://executions/{id}
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(executionURIPrefix+"{id}", "Execution Record",
		mcp.WithTemplateMIMEType("application/json"),
	), s.readExecution)
}

func (s *Server) readExecution(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	id := strings.TrimPrefix(uri, executionURIPrefix)
	if id == "" || id == uri {
		return nil, fmt.Errorf("invalid execution uri %q", uri)
	}

	exec, err := s.service.GetExecution(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read execution: %w", err)
	}
	jsonBytes, err := json.Marshal(exec)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
