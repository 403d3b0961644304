// Package mcp exposes the assistant as a Model Context Protocol server, so
// agents can hand data science tasks to dsflow as a tool.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/dsflow"
	"github.com/aretw0/dsflow/internal/logging"
	"github.com/aretw0/dsflow/internal/presentation/graph"
	"github.com/aretw0/dsflow/internal/workflow"
	"github.com/aretw0/dsflow/pkg/dataset"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
	"github.com/aretw0/dsflow/pkg/runner"
)

// GraphURI is the resource holding the workflow diagram.
const GraphURI = "dsflow://graph"

// Assistant is the part of dsflow.Assistant the server drives.
type Assistant interface {
	Run(ctx context.Context, req dsflow.Request, emit func(domain.StepEvent)) (*domain.State, error)
}

// RunTaskArgs are the arguments of the run_task tool.
type RunTaskArgs struct {
	Message         string `json:"message"`
	RecursionLimit  int    `json:"recursion_limit,omitempty"`
	DatasetPath     string `json:"dataset_path,omitempty"`
	TestDatasetPath string `json:"test_dataset_path,omitempty"`
}

// RunResult is the structured outcome of a run.
type RunResult struct {
	RunID  string           `json:"run_id" jsonschema_description:"Identifier of the run"`
	Status domain.RunStatus `json:"status" jsonschema_description:"completed, failed or depth_exceeded"`
	Report string           `json:"report" jsonschema_description:"The final report in markdown"`
	Steps  int              `json:"steps" jsonschema_description:"Number of steps executed"`
	Error  string           `json:"error,omitempty" jsonschema_description:"Why the run stopped early"`
}

// GetRunArgs are the arguments of the get_run tool.
type GetRunArgs struct {
	RunID string `json:"run_id"`
}

// Server wraps the assistant and exposes it as an MCP Server.
type Server struct {
	assistant Assistant
	store     ports.RunStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(assistant Assistant, store ports.RunStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		assistant: assistant,
		store:     store,
		logger:    logger,
		mcpServer: server.NewMCPServer("dsflow-mcp", strings.TrimSpace(dsflow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("run_task",
		mcp.WithDescription("Solve a data science task: the assistant plans, writes and executes code, then returns a report."),
		mcp.WithString("message", mcp.Required(), mcp.Description("The task in plain language")),
		mcp.WithNumber("recursion_limit", mcp.Description("Maximum number of steps for this run")),
		mcp.WithString("dataset_path", mcp.Description("CSV file with the training data")),
		mcp.WithString("test_dataset_path", mcp.Description("CSV file to run inference on")),
		mcp.WithOutputSchema[RunResult](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunTask))

	getTool := mcp.NewTool("get_run",
		mcp.WithDescription("Fetch the outcome of a previous run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Identifier returned by run_task")),
		mcp.WithOutputSchema[RunResult](),
	)
	s.mcpServer.AddTool(getTool, mcp.NewStructuredToolHandler(s.handleGetRun))
}

func (s *Server) handleRunTask(ctx context.Context, request mcp.CallToolRequest, args RunTaskArgs) (RunResult, error) {
	req := dsflow.Request{Message: args.Message, RecursionLimit: args.RecursionLimit}
	if args.DatasetPath != "" {
		ds, err := dataset.LoadField(runner.FieldDatasetPath, args.DatasetPath)
		if err != nil {
			return RunResult{}, err
		}
		req.Dataset = ds
	}
	if args.TestDatasetPath != "" {
		ds, err := dataset.LoadField(runner.FieldTestDatasetPath, args.TestDatasetPath)
		if err != nil {
			return RunResult{}, err
		}
		req.TestDataset = ds
	}

	state, err := s.assistant.Run(ctx, req, nil)
	if state == nil {
		return RunResult{}, fmt.Errorf("run rejected: %w", err)
	}
	if err != nil {
		s.logger.Warn("MCP run_task: run ended early", "run_id", state.RunID, "err", err)
	}
	return result(state), nil
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest, args GetRunArgs) (RunResult, error) {
	state, err := s.store.Load(ctx, args.RunID)
	if err != nil {
		return RunResult{}, err
	}
	return result(state), nil
}

func result(state *domain.State) RunResult {
	return RunResult{
		RunID:  state.RunID,
		Status: state.Status,
		Report: state.Report,
		Steps:  state.Steps,
		Error:  state.Error,
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Workflow graph",
		mcp.WithResourceDescription("The assistant's step graph as a Mermaid flowchart"),
		mcp.WithMIMEType("text/plain"),
	), s.readGraph)
}

func (s *Server) readGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      GraphURI,
			MIMEType: "text/plain",
			Text:     graph.GenerateMermaid(workflow.Topology(), nil),
		},
	}, nil
}
