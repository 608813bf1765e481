// Package mcpserver exposes stored workflows as MCP tools over stdio. Each
// stored workflow becomes one tool whose arguments mirror its declared
// variables, so an MCP client can trigger deterministic replays directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/browserlab-dev/workflow-runner/pkg/logger"
	"github.com/browserlab-dev/workflow-runner/pkg/storage"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// Invoker runs a stored workflow with the given inputs and returns its
// extraction outputs.
type Invoker func(ctx context.Context, def *workflow.Definition, inputs map[string]any) (map[string]string, error)

// Server wraps an MCP server around the workflow store.
type Server struct {
	store     *storage.Service
	invoke    Invoker
	mcpServer *server.MCPServer
}

// getArgs extracts arguments from request as map[string]any
func getArgs(request mcp.CallToolRequest) map[string]any {
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		return args
	}
	return make(map[string]any)
}

// NewServer builds an MCP server with one tool per stored workflow.
func NewServer(store *storage.Service, invoke Invoker) (*Server, error) {
	s := &Server{store: store, invoke: invoke}

	mcpServer := server.NewMCPServer(
		"workflow-runner",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerListTool(mcpServer)
	if err := s.registerWorkflowTools(mcpServer); err != nil {
		return nil, err
	}

	s.mcpServer = mcpServer
	return s, nil
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	logger.Info("mcp: serving over stdio")
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerListTool(mcpServer *server.MCPServer) {
	listTool := mcp.NewTool("list_workflows",
		mcp.WithDescription("List the stored browser workflows and their input variables"),
	)
	mcpServer.AddTool(listTool, s.handleList)
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Tool      string   `json:"tool"`
		Variables []string `json:"variables,omitempty"`
	}
	var entries []entry
	for _, summary := range s.store.List(storage.Filter{}) {
		def, err := s.store.Get(summary.ID)
		if err != nil {
			logger.Warn("mcp: skipping unreadable workflow %s: %v", summary.ID, err)
			continue
		}
		e := entry{ID: def.ID, Name: def.Name, Tool: toolName(def.Name)}
		for _, v := range def.Variables {
			e.Variables = append(e.Variables, v.Name)
		}
		entries = append(entries, e)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) registerWorkflowTools(mcpServer *server.MCPServer) error {
	seen := map[string]bool{}
	for _, summary := range s.store.List(storage.Filter{}) {
		def, err := s.store.Get(summary.ID)
		if err != nil {
			return fmt.Errorf("failed to load workflow %s: %w", summary.ID, err)
		}
		name := toolName(def.Name)
		if seen[name] {
			name = name + "_" + shortID(def.ID)
		}
		seen[name] = true

		opts := []mcp.ToolOption{
			mcp.WithDescription(toolDescription(def)),
		}
		for _, v := range def.Variables {
			opts = append(opts, variableOption(v))
		}
		mcpServer.AddTool(mcp.NewTool(name, opts...), s.workflowHandler(def.ID))
		logger.Debug("mcp: registered tool %s for workflow %s", name, def.ID)
	}
	return nil
}

func (s *Server) workflowHandler(id string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Reload so edits made while serving are picked up
		def, err := s.store.Get(id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("workflow %s: %v", id, err)), nil
		}

		inputs := map[string]any{}
		args := getArgs(request)
		for _, v := range def.Variables {
			if raw, ok := args[v.Name]; ok {
				inputs[v.Name] = raw
			}
		}

		outputs, err := s.invoke(ctx, def, inputs)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(outputs) == 0 {
			return mcp.NewToolResultText("workflow completed"), nil
		}
		data, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func variableOption(v workflow.Variable) mcp.ToolOption {
	desc := fmt.Sprintf("Workflow input %q (%s)", v.Name, v.Type)
	props := []mcp.PropertyOption{mcp.Description(desc)}
	if !v.HasDefault() {
		props = append(props, mcp.Required())
	}
	switch v.Type {
	case workflow.TypeNumber:
		return mcp.WithNumber(v.Name, props...)
	case workflow.TypeBool:
		return mcp.WithBoolean(v.Name, props...)
	case workflow.TypeEnum:
		props = append(props, mcp.Enum(v.Options...))
		return mcp.WithString(v.Name, props...)
	default:
		return mcp.WithString(v.Name, props...)
	}
}

func toolDescription(def *workflow.Definition) string {
	desc := fmt.Sprintf("Run the %q browser workflow", def.Name)
	if def.Metadata.SourceTask != "" {
		desc += ": " + def.Metadata.SourceTask
	}
	return desc
}

var toolNamePattern = regexp.MustCompile(`[^a-z0-9_]+`)

func toolName(name string) string {
	n := toolNamePattern.ReplaceAllString(strings.ToLower(name), "_")
	n = strings.Trim(n, "_")
	if n == "" {
		n = "workflow"
	}
	return "run_" + n
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
