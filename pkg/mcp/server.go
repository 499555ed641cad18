package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/ports"
	"github.com/rendis/flowdesigner/internal/store"
	"github.com/rendis/flowdesigner/internal/validation"
)

// DesignerServerDeps holds the dependencies for creating a DesignerServer.
// Store is optional; without it designer.save and designer.load report an
// error result.
type DesignerServerDeps struct {
	Store    store.Store
	Resolver *ports.Resolver
	Registry descriptors.Registry
	Logger   *slog.Logger
	Version  string
}

// DesignerServer wraps an MCP server with the designer tool handlers.
type DesignerServer struct {
	store     store.Store
	resolver  *ports.Resolver
	registry  descriptors.Registry
	validator *validation.WorkflowValidator
	watchers  *WatchRegistry
	notifier  RevisionNotifier
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewDesignerServer creates a DesignerServer with every designer tool registered.
func NewDesignerServer(deps DesignerServerDeps) (*DesignerServer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	registry := deps.Registry
	if registry == nil {
		registry = descriptors.Builtin()
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = ports.NewCatalogResolver(registry)
	}
	validator, err := validation.NewWorkflowValidator(resolver, registry)
	if err != nil {
		return nil, err
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &DesignerServer{
		store:     deps.Store,
		resolver:  resolver,
		registry:  registry,
		validator: validator,
		watchers:  NewWatchRegistry(),
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"flowdesigner",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(s.hooks()),
		server.WithInstructions("flowdesigner edits Elsa-style workflow documents. Use designer.ports to list an activity's ports, designer.graph to view a flowchart (optionally inside embedded ports via path), designer.validate to check a document, and designer.save / designer.load / designer.list for stored definitions."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.watchers)
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *DesignerServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *DesignerServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// hooks drops watch registrations of sessions that go away.
func (s *DesignerServer) hooks() *server.Hooks {
	h := &server.Hooks{}
	h.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		s.watchers.Remove(session.SessionID())
	})
	return h
}

func (s *DesignerServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: portsTool(), Handler: s.handlePorts},
		{Tool: graphTool(), Handler: s.handleGraph},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: saveTool(), Handler: s.handleSave},
		{Tool: loadTool(), Handler: s.handleLoad},
		{Tool: listTool(), Handler: s.handleList},
	}
}

// --- Tool definitions ---

func workflowArg() mcp.ToolOption {
	return mcp.WithObject("workflow", mcp.Description("Workflow document: {definitionId, name, version, root}"))
}

func pathArg() mcp.ToolOption {
	return mcp.WithArray("path",
		mcp.Description(`Navigation path into embedded ports, one "activityId:portName" entry per hop`),
		mcp.WithStringItems(),
	)
}

func portsTool() mcp.Tool {
	return mcp.NewTool("designer.ports",
		mcp.WithDescription("List the flow and embedded ports of an activity"),
		workflowArg(),
		mcp.WithString("definition_id", mcp.Description("Stored definition to read instead of an inline workflow")),
		mcp.WithString("activity_id", mcp.Required(), mcp.Description("ID of the activity in the container reached by path")),
		pathArg(),
	)
}

func graphTool() mcp.Tool {
	return mcp.NewTool("designer.graph",
		mcp.WithDescription("Render one flowchart of a workflow as a flat graph"),
		workflowArg(),
		mcp.WithString("definition_id", mcp.Description("Stored definition to read instead of an inline workflow")),
		pathArg(),
		mcp.WithString("format",
			mcp.Enum("json", "mermaid"),
			mcp.Description("Output format: json (graph + breadcrumbs) or mermaid (flowchart syntax). Default json"),
		),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("designer.validate",
		mcp.WithDescription("Validate a workflow document"),
		mcp.WithObject("workflow", mcp.Required(), mcp.Description("Workflow document to validate")),
	)
}

func saveTool() mcp.Tool {
	return mcp.NewTool("designer.save",
		mcp.WithDescription("Validate and store a workflow definition as a new revision"),
		mcp.WithObject("workflow", mcp.Required(), mcp.Description("Workflow document to store")),
	)
}

func loadTool() mcp.Tool {
	return mcp.NewTool("designer.load",
		mcp.WithDescription("Load a stored workflow definition"),
		mcp.WithString("definition_id", mcp.Required(), mcp.Description("ID of the definition")),
		mcp.WithNumber("revision", mcp.Description("Revision to load (default: latest)")),
		mcp.WithBoolean("watch", mcp.Description("Notify this session when another session saves the definition")),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("designer.list",
		mcp.WithDescription("List stored workflow definitions"),
		mcp.WithString("name_prefix", mcp.Description("Only definitions whose name starts with this prefix")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 50)")),
	)
}
