// Package mcpserver exposes an assistant's tools to MCP clients. The tools
// run without the model: the client decides what to call. Calls share one
// session so stateful tools (research findings, sources) keep working across
// calls.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/assistants/artifact"
	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/memory"
	"github.com/hupe1980/assistants/tool"
)

// Options configures a Server.
type Options struct {
	Name         string
	Version      string
	Instructions string
	// AgentName is reported to tools as the caller.
	AgentName string
	AppName   string
	UserID    string
	SessionID string

	Logger        logging.Logger
	MemoryStore   core.MemoryStore
	ArtifactStore core.ArtifactStore
}

// Server wraps an MCP server whose tools are runtime tools.
type Server struct {
	mcp     *server.MCPServer
	tools   []mcp.Tool
	session *core.Session
	opts    Options

	mu sync.Mutex
}

// New registers tools on a new MCP server.
func New(tools []tool.Tool, optFns ...func(o *Options)) (*Server, error) {
	opts := Options{
		Name:      "assistants",
		Version:   "1.0.0",
		AgentName: "mcp",
		AppName:   "mcp_app",
		UserID:    "default_user",
		SessionID: "mcp_session",
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore()
	}

	if opts.ArtifactStore == nil {
		opts.ArtifactStore = artifact.NewInMemoryStore()
	}

	serverOpts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}

	if opts.Instructions != "" {
		serverOpts = append(serverOpts, server.WithInstructions(opts.Instructions))
	}

	s := &Server{
		mcp:     server.NewMCPServer(opts.Name, opts.Version, serverOpts...),
		session: core.NewSession(opts.AppName, opts.UserID, opts.SessionID),
		opts:    opts,
	}

	for _, t := range tools {
		mt, err := Convert(t)
		if err != nil {
			return nil, err
		}

		s.tools = append(s.tools, mt)
		s.mcp.AddTool(mt, s.Handler(t))
	}

	return s, nil
}

// Convert describes t as an MCP tool, reusing its JSON schema as is.
func Convert(t tool.Tool) (mcp.Tool, error) {
	schema := t.Parameters()
	if schema == nil {
		schema = tool.Object(map[string]any{})
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("schema of %s: %w", t.Name(), err)
	}

	return mcp.NewToolWithRawSchema(t.Name(), t.Description(), raw), nil
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Tools returns the registered tool descriptions in registration order.
func (s *Server) Tools() []mcp.Tool { return s.tools }

// Session returns the session shared by all calls.
func (s *Server) Session() *core.Session { return s.session }

// Handler adapts t to an MCP tool handler. Tool errors become error results
// rather than protocol errors.
func (s *Server) Handler(t tool.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		tc := core.NewDetachedToolContext(ctx, s.session, s.opts.AgentName, core.RunContextOptions{
			MemoryStore:   s.opts.MemoryStore,
			ArtifactStore: s.opts.ArtifactStore,
			Logger:        s.opts.Logger,
		})

		s.opts.Logger.Debug("mcp.tool.call", "tool", t.Name())

		// Calls arrive concurrently. Reading state and committing the delta
		// must not interleave, or read-modify-write updates are lost.
		s.mu.Lock()
		out, err := t.Call(tc, args)
		s.commit(tc)
		s.mu.Unlock()

		if err != nil {
			s.opts.Logger.Warn("mcp.tool.error", "tool", t.Name(), "error", err.Error())
			return mcp.NewToolResultError(err.Error()), nil
		}

		text, err := render(out)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(text), nil
	}
}

// commit persists the state a call staged. The caller holds s.mu.
func (s *Server) commit(tc *core.ToolContext) {
	delta := tc.Actions().StateDelta
	if len(delta) == 0 {
		return
	}

	s.session.ApplyStateDelta(delta)
}

func render(out any) (string, error) {
	switch v := out.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}

		return string(b), nil
	}
}

// ServeStdio speaks MCP over in and out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}
