package rpc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolSpec describes one dispatcher method exposed as an MCP tool.
type ToolSpec struct {
	Name        string // MCP tool name, e.g. "task.create"
	Description string
	Method      string // dispatcher method name; defaults to Name
}

// MCPConfig configures the MCP transport.
type MCPConfig struct {
	Implementation mcp.Implementation
	// AllowTools restricts which registered ToolSpecs are exposed. An empty
	// slice exposes every registered tool.
	AllowTools []string
}

// MCPServer exposes a bounded subset of the Model Context Protocol
// (tools/list, tools/call; prompts/resources/logging fall back to the SDK's
// empty defaults since this surface registers no prompts or resources) over
// either streamable HTTP or stdio.
type MCPServer struct {
	cfg   MCPConfig
	disp  *Dispatcher
	tools []ToolSpec
}

// NewMCPServer builds an MCP transport over disp, exposing tools.
func NewMCPServer(cfg MCPConfig, disp *Dispatcher, tools []ToolSpec) *MCPServer {
	return &MCPServer{cfg: cfg, disp: disp, tools: tools}
}

func (s *MCPServer) allowed(name string) bool {
	if len(s.cfg.AllowTools) == 0 {
		return true
	}
	for _, a := range s.cfg.AllowTools {
		if a == name {
			return true
		}
	}
	return false
}

func (s *MCPServer) build() *mcp.Server {
	impl := s.cfg.Implementation
	if impl.Name == "" {
		impl.Name = "codecoder"
	}
	server := mcp.NewServer(&impl, &mcp.ServerOptions{HasTools: true})

	for _, spec := range s.tools {
		if !s.allowed(spec.Name) {
			continue
		}
		method := spec.Method
		if method == "" {
			method = spec.Name
		}
		mcp.AddTool(server, &mcp.Tool{Name: spec.Name, Description: spec.Description}, s.callToolHandler(method))
	}

	return server
}

// callToolHandler adapts one dispatcher method into the generic
// (ctx, *mcp.CallToolRequest, map[string]any) -> (result, map[string]any,
// error) shape mcp.AddTool requires, round-tripping through JSON since the
// dispatcher itself is untyped.
func (s *MCPServer) callToolHandler(method string) func(context.Context, *mcp.CallToolRequest, map[string]any) (*mcp.CallToolResult, map[string]any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in map[string]any) (*mcp.CallToolResult, map[string]any, error) {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, nil, err
		}
		result, err := s.disp.Call(ctx, method, raw)
		if err != nil {
			return nil, nil, err
		}
		out, err := toMap(result)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	}
}

func toMap(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		// non-object results (e.g. a bare string or slice) are wrapped so the
		// tool output stays a JSON object as MCP clients expect.
		return map[string]any{"value": v}, nil
	}
	return out, nil
}

// StreamableHTTPHandler returns an http.Handler serving this MCP surface
// over the streamable-HTTP transport, suitable for mounting under /mcp.
func (s *MCPServer) StreamableHTTPHandler() http.Handler {
	server := s.build()
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, &mcp.StreamableHTTPOptions{JSONResponse: true})
}

// ServeStdio runs this MCP surface over stdio until ctx is cancelled or the
// transport errors out.
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	server := s.build()
	return server.Run(ctx, &mcp.StdioTransport{})
}
