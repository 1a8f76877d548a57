// Package mcp exposes a local tool registry to external MCP hosts over the
// Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWwei/rag-agent/pkg/logging"
	"github.com/MrWwei/rag-agent/tool"
)

// ServerInfo identifies the server to connecting MCP clients.
type ServerInfo struct {
	Name    string
	Version string
	Title   string
}

// NewServer builds an MCP server publishing every tool in the registry.
// Tool failures surface as IsError results with the registry's textual
// observation, never as protocol errors.
func NewServer(info ServerInfo, registry *tool.Registry) *sdkmcp.Server {
	if info.Name == "" {
		info.Name = "medqa"
	}
	if info.Version == "" {
		info.Version = "0.1.0"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    info.Name,
		Version: info.Version,
		Title:   info.Title,
	}, nil)

	logger := logging.WithComponent("mcp.server")
	for _, t := range registry.List() {
		addRegistryTool(server, registry, t, logger)
	}
	return server
}

// ServeStdio runs the server on stdin/stdout until the context is cancelled
// or the client disconnects.
func ServeStdio(ctx context.Context, server *sdkmcp.Server) error {
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}

func addRegistryTool(server *sdkmcp.Server, registry *tool.Registry, t *tool.Tool, logger *slog.Logger) {
	name := t.Name
	server.AddTool(&sdkmcp.Tool{
		Name:        name,
		Description: t.Description,
		InputSchema: inputSchema(t),
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		args, err := decodeArguments(req.Params.Arguments)
		if err != nil {
			return nil, fmt.Errorf("decode arguments for %s: %w", name, err)
		}

		res := registry.Execute(ctx, name, args)
		if !res.OK {
			logger.Warn("tool call failed", "tool", name, "observation", res.Observation)
		}
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: res.Observation}},
			IsError: !res.OK,
		}, nil
	})
}

// inputSchema renders a tool's parameter list as a JSON schema object.
func inputSchema(t *tool.Tool) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(t.Parameters)),
	}
	for _, p := range t.Parameters {
		prop := &jsonschema.Schema{
			Type:        p.Type,
			Description: p.Description,
		}
		if p.Type == "array" && p.Items != "" {
			prop.Items = &jsonschema.Schema{Type: p.Items}
		}
		for _, e := range p.Enum {
			prop.Enum = append(prop.Enum, e)
		}
		schema.Properties[p.Name] = prop
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}

// decodeArguments normalizes the wire arguments to the map the registry
// executes with. The SDK may hand us raw JSON or an already-decoded value.
func decodeArguments(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	args := map[string]any{}
	if len(data) == 0 || string(data) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	return args, nil
}
