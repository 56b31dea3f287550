// Package mcp exposes tools from an MCP server through the tool.Provider
// interface, so remote tools join the registry next to the built-in ones.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sweetpotato0/regrag/tool"
)

// ErrClientClosed is returned when the MCP session has been closed.
var ErrClientClosed = errors.New("mcp client closed")

// Transport enumerates the supported MCP transport types.
type Transport string

const (
	// TransportStreamable is the streamable HTTP (SSE) transport.
	TransportStreamable Transport = "streamable"
	// TransportCommand is the stdio/command transport.
	TransportCommand Transport = "command"
)

// Config describes how to connect to an MCP server.
type Config struct {
	// Transport selects the connection type. If empty, command transport
	// is used when Command is set, streamable otherwise.
	Transport Transport
	// Endpoint is required for streamable HTTP connections.
	Endpoint string
	// Command is required for command transport connections.
	Command string
	// Args are passed to the command.
	Args []string
	// Env appends environment variables for the command.
	Env []string
}

// Provider bridges an MCP server to the tool registry.
type Provider struct {
	client  *sdkmcp.Client
	session *sdkmcp.ClientSession

	toolsChanged chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewProvider connects to the MCP server and performs the handshake.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	transport := cfg.Transport
	if transport == "" {
		if cfg.Command != "" {
			transport = TransportCommand
		} else {
			transport = TransportStreamable
		}
	}

	p := &Provider{toolsChanged: make(chan struct{}, 1)}

	opts := &sdkmcp.ClientOptions{
		ToolListChangedHandler: func(context.Context, *sdkmcp.ToolListChangedRequest) {
			select {
			case p.toolsChanged <- struct{}{}:
			default:
			}
		},
	}
	p.client = sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "regrag",
		Version: "0.1.0",
	}, opts)

	var sdkTransport sdkmcp.Transport
	switch transport {
	case TransportStreamable:
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return nil, errors.New("mcp: endpoint is required for streamable transport")
		}
		sdkTransport = &sdkmcp.StreamableClientTransport{Endpoint: cfg.Endpoint}
	case TransportCommand:
		if strings.TrimSpace(cfg.Command) == "" {
			return nil, errors.New("mcp: command is required for command transport")
		}
		cmd := exec.Command(cfg.Command, cfg.Args...)
		if len(cfg.Env) > 0 {
			cmd.Env = append(os.Environ(), cfg.Env...)
		}
		sdkTransport = &sdkmcp.CommandTransport{Command: cmd}
	default:
		return nil, fmt.Errorf("mcp: unsupported transport %q", transport)
	}

	session, err := p.client.Connect(ctx, sdkTransport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect failed: %w", err)
	}
	p.session = session

	// fail fast if the server cannot list tools
	if _, err := p.Tools(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// Tools implements tool.Provider.
func (p *Provider) Tools(ctx context.Context) ([]*tool.Tool, error) {
	defs, err := p.listAllTools(ctx)
	if err != nil {
		return nil, err
	}

	tools := make([]*tool.Tool, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		remoteName := def.Name
		tools = append(tools, &tool.Tool{
			Name:        remoteName,
			Description: def.Description,
			Parameters:  parametersFromSchema(def.InputSchema),
			Handler: func(ctx context.Context, in tool.Inputs) (tool.Output, error) {
				args := in.Args
				if args == nil {
					args = make(map[string]any)
				}
				text, err := p.callTool(ctx, remoteName, args)
				if err != nil {
					return tool.Output{}, err
				}
				return tool.Output{Tool: remoteName, Text: text}, nil
			},
		})
	}
	return tools, nil
}

// ToolsChanged implements tool.Provider.
func (p *Provider) ToolsChanged() <-chan struct{} {
	return p.toolsChanged
}

// Close implements tool.Provider.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		if p.session != nil {
			p.closeErr = p.session.Close()
		}
	})
	return p.closeErr
}

func (p *Provider) listAllTools(ctx context.Context) ([]*sdkmcp.Tool, error) {
	if p.session == nil {
		return nil, ErrClientClosed
	}

	params := &sdkmcp.ListToolsParams{}
	var tools []*sdkmcp.Tool
	for {
		res, err := p.session.ListTools(ctx, params)
		if err != nil {
			return nil, err
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			break
		}
		params.Cursor = res.NextCursor
	}
	return tools, nil
}

func (p *Provider) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if p.session == nil {
		return "", ErrClientClosed
	}

	result, err := p.session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}

	message := normalizeContent(result.Content)
	if result.IsError {
		if message == "" {
			message = "tool returned error without message"
		}
		return "", fmt.Errorf("mcp tool %s: %s", name, message)
	}
	return message, nil
}

func normalizeContent(content []sdkmcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch v := c.(type) {
		case *sdkmcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := c.MarshalJSON(); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func parametersFromSchema(schema any) []tool.Parameter {
	schemaMap := toMap(schema)
	if schemaMap == nil {
		return nil
	}
	if typeVal, _ := schemaMap["type"].(string); !strings.EqualFold(typeVal, "object") {
		return nil
	}
	propsRaw, ok := schemaMap["properties"].(map[string]any)
	if !ok || len(propsRaw) == 0 {
		return nil
	}

	requiredSet := make(map[string]struct{})
	if list, ok := schemaMap["required"].([]any); ok {
		for _, item := range list {
			if name, ok := item.(string); ok {
				requiredSet[name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(propsRaw))
	for name := range propsRaw {
		names = append(names, name)
	}
	sort.Strings(names)

	parameters := make([]tool.Parameter, 0, len(names))
	for _, name := range names {
		propMap, ok := propsRaw[name].(map[string]any)
		if !ok {
			continue
		}
		param := tool.Parameter{
			Name:        name,
			Description: stringValue(propMap["description"]),
			Type:        stringValue(propMap["type"]),
			Default:     propMap["default"],
		}
		if _, ok := requiredSet[name]; ok {
			param.Required = true
		}
		if enums, ok := toStringSlice(propMap["enum"]); ok {
			param.Enum = enums
		}
		if param.Type == "" {
			param.Type = "string"
		}
		parameters = append(parameters, param)
	}
	return parameters
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toStringSlice(v any) ([]string, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values, true
}

func toMap(v any) map[string]any {
	switch value := v.(type) {
	case map[string]any:
		return value
	case json.RawMessage:
		var out map[string]any
		if err := json.Unmarshal(value, &out); err != nil {
			return nil
		}
		return out
	case []byte:
		var out map[string]any
		if err := json.Unmarshal(value, &out); err != nil {
			return nil
		}
		return out
	default:
		if data, err := json.Marshal(v); err == nil {
			var out map[string]any
			if err := json.Unmarshal(data, &out); err == nil {
				return out
			}
		}
		return nil
	}
}
