package tool

import "context"

// Provider supplies tools that can be registered with the agent, e.g. the
// MCP bridge in contrib/tools/mcp.
type Provider interface {
	// Tools returns the provider's current tool definitions.
	Tools(ctx context.Context) ([]*Tool, error)
	// Close releases resources owned by the provider.
	Close() error
	// ToolsChanged returns a channel that fires when the tool set is updated.
	// Providers that do not support live updates should return nil.
	ToolsChanged() <-chan struct{}
}

// RegisterProvider pulls the provider's tools into the registry, replacing
// same-named entries.
func RegisterProvider(ctx context.Context, r *Registry, p Provider) error {
	tools, err := p.Tools(ctx)
	if err != nil {
		return err
	}
	for _, t := range tools {
		if err := r.Upsert(t); err != nil {
			return err
		}
	}
	return nil
}
