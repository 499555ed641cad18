package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// RevisionNotifier tells watching clients that a definition changed.
type RevisionNotifier interface {
	Notify(ctx context.Context, definitionID, origin string, payload map[string]any) error
}

// MCPNotifier implements RevisionNotifier with MCP server notifications.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	watchers  *WatchRegistry
}

// NewMCPNotifier creates a notifier that pushes to watching sessions.
func NewMCPNotifier(mcpServer *server.MCPServer, watchers *WatchRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, watchers: watchers}
}

// Notify sends payload to every session watching definitionID except origin.
// Best-effort: sessions that went away are dropped silently.
func (n *MCPNotifier) Notify(_ context.Context, definitionID, origin string, payload map[string]any) error {
	var errs []error
	for _, sid := range n.watchers.Watchers(definitionID) {
		if sid == origin {
			continue
		}
		err := n.mcpServer.SendNotificationToSpecificClient(sid, "notifications/message", payload)
		if errors.Is(err, server.ErrSessionNotFound) {
			n.watchers.Remove(sid)
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
