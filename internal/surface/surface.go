// Package surface talks to the external render surface that draws graphs.
// Every call goes through a Queue so callers may issue operations before
// the surface has finished initializing.
package surface

import (
	"context"

	"github.com/rendis/flowdesigner/internal/diagram"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// Handle identifies one surface instance.
type Handle string

// Surface is the set of primitive operations a render surface supports.
type Surface interface {
	Create(ctx context.Context, containerID string, readOnly bool) (Handle, error)
	LoadGraph(ctx context.Context, h Handle, g *diagram.Graph) error
	ReadGraph(ctx context.Context, h Handle) (*diagram.Graph, error)
	AddNode(ctx context.Context, h Handle, n *diagram.Node) error
	UpdateNode(ctx context.Context, h Handle, nodeID string, activity *schema.Activity, ports []diagram.NodePort) error
	UpdateNodeSize(ctx context.Context, h Handle, nodeID string, size schema.Size, portCount int) error
	SetGridColor(ctx context.Context, h Handle, color string) error
	Dispose(ctx context.Context, h Handle) error
}
