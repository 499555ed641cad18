package surface

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rendis/flowdesigner/internal/diagram"
	"github.com/rendis/flowdesigner/internal/logging"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// Client binds one surface instance to a Queue. Operations issued before
// Open completes are queued; Open drains them once the surface exists.
type Client struct {
	surface Surface
	queue   *Queue
	logger  *slog.Logger

	settled atomic.Bool

	mu     sync.RWMutex
	handle Handle
}

// NewClient creates a client for s. logger may be nil.
func NewClient(s Surface, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{surface: s, logger: logger}
	c.queue = NewQueue(c.settled.Load, logger)
	return c
}

// Open creates the surface and drains everything queued so far. When
// creation fails the queued operations still drain and fail with
// SURFACE_UNAVAILABLE.
func (c *Client) Open(ctx context.Context, containerID string, readOnly bool) (Handle, error) {
	h, err := c.surface.Create(ctx, containerID, readOnly)
	if err != nil {
		logging.LogWith(ctx, c.logger).Error("create surface failed",
			slog.String("container", containerID),
			slog.String("error", err.Error()))
		err = surfaceError("create", err)
	} else {
		c.mu.Lock()
		c.handle = h
		c.mu.Unlock()
	}

	c.settled.Store(true)
	c.queue.Drain(logging.WithSurface(ctx, string(h)))
	return h, err
}

// Handle returns the surface handle, or "" before Open or after Close.
func (c *Client) Handle() Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle
}

// Ready reports whether Open has completed.
func (c *Client) Ready() bool {
	return c.settled.Load()
}

// Queue exposes the client's queue.
func (c *Client) Queue() *Queue {
	return c.queue
}

// live returns the handle or SURFACE_UNAVAILABLE when no surface exists.
func (c *Client) live() (Handle, error) {
	h := c.Handle()
	if h == "" {
		return "", schema.NewError(schema.ErrCodeSurfaceUnavailable, "render surface is not available")
	}
	return h, nil
}

// LoadGraph replaces the surface content.
func (c *Client) LoadGraph(ctx context.Context, g *diagram.Graph) error {
	return c.queue.Enqueue(ctx, "load_graph", func(ctx context.Context) error {
		h, err := c.live()
		if err != nil {
			return err
		}
		return c.surface.LoadGraph(ctx, h, g)
	})
}

// ReadGraph returns the graph as the surface currently shows it.
func (c *Client) ReadGraph(ctx context.Context) (*diagram.Graph, error) {
	return Call(ctx, c.queue, "read_graph", func(ctx context.Context) (*diagram.Graph, error) {
		h, err := c.live()
		if err != nil {
			return nil, err
		}
		return c.surface.ReadGraph(ctx, h)
	})
}

// AddNode adds one node.
func (c *Client) AddNode(ctx context.Context, n *diagram.Node) error {
	return c.queue.Enqueue(ctx, "add_node", func(ctx context.Context) error {
		h, err := c.live()
		if err != nil {
			return err
		}
		return c.surface.AddNode(ctx, h, n)
	})
}

// UpdateNode refreshes a node's activity data and ports.
func (c *Client) UpdateNode(ctx context.Context, nodeID string, activity *schema.Activity, ports []diagram.NodePort) error {
	return c.queue.Enqueue(ctx, "update_node", func(ctx context.Context) error {
		h, err := c.live()
		if err != nil {
			return err
		}
		return c.surface.UpdateNode(ctx, h, nodeID, activity, ports)
	})
}

// UpdateNodeSize resizes a node. Fire-and-forget.
func (c *Client) UpdateNodeSize(ctx context.Context, nodeID string, size schema.Size, portCount int) {
	c.queue.Do(ctx, "update_node_size", func(ctx context.Context) error {
		h, err := c.live()
		if err != nil {
			return err
		}
		return c.surface.UpdateNodeSize(ctx, h, nodeID, size, portCount)
	})
}

// SetGridColor changes the canvas grid color. Fire-and-forget.
func (c *Client) SetGridColor(ctx context.Context, color string) {
	c.queue.Do(ctx, "set_grid_color", func(ctx context.Context) error {
		h, err := c.live()
		if err != nil {
			return err
		}
		return c.surface.SetGridColor(ctx, h, color)
	})
}

// Close disposes the surface. Later operations fail with SURFACE_UNAVAILABLE.
func (c *Client) Close(ctx context.Context) error {
	return c.queue.Enqueue(ctx, "dispose", func(ctx context.Context) error {
		h, err := c.live()
		if err != nil {
			return nil
		}
		c.mu.Lock()
		c.handle = ""
		c.mu.Unlock()
		return c.surface.Dispose(ctx, h)
	})
}
