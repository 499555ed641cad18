package surface

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rendis/flowdesigner/internal/diagram"
	"github.com/rendis/flowdesigner/internal/streaming"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// MemorySurface is a headless, in-process render surface. It keeps the graph
// of every instance in memory and publishes user interactions to a hub. The
// CLI and MCP server use it to run designer sessions without a browser.
type MemorySurface struct {
	hub  streaming.EventHub
	gate <-chan struct{}

	mu        sync.Mutex
	instances map[Handle]*memoryInstance
}

type memoryInstance struct {
	containerID string
	readOnly    bool
	gridColor   string
	graph       *diagram.Graph
}

// MemoryOption configures a MemorySurface.
type MemoryOption func(*MemorySurface)

// WithInitGate makes Create block until gate is closed, simulating a
// surface that initializes asynchronously.
func WithInitGate(gate <-chan struct{}) MemoryOption {
	return func(s *MemorySurface) { s.gate = gate }
}

// NewMemorySurface creates a MemorySurface publishing to hub, which may be nil.
func NewMemorySurface(hub streaming.EventHub, opts ...MemoryOption) *MemorySurface {
	s := &MemorySurface{hub: hub, instances: make(map[Handle]*memoryInstance)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemorySurface) Create(ctx context.Context, containerID string, readOnly bool) (Handle, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	h := Handle(uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[h] = &memoryInstance{
		containerID: containerID,
		readOnly:    readOnly,
		graph:       &diagram.Graph{},
	}
	return h, nil
}

func (s *MemorySurface) LoadGraph(_ context.Context, h Handle, g *diagram.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.instance(h)
	if err != nil {
		return err
	}
	inst.graph = cloneGraph(g)
	return nil
}

func (s *MemorySurface) ReadGraph(_ context.Context, h Handle) (*diagram.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.instance(h)
	if err != nil {
		return nil, err
	}
	return cloneGraph(inst.graph), nil
}

func (s *MemorySurface) AddNode(_ context.Context, h Handle, n *diagram.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.writable(h)
	if err != nil {
		return err
	}
	if inst.graph.Node(n.ID) != nil {
		return fmt.Errorf("node %q already exists", n.ID)
	}
	cp := *n
	inst.graph.Nodes = append(inst.graph.Nodes, &cp)
	return nil
}

func (s *MemorySurface) UpdateNode(_ context.Context, h Handle, nodeID string, activity *schema.Activity, ports []diagram.NodePort) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.instance(h)
	if err != nil {
		return err
	}
	n := inst.graph.Node(nodeID)
	if n == nil {
		return fmt.Errorf("node %q not found", nodeID)
	}
	n.Activity = activity
	if activity != nil {
		n.Label = activity.DisplayLabel(n.Label)
	}
	n.Ports = append([]diagram.NodePort(nil), ports...)
	return nil
}

func (s *MemorySurface) UpdateNodeSize(_ context.Context, h Handle, nodeID string, size schema.Size, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.instance(h)
	if err != nil {
		return err
	}
	n := inst.graph.Node(nodeID)
	if n == nil {
		return fmt.Errorf("node %q not found", nodeID)
	}
	n.Size = size
	return nil
}

func (s *MemorySurface) SetGridColor(_ context.Context, h Handle, color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.instance(h)
	if err != nil {
		return err
	}
	inst.gridColor = color
	return nil
}

func (s *MemorySurface) Dispose(_ context.Context, h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.instance(h); err != nil {
		return err
	}
	delete(s.instances, h)
	return nil
}

// GridColor returns the grid color of an instance.
func (s *MemorySurface) GridColor(h Handle) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := s.instances[h]; ok {
		return inst.gridColor
	}
	return ""
}

// MoveNode simulates the user dragging a node and raises graph_changed.
func (s *MemorySurface) MoveNode(ctx context.Context, h Handle, nodeID string, pos schema.Position) error {
	s.mu.Lock()
	inst, err := s.writable(h)
	if err == nil {
		if n := inst.graph.Node(nodeID); n != nil {
			n.Position = pos
		} else {
			err = fmt.Errorf("node %q not found", nodeID)
		}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return NewEvents(s.hub, h).GraphChanged(ctx)
}

// Connect simulates the user drawing an edge and raises graph_changed.
func (s *MemorySurface) Connect(ctx context.Context, h Handle, e diagram.Edge) error {
	s.mu.Lock()
	inst, err := s.writable(h)
	if err == nil {
		inst.graph.Edges = append(inst.graph.Edges, e)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return NewEvents(s.hub, h).GraphChanged(ctx)
}

// SelectNode simulates a click on a node.
func (s *MemorySurface) SelectNode(ctx context.Context, h Handle, nodeID string) error {
	return NewEvents(s.hub, h).NodeSelected(ctx, nodeID)
}

// SelectEmbeddedPort simulates a click on a node's embedded port.
func (s *MemorySurface) SelectEmbeddedPort(ctx context.Context, h Handle, nodeID, portName string) error {
	return NewEvents(s.hub, h).EmbeddedPortSelected(ctx, nodeID, portName)
}

// SelectCanvas simulates a click on the empty canvas.
func (s *MemorySurface) SelectCanvas(ctx context.Context, h Handle) error {
	return NewEvents(s.hub, h).CanvasSelected(ctx)
}

func (s *MemorySurface) instance(h Handle) (*memoryInstance, error) {
	inst, ok := s.instances[h]
	if !ok {
		return nil, fmt.Errorf("surface %q is disposed or unknown", h)
	}
	return inst, nil
}

func (s *MemorySurface) writable(h Handle) (*memoryInstance, error) {
	inst, err := s.instance(h)
	if err != nil {
		return nil, err
	}
	if inst.readOnly {
		return nil, fmt.Errorf("surface %q is read-only", h)
	}
	return inst, nil
}

// cloneGraph copies nodes and edges so callers cannot alias surface state.
// Activity pointers are shared: they belong to the caller's tree.
func cloneGraph(g *diagram.Graph) *diagram.Graph {
	if g == nil {
		return &diagram.Graph{}
	}
	out := &diagram.Graph{
		Title: g.Title,
		Nodes: make([]*diagram.Node, len(g.Nodes)),
		Edges: append([]diagram.Edge(nil), g.Edges...),
	}
	for i, n := range g.Nodes {
		cp := *n
		cp.Ports = append([]diagram.NodePort(nil), n.Ports...)
		cp.Embedded = append([]schema.Port(nil), n.Embedded...)
		out.Nodes[i] = &cp
	}
	return out
}

var _ Surface = (*MemorySurface)(nil)
