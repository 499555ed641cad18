package diagram

import (
	"fmt"

	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/ports"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// Mapper translates between flowcharts and graphs. Ports come from the
// resolver, labels and shapes from the descriptor registry.
type Mapper struct {
	resolver *ports.Resolver
	registry descriptors.Registry
}

// NewMapper creates a Mapper. registry may be nil.
func NewMapper(resolver *ports.Resolver, registry descriptors.Registry) *Mapper {
	return &Mapper{resolver: resolver, registry: registry}
}

// ToGraph builds one node per activity and one edge per connection.
// A connection whose endpoint activity is missing fails with
// DANGLING_CONNECTION; it is never dropped.
func (m *Mapper) ToGraph(fc *schema.Flowchart) (*Graph, error) {
	index := make(map[string]*schema.Activity, len(fc.Activities))
	for _, a := range fc.Activities {
		if _, dup := index[a.ID]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"duplicate activity id %q in flowchart", a.ID).WithActivity(a.ID)
		}
		index[a.ID] = a
	}

	g := &Graph{
		Nodes: make([]*Node, 0, len(fc.Activities)),
		Edges: make([]Edge, 0, len(fc.Connections)),
	}
	for _, a := range fc.Activities {
		n, err := m.Node(a)
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, n)
	}

	for i, c := range fc.Connections {
		key := c.Key(PortDone, PortIn)
		if err := danglingCheck(i, key, index[key.Source] != nil, index[key.Target] != nil); err != nil {
			return nil, err
		}
		g.Edges = append(g.Edges, Edge{
			Source: Endpoint{Cell: key.Source, Port: key.SourcePort},
			Target: Endpoint{Cell: key.Target, Port: key.TargetPort},
		})
	}
	return g, nil
}

// Node builds the node for a single activity.
func (m *Mapper) Node(a *schema.Activity) (*Node, error) {
	desc := descriptors.Lookup(m.registry, a)
	all, err := m.resolver.GetPorts(a, desc)
	if err != nil {
		return nil, err
	}

	n := &Node{
		ID:       a.ID,
		Type:     a.Type,
		Label:    a.DisplayLabel(displayName(desc)),
		Shape:    shapeFor(a, desc),
		Size:     schema.Size{Width: DefaultWidth, Height: DefaultHeight},
		Activity: a,
	}
	if d := a.Metadata.Designer; d != nil {
		if d.Position != nil {
			n.Position = *d.Position
		}
		if d.Size != nil && d.Size.Width > 0 && d.Size.Height > 0 {
			n.Size = *d.Size
		}
	}

	n.Ports = append(n.Ports, NodePort{ID: PortIn, Group: PortGroupIn, Synthetic: true})
	flow := schema.FilterPorts(all, schema.PortKindFlow)
	for _, p := range flow {
		n.Ports = append(n.Ports, NodePort{ID: p.Name, Group: PortGroupOut, Label: p.Label()})
	}
	if len(flow) == 0 {
		n.Ports = append(n.Ports, NodePort{ID: PortDone, Group: PortGroupOut, Synthetic: true})
	}
	if embedded := schema.FilterPorts(all, schema.PortKindEmbedded); len(embedded) > 0 {
		n.Embedded = embedded
	}
	return n, nil
}

// ToFlowchart recovers the activity behind every node, copies the node's
// position and size into its designer metadata and turns every edge into a
// connection. Activities are taken from the node when it carries one and
// otherwise looked up by ID in source, which may be nil. An edge that source
// already holds keeps its stored form, omitted default ports included.
func (m *Mapper) ToFlowchart(g *Graph, source *schema.Flowchart) (*schema.Flowchart, error) {
	fc := &schema.Flowchart{
		Activities:  make([]*schema.Activity, 0, len(g.Nodes)),
		Connections: make([]schema.Connection, 0, len(g.Edges)),
	}

	cells := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		a := n.Activity
		if a == nil && source != nil {
			a = source.Find(n.ID)
		}
		if a == nil {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound,
				"no activity for graph node %q", n.ID).WithActivity(n.ID)
		}
		d := a.Designer()
		pos := n.Position
		size := n.Size
		d.Position = &pos
		d.Size = &size
		fc.Activities = append(fc.Activities, a)
		cells[n.ID] = true
	}

	known := existingConnections(source)
	for i, e := range g.Edges {
		key := schema.ConnectionKey{
			Source: e.Source.Cell, SourcePort: e.Source.Port,
			Target: e.Target.Cell, TargetPort: e.Target.Port,
		}
		if err := danglingCheck(i, key, cells[key.Source], cells[key.Target]); err != nil {
			return nil, err
		}
		if c, ok := known[key]; ok {
			fc.Connections = append(fc.Connections, c)
			continue
		}
		fc.Connections = append(fc.Connections, schema.Connection{
			Source:     key.Source,
			SourcePort: key.SourcePort,
			Target:     key.Target,
			TargetPort: key.TargetPort,
		})
	}
	return fc, nil
}

// existingConnections indexes source's connections by endpoint identity so
// an unchanged edge is written back exactly as it was read.
func existingConnections(source *schema.Flowchart) map[schema.ConnectionKey]schema.Connection {
	if source == nil {
		return nil
	}
	out := make(map[schema.ConnectionKey]schema.Connection, len(source.Connections))
	for _, c := range source.Connections {
		key := c.Key(PortDone, PortIn)
		if _, dup := out[key]; !dup {
			out[key] = c
		}
	}
	return out
}

func danglingCheck(i int, key schema.ConnectionKey, hasSource, hasTarget bool) error {
	var missing string
	switch {
	case !hasSource:
		missing = key.Source
	case !hasTarget:
		missing = key.Target
	default:
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeDanglingConnection,
		"connection %d (%s:%s -> %s:%s) references missing activity %q",
		i, key.Source, key.SourcePort, key.Target, key.TargetPort, missing).
		WithDetails(map[string]any{
			"index":   i,
			"source":  key.Source,
			"target":  key.Target,
			"missing": missing,
		})
}

func displayName(d *schema.ActivityDescriptor) string {
	if d == nil {
		return ""
	}
	return d.DisplayName
}

// shapeFor picks the descriptor's explicit shape, then one by category.
func shapeFor(a *schema.Activity, d *schema.ActivityDescriptor) Shape {
	if a.IsFlowchart() {
		return ShapeSubroutine
	}
	if d == nil {
		return ShapeRect
	}
	if d.Shape != "" {
		return Shape(d.Shape)
	}
	switch d.Category {
	case "Branching":
		return ShapeDiamond
	case "Looping", "Flow":
		return ShapeSubroutine
	case "Scheduling":
		return ShapeRounded
	case "HTTP":
		return ShapeHexagon
	default:
		return ShapeRect
	}
}

// Title sets the graph title from a workflow and navigation breadcrumb.
func Title(def *schema.WorkflowDefinition, crumbs ...string) string {
	title := def.Title()
	for _, c := range crumbs {
		title = fmt.Sprintf("%s / %s", title, c)
	}
	return title
}
