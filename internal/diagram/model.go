package diagram

import "github.com/rendis/flowdesigner/pkg/schema"

// Default node size and synthesized port names.
const (
	DefaultWidth  = 200
	DefaultHeight = 50

	PortIn   = "In"
	PortDone = "Done"
)

// Shape is the outline a render surface draws for a node.
type Shape string

const (
	ShapeRect       Shape = "rect"
	ShapeRounded    Shape = "rounded"
	ShapeDiamond    Shape = "diamond"
	ShapeHexagon    Shape = "hexagon"
	ShapeSubroutine Shape = "subroutine"
)

// PortGroup places a node port on the inbound or outbound side.
type PortGroup string

const (
	PortGroupIn  PortGroup = "in"
	PortGroupOut PortGroup = "out"
)

// Graph is the flat, editor-facing form of one flowchart.
type Graph struct {
	Title string  `json:"title,omitempty"`
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// Node is one activity on the canvas. Node.ID always equals the activity ID.
type Node struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Type     string          `json:"type"`
	Shape    Shape           `json:"shape"`
	Position schema.Position `json:"position"`
	Size     schema.Size     `json:"size"`
	Ports    []NodePort      `json:"ports"`
	// Embedded lists the ports that hold nested activities; the surface
	// draws them as drill-in handles rather than connectable ports.
	Embedded []schema.Port `json:"embedded,omitempty"`

	// Activity is the activity the node was built from. It is not serialized;
	// a graph read back from a surface recovers activities by ID.
	Activity *schema.Activity `json:"-"`
}

// NodePort is a connectable port on a node.
type NodePort struct {
	ID        string    `json:"id"`
	Group     PortGroup `json:"group"`
	Label     string    `json:"label,omitempty"`
	Synthetic bool      `json:"synthetic,omitempty"`
}

// Edge connects an outbound node port to an inbound one.
type Edge struct {
	Source Endpoint `json:"source"`
	Target Endpoint `json:"target"`
}

// Endpoint is a (node, port) pair.
type Endpoint struct {
	Cell string `json:"cell"`
	Port string `json:"port"`
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// OutPorts returns the node's outbound ports.
func (n *Node) OutPorts() []NodePort {
	out := make([]NodePort, 0, len(n.Ports))
	for _, p := range n.Ports {
		if p.Group == PortGroupOut {
			out = append(out, p)
		}
	}
	return out
}
