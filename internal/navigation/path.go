package navigation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/ports"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// RootLabel is the label of the synthetic first breadcrumb.
const RootLabel = "Root"

// PathSegment is one hop into the sub-graph behind an activity's embedded port.
type PathSegment struct {
	ActivityID   string `json:"activityId"`
	ActivityType string `json:"activityType"`
	PortName     string `json:"portName"`
}

func (s PathSegment) String() string {
	return fmt.Sprintf("%s:%s", s.ActivityID, s.PortName)
}

// ParseSegment parses "activityId:portName". The port name may itself
// contain colons.
func ParseSegment(s string) (PathSegment, error) {
	id, port, ok := strings.Cut(s, ":")
	if !ok || id == "" || port == "" {
		return PathSegment{}, schema.NewErrorf(schema.ErrCodeValidation,
			"invalid path segment %q: want activityId:portName", s)
	}
	return PathSegment{ActivityID: id, PortName: port}, nil
}

// ParsePath parses a list of "activityId:portName" segments.
func ParsePath(specs []string) ([]PathSegment, error) {
	path := make([]PathSegment, 0, len(specs))
	for _, spec := range specs {
		seg, err := ParseSegment(spec)
		if err != nil {
			return nil, err
		}
		path = append(path, seg)
	}
	return path, nil
}

// Hop is a resolved PathSegment.
type Hop struct {
	Segment PathSegment
	// Owner is the activity whose port was entered.
	Owner *schema.Activity
	// OwnerLabel is the owner's display label.
	OwnerLabel string
	Port       schema.Port
	// Container is the activity held by the port.
	Container *schema.Activity
}

// Breadcrumb is one item of the navigation trail. Depth is the number of
// segments to keep when the crumb is selected; the root crumb has depth 0.
type Breadcrumb struct {
	Label      string `json:"label"`
	ActivityID string `json:"activityId,omitempty"`
	PortName   string `json:"portName,omitempty"`
	Depth      int    `json:"depth"`
	Active     bool   `json:"active"`
}

// Resolution is the outcome of resolving a path from the root.
type Resolution struct {
	Root        *schema.Activity
	Hops        []Hop
	Breadcrumbs []Breadcrumb
	// Container is the visible container: the root when the path is empty,
	// otherwise the activity behind the last hop.
	Container *schema.Activity
}

// Flowchart returns the flowchart view of the visible container.
func (r *Resolution) Flowchart() *schema.Flowchart {
	return schema.FlowchartOf(r.Container)
}

// Path returns the segments of the resolved hops.
func (r *Resolution) Path() []PathSegment {
	out := make([]PathSegment, len(r.Hops))
	for i, h := range r.Hops {
		out[i] = h.Segment
	}
	return out
}

// Resolve walks path from root. Every hop looks the activity up in the
// current container, checks the port is one of its embedded ports and
// dereferences it. On the first hop that fails it returns BROKEN_PATH, with
// the failing index in the error details, together with the resolution of
// the valid prefix.
func Resolve(resolver *ports.Resolver, registry descriptors.Registry, root *schema.Activity, path []PathSegment) (*Resolution, error) {
	res := &Resolution{Root: root, Container: root}
	if root == nil {
		return res, schema.NewError(schema.ErrCodeNotFound, "no root activity")
	}

	for i, seg := range path {
		hop, err := resolveHop(resolver, registry, res.Container, seg)
		if err != nil {
			res.Breadcrumbs = breadcrumbs(res.Hops)
			return res, brokenPath(i, seg, err)
		}
		res.Hops = append(res.Hops, hop)
		res.Container = hop.Container
	}
	res.Breadcrumbs = breadcrumbs(res.Hops)
	return res, nil
}

func resolveHop(resolver *ports.Resolver, registry descriptors.Registry, container *schema.Activity, seg PathSegment) (Hop, error) {
	owner := schema.FlowchartOf(container).Find(seg.ActivityID)
	if owner == nil {
		return Hop{}, fmt.Errorf("activity %q not found in %q", seg.ActivityID, container.ID)
	}
	desc := descriptors.Lookup(registry, owner)
	port, err := EmbeddedPort(resolver, desc, owner, seg.PortName)
	if err != nil {
		return Hop{}, err
	}
	child, err := resolver.ResolvePort(seg.PortName, owner)
	if err != nil {
		return Hop{}, err
	}
	if child == nil {
		return Hop{}, fmt.Errorf("port %q of %q holds no activity", seg.PortName, seg.ActivityID)
	}
	if seg.ActivityType == "" {
		seg.ActivityType = owner.Type
	}
	label := ""
	if desc != nil {
		label = desc.DisplayName
	}
	return Hop{
		Segment:    seg,
		Owner:      owner,
		OwnerLabel: owner.DisplayLabel(label),
		Port:       port,
		Container:  child,
	}, nil
}

// EmbeddedPort returns the named embedded port of the activity's current port set.
func EmbeddedPort(resolver *ports.Resolver, desc *schema.ActivityDescriptor, a *schema.Activity, name string) (schema.Port, error) {
	embedded, err := resolver.EmbeddedPorts(a, desc)
	if err != nil {
		return schema.Port{}, err
	}
	port, ok := schema.FindPort(embedded, name)
	if !ok {
		return schema.Port{}, schema.NewErrorf(schema.ErrCodeValidation,
			"%q is not an embedded port of %q", name, a.ID).WithActivity(a.ID)
	}
	return port, nil
}

func brokenPath(index int, seg PathSegment, cause error) error {
	return schema.NewErrorf(schema.ErrCodeBrokenPath,
		"navigation hop %d (%s) no longer resolves: %v", index, seg, cause).
		WithActivity(seg.ActivityID).
		WithCause(cause).
		WithDetails(map[string]any{"index": index, "port": seg.PortName})
}

// BrokenIndex returns the index of the failing hop of a BROKEN_PATH error.
func BrokenIndex(err error) (int, bool) {
	if !schema.IsCode(err, schema.ErrCodeBrokenPath) {
		return 0, false
	}
	var de *schema.DesignerError
	if !errors.As(err, &de) {
		return 0, false
	}
	i, ok := de.Details["index"].(int)
	return i, ok
}

// breadcrumbs builds Root plus one crumb per hop. The trail is empty at the root.
func breadcrumbs(hops []Hop) []Breadcrumb {
	if len(hops) == 0 {
		return nil
	}
	out := make([]Breadcrumb, 0, len(hops)+1)
	out = append(out, Breadcrumb{Label: RootLabel})
	for i, h := range hops {
		out = append(out, Breadcrumb{
			Label:      fmt.Sprintf("%s: %s", h.OwnerLabel, h.Port.Label()),
			ActivityID: h.Segment.ActivityID,
			PortName:   h.Segment.PortName,
			Depth:      i + 1,
		})
	}
	out[len(out)-1].Active = true
	return out
}
