package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlowchartType is the activity type of flowchart containers.
const FlowchartType = "Elsa.Flowchart"

// Flowchart is the typed view of a flowchart container: its activities and
// the connections between their flow ports.
type Flowchart struct {
	Activities  []*Activity  `json:"activities"`
	Connections []Connection `json:"connections"`
}

// Connection links a source activity's flow port to a target activity's port.
// Fields other than the four endpoints, such as a designer's "vertices", are
// kept and written back unchanged.
type Connection struct {
	Source     string `json:"source"`
	SourcePort string `json:"sourcePort,omitempty"`
	Target     string `json:"target"`
	TargetPort string `json:"targetPort,omitempty"`

	extra map[string]json.RawMessage
}

var connectionFields = []string{"source", "sourcePort", "target", "targetPort"}

// UnmarshalJSON decodes the endpoints and keeps every other field.
func (c *Connection) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("connection is not an object")
	}
	var out Connection
	dst := []*string{&out.Source, &out.SourcePort, &out.Target, &out.TargetPort}
	for i, name := range connectionFields {
		v, ok := raw[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst[i]); err != nil {
			return fmt.Errorf("connection %s: %w", name, err)
		}
		delete(raw, name)
	}
	if len(raw) > 0 {
		out.extra = raw
	}
	*c = out
	return nil
}

// MarshalJSON writes the endpoints over the kept fields.
func (c Connection) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.extra)+4)
	for k, v := range c.extra {
		out[k] = v
	}
	out["source"] = c.Source
	out["target"] = c.Target
	if c.SourcePort != "" {
		out["sourcePort"] = c.SourcePort
	}
	if c.TargetPort != "" {
		out["targetPort"] = c.TargetPort
	}
	return json.Marshal(out)
}

// ConnectionKey is a connection's endpoint identity.
type ConnectionKey struct {
	Source, SourcePort, Target, TargetPort string
}

// Key returns the connection's endpoint identity with empty ports replaced
// by the given defaults.
func (c Connection) Key(defaultSource, defaultTarget string) ConnectionKey {
	k := ConnectionKey{Source: c.Source, SourcePort: c.SourcePort, Target: c.Target, TargetPort: c.TargetPort}
	if k.SourcePort == "" {
		k.SourcePort = defaultSource
	}
	if k.TargetPort == "" {
		k.TargetPort = defaultTarget
	}
	return k
}

// NewFlowchartActivity returns an empty flowchart container.
func NewFlowchartActivity(id string) *Activity {
	return &Activity{
		ID:      id,
		Type:    FlowchartType,
		Version: 1,
		Props: map[string]any{
			"activities":  []*Activity{},
			"connections": []Connection{},
		},
	}
}

// IsFlowchart reports whether the activity is a flowchart container.
func (a *Activity) IsFlowchart() bool {
	return a != nil && a.Type == FlowchartType
}

// Flowchart returns the flowchart view of a container activity. Activities
// and connections are promoted in place, so the returned activity pointers
// are the ones stored in the container. Items that are not activities or
// connections stay in the container untouched and are left out of the view;
// ReadFlowchart reports them.
func (a *Activity) Flowchart() (*Flowchart, bool) {
	if !a.IsFlowchart() {
		return nil, false
	}
	fc, _ := a.readFlowchart()
	return fc, true
}

// ReadFlowchart is Flowchart for callers that need to know about unreadable
// items. It fails with VALIDATION_ERROR when the activity is not a flowchart
// or when some items could not be read; the view of the readable items is
// returned in the latter case.
func (a *Activity) ReadFlowchart() (*Flowchart, error) {
	if !a.IsFlowchart() {
		id := ""
		if a != nil {
			id = a.ID
		}
		return nil, NewErrorf(ErrCodeValidation, "activity %q is not a flowchart", id).WithActivity(id)
	}
	fc, bad := a.readFlowchart()
	if len(bad) > 0 {
		return fc, NewErrorf(ErrCodeValidation, "flowchart %q has unreadable items: %s",
			a.ID, strings.Join(bad, ", ")).
			WithActivity(a.ID).
			WithDetails(map[string]any{"items": bad})
	}
	return fc, nil
}

func (a *Activity) readFlowchart() (*Flowchart, []string) {
	acts, badActs := a.promoteActivities()
	conns, badConns := a.promoteConnections()
	return &Flowchart{Activities: acts, Connections: conns}, append(badActs, badConns...)
}

// SetFlowchart writes activities and connections back into the container.
// Items the container held that could not be read are kept after them.
func (a *Activity) SetFlowchart(f *Flowchart) {
	acts := f.Activities
	if acts == nil {
		acts = []*Activity{}
	}
	conns := f.Connections
	if conns == nil {
		conns = []Connection{}
	}
	if kept := unreadableActivities(a.Props["activities"]); len(kept) > 0 {
		merged := make([]any, 0, len(acts)+len(kept))
		for _, act := range acts {
			merged = append(merged, act)
		}
		a.SetProp("activities", append(merged, kept...))
	} else {
		a.SetProp("activities", acts)
	}
	if kept := unreadableConnections(a.Props["connections"]); len(kept) > 0 {
		merged := make([]any, 0, len(conns)+len(kept))
		for _, c := range conns {
			merged = append(merged, c)
		}
		a.SetProp("connections", append(merged, kept...))
	} else {
		a.SetProp("connections", conns)
	}
}

// FlowchartOf returns the flowchart view of a container. A container that is
// not a flowchart is shown as a single-node flowchart holding only itself.
func FlowchartOf(container *Activity) *Flowchart {
	if fc, ok := container.Flowchart(); ok {
		return fc
	}
	return &Flowchart{Activities: []*Activity{container}}
}

// Find returns the activity with the given ID.
func (f *Flowchart) Find(id string) *Activity {
	for _, a := range f.Activities {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Index maps activity IDs to activities.
func (f *Flowchart) Index() map[string]*Activity {
	idx := make(map[string]*Activity, len(f.Activities))
	for _, a := range f.Activities {
		idx[a.ID] = a
	}
	return idx
}

// promoteActivities replaces activity objects by *Activity inside the
// container's list. The list is only rewritten as []*Activity when every item
// was promoted.
func (a *Activity) promoteActivities() ([]*Activity, []string) {
	switch t := a.Props["activities"].(type) {
	case nil:
		return []*Activity{}, nil
	case []*Activity:
		return t, nil
	case []any:
		out := make([]*Activity, 0, len(t))
		var bad []string
		for i, item := range t {
			act, ok := asActivity(item)
			if !ok {
				bad = append(bad, fmt.Sprintf("activities[%d]", i))
				continue
			}
			t[i] = act
			out = append(out, act)
		}
		if len(bad) == 0 {
			a.SetProp("activities", out)
		}
		return out, bad
	default:
		return []*Activity{}, []string{"activities"}
	}
}

// promoteConnections decodes the container's connection list. The list is
// only rewritten when every item decoded.
func (a *Activity) promoteConnections() ([]Connection, []string) {
	switch t := a.Props["connections"].(type) {
	case nil:
		return []Connection{}, nil
	case []Connection:
		return t, nil
	case []any:
		out := make([]Connection, 0, len(t))
		var bad []string
		for i, item := range t {
			c, err := decodeConnection(item)
			if err != nil {
				bad = append(bad, fmt.Sprintf("connections[%d]", i))
				continue
			}
			out = append(out, c)
		}
		if len(bad) == 0 {
			a.SetProp("connections", out)
		}
		return out, bad
	default:
		return []Connection{}, []string{"connections"}
	}
}

func decodeConnection(v any) (Connection, error) {
	if c, ok := v.(Connection); ok {
		return c, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Connection{}, err
	}
	var c Connection
	err = json.Unmarshal(b, &c)
	return c, err
}

// unreadableActivities returns the items of an activity list that are not
// activities.
func unreadableActivities(v any) []any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []any
	for _, item := range list {
		if _, ok := asActivity(item); !ok {
			out = append(out, item)
		}
	}
	return out
}

func unreadableConnections(v any) []any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []any
	for _, item := range list {
		if _, err := decodeConnection(item); err != nil {
			out = append(out, item)
		}
	}
	return out
}
