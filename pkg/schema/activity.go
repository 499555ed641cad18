package schema

import (
	"encoding/json"
	"fmt"
)

// Activity is a single workflow step: a fixed envelope plus an open set of
// type-specific properties. Nested activities live inside Props and are only
// reachable through ports.
type Activity struct {
	ID          string
	Type        string
	Version     int
	Name        string
	Description string
	Metadata    Metadata

	// Props holds every JSON field outside the envelope. Values are decoded
	// JSON (map[string]any, []any, ...) until an accessor promotes them.
	Props map[string]any
}

// Metadata carries designer state and any other metadata keys verbatim.
type Metadata struct {
	DisplayText string
	Designer    *DesignerMetadata
	Extra       map[string]any
}

// DesignerMetadata is the part of an activity the render surface owns.
type DesignerMetadata struct {
	Position *Position `json:"position,omitempty"`
	Size     *Size     `json:"size,omitempty"`
}

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a node's width and height on the canvas.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var envelopeKeys = []string{"id", "type", "version", "name", "description", "metadata"}

type activityEnvelope struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Version     int      `json:"version"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// UnmarshalJSON splits the document into the envelope and the property bag.
func (a *Activity) UnmarshalJSON(data []byte) error {
	var env activityEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	var bag map[string]any
	if err := json.Unmarshal(data, &bag); err != nil {
		return err
	}
	for _, k := range envelopeKeys {
		delete(bag, k)
	}
	*a = Activity{
		ID:          env.ID,
		Type:        env.Type,
		Version:     env.Version,
		Name:        env.Name,
		Description: env.Description,
		Metadata:    env.Metadata,
		Props:       bag,
	}
	return nil
}

// MarshalJSON flattens the property bag back into the envelope object.
func (a Activity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Props)+len(envelopeKeys))
	for k, v := range a.Props {
		out[k] = v
	}
	out["id"] = a.ID
	out["type"] = a.Type
	out["version"] = a.Version
	if a.Name != "" {
		out["name"] = a.Name
	}
	if a.Description != "" {
		out["description"] = a.Description
	}
	if !a.Metadata.empty() {
		out["metadata"] = a.Metadata
	}
	return json.Marshal(out)
}

func (m Metadata) empty() bool {
	return m.DisplayText == "" && m.Designer == nil && len(m.Extra) == 0
}

// UnmarshalJSON decodes the known metadata keys and keeps the rest in Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var known struct {
		DisplayText string            `json:"displayText"`
		Designer    *DesignerMetadata `json:"designer"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var extra map[string]any
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	delete(extra, "displayText")
	delete(extra, "designer")
	if len(extra) == 0 {
		extra = nil
	}
	*m = Metadata{DisplayText: known.DisplayText, Designer: known.Designer, Extra: extra}
	return nil
}

// MarshalJSON writes Extra alongside the known metadata keys.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.DisplayText != "" {
		out["displayText"] = m.DisplayText
	}
	if m.Designer != nil {
		out["designer"] = m.Designer
	}
	return json.Marshal(out)
}

// Prop returns a raw property value.
func (a *Activity) Prop(name string) (any, bool) {
	v, ok := a.Props[name]
	return v, ok
}

// SetProp stores a property value.
func (a *Activity) SetProp(name string, value any) {
	if a.Props == nil {
		a.Props = make(map[string]any)
	}
	a.Props[name] = value
}

// DeleteProp removes a property.
func (a *Activity) DeleteProp(name string) {
	delete(a.Props, name)
}

// ActivityProp returns the activity nested under name, promoting the decoded
// value to *Activity in place so later calls return the same pointer.
func (a *Activity) ActivityProp(name string) *Activity {
	return ActivityField(a.Props, name)
}

// SetActivityProp stores child under name.
func (a *Activity) SetActivityProp(name string, child *Activity) {
	a.SetProp(name, child)
}

// ListProp returns the list stored under name, or nil when absent or not a list.
// Items are shared with the bag, so map items can be mutated in place.
func (a *Activity) ListProp(name string) []any {
	v, ok := a.Props[name]
	if !ok {
		return nil
	}
	list, _ := v.([]any)
	return list
}

// ActivityField promotes m[field] to *Activity in place. It returns nil, and
// leaves m untouched, when the field is absent or does not hold an activity
// object.
func ActivityField(m map[string]any, field string) *Activity {
	if m == nil {
		return nil
	}
	act, ok := asActivity(m[field])
	if !ok {
		return nil
	}
	m[field] = act
	return act
}

// asActivity converts a decoded JSON object into an Activity. Only objects
// carrying a non-empty string id and type qualify; expression objects such as
// {"type":"JavaScript","value":"..."} do not.
func asActivity(v any) (*Activity, bool) {
	switch t := v.(type) {
	case *Activity:
		return t, t != nil
	case Activity:
		return &t, true
	case map[string]any:
		if !looksLikeActivity(t) {
			return nil, false
		}
		b, err := json.Marshal(t)
		if err != nil {
			return nil, false
		}
		var act Activity
		if err := json.Unmarshal(b, &act); err != nil {
			return nil, false
		}
		return &act, true
	default:
		return nil, false
	}
}

func looksLikeActivity(m map[string]any) bool {
	id, _ := m["id"].(string)
	typ, _ := m["type"].(string)
	return id != "" && typ != ""
}

// DisplayLabel returns the text a user sees for the activity: the designer
// display text, then the name, then fallback (usually the descriptor display
// name), then the type.
func (a *Activity) DisplayLabel(fallback string) string {
	switch {
	case a.Metadata.DisplayText != "":
		return a.Metadata.DisplayText
	case a.Name != "":
		return a.Name
	case fallback != "":
		return fallback
	default:
		return a.Type
	}
}

// Designer returns the designer metadata, allocating it when missing.
func (a *Activity) Designer() *DesignerMetadata {
	if a.Metadata.Designer == nil {
		a.Metadata.Designer = &DesignerMetadata{}
	}
	return a.Metadata.Designer
}

// Clone returns a deep copy made through the JSON form.
func (a *Activity) Clone() (*Activity, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("clone activity %s: %w", a.ID, err)
	}
	var out Activity
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("clone activity %s: %w", a.ID, err)
	}
	return &out, nil
}
