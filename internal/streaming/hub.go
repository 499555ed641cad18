package streaming

import "context"

// Render surface callback event types.
const (
	EventNodeSelected         = "node_selected"
	EventEmbeddedPortSelected = "embedded_port_selected"
	EventCanvasSelected       = "canvas_selected"
	EventGraphChanged         = "graph_changed"
)

// StreamEvent is a callback raised by a render surface.
type StreamEvent struct {
	Surface    string `json:"surface"`
	EventType  string `json:"event_type"`
	ActivityID string `json:"activity_id,omitempty"`
	PortName   string `json:"port_name,omitempty"`
	Payload    any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	Surface    string   `json:"surface,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for render surface callbacks.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
