package surface

import (
	"context"

	"github.com/rendis/flowdesigner/internal/streaming"
)

// Events publishes a surface's callbacks to an event hub.
type Events struct {
	hub    streaming.EventHub
	handle Handle
}

// NewEvents creates an emitter for the surface with the given handle. A nil
// hub discards every event.
func NewEvents(hub streaming.EventHub, h Handle) *Events {
	return &Events{hub: hub, handle: h}
}

// NodeSelected reports that the user selected an activity's node.
func (e *Events) NodeSelected(ctx context.Context, activityID string) error {
	return e.publish(ctx, streaming.StreamEvent{EventType: streaming.EventNodeSelected, ActivityID: activityID})
}

// EmbeddedPortSelected reports a click on an activity's embedded port.
func (e *Events) EmbeddedPortSelected(ctx context.Context, activityID, portName string) error {
	return e.publish(ctx, streaming.StreamEvent{
		EventType:  streaming.EventEmbeddedPortSelected,
		ActivityID: activityID,
		PortName:   portName,
	})
}

// CanvasSelected reports a click on the empty canvas.
func (e *Events) CanvasSelected(ctx context.Context) error {
	return e.publish(ctx, streaming.StreamEvent{EventType: streaming.EventCanvasSelected})
}

// GraphChanged reports that the user edited the graph.
func (e *Events) GraphChanged(ctx context.Context) error {
	return e.publish(ctx, streaming.StreamEvent{EventType: streaming.EventGraphChanged})
}

func (e *Events) publish(ctx context.Context, ev streaming.StreamEvent) error {
	if e == nil || e.hub == nil {
		return nil
	}
	ev.Surface = string(e.handle)
	return e.hub.Publish(ctx, ev)
}
