package designer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rendis/flowdesigner/internal/logging"
	"github.com/rendis/flowdesigner/internal/streaming"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// HandleEvent applies one render surface callback. Events raised by other
// surfaces are ignored. Graph changes are debounced before syncing.
func (s *Session) HandleEvent(ctx context.Context, ev streaming.StreamEvent) error {
	if h := s.Handle(); ev.Surface != "" && ev.Surface != string(h) {
		return nil
	}

	switch ev.EventType {
	case streaming.EventNodeSelected:
		s.mu.Lock()
		s.selected = ev.ActivityID
		s.mu.Unlock()
	case streaming.EventCanvasSelected:
		s.mu.Lock()
		s.selected = ""
		s.mu.Unlock()
	case streaming.EventEmbeddedPortSelected:
		return s.SelectEmbeddedPort(ctx, ev.ActivityID, ev.PortName)
	case streaming.EventGraphChanged:
		s.debounce.Trigger()
	default:
		logging.LogWith(ctx, s.logger).Debug("ignoring surface event", slog.String("event_type", ev.EventType))
	}
	return nil
}

// Flush runs a pending debounced sync immediately.
func (s *Session) Flush(ctx context.Context) error {
	if !s.debounce.Stop() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked(ctx)
}

// Run consumes the surface's callbacks from the event hub until ctx is done.
// The session must be open.
func (s *Session) Run(ctx context.Context) error {
	if s.hub == nil {
		return schema.NewError(schema.ErrCodeValidation, "session has no event hub")
	}
	h := s.Handle()
	if h == "" {
		return schema.NewError(schema.ErrCodeSurfaceUnavailable, "session surface is not open")
	}

	ch, cancel, err := s.hub.Subscribe(ctx, streaming.EventFilter{Surface: string(h)})
	if err != nil {
		return err
	}
	defer cancel()

	ctx = logging.WithIDs(ctx, s.id, "", string(h))
	logger := logging.LogWith(ctx, s.logger)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.HandleEvent(ctx, ev); err != nil {
				var de *schema.DesignerError
				if errors.As(err, &de) {
					logger.Warn("surface event rejected",
						slog.String("event_type", ev.EventType),
						slog.String("code", de.Code),
						slog.String("error", de.Message))
					continue
				}
				logger.Error("surface event failed",
					slog.String("event_type", ev.EventType),
					slog.String("error", err.Error()))
			}
		}
	}
}
