package navigation

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/ports"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// Stack is the navigation path of one editing session, innermost hop last.
// It holds segments only, never activity pointers, so edits to the tree
// cannot leave it pointing at a detached container. Not safe for concurrent
// use; the owning session serializes access.
type Stack struct {
	resolver *ports.Resolver
	registry descriptors.Registry
	logger   *slog.Logger
	path     []PathSegment
}

// NewStack creates an empty stack. registry and logger may be nil.
func NewStack(resolver *ports.Resolver, registry descriptors.Registry, logger *slog.Logger) *Stack {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stack{resolver: resolver, registry: registry, logger: logger}
}

// Path returns a copy of the current segments.
func (s *Stack) Path() []PathSegment {
	out := make([]PathSegment, len(s.path))
	copy(out, s.path)
	return out
}

// Len returns the number of segments.
func (s *Stack) Len() int { return len(s.path) }

// Resolve resolves the stack from root. A hop that no longer resolves
// truncates the stack to the valid prefix, which is returned without error.
func (s *Stack) Resolve(root *schema.Activity) (*Resolution, error) {
	res, err := Resolve(s.resolver, s.registry, root, s.path)
	if err == nil {
		return res, nil
	}
	idx, ok := BrokenIndex(err)
	if !ok {
		return nil, err
	}
	s.logger.Warn("navigation path truncated",
		slog.Int("dropped", len(s.path)-idx),
		slog.String("segment", s.path[idx].String()),
		slog.String("error", err.Error()))
	s.path = s.path[:idx]
	return res, nil
}

// Enter pushes a hop into the embedded port of an activity in the visible
// container. When the port holds nothing yet, an empty flowchart is created
// and assigned to it first. activityType may be empty; when set it must
// match the activity.
func (s *Stack) Enter(root *schema.Activity, activityID, activityType, portName string) (*Resolution, error) {
	res, err := s.Resolve(root)
	if err != nil {
		return nil, err
	}

	owner := res.Flowchart().Find(activityID)
	if owner == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"activity %q is not in the visible container", activityID).WithActivity(activityID)
	}
	if activityType != "" && owner.Type != activityType {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"activity %q has type %q, not %q", activityID, owner.Type, activityType).WithActivity(activityID)
	}

	if _, err := EmbeddedPort(s.resolver, descriptors.Lookup(s.registry, owner), owner, portName); err != nil {
		return nil, err
	}

	child, err := s.resolver.ResolvePort(portName, owner)
	if err != nil {
		return nil, err
	}
	if child == nil {
		child = schema.NewFlowchartActivity(uuid.NewString())
		if err := s.resolver.AssignPort(portName, child, owner); err != nil {
			return nil, err
		}
		s.logger.Debug("created embedded flowchart",
			slog.String("activity_id", activityID),
			slog.String("port", portName),
			slog.String("flowchart_id", child.ID))
	}

	s.path = append(s.path, PathSegment{ActivityID: activityID, ActivityType: owner.Type, PortName: portName})
	return s.Resolve(root)
}

// Leave pops every segment above the innermost one for activityID, making
// that hop the visible one. It reports false and leaves the stack unchanged
// when no segment matches.
func (s *Stack) Leave(activityID string) bool {
	for i := len(s.path) - 1; i >= 0; i-- {
		if s.path[i].ActivityID == activityID {
			s.path = s.path[:i+1]
			return true
		}
	}
	return false
}

// LeaveTo truncates the stack to depth segments, as selected through a
// breadcrumb's Depth.
func (s *Stack) LeaveTo(depth int) {
	if depth < 0 {
		depth = 0
	}
	if depth < len(s.path) {
		s.path = s.path[:depth]
	}
}

// LeaveToRoot clears the stack.
func (s *Stack) LeaveToRoot() {
	s.path = nil
}

// Reset replaces the path, e.g. when restoring view state.
func (s *Stack) Reset(path []PathSegment) {
	s.path = append([]PathSegment(nil), path...)
}
