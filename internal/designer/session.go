// Package designer orchestrates one workflow editing session: it keeps the
// activity tree, the navigation stack and a render surface in step.
package designer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/diagram"
	"github.com/rendis/flowdesigner/internal/logging"
	"github.com/rendis/flowdesigner/internal/navigation"
	"github.com/rendis/flowdesigner/internal/ports"
	"github.com/rendis/flowdesigner/internal/streaming"
	"github.com/rendis/flowdesigner/internal/surface"
	"github.com/rendis/flowdesigner/internal/validation"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// DefaultDebounce is the quiet period before a burst of graph edits is synced.
const DefaultDebounce = 250 * time.Millisecond

// syncTimeout bounds a debounced sync, which has no caller context.
const syncTimeout = 10 * time.Second

// Options configures a Session. Zero values pick the built-in defaults.
type Options struct {
	Resolver  *ports.Resolver
	Registry  descriptors.Registry
	Validator *validation.WorkflowValidator
	Hub       streaming.EventHub
	Logger    *slog.Logger
	GridColor string
	ReadOnly  bool
	Debounce  time.Duration
}

// Session is a single editing session. Every operation is serialized
// through the session, which is the one logical owner of the tree, the
// navigation stack and the surface client.
type Session struct {
	id        string
	mapper    *diagram.Mapper
	resolver  *ports.Resolver
	validator *validation.WorkflowValidator
	client    *surface.Client
	hub       streaming.EventHub
	logger    *slog.Logger
	opts      Options
	debounce  *Debouncer

	mu       sync.Mutex
	def      *schema.WorkflowDefinition
	stack    *navigation.Stack
	selected string
	revision int
}

// New creates a session rendering onto s.
func New(s surface.Surface, opts Options) *Session {
	if opts.Registry == nil {
		opts.Registry = descriptors.Builtin()
	}
	if opts.Resolver == nil {
		opts.Resolver = ports.NewCatalogResolver(opts.Registry)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	sess := &Session{
		id:        uuid.NewString(),
		mapper:    diagram.NewMapper(opts.Resolver, opts.Registry),
		resolver:  opts.Resolver,
		validator: opts.Validator,
		client:    surface.NewClient(s, opts.Logger),
		hub:       opts.Hub,
		logger:    opts.Logger,
		opts:      opts,
		stack:     navigation.NewStack(opts.Resolver, opts.Registry, opts.Logger),
	}
	sess.debounce = NewDebouncer(opts.Debounce, sess.debouncedSync)
	return sess
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Handle returns the surface handle, or "" before Open.
func (s *Session) Handle() surface.Handle { return s.client.Handle() }

// Open creates the render surface inside containerID. Operations requested
// earlier are applied once it exists.
func (s *Session) Open(ctx context.Context, containerID string) error {
	ctx = logging.WithSessionID(ctx, s.id)
	h, err := s.client.Open(ctx, containerID, s.opts.ReadOnly)
	if err != nil {
		return err
	}
	if s.opts.GridColor != "" {
		s.client.SetGridColor(ctx, s.opts.GridColor)
	}
	logging.LogWith(logging.WithSurface(ctx, string(h)), s.logger).Info("designer surface opened",
		slog.String("container", containerID),
		slog.String("handle", string(h)))
	return nil
}

// Close disposes the surface and drops any pending sync.
func (s *Session) Close(ctx context.Context) error {
	s.debounce.Stop()
	return s.client.Close(ctx)
}

// Load replaces the edited workflow, returns to the root and renders it.
func (s *Session) Load(ctx context.Context, def *schema.WorkflowDefinition) error {
	if def == nil || def.Root == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow definition has no root activity")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.debounce.Stop()
	s.def = def
	s.stack.LeaveToRoot()
	s.selected = ""
	s.revision = 0
	return s.renderLocked(ctx)
}

// Definition returns the edited workflow.
func (s *Session) Definition() *schema.WorkflowDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def
}

// Revision counts the edits applied since Load.
func (s *Session) Revision() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Selected returns the id of the selected activity, or "".
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Path returns the current navigation path.
func (s *Session) Path() []navigation.PathSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stack.Path()
}

// Render loads the visible container onto the surface.
func (s *Session) Render(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked(ctx)
}

// Graph returns the graph of the visible container without touching the surface.
func (s *Session) Graph() (*diagram.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, _, err := s.graphLocked()
	return g, err
}

// Breadcrumbs returns the navigation trail.
func (s *Session) Breadcrumbs() ([]navigation.Breadcrumb, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.resolveLocked()
	if err != nil {
		return nil, err
	}
	return res.Breadcrumbs, nil
}

// SelectEmbeddedPort syncs pending edits, enters the embedded port of an
// activity in the visible container and renders the sub-graph behind it.
func (s *Session) SelectEmbeddedPort(ctx context.Context, activityID, portName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadedLocked(); err != nil {
		return err
	}
	s.flushLocked(ctx)

	if _, err := s.stack.Enter(s.def.Root, activityID, "", portName); err != nil {
		return err
	}
	s.selected = ""
	return s.renderLocked(ctx)
}

// SelectBreadcrumb navigates back to the container of a breadcrumb.
func (s *Session) SelectBreadcrumb(ctx context.Context, crumb navigation.Breadcrumb) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadedLocked(); err != nil {
		return err
	}
	s.flushLocked(ctx)
	s.stack.LeaveTo(crumb.Depth)
	s.selected = ""
	return s.renderLocked(ctx)
}

// LeaveToRoot navigates back to the root container.
func (s *Session) LeaveToRoot(ctx context.Context) error {
	return s.SelectBreadcrumb(ctx, navigation.Breadcrumb{Depth: 0})
}

// AddActivity adds a to the visible flowchart at pos. An empty id is
// replaced by a fresh one.
func (s *Session) AddActivity(ctx context.Context, a *schema.Activity, pos schema.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.resolveLocked()
	if err != nil {
		return err
	}
	if !res.Container.IsFlowchart() {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"visible container %q is not a flowchart", res.Container.ID).WithActivity(res.Container.ID)
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	fc := res.Flowchart()
	if fc.Find(a.ID) != nil {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"activity %q already exists in this flowchart", a.ID).WithActivity(a.ID)
	}
	a.Designer().Position = &pos

	node, err := s.mapper.Node(a)
	if err != nil {
		return err
	}
	fc.Activities = append(fc.Activities, a)
	res.Container.SetFlowchart(fc)
	s.revision++
	return s.client.AddNode(ctx, node)
}

// UpdateActivity replaces the activity with a's id in the visible container
// and refreshes its node. Connections leaving ports the activity no longer
// has are dropped, and the whole graph is re-rendered.
func (s *Session) UpdateActivity(ctx context.Context, a *schema.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.resolveLocked()
	if err != nil {
		return err
	}

	if !res.Container.IsFlowchart() {
		return s.replaceContainerLocked(ctx, res, a)
	}

	fc := res.Flowchart()
	idx := -1
	for i, cur := range fc.Activities {
		if cur.ID == a.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return schema.NewErrorf(schema.ErrCodeNotFound,
			"activity %q is not in the visible container", a.ID).WithActivity(a.ID)
	}
	if a.Metadata.Designer == nil {
		a.Metadata.Designer = fc.Activities[idx].Metadata.Designer
	}

	node, err := s.mapper.Node(a)
	if err != nil {
		return err
	}
	fc.Activities[idx] = a
	pruned := pruneConnections(fc, a.ID, node.OutPorts())
	res.Container.SetFlowchart(fc)
	s.revision++

	if pruned > 0 {
		logging.LogWith(s.withIDs(ctx), s.logger).Debug("dropped connections from removed ports",
			slog.String("activity_id", a.ID), slog.Int("count", pruned))
		return s.renderLocked(ctx)
	}
	if err := s.client.UpdateNode(ctx, a.ID, a, node.Ports); err != nil {
		return err
	}
	s.client.UpdateNodeSize(ctx, a.ID, node.Size, len(node.OutPorts()))
	return nil
}

// replaceContainerLocked updates the activity shown as a single-node view,
// writing it back through the port that holds it.
func (s *Session) replaceContainerLocked(ctx context.Context, res *navigation.Resolution, a *schema.Activity) error {
	if a.ID != res.Container.ID {
		return schema.NewErrorf(schema.ErrCodeNotFound,
			"activity %q is not in the visible container", a.ID).WithActivity(a.ID)
	}
	if a.Metadata.Designer == nil {
		a.Metadata.Designer = res.Container.Metadata.Designer
	}
	if len(res.Hops) == 0 {
		s.def.Root = a
	} else {
		last := res.Hops[len(res.Hops)-1]
		if err := s.resolver.AssignPort(last.Port.Name, a, last.Owner); err != nil {
			return err
		}
	}
	s.revision++
	return s.renderLocked(ctx)
}

// SyncGraph reads the graph back from the surface and writes it into the
// visible container.
func (s *Session) SyncGraph(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce.Stop()
	return s.syncLocked(ctx)
}

func (s *Session) syncLocked(ctx context.Context) error {
	if s.def == nil {
		return nil
	}
	res, err := s.resolveLocked()
	if err != nil {
		return err
	}
	g, err := s.client.ReadGraph(ctx)
	if err != nil {
		return err
	}
	fc, err := s.mapper.ToFlowchart(g, res.Flowchart())
	if err != nil {
		return err
	}
	if res.Container.IsFlowchart() {
		res.Container.SetFlowchart(fc)
	}
	s.revision++

	logger := logging.LogWith(s.withIDs(ctx), s.logger)
	if s.validator != nil {
		if r := s.validator.ValidateContainer(res.Container); !r.Valid() || len(r.Warnings) > 0 {
			logger.Warn("synced graph has issues",
				slog.String("container", res.Container.ID),
				slog.Int("errors", len(r.Errors)),
				slog.Int("warnings", len(r.Warnings)))
		}
	}
	logger.Debug("graph synced",
		slog.String("container", res.Container.ID),
		slog.Int("activities", len(fc.Activities)),
		slog.Int("connections", len(fc.Connections)))
	return nil
}

func (s *Session) debouncedSync() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncLocked(ctx); err != nil {
		logging.LogWith(s.withIDs(ctx), s.logger).Warn("debounced sync failed", slog.String("error", err.Error()))
	}
}

// flushLocked runs a pending debounced sync before the visible container changes.
func (s *Session) flushLocked(ctx context.Context) {
	if !s.debounce.Stop() {
		return
	}
	if err := s.syncLocked(ctx); err != nil {
		logging.LogWith(s.withIDs(ctx), s.logger).Warn("sync before navigation failed", slog.String("error", err.Error()))
	}
}

func (s *Session) renderLocked(ctx context.Context) error {
	g, _, err := s.graphLocked()
	if err != nil {
		return err
	}
	return s.client.LoadGraph(ctx, g)
}

func (s *Session) graphLocked() (*diagram.Graph, *navigation.Resolution, error) {
	res, err := s.resolveLocked()
	if err != nil {
		return nil, nil, err
	}
	g, err := graphFor(s.mapper, s.def, res)
	if err != nil {
		return nil, nil, err
	}
	return g, res, nil
}

func (s *Session) resolveLocked() (*navigation.Resolution, error) {
	if err := s.loadedLocked(); err != nil {
		return nil, err
	}
	return s.stack.Resolve(s.def.Root)
}

func (s *Session) loadedLocked() error {
	if s.def == nil {
		return schema.NewError(schema.ErrCodeNotFound, "no workflow loaded")
	}
	return nil
}

func (s *Session) withIDs(ctx context.Context) context.Context {
	defID := ""
	if s.def != nil {
		defID = s.def.DefinitionID
	}
	return logging.WithIDs(ctx, s.id, defID, string(s.client.Handle()))
}

// pruneConnections drops connections leaving activityID through a port
// that is not in out, returning how many were dropped.
func pruneConnections(fc *schema.Flowchart, activityID string, out []diagram.NodePort) int {
	valid := make(map[string]bool, len(out))
	for _, p := range out {
		valid[p.ID] = true
	}
	kept := fc.Connections[:0]
	for _, c := range fc.Connections {
		if c.Source == activityID && !valid[c.Key(diagram.PortDone, diagram.PortIn).SourcePort] {
			continue
		}
		kept = append(kept, c)
	}
	dropped := len(fc.Connections) - len(kept)
	fc.Connections = kept
	return dropped
}
