package ports

import (
	"sync"

	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// Resolver selects the best port provider for an activity type and
// delegates port operations to it.
type Resolver struct {
	mu        sync.RWMutex
	providers []PortProvider
}

// NewResolver creates a Resolver with the given providers, in registration order.
func NewResolver(providers ...PortProvider) *Resolver {
	r := &Resolver{}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// NewDefaultResolver creates a Resolver with every built-in provider over the
// built-in descriptor catalog.
func NewDefaultResolver() *Resolver {
	return NewCatalogResolver(nil)
}

// NewCatalogResolver creates a Resolver with every built-in provider. The
// fallback provider checks port names against reg; nil uses the built-in
// catalog.
func NewCatalogResolver(reg descriptors.Registry) *Resolver {
	return NewResolver(
		NewDescriptorPortProvider(reg),
		NewSwitchPortProvider(),
		NewFlowSwitchPortProvider(),
		NewSendHttpRequestPortProvider(),
		NewFlowSendHttpRequestPortProvider(),
	)
}

// Register appends a provider. Among providers with equal priority the one
// registered first is selected.
func (r *Resolver) Register(p PortProvider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// GetProvider returns the highest-priority provider supporting activityType.
func (r *Resolver) GetProvider(activityType string) (PortProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best PortProvider
	for _, p := range r.providers {
		if !p.Supports(activityType) {
			continue
		}
		if best == nil || p.Priority() > best.Priority() {
			best = p
		}
	}
	if best == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNoProviderFound,
			"no port provider supports activity type %q", activityType).
			WithDetails(map[string]any{"activity_type": activityType})
	}
	return best, nil
}

// GetPorts returns every port of the activity.
func (r *Resolver) GetPorts(activity *schema.Activity, descriptor *schema.ActivityDescriptor) ([]schema.Port, error) {
	p, err := r.GetProvider(activity.Type)
	if err != nil {
		return nil, withActivity(err, activity.ID)
	}
	ports, err := p.GetPorts(activity, descriptor)
	if err != nil {
		return nil, withActivity(err, activity.ID)
	}
	return ports, nil
}

// FlowPorts returns the activity's flow ports.
func (r *Resolver) FlowPorts(activity *schema.Activity, descriptor *schema.ActivityDescriptor) ([]schema.Port, error) {
	ports, err := r.GetPorts(activity, descriptor)
	if err != nil {
		return nil, err
	}
	return schema.FilterPorts(ports, schema.PortKindFlow), nil
}

// EmbeddedPorts returns the activity's embedded ports.
func (r *Resolver) EmbeddedPorts(activity *schema.Activity, descriptor *schema.ActivityDescriptor) ([]schema.Port, error) {
	ports, err := r.GetPorts(activity, descriptor)
	if err != nil {
		return nil, err
	}
	return schema.FilterPorts(ports, schema.PortKindEmbedded), nil
}

// ResolvePort returns the activity behind an embedded port. Unknown or
// unassigned ports yield nil without error; only a missing provider fails.
func (r *Resolver) ResolvePort(portName string, activity *schema.Activity) (*schema.Activity, error) {
	p, err := r.GetProvider(activity.Type)
	if err != nil {
		return nil, withActivity(err, activity.ID)
	}
	return p.ResolvePort(portName, activity), nil
}

// AssignPort stores child behind the named embedded port of container.
func (r *Resolver) AssignPort(portName string, child, container *schema.Activity) error {
	p, err := r.GetProvider(container.Type)
	if err != nil {
		return withActivity(err, container.ID)
	}
	p.AssignPort(portName, child, container)
	return nil
}

// ClearPort empties the named embedded port of container.
func (r *Resolver) ClearPort(portName string, container *schema.Activity) error {
	p, err := r.GetProvider(container.Type)
	if err != nil {
		return withActivity(err, container.ID)
	}
	p.ClearPort(portName, container)
	return nil
}

func withActivity(err error, activityID string) error {
	if de, ok := err.(*schema.DesignerError); ok && de.ActivityID == "" {
		return de.WithActivity(activityID)
	}
	return err
}
