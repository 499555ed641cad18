package descriptors

import (
	"sort"
	"sync"

	"github.com/rendis/flowdesigner/pkg/schema"
)

// Registry returns the descriptor for an activity type and version.
// A version of 0 asks for the latest registered version.
type Registry interface {
	Find(activityType string, version int) (*schema.ActivityDescriptor, bool)
}

// MemoryRegistry is the concrete thread-safe Registry implementation.
type MemoryRegistry struct {
	mu          sync.RWMutex
	descriptors map[string]map[int]*schema.ActivityDescriptor
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		descriptors: make(map[string]map[int]*schema.ActivityDescriptor),
	}
}

// Register adds a descriptor. Returns error on duplicate type+version.
func (r *MemoryRegistry) Register(d *schema.ActivityDescriptor) error {
	if d == nil {
		return schema.NewError(schema.ErrCodeValidation, "descriptor is nil")
	}
	if d.Type == "" {
		return schema.NewError(schema.ErrCodeValidation, "descriptor type is empty")
	}
	if d.Version <= 0 {
		return schema.NewErrorf(schema.ErrCodeValidation, "descriptor %s has invalid version %d", d.Type, d.Version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	versions, ok := r.descriptors[d.Type]
	if !ok {
		versions = make(map[int]*schema.ActivityDescriptor)
		r.descriptors[d.Type] = versions
	}
	if _, exists := versions[d.Version]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "descriptor %s v%d already registered", d.Type, d.Version)
	}
	versions[d.Version] = d
	return nil
}

// Put adds or replaces a descriptor.
func (r *MemoryRegistry) Put(d *schema.ActivityDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions, ok := r.descriptors[d.Type]
	if !ok {
		versions = make(map[int]*schema.ActivityDescriptor)
		r.descriptors[d.Type] = versions
	}
	versions[d.Version] = d
}

// Find satisfies Registry.
func (r *MemoryRegistry) Find(activityType string, version int) (*schema.ActivityDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.descriptors[activityType]
	if !ok {
		return nil, false
	}
	if d, ok := versions[version]; ok {
		return d, true
	}
	if version != 0 {
		return nil, false
	}
	var latest *schema.ActivityDescriptor
	for v, d := range versions {
		if latest == nil || v > latest.Version {
			latest = d
		}
	}
	return latest, latest != nil
}

// Get is like Find but returns a NOT_FOUND error when missing.
func (r *MemoryRegistry) Get(activityType string, version int) (*schema.ActivityDescriptor, error) {
	d, ok := r.Find(activityType, version)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "descriptor %s v%d not registered", activityType, version)
	}
	return d, nil
}

// List returns every registered descriptor, sorted by type then version.
func (r *MemoryRegistry) List() []*schema.ActivityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*schema.ActivityDescriptor, 0, len(r.descriptors))
	for _, versions := range r.descriptors {
		for _, d := range versions {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Count returns the number of registered type+version pairs.
func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, versions := range r.descriptors {
		n += len(versions)
	}
	return n
}

// Lookup resolves the descriptor for an activity, falling back to the
// latest version of its type. reg may be nil.
func Lookup(reg Registry, a *schema.Activity) *schema.ActivityDescriptor {
	if reg == nil || a == nil {
		return nil
	}
	if d, ok := reg.Find(a.Type, a.Version); ok {
		return d
	}
	d, _ := reg.Find(a.Type, 0)
	return d
}

var _ Registry = (*MemoryRegistry)(nil)
