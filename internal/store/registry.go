package store

import (
	"context"

	"github.com/rendis/flowdesigner/internal/descriptors"
)

// LoadRegistry returns base extended with every stored descriptor. Stored
// descriptors replace base entries with the same type and version. A nil
// base starts from the built-in catalog.
func LoadRegistry(ctx context.Context, s Store, base *descriptors.MemoryRegistry) (*descriptors.MemoryRegistry, error) {
	if base == nil {
		base = descriptors.Builtin()
	}
	stored, err := s.ListDescriptors(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range stored {
		base.Put(d)
	}
	return base, nil
}
