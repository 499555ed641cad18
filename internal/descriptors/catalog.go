package descriptors

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rendis/flowdesigner/pkg/schema"
)

//go:embed builtin.yaml
var builtinCatalog []byte

// catalogFile is the YAML layout of a descriptor catalog.
type catalogFile struct {
	Descriptors []*schema.ActivityDescriptor `yaml:"descriptors"`
}

// LoadCatalog decodes a YAML descriptor catalog.
func LoadCatalog(r io.Reader) ([]*schema.ActivityDescriptor, error) {
	var cat catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, schema.NewError(schema.ErrCodeValidation, "decode descriptor catalog").WithCause(err)
	}
	for i, d := range cat.Descriptors {
		if d == nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "descriptor catalog entry %d is empty", i)
		}
		for j, p := range d.Ports {
			if p.Kind != schema.PortKindFlow && p.Kind != schema.PortKindEmbedded {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"descriptor %s port %d (%s): unknown kind %q", d.Type, j, p.Name, p.Kind)
			}
		}
	}
	return cat.Descriptors, nil
}

// LoadCatalogFile reads a YAML descriptor catalog from disk.
func LoadCatalogFile(path string) ([]*schema.ActivityDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open descriptor catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// RegisterAll registers every descriptor, stopping at the first failure.
func (r *MemoryRegistry) RegisterAll(ds []*schema.ActivityDescriptor) error {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Builtin returns a fresh registry holding the embedded descriptor catalog.
func Builtin() *MemoryRegistry {
	ds, err := LoadCatalog(bytes.NewReader(builtinCatalog))
	if err != nil {
		panic(fmt.Sprintf("descriptors: builtin catalog: %v", err))
	}
	reg := NewMemoryRegistry()
	if err := reg.RegisterAll(ds); err != nil {
		panic(fmt.Sprintf("descriptors: builtin catalog: %v", err))
	}
	return reg
}
