package ports

import (
	"math"

	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// DescriptorPortProvider is the fallback provider: it supports every type and
// returns the ports declared on the activity descriptor. Each embedded port
// stores its activity under the camelCased port name ("Body" -> "body").
// Port operations only touch names the registry declares as embedded ports
// of the activity's type.
type DescriptorPortProvider struct {
	registry descriptors.Registry
}

// NewDescriptorPortProvider creates the fallback provider over reg. A nil reg
// uses the built-in catalog.
func NewDescriptorPortProvider(reg descriptors.Registry) *DescriptorPortProvider {
	if reg == nil {
		reg = descriptors.Builtin()
	}
	return &DescriptorPortProvider{registry: reg}
}

func (p *DescriptorPortProvider) Supports(string) bool { return true }

// Priority is the lowest possible so any dedicated provider wins.
func (p *DescriptorPortProvider) Priority() int { return math.MinInt32 }

func (p *DescriptorPortProvider) GetPorts(_ *schema.Activity, descriptor *schema.ActivityDescriptor) ([]schema.Port, error) {
	if descriptor == nil {
		return nil, nil
	}
	out := make([]schema.Port, len(descriptor.Ports))
	copy(out, descriptor.Ports)
	return out, nil
}

func (p *DescriptorPortProvider) ResolvePort(portName string, activity *schema.Activity) *schema.Activity {
	if !p.embedded(portName, activity) {
		return nil
	}
	return activity.ActivityProp(PropertyName(portName))
}

func (p *DescriptorPortProvider) AssignPort(portName string, child, container *schema.Activity) {
	if !p.embedded(portName, container) {
		return
	}
	container.SetActivityProp(PropertyName(portName), child)
}

func (p *DescriptorPortProvider) ClearPort(portName string, container *schema.Activity) {
	if !p.embedded(portName, container) {
		return
	}
	container.DeleteProp(PropertyName(portName))
}

// embedded reports whether portName is an embedded port of a's descriptor.
func (p *DescriptorPortProvider) embedded(portName string, a *schema.Activity) bool {
	if portName == "" || a == nil {
		return false
	}
	d := descriptors.Lookup(p.registry, a)
	if d == nil {
		return false
	}
	port, ok := schema.FindPort(d.Ports, portName)
	return ok && port.Kind == schema.PortKindEmbedded
}

var _ PortProvider = (*DescriptorPortProvider)(nil)
