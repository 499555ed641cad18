package schema

// PortKind distinguishes connectable ports from ports that hold a nested activity.
type PortKind string

const (
	PortKindFlow     PortKind = "Flow"
	PortKindEmbedded PortKind = "Embedded"
)

// Port is a named attachment point on an activity.
type Port struct {
	Name        string   `json:"name" yaml:"name"`
	DisplayName string   `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Kind        PortKind `json:"kind" yaml:"kind"`
}

// Label returns the display name, or the name when none is set.
func (p Port) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// FilterPorts returns the ports of the given kind, preserving order.
func FilterPorts(ports []Port, kind PortKind) []Port {
	out := make([]Port, 0, len(ports))
	for _, p := range ports {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// FindPort returns the port with the given name.
func FindPort(ports []Port, name string) (Port, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// InputDescriptor declares one input property of an activity type.
type InputDescriptor struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// OutputDescriptor declares one output of an activity type.
type OutputDescriptor struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// ActivityDescriptor is the static metadata for a type+version pair.
// Ports lists the statically declared ports; types whose ports depend on
// activity data leave it empty and rely on a dedicated port provider.
type ActivityDescriptor struct {
	Type        string             `json:"type" yaml:"type"`
	Version     int                `json:"version" yaml:"version"`
	DisplayName string             `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Category    string             `json:"category,omitempty" yaml:"category,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs      []InputDescriptor  `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs     []OutputDescriptor `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Ports       []Port             `json:"ports,omitempty" yaml:"ports,omitempty"`
	Shape       string             `json:"shape,omitempty" yaml:"shape,omitempty"`
}
