package ports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/rendis/flowdesigner/internal/expressions"
	"github.com/rendis/flowdesigner/pkg/schema"
	"gopkg.in/yaml.v3"
)

// ProviderConfig is the YAML document that declares port providers without code.
//
//	providers:
//	  - name: acme-router
//	    supports: activityType startsWith "Acme.Router"
//	    priority: 10
//	    dynamic:
//	      kind: Embedded
//	      list: routes
//	      name: .key
//	    fixed:
//	      - name: Fallback
//	        kind: Embedded
//	        when: has(activity.fallbackEnabled) && activity.fallbackEnabled
type ProviderConfig struct {
	Providers []ProviderSpec `yaml:"providers"`
}

// ProviderSpec declares one provider.
type ProviderSpec struct {
	Name string `yaml:"name"`
	// Types lists exact activity types; Supports is an expr predicate over
	// activityType. Either may match.
	Types    []string         `yaml:"types,omitempty"`
	Supports string           `yaml:"supports,omitempty"`
	Priority int              `yaml:"priority,omitempty"`
	Dynamic  *DynamicPortSpec `yaml:"dynamic,omitempty"`
	Fixed    []FixedPortSpec  `yaml:"fixed,omitempty"`
}

// DynamicPortSpec derives one port per item of a list property.
type DynamicPortSpec struct {
	Kind schema.PortKind `yaml:"kind"`
	// List is the property holding the items.
	List string `yaml:"list"`
	// Name is a jq query run against each item; its first output is the port name.
	Name string `yaml:"name"`
	// DisplayName is an optional jq query for the port's display name.
	DisplayName string `yaml:"displayName,omitempty"`
	// ActivityField is the item field that stores an embedded port's activity.
	ActivityField string `yaml:"activityField,omitempty"`
}

// FixedPortSpec declares a port that follows the dynamic ones.
type FixedPortSpec struct {
	Name        string          `yaml:"name"`
	DisplayName string          `yaml:"displayName,omitempty"`
	Kind        schema.PortKind `yaml:"kind"`
	// Property stores an embedded port's activity; defaults to the camelCased name.
	Property string `yaml:"property,omitempty"`
	// When is a CEL guard over activity and descriptor; the port exists only
	// when it evaluates to true.
	When string `yaml:"when,omitempty"`
}

// Engines bundles the expression engines shared by declarative providers.
type Engines struct {
	JQ   *expressions.GoJQEngine
	Expr *expressions.ExprEngine
	CEL  *expressions.CELEngine
}

// NewEngines creates one engine of each kind.
func NewEngines() (*Engines, error) {
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &Engines{
		JQ:   expressions.NewGoJQEngine(),
		Expr: expressions.NewExprEngine(),
		CEL:  celEngine,
	}, nil
}

// DeclarativePortProvider is a PortProvider configured by a ProviderSpec.
type DeclarativePortProvider struct {
	spec    ProviderSpec
	engines *Engines
}

// binding ties a port to where its activity is stored.
type binding struct {
	port     schema.Port
	property string
	item     map[string]any
}

// NewDeclarativePortProvider validates spec and compiles its expressions.
func NewDeclarativePortProvider(spec ProviderSpec, engines *Engines) (*DeclarativePortProvider, error) {
	if engines == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "declarative provider requires expression engines")
	}
	if spec.Name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "declarative provider requires a name")
	}
	invalid := func(format string, args ...any) error {
		return schema.NewErrorf(schema.ErrCodeValidation, "provider %s: "+format, append([]any{spec.Name}, args...)...).
			WithDetails(map[string]any{"provider": spec.Name})
	}

	if len(spec.Types) == 0 && spec.Supports == "" {
		return nil, invalid("one of types or supports is required")
	}
	if spec.Supports != "" {
		if err := engines.Expr.Compile(spec.Supports, map[string]any{"activityType": ""}); err != nil {
			return nil, invalid("supports: %v", err)
		}
	}

	if d := spec.Dynamic; d != nil {
		if !validKind(d.Kind) {
			return nil, invalid("dynamic port kind %q", d.Kind)
		}
		if d.List == "" || d.Name == "" {
			return nil, invalid("dynamic ports require list and name")
		}
		if err := engines.JQ.Compile(d.Name); err != nil {
			return nil, invalid("dynamic name: %v", err)
		}
		if d.DisplayName != "" {
			if err := engines.JQ.Compile(d.DisplayName); err != nil {
				return nil, invalid("dynamic displayName: %v", err)
			}
		}
		if d.ActivityField == "" {
			spec.Dynamic = &DynamicPortSpec{
				Kind: d.Kind, List: d.List, Name: d.Name, DisplayName: d.DisplayName,
				ActivityField: "activity",
			}
		}
	}

	fixed := make([]FixedPortSpec, len(spec.Fixed))
	for i, f := range spec.Fixed {
		if f.Name == "" {
			return nil, invalid("fixed port %d has no name", i)
		}
		if !validKind(f.Kind) {
			return nil, invalid("fixed port %s kind %q", f.Name, f.Kind)
		}
		if f.When != "" {
			if err := engines.CEL.Compile(f.When); err != nil {
				return nil, invalid("fixed port %s when: %v", f.Name, err)
			}
		}
		if f.Property == "" {
			f.Property = PropertyName(f.Name)
		}
		fixed[i] = f
	}
	spec.Fixed = fixed

	return &DeclarativePortProvider{spec: spec, engines: engines}, nil
}

func validKind(k schema.PortKind) bool {
	return k == schema.PortKindFlow || k == schema.PortKindEmbedded
}

// Name returns the configured provider name.
func (p *DeclarativePortProvider) Name() string { return p.spec.Name }

func (p *DeclarativePortProvider) Priority() int { return p.spec.Priority }

func (p *DeclarativePortProvider) Supports(activityType string) bool {
	if slices.Contains(p.spec.Types, activityType) {
		return true
	}
	if p.spec.Supports == "" {
		return false
	}
	return p.engines.Expr.Match(context.Background(), p.spec.Supports,
		map[string]any{"activityType": activityType})
}

func (p *DeclarativePortProvider) GetPorts(activity *schema.Activity, descriptor *schema.ActivityDescriptor) ([]schema.Port, error) {
	bs, err := p.bindings(context.Background(), activity, descriptor)
	if err != nil {
		return nil, err
	}
	out := make([]schema.Port, len(bs))
	for i, b := range bs {
		out[i] = b.port
	}
	return out, nil
}

// ResolvePort evaluates guards without a descriptor; guards that read
// descriptor fields see an empty object here.
func (p *DeclarativePortProvider) ResolvePort(portName string, activity *schema.Activity) *schema.Activity {
	b, ok := p.embedded(portName, activity)
	if !ok {
		return nil
	}
	if b.item != nil {
		return schema.ActivityField(b.item, b.property)
	}
	return activity.ActivityProp(b.property)
}

func (p *DeclarativePortProvider) AssignPort(portName string, child, container *schema.Activity) {
	b, ok := p.embedded(portName, container)
	if !ok {
		return
	}
	if b.item != nil {
		b.item[b.property] = child
		return
	}
	container.SetActivityProp(b.property, child)
}

func (p *DeclarativePortProvider) ClearPort(portName string, container *schema.Activity) {
	b, ok := p.embedded(portName, container)
	if !ok {
		return
	}
	if b.item != nil {
		delete(b.item, b.property)
		return
	}
	container.DeleteProp(b.property)
}

func (p *DeclarativePortProvider) embedded(portName string, activity *schema.Activity) (binding, bool) {
	bs, err := p.bindings(context.Background(), activity, nil)
	if err != nil {
		return binding{}, false
	}
	for _, b := range bs {
		if b.port.Name == portName && b.port.Kind == schema.PortKindEmbedded {
			return b, true
		}
	}
	return binding{}, false
}

// bindings computes the ports in order, dynamic first. Queries run over the
// plain JSON form of the activity; the matching raw list item is kept so
// embedded writes land in the activity itself.
func (p *DeclarativePortProvider) bindings(ctx context.Context, activity *schema.Activity, descriptor *schema.ActivityDescriptor) ([]binding, error) {
	data, err := expressions.ActivityData(activity)
	if err != nil {
		return nil, err
	}

	var out []binding
	if d := p.spec.Dynamic; d != nil {
		plain, _ := data[d.List].([]any)
		raw := activity.ListProp(d.List)
		for i, item := range plain {
			name, err := p.firstString(ctx, d.Name, item)
			if err != nil {
				return nil, withActivity(err, activity.ID)
			}
			if name == "" {
				continue
			}
			display := name
			if d.DisplayName != "" {
				if display, err = p.firstString(ctx, d.DisplayName, item); err != nil {
					return nil, withActivity(err, activity.ID)
				}
			}
			b := binding{
				port:     schema.Port{Name: name, DisplayName: display, Kind: d.Kind},
				property: d.ActivityField,
			}
			if i < len(raw) {
				b.item, _ = raw[i].(map[string]any)
			}
			out = append(out, b)
		}
	}

	var descData map[string]any
	for _, f := range p.spec.Fixed {
		if f.When != "" {
			if descData == nil {
				descData = descriptorData(descriptor)
			}
			ok, err := p.engines.CEL.EvaluateBool(ctx, f.When, map[string]any{
				expressions.GuardActivity:   data,
				expressions.GuardDescriptor: descData,
			})
			if err != nil {
				return nil, withActivity(err, activity.ID)
			}
			if !ok {
				continue
			}
		}
		display := f.DisplayName
		if display == "" {
			display = f.Name
		}
		out = append(out, binding{
			port:     schema.Port{Name: f.Name, DisplayName: display, Kind: f.Kind},
			property: f.Property,
		})
	}
	return out, nil
}

func (p *DeclarativePortProvider) firstString(ctx context.Context, query string, item any) (string, error) {
	results, err := p.engines.JQ.Query(ctx, query, item)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}
	return scalarString(results[0]), nil
}

func descriptorData(d *schema.ActivityDescriptor) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	ports := make([]any, len(d.Ports))
	for i, port := range d.Ports {
		ports[i] = map[string]any{"name": port.Name, "displayName": port.DisplayName, "kind": string(port.Kind)}
	}
	return map[string]any{
		"type":        d.Type,
		"version":     int64(d.Version),
		"displayName": d.DisplayName,
		"category":    d.Category,
		"ports":       ports,
	}
}

// LoadProviders decodes a provider config and builds its providers.
func LoadProviders(r io.Reader, engines *Engines) ([]*DeclarativePortProvider, error) {
	var cfg ProviderConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "decode provider config: %s", err.Error()).WithCause(err)
	}
	out := make([]*DeclarativePortProvider, 0, len(cfg.Providers))
	for _, spec := range cfg.Providers {
		p, err := NewDeclarativePortProvider(spec, engines)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadProvidersFile reads a provider config from disk.
func LoadProvidersFile(path string, engines *Engines) ([]*DeclarativePortProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open provider config: %w", err)
	}
	defer f.Close()
	return LoadProviders(f, engines)
}

// RegisterProviders adds the declarative providers to r in config order.
func RegisterProviders(r *Resolver, providers []*DeclarativePortProvider) {
	for _, p := range providers {
		r.Register(p)
	}
}

var _ PortProvider = (*DeclarativePortProvider)(nil)
