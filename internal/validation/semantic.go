package validation

import (
	"errors"
	"fmt"

	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/diagram"
	"github.com/rendis/flowdesigner/internal/ports"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// semanticChecker walks an activity tree through flowchart membership and
// embedded ports, collecting issues the schema cannot express.
type semanticChecker struct {
	resolver *ports.Resolver
	registry descriptors.Registry
	result   *schema.ValidationResult
	visiting map[*schema.Activity]bool
}

// validateSemantic checks root and everything nested below it.
// Checks: duplicate activity ids per flowchart, dangling connections,
// connections leaving unknown ports, unknown activity types, reachability.
func validateSemantic(resolver *ports.Resolver, registry descriptors.Registry, root *schema.Activity, path string) *schema.ValidationResult {
	c := &semanticChecker{
		resolver: resolver,
		registry: registry,
		result:   &schema.ValidationResult{},
		visiting: make(map[*schema.Activity]bool),
	}
	if root == nil {
		c.result.AddError(path, schema.ErrCodeValidation, "workflow has no root activity")
		return c.result
	}
	c.activity(root, path)
	return c.result
}

// activity checks one activity and descends into its contents. It returns
// the activity's flow ports, or false when they could not be resolved.
func (c *semanticChecker) activity(a *schema.Activity, path string) ([]schema.Port, bool) {
	if c.visiting[a] {
		c.result.AddActivityError(path, a.ID, schema.ErrCodeValidation,
			fmt.Sprintf("activity %q contains itself", a.ID))
		return nil, false
	}
	c.visiting[a] = true
	defer delete(c.visiting, a)

	desc := descriptors.Lookup(c.registry, a)
	if desc == nil && c.registry != nil {
		c.result.AddActivityWarning(path, a.ID, schema.ErrCodeNotFound,
			fmt.Sprintf("no descriptor for activity type %q", a.Type))
	}

	all, err := c.resolver.GetPorts(a, desc)
	if err != nil {
		c.result.AddActivityError(path, a.ID, codeOf(err), err.Error())
		return nil, false
	}

	if a.IsFlowchart() {
		fc, err := a.ReadFlowchart()
		if err != nil {
			c.result.AddActivityError(path, a.ID, codeOf(err), err.Error())
		}
		c.flowchart(fc, path)
	}

	for _, p := range schema.FilterPorts(all, schema.PortKindEmbedded) {
		child, err := c.resolver.ResolvePort(p.Name, a)
		if err != nil || child == nil {
			continue
		}
		c.activity(child, fmt.Sprintf("%s.ports[%q]", path, p.Name))
	}
	return schema.FilterPorts(all, schema.PortKindFlow), true
}

func (c *semanticChecker) flowchart(fc *schema.Flowchart, path string) {
	seen := make(map[string]int, len(fc.Activities))
	for i, a := range fc.Activities {
		p := fmt.Sprintf("%s.activities[%d]", path, i)
		if a.ID == "" {
			c.result.AddError(p, schema.ErrCodeValidation, "activity has no id")
			continue
		}
		if first, dup := seen[a.ID]; dup {
			c.result.AddActivityError(p, a.ID, schema.ErrCodeValidation,
				fmt.Sprintf("duplicate activity id %q (first at activities[%d])", a.ID, first))
			continue
		}
		seen[a.ID] = i
	}

	flow := make(map[string][]schema.Port, len(fc.Activities))
	for i, a := range fc.Activities {
		if ports, ok := c.activity(a, fmt.Sprintf("%s.activities[%d]", path, i)); ok {
			if _, known := flow[a.ID]; !known {
				flow[a.ID] = ports
			}
		}
	}

	for i, conn := range fc.Connections {
		p := fmt.Sprintf("%s.connections[%d]", path, i)
		_, hasSource := seen[conn.Source]
		_, hasTarget := seen[conn.Target]
		if !hasSource || !hasTarget {
			missing := conn.Source
			if hasSource {
				missing = conn.Target
			}
			c.result.AddError(p, schema.ErrCodeDanglingConnection,
				fmt.Sprintf("connection references missing activity %q", missing))
			continue
		}
		key := conn.Key(diagram.PortDone, diagram.PortIn)
		if ports, ok := flow[conn.Source]; ok && !hasFlowPort(ports, key.SourcePort) {
			c.result.AddActivityWarning(p, conn.Source, schema.ErrCodeValidation,
				fmt.Sprintf("connection leaves unknown port %q of activity %q", key.SourcePort, conn.Source))
		}
	}

	c.result.Merge(checkReachability(fc, path))
}

// hasFlowPort reports whether name is one of ports. Activities without flow
// ports expose the synthesized Done port.
func hasFlowPort(ports []schema.Port, name string) bool {
	if len(ports) == 0 {
		return name == diagram.PortDone
	}
	_, ok := schema.FindPort(ports, name)
	return ok
}

func codeOf(err error) string {
	var de *schema.DesignerError
	if errors.As(err, &de) {
		return de.Code
	}
	return schema.ErrCodeValidation
}
