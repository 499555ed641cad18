package designer

import (
	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/diagram"
	"github.com/rendis/flowdesigner/internal/navigation"
	"github.com/rendis/flowdesigner/internal/ports"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// View is a read-only rendering of one container of a workflow.
type View struct {
	Graph       *diagram.Graph           `json:"graph"`
	Breadcrumbs []navigation.Breadcrumb  `json:"breadcrumbs"`
	Path        []navigation.PathSegment `json:"path"`
}

// RenderView resolves path from the workflow root and maps the container it
// reaches. Unlike a Session it does not truncate a broken path: the
// BROKEN_PATH error is returned as is.
func RenderView(def *schema.WorkflowDefinition, resolver *ports.Resolver, registry descriptors.Registry, path []navigation.PathSegment) (*View, error) {
	if def == nil || def.Root == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow has no root activity")
	}
	if resolver == nil {
		resolver = ports.NewCatalogResolver(registry)
	}
	res, err := navigation.Resolve(resolver, registry, def.Root, path)
	if err != nil {
		return nil, err
	}
	g, err := graphFor(diagram.NewMapper(resolver, registry), def, res)
	if err != nil {
		return nil, err
	}
	return &View{Graph: g, Breadcrumbs: res.Breadcrumbs, Path: res.Path()}, nil
}

// graphFor maps the visible container of res and titles it with the
// workflow name and every crumb below the root.
func graphFor(m *diagram.Mapper, def *schema.WorkflowDefinition, res *navigation.Resolution) (*diagram.Graph, error) {
	g, err := m.ToGraph(res.Flowchart())
	if err != nil {
		return nil, err
	}
	crumbs := make([]string, 0, len(res.Breadcrumbs))
	for _, c := range res.Breadcrumbs[min(1, len(res.Breadcrumbs)):] {
		crumbs = append(crumbs, c.Label)
	}
	g.Title = diagram.Title(def, crumbs...)
	return g, nil
}
