package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMermaid(t *testing.T) {
	_, fc := loadFlowchart(t, orderFlow)
	g, err := newMapper().ToGraph(fc)
	require.NoError(t, err)
	g.Title = "Orders"

	output := RenderMermaid(g)

	assert.Contains(t, output, "graph TD")
	assert.Contains(t, output, "%% Orders")

	// Shapes by category.
	assert.Contains(t, output, `start["Write Line"]`)
	assert.Contains(t, output, `route{"Switch (flow)"}`)
	assert.Contains(t, output, `call{{"HTTP Request (flow)"}}`)
	assert.Contains(t, output, `loop[["For Each"]]`)

	// Done edges carry no label, other ports do.
	assert.Contains(t, output, "start --> route")
	assert.Contains(t, output, "route -->|A| call")
	assert.Contains(t, output, "call -->|200| done")

	// Embedded ports.
	assert.Contains(t, output, `loop__Body(["Body"])`)
	assert.Contains(t, output, "loop -.- loop__Body")
	assert.Contains(t, output, "classDef embedded")
}

func TestRenderMermaid_NoEmbedded(t *testing.T) {
	g := &Graph{Nodes: []*Node{{ID: "a.b", Label: "x\ny", Shape: ShapeRounded}}}
	output := RenderMermaid(g)
	assert.Contains(t, output, `a_b("x")`)
	assert.NotContains(t, output, "classDef")
}

func TestMermaidEscapeLabel(t *testing.T) {
	assert.Equal(t, "say #quot;hi#quot; #124; bye", mermaidEscapeLabel(`say "hi" | bye`))
}
