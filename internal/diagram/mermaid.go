package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a Graph as a Mermaid flowchart string. Edges are
// labelled with their source port unless it is the synthesized Done port;
// embedded ports hang off their node as dotted stubs.
func RenderMermaid(g *Graph) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	if g.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", g.Title))
	}

	for _, node := range g.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	for _, edge := range g.Edges {
		label := ""
		if edge.Source.Port != "" && edge.Source.Port != PortDone {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Source.Port))
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(edge.Source.Cell), label, mermaidSafeID(edge.Target.Cell)))
	}

	hasEmbedded := false
	for _, node := range g.Nodes {
		for _, p := range node.Embedded {
			hasEmbedded = true
			stub := mermaidSafeID(node.ID + "__" + p.Name)
			b.WriteString(fmt.Sprintf("    %s([%q])\n", stub, mermaidEscapeLabel(p.Label())))
			b.WriteString(fmt.Sprintf("    %s -.- %s\n", mermaidSafeID(node.ID), stub))
			b.WriteString(fmt.Sprintf("    class %s embedded\n", stub))
		}
	}

	if hasEmbedded {
		b.WriteString("\n")
		b.WriteString("    classDef embedded fill:#f4f4f4,stroke:#999,stroke-dasharray:3 3\n")
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(firstLine(node.Label))

	switch node.Shape {
	case ShapeDiamond:
		return fmt.Sprintf("%s{%q}", id, label)
	case ShapeHexagon:
		return fmt.Sprintf("%s{{%q}}", id, label)
	case ShapeRounded:
		return fmt.Sprintf("%s(%q)", id, label)
	case ShapeSubroutine:
		return fmt.Sprintf("%s[[%q]]", id, label)
	default: // rect
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots, dashes, spaces and colons with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_", ":", "_")
	return r.Replace(id)
}

// mermaidEscapeLabel escapes characters Mermaid treats as syntax in labels.
func mermaidEscapeLabel(s string) string {
	r := strings.NewReplacer(`"`, "#quot;", "|", "#124;")
	return r.Replace(s)
}

// firstLine returns s up to the first newline.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
