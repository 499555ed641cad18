package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// ImageFormat is an output format supported by RenderImage.
type ImageFormat string

const (
	FormatPNG ImageFormat = "png"
	FormatSVG ImageFormat = "svg"
)

// RenderImage renders a Graph with graphviz and returns the encoded image.
func RenderImage(g *Graph, format ImageFormat) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case FormatPNG, "":
		gvFormat = graphviz.PNG
	case FormatSVG:
		gvFormat = graphviz.SVG
	default:
		return nil, fmt.Errorf("diagram: unsupported image format %q", format)
	}

	ctx := context.Background()

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if g.Title != "" {
		graph.SetLabel(g.Title)
	}

	gvNodes := make(map[string]*cgraph.Node, len(g.Nodes))
	for _, node := range g.Nodes {
		gvNode, nErr := graph.CreateNodeByName(node.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, nErr)
		}
		gvNode.SetLabel(firstLine(node.Label))
		applyNodeShape(gvNode, node.Shape)
		gvNodes[node.ID] = gvNode
	}

	// Embedded ports as dashed stubs next to their node.
	for _, node := range g.Nodes {
		for _, p := range node.Embedded {
			stub, nErr := graph.CreateNodeByName(node.ID + "__" + p.Name)
			if nErr != nil {
				continue
			}
			stub.SetLabel(p.Label())
			stub.SetShape(cgraph.EllipseShape)
			stub.SetStyle(cgraph.DashedNodeStyle)
			stub.SetFontColor("#666666")
			if e, eErr := graph.CreateEdgeByName("", gvNodes[node.ID], stub); eErr == nil {
				e.SetStyle(cgraph.DashedEdgeStyle)
				e.SetArrowHead(cgraph.NoneArrow)
			}
		}
	}

	for _, edge := range g.Edges {
		fromGV, toGV := gvNodes[edge.Source.Cell], gvNodes[edge.Target.Cell]
		if fromGV == nil || toGV == nil {
			continue
		}
		e, eErr := graph.CreateEdgeByName("", fromGV, toGV)
		if eErr == nil && edge.Source.Port != PortDone {
			e.SetLabel(edge.Source.Port)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}

	return buf.Bytes(), nil
}

// applyNodeShape maps a node shape to a graphviz shape.
func applyNodeShape(gvNode *cgraph.Node, shape Shape) {
	switch shape {
	case ShapeDiamond:
		gvNode.SetShape(cgraph.DiamondShape)
	case ShapeHexagon:
		gvNode.SetShape(cgraph.HexagonShape)
	case ShapeRounded:
		gvNode.SetShape(cgraph.BoxShape)
		gvNode.SetStyle(cgraph.RoundedNodeStyle)
	case ShapeSubroutine:
		gvNode.SetShape(cgraph.BoxShape)
		gvNode.SetPeripheries(2)
	default:
		gvNode.SetShape(cgraph.BoxShape)
	}
}
