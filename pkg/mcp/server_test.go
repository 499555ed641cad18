package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDesignerServer(t *testing.T) {
	s, err := NewDesignerServer(DesignerServerDeps{})
	require.NoError(t, err)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.resolver)
	assert.NotNil(t, s.registry)
	assert.NotNil(t, s.notifier)
}

func TestToolRegistration(t *testing.T) {
	s, err := NewDesignerServer(DesignerServerDeps{})
	require.NoError(t, err)

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 6)

	tests := []struct {
		toolName    string
		description string
	}{
		{"designer.ports", "List the flow and embedded ports of an activity"},
		{"designer.graph", "Render one flowchart of a workflow as a flat graph"},
		{"designer.validate", "Validate a workflow document"},
		{"designer.save", "Validate and store a workflow definition as a new revision"},
		{"designer.load", "Load a stored workflow definition"},
		{"designer.list", "List stored workflow definitions"},
	}
	for _, tc := range tests {
		t.Run(tc.toolName, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
