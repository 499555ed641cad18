package schema

// WorkflowDefinition is the canonical document the designer loads and saves.
// Root is usually a flowchart; every other activity is reachable from it
// through flowchart membership or embedded ports.
type WorkflowDefinition struct {
	DefinitionID string         `json:"definitionId"`
	Name         string         `json:"name,omitempty"`
	Description  string         `json:"description,omitempty"`
	Version      int            `json:"version"`
	Root         *Activity      `json:"root"`
	Variables    []any          `json:"variables,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Title returns the workflow name, or a generic label when unnamed.
func (d *WorkflowDefinition) Title() string {
	if d.Name != "" {
		return d.Name
	}
	if d.DefinitionID != "" {
		return d.DefinitionID
	}
	return "Workflow"
}
