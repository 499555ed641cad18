package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/flowdesigner/pkg/schema"
)

// Definition is the persisted form of a workflow definition. Revision counts
// the saves of this definition and matches the newest Revision sequence.
type Definition struct {
	ID         string                     `json:"id"`
	Name       string                     `json:"name,omitempty"`
	Version    int                        `json:"version"`
	Revision   int64                      `json:"revision"`
	Definition *schema.WorkflowDefinition `json:"definition"`
	CreatedAt  time.Time                  `json:"created_at"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// DefinitionFilter narrows ListDefinitions.
type DefinitionFilter struct {
	NamePrefix string
	Limit      int
	Offset     int
}

// Revision is an immutable snapshot of a saved definition document.
type Revision struct {
	DefinitionID string          `json:"definition_id"`
	Sequence     int64           `json:"sequence"`
	Document     json.RawMessage `json:"document"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Decode parses the snapshot.
func (r *Revision) Decode() (*schema.WorkflowDefinition, error) {
	var def schema.WorkflowDefinition
	if err := json.Unmarshal(r.Document, &def); err != nil {
		return nil, err
	}
	return &def, nil
}
