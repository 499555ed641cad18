package validation

import "github.com/rendis/flowdesigner/pkg/schema"

// Validator checks workflow documents before they are rendered or saved.
type Validator interface {
	Validate(def *schema.WorkflowDefinition) *schema.ValidationResult
	ValidateDefinition(def *schema.WorkflowDefinition) error
}
