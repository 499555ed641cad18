package validation

import (
	"encoding/json"

	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/ports"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// rootPath is the issue path of the root activity.
const rootPath = "root"

// WorkflowValidator runs the JSON Schema stage and, when the document is
// well formed, the semantic stage: ids, connections, ports, reachability and
// nested containers.
type WorkflowValidator struct {
	jsonSchema *JSONSchemaValidator
	resolver   *ports.Resolver
	registry   descriptors.Registry
}

// NewWorkflowValidator creates a WorkflowValidator. A nil resolver uses the
// built-in providers over registry; a nil registry skips descriptor checks.
func NewWorkflowValidator(resolver *ports.Resolver, registry descriptors.Registry) (*WorkflowValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	if resolver == nil {
		resolver = ports.NewCatalogResolver(registry)
	}
	return &WorkflowValidator{
		jsonSchema: jsv,
		resolver:   resolver,
		registry:   registry,
	}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit the semantic stage.
func (wv *WorkflowValidator) Validate(def *schema.WorkflowDefinition) *schema.ValidationResult {
	if def == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "workflow definition is nil")
		return r
	}

	raw, err := json.Marshal(def)
	if err != nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, err.Error())
		return r
	}
	result := wv.jsonSchema.Check(raw)
	if !result.Valid() {
		return result
	}
	result.Merge(validateSemantic(wv.resolver, wv.registry, def.Root, rootPath))
	return result
}

// ValidateDocument validates a raw document and decodes it when the
// structural stage passes. The definition is nil when decoding failed.
func (wv *WorkflowValidator) ValidateDocument(raw []byte) (*schema.WorkflowDefinition, *schema.ValidationResult) {
	result := wv.jsonSchema.Check(raw)
	if !result.Valid() {
		return nil, result
	}
	var def schema.WorkflowDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return nil, result
	}
	result.Merge(validateSemantic(wv.resolver, wv.registry, def.Root, rootPath))
	return &def, result
}

// ValidateContainer runs only the semantic stage on a container and its
// descendants. Used before writing a synced flowchart back.
func (wv *WorkflowValidator) ValidateContainer(container *schema.Activity) *schema.ValidationResult {
	return validateSemantic(wv.resolver, wv.registry, container, rootPath)
}

// ValidateDefinition satisfies the Validator interface.
func (wv *WorkflowValidator) ValidateDefinition(def *schema.WorkflowDefinition) error {
	return wv.Validate(def).ToError()
}

var _ Validator = (*WorkflowValidator)(nil)
