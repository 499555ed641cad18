package validation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rendis/flowdesigner/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const workflowSchemaURL = "https://flowdesigner.dev/schemas/workflow.json"

// workflowSchemaJSON describes the document and the activity envelope.
// Type-specific properties stay open; flowchart containers also constrain
// their activities and connections.
//
//go:embed schemas/workflow.json
var workflowSchemaJSON []byte

// JSONSchemaValidator checks the shape of workflow documents (Draft 2020-12).
// Safe for concurrent use.
type JSONSchemaValidator struct {
	workflow *jsonschema.Schema
}

func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(workflowSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("workflow schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(workflowSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("workflow schema: %w", err)
	}
	compiled, err := c.Compile(workflowSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("workflow schema: %w", err)
	}
	return &JSONSchemaValidator{workflow: compiled}, nil
}

// Check validates a raw document and reports every leaf violation as an
// error issue located at the offending value.
func (v *JSONSchemaValidator) Check(raw []byte) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		result.AddError("/", schema.ErrCodeValidation, "workflow document is not valid JSON: "+err.Error())
		return result
	}
	err = v.workflow.Validate(doc)
	var verr *jsonschema.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		addViolations(result, verr)
	default:
		result.AddError("/", schema.ErrCodeValidation, err.Error())
	}
	return result
}

// ValidateDocument is Check folded into a single error.
func (v *JSONSchemaValidator) ValidateDocument(raw []byte) error {
	return v.Check(raw).ToError()
}

// ValidateDefinition validates an in-memory definition through its JSON form.
func (v *JSONSchemaValidator) ValidateDefinition(def *schema.WorkflowDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}
	b, err := json.Marshal(def)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "encode workflow definition").WithCause(err)
	}
	return v.ValidateDocument(b)
}

func addViolations(result *schema.ValidationResult, verr *jsonschema.ValidationError) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			addViolations(result, cause)
		}
		return
	}
	result.AddError(instancePath(verr.InstanceLocation), schema.ErrCodeValidation, verr.Error())
}

// instancePath renders a JSON Schema instance location in the dotted form
// used by semantic issues, e.g. root.activities[0].metadata. The document
// itself is "/".
func instancePath(loc []string) string {
	if len(loc) == 0 {
		return "/"
	}
	var b strings.Builder
	for i, tok := range loc {
		if _, err := strconv.Atoi(tok); err == nil {
			b.WriteString("[" + tok + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(tok)
	}
	return b.String()
}
