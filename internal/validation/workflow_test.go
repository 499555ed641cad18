package validation

import (
	"encoding/json"
	"testing"

	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDocument = `{
  "definitionId": "orders",
  "name": "Orders",
  "version": 1,
  "root": {
    "id": "root", "type": "Elsa.Flowchart", "version": 1,
    "activities": [
      {"id": "fetch", "type": "Elsa.SendHttpRequest", "version": 1,
       "metadata": {"designer": {"position": {"x": 10, "y": 20}}},
       "expectedStatusCodes": [
         {"statusCode": 200, "activity": {
           "id": "ok", "type": "Elsa.Flowchart", "version": 1,
           "activities": [
             {"id": "route", "type": "Elsa.Switch", "version": 1,
              "cases": [{"label": "X", "activity": {"id": "say", "type": "Elsa.WriteLine", "version": 1}}]}
           ],
           "connections": []}}
       ]},
      {"id": "decide", "type": "Elsa.FlowDecision", "version": 1},
      {"id": "log", "type": "Elsa.WriteLine", "version": 1}
    ],
    "connections": [
      {"source": "fetch", "target": "decide"},
      {"source": "decide", "sourcePort": "True", "target": "log"}
    ]
  }
}`

func newValidator(t *testing.T) *WorkflowValidator {
	t.Helper()
	wv, err := NewWorkflowValidator(nil, descriptors.Builtin())
	require.NoError(t, err)
	return wv
}

func decodeDefinition(t *testing.T, doc string) *schema.WorkflowDefinition {
	t.Helper()
	var def schema.WorkflowDefinition
	require.NoError(t, json.Unmarshal([]byte(doc), &def))
	return &def
}

// rootFlowchart returns the root flowchart view of def for mutation.
func rootFlowchart(t *testing.T, def *schema.WorkflowDefinition) *schema.Flowchart {
	t.Helper()
	fc, ok := def.Root.Flowchart()
	require.True(t, ok)
	return fc
}

func codes(issues []schema.ValidationIssue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Code
	}
	return out
}

func TestWorkflowValidator_ImplementsValidator(t *testing.T) {
	var _ Validator = (*WorkflowValidator)(nil)
}

func TestWorkflowValidator_Valid(t *testing.T) {
	result := newValidator(t).Validate(decodeDefinition(t, validDocument))
	assert.True(t, result.Valid(), "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestWorkflowValidator_ValidateDocument(t *testing.T) {
	wv := newValidator(t)

	def, result := wv.ValidateDocument([]byte(validDocument))
	require.True(t, result.Valid())
	require.NotNil(t, def)
	assert.Equal(t, "orders", def.DefinitionID)

	def, result = wv.ValidateDocument([]byte(`{"definitionId": "x", "root": `))
	assert.Nil(t, def)
	assert.False(t, result.Valid())
}

func TestWorkflowValidator_NilDef(t *testing.T) {
	result := newValidator(t).Validate(nil)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "nil")
}

func TestWorkflowValidator_StructuralShortCircuits(t *testing.T) {
	wv := newValidator(t)

	// The duplicate id would be a semantic error; the schema stage stops first.
	_, result := wv.ValidateDocument([]byte(`{
	  "root": {"id": "root", "type": "Elsa.Flowchart",
	    "activities": [{"id": "a", "type": "Elsa.WriteLine"}, {"id": "a", "type": "Elsa.WriteLine"}],
	    "connections": [{"source": "a"}]}
	}`))
	require.False(t, result.Valid())
	paths := map[string]bool{}
	for _, e := range result.Errors {
		assert.Equal(t, schema.ErrCodeValidation, e.Code)
		paths[e.Path] = true
	}
	assert.True(t, paths["/"], "missing definitionId: %v", paths)
	assert.True(t, paths["root.connections[0]"], "missing connection target: %v", paths)
}

func TestWorkflowValidator_NestedActivityShape(t *testing.T) {
	_, result := newValidator(t).ValidateDocument([]byte(`{
	  "definitionId": "x",
	  "root": {"id": "root", "type": "Elsa.Flowchart",
	    "activities": [{"id": "", "type": "Elsa.WriteLine",
	      "metadata": {"designer": {"size": {"width": -1, "height": 10}}}}]}
	}`))
	require.False(t, result.Valid())
	var paths []string
	for _, e := range result.Errors {
		paths = append(paths, e.Path)
	}
	assert.Contains(t, paths, "root.activities[0].id")
	assert.Contains(t, paths, "root.activities[0].metadata.designer.size.width")
}

func TestWorkflowValidator_DuplicateIDs(t *testing.T) {
	def := decodeDefinition(t, validDocument)
	fc := rootFlowchart(t, def)
	fc.Activities = append(fc.Activities, &schema.Activity{ID: "log", Type: "Elsa.WriteLine", Version: 1})
	def.Root.SetFlowchart(fc)

	result := newValidator(t).Validate(def)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "root.activities[3]", result.Errors[0].Path)
	assert.Equal(t, "log", result.Errors[0].ActivityID)
	assert.Contains(t, result.Errors[0].Message, "activities[2]")
}

func TestWorkflowValidator_DanglingConnection(t *testing.T) {
	def := decodeDefinition(t, validDocument)
	fc := rootFlowchart(t, def)
	fc.Connections = append(fc.Connections, schema.Connection{Source: "log", Target: "ghost"})
	def.Root.SetFlowchart(fc)

	result := newValidator(t).Validate(def)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodeDanglingConnection, result.Errors[0].Code)
	assert.Equal(t, "root.connections[2]", result.Errors[0].Path)
	assert.Contains(t, result.Errors[0].Message, "ghost")

	err := newValidator(t).ValidateDefinition(def)
	assert.True(t, schema.IsCode(err, schema.ErrCodeDanglingConnection))
}

func TestWorkflowValidator_UnknownSourcePortWarns(t *testing.T) {
	def := decodeDefinition(t, validDocument)
	fc := rootFlowchart(t, def)
	fc.Connections[1].SourcePort = "Maybe"
	def.Root.SetFlowchart(fc)

	result := newValidator(t).Validate(def)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "decide", result.Warnings[0].ActivityID)
	assert.Contains(t, result.Warnings[0].Message, `"Maybe"`)
}

func TestWorkflowValidator_DescendsIntoEmbeddedPorts(t *testing.T) {
	def := decodeDefinition(t, validDocument)
	fetch := rootFlowchart(t, def).Find("fetch")
	item := fetch.ListProp("expectedStatusCodes")[0].(map[string]any)
	ok := schema.ActivityField(item, "activity")
	inner, _ := ok.Flowchart()
	inner.Connections = append(inner.Connections, schema.Connection{Source: "route", Target: "nowhere"})
	ok.SetFlowchart(inner)

	result := newValidator(t).Validate(def)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, `root.activities[0].ports["200"].connections[0]`, result.Errors[0].Path)
}

func TestWorkflowValidator_UnknownType(t *testing.T) {
	def := decodeDefinition(t, validDocument)
	fc := rootFlowchart(t, def)
	fc.Activities[2].Type = "Acme.Custom"

	result := newValidator(t).Validate(def)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, schema.ErrCodeNotFound, result.Warnings[0].Code)

	wv, err := NewWorkflowValidator(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, wv.Validate(def).Warnings)
}

func TestWorkflowValidator_ValidateContainer(t *testing.T) {
	fc := schema.NewFlowchartActivity("sub")
	view, _ := fc.Flowchart()
	view.Activities = append(view.Activities,
		&schema.Activity{ID: "a", Type: "Elsa.WriteLine", Version: 1},
		&schema.Activity{ID: "a", Type: "Elsa.Delay", Version: 1})
	fc.SetFlowchart(view)

	result := newValidator(t).ValidateContainer(fc)
	assert.Equal(t, []string{schema.ErrCodeValidation}, codes(result.Errors))
}

func TestWorkflowValidator_UnreadableFlowchartItems(t *testing.T) {
	var fc schema.Activity
	require.NoError(t, json.Unmarshal([]byte(`{"id":"sub","type":"Elsa.Flowchart","version":1,
	  "activities":[{"id":"a","type":"Elsa.WriteLine","version":1},{"id":"b","version":1}],
	  "connections":[]}`), &fc))

	result := newValidator(t).ValidateContainer(&fc)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodeValidation, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "activities[1]")
}

func TestReachability(t *testing.T) {
	acts := func(ids ...string) []*schema.Activity {
		out := make([]*schema.Activity, len(ids))
		for i, id := range ids {
			out[i] = &schema.Activity{ID: id, Type: "Elsa.WriteLine"}
		}
		return out
	}
	conn := func(from, to string) schema.Connection { return schema.Connection{Source: from, Target: to} }

	tests := []struct {
		name        string
		fc          *schema.Flowchart
		unreachable []string
		noStart     bool
	}{
		{"linear", &schema.Flowchart{Activities: acts("a", "b", "c"),
			Connections: []schema.Connection{conn("a", "b"), conn("b", "c")}}, nil, false},
		{"loop with entry", &schema.Flowchart{Activities: acts("a", "b", "c"),
			Connections: []schema.Connection{conn("a", "b"), conn("b", "c"), conn("c", "b")}}, nil, false},
		{"detached loop", &schema.Flowchart{Activities: acts("a", "b", "c"),
			Connections: []schema.Connection{conn("b", "c"), conn("c", "b")}}, []string{"b", "c"}, false},
		{"self loop start", &schema.Flowchart{Activities: acts("a", "b"),
			Connections: []schema.Connection{conn("a", "a"), conn("a", "b")}}, nil, false},
		{"no start", &schema.Flowchart{Activities: acts("a", "b"),
			Connections: []schema.Connection{conn("a", "b"), conn("b", "a")}}, nil, true},
		{"single", &schema.Flowchart{Activities: acts("a")}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checkReachability(tt.fc, "root")
			assert.True(t, result.Valid())
			if tt.noStart {
				require.Len(t, result.Warnings, 1)
				assert.Contains(t, result.Warnings[0].Message, "no start activity")
				return
			}
			var got []string
			for _, w := range result.Warnings {
				got = append(got, w.ActivityID)
			}
			assert.Equal(t, tt.unreachable, got)
		})
	}
}

func TestInstancePath(t *testing.T) {
	tests := map[string][]string{
		"/":                           nil,
		"definitionId":                {"definitionId"},
		"root.activities[0].id":       {"root", "activities", "0", "id"},
		"root.connections[12]":        {"root", "connections", "12"},
		"root.metadata.designer.size": {"root", "metadata", "designer", "size"},
	}
	for want, loc := range tests {
		assert.Equal(t, want, instancePath(loc))
	}
}
