package navigation

import (
	"encoding/json"
	"testing"

	"github.com/rendis/flowdesigner/internal/descriptors"
	"github.com/rendis/flowdesigner/internal/ports"
	"github.com/rendis/flowdesigner/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nestedWorkflow = `{
  "id": "root", "type": "Elsa.Flowchart", "version": 1,
  "activities": [
    {"id": "a1", "type": "Elsa.SendHttpRequest", "version": 1,
     "expectedStatusCodes": [
       {"statusCode": 200, "activity": {
         "id": "fc200", "type": "Elsa.Flowchart", "version": 1,
         "activities": [
           {"id": "a2", "type": "Elsa.Switch", "version": 1, "name": "Route",
            "cases": [{"label": "X", "activity": {
              "id": "fcX", "type": "Elsa.Flowchart", "version": 1,
              "activities": [{"id": "w1", "type": "Elsa.WriteLine", "version": 1}],
              "connections": []}}]}
         ],
         "connections": []}}
     ]},
    {"id": "log", "type": "Elsa.WriteLine", "version": 1}
  ],
  "connections": [{"source": "a1", "target": "log"}]
}`

func newStack() *Stack {
	return NewStack(ports.NewDefaultResolver(), descriptors.Builtin(), nil)
}

func loadRoot(t *testing.T) *schema.Activity {
	t.Helper()
	var root schema.Activity
	require.NoError(t, json.Unmarshal([]byte(nestedWorkflow), &root))
	return &root
}

func labels(crumbs []Breadcrumb) []string {
	out := make([]string, len(crumbs))
	for i, c := range crumbs {
		out[i] = c.Label
	}
	return out
}

func TestStack_EmptyResolvesToRoot(t *testing.T) {
	root := loadRoot(t)
	res, err := newStack().Resolve(root)
	require.NoError(t, err)
	assert.Same(t, root, res.Container)
	assert.Empty(t, res.Breadcrumbs)
	assert.Len(t, res.Flowchart().Activities, 2)
}

func TestStack_NavigationConsistency(t *testing.T) {
	root := loadRoot(t)
	s := newStack()

	_, err := s.Enter(root, "a1", "Elsa.SendHttpRequest", "200")
	require.NoError(t, err)
	_, err = s.Enter(root, "a2", "Elsa.Switch", "X")
	require.NoError(t, err)

	res, err := s.Resolve(root)
	require.NoError(t, err)
	require.Len(t, res.Breadcrumbs, 3)
	assert.Equal(t, []string{"Root", "HTTP Request: 200", "Route: X"}, labels(res.Breadcrumbs))
	assert.False(t, res.Breadcrumbs[0].Active)
	assert.False(t, res.Breadcrumbs[1].Active)
	assert.True(t, res.Breadcrumbs[2].Active)
	assert.Equal(t, "fcX", res.Container.ID)
	assert.NotNil(t, res.Flowchart().Find("w1"))

	require.True(t, s.Leave("a1"))
	res, err = s.Resolve(root)
	require.NoError(t, err)
	require.Len(t, res.Breadcrumbs, 2)
	assert.Equal(t, []string{"Root", "HTTP Request: 200"}, labels(res.Breadcrumbs))
	assert.True(t, res.Breadcrumbs[1].Active)
	assert.Equal(t, "fc200", res.Container.ID)

	s.LeaveToRoot()
	res, err = s.Resolve(root)
	require.NoError(t, err)
	assert.Empty(t, res.Breadcrumbs)
	assert.Same(t, root, res.Container)
}

func TestStack_EnterCreatesEmbeddedFlowchart(t *testing.T) {
	root := loadRoot(t)
	s := newStack()
	resolver := ports.NewDefaultResolver()

	fc, _ := root.Flowchart()
	http := fc.Find("a1")
	unmatched, err := resolver.ResolvePort(ports.PortUnmatchedStatusCode, http)
	require.NoError(t, err)
	require.Nil(t, unmatched)

	res, err := s.Enter(root, "a1", "Elsa.SendHttpRequest", ports.PortUnmatchedStatusCode)
	require.NoError(t, err)

	created, err := resolver.ResolvePort(ports.PortUnmatchedStatusCode, http)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.True(t, created.IsFlowchart())
	assert.NotEmpty(t, created.ID)
	assert.Same(t, created, res.Container)
	assert.Empty(t, res.Flowchart().Activities)
	assert.Equal(t, []PathSegment{{ActivityID: "a1", ActivityType: "Elsa.SendHttpRequest", PortName: ports.PortUnmatchedStatusCode}}, s.Path())

	again, err := s.Resolve(root)
	require.NoError(t, err)
	assert.Same(t, created, again.Container)
	assert.Equal(t, "HTTP Request: Unmatched status code", again.Breadcrumbs[1].Label)
}

func TestStack_EnterRejectsInvalidTargets(t *testing.T) {
	root := loadRoot(t)
	s := newStack()

	_, err := s.Enter(root, "ghost", "", "200")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

	_, err = s.Enter(root, "a1", "Elsa.Switch", "200")
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = s.Enter(root, "a1", "", "404")
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = s.Enter(root, "log", "", "Done")
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	assert.Equal(t, 0, s.Len())
}

func TestStack_BrokenPathTruncates(t *testing.T) {
	root := loadRoot(t)
	s := newStack()

	_, err := s.Enter(root, "a1", "", "200")
	require.NoError(t, err)
	res, err := s.Enter(root, "a2", "", "X")
	require.NoError(t, err)

	// The user deletes case X out from under the path.
	a2 := schema.FlowchartOf(res.Hops[0].Container).Find("a2")
	a2.Props["cases"] = []any{}

	res, err = s.Resolve(root)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "fc200", res.Container.ID)
	assert.Equal(t, []string{"Root", "HTTP Request: 200"}, labels(res.Breadcrumbs))
}

func TestResolve_ReportsBrokenIndex(t *testing.T) {
	root := loadRoot(t)
	path := []PathSegment{
		{ActivityID: "a1", PortName: "200"},
		{ActivityID: "missing", PortName: "X"},
	}

	res, err := Resolve(ports.NewDefaultResolver(), descriptors.Builtin(), root, path)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeBrokenPath))
	idx, ok := BrokenIndex(err)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	require.NotNil(t, res)
	assert.Len(t, res.Hops, 1)
	assert.Equal(t, "fc200", res.Container.ID)

	_, ok = BrokenIndex(schema.NewError(schema.ErrCodeNotFound, "x"))
	assert.False(t, ok)
}

func TestResolve_UnassignedPortIsBroken(t *testing.T) {
	root := loadRoot(t)
	_, err := Resolve(ports.NewDefaultResolver(), nil, root,
		[]PathSegment{{ActivityID: "a1", PortName: ports.PortUnmatchedStatusCode}})
	idx, ok := BrokenIndex(err)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestStack_LeaveUnknownAndLeaveTo(t *testing.T) {
	root := loadRoot(t)
	s := newStack()
	_, err := s.Enter(root, "a1", "", "200")
	require.NoError(t, err)
	_, err = s.Enter(root, "a2", "", "X")
	require.NoError(t, err)

	assert.False(t, s.Leave("nope"))
	assert.Equal(t, 2, s.Len())

	s.LeaveTo(1)
	assert.Equal(t, "a1", s.Path()[0].ActivityID)
	assert.Equal(t, 1, s.Len())

	s.LeaveTo(5)
	assert.Equal(t, 1, s.Len())

	s.LeaveTo(0)
	assert.Equal(t, 0, s.Len())
}

func TestStack_ResetCopiesPath(t *testing.T) {
	s := newStack()
	path := []PathSegment{{ActivityID: "a1", PortName: "200"}}
	s.Reset(path)
	path[0].ActivityID = "changed"
	assert.Equal(t, "a1", s.Path()[0].ActivityID)
}

func TestParsePath(t *testing.T) {
	path, err := ParsePath([]string{"a1:200", "a2:Unmatched: other"})
	require.NoError(t, err)
	assert.Equal(t, []PathSegment{
		{ActivityID: "a1", PortName: "200"},
		{ActivityID: "a2", PortName: "Unmatched: other"},
	}, path)

	for _, bad := range []string{"a1", ":200", "a1:"} {
		_, err := ParseSegment(bad)
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation), bad)
	}
}

func TestResolve_FillsSegmentTypes(t *testing.T) {
	root := loadRoot(t)
	path, err := ParsePath([]string{"a1:200", "a2:X"})
	require.NoError(t, err)

	res, err := Resolve(ports.NewDefaultResolver(), descriptors.Builtin(), root, path)
	require.NoError(t, err)
	assert.Equal(t, "fcX", res.Container.ID)
	got := res.Path()
	assert.Equal(t, "Elsa.SendHttpRequest", got[0].ActivityType)
	assert.Equal(t, "Elsa.Switch", got[1].ActivityType)
}
