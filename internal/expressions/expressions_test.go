package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rendis/flowdesigner/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func httpActivity() *schema.Activity {
	return &schema.Activity{
		ID:      "http1",
		Type:    "Elsa.SendHttpRequest",
		Version: 1,
		Props: map[string]any{
			"url": "https://example.com",
			"expectedStatusCodes": []any{
				map[string]any{"statusCode": 200.0},
				map[string]any{"statusCode": 404.0},
			},
			"timeout": "30s",
		},
	}
}

func httpData(t *testing.T) map[string]any {
	t.Helper()
	data, err := ActivityData(httpActivity())
	require.NoError(t, err)
	return data
}

func TestActivityData(t *testing.T) {
	data := httpData(t)
	assert.Equal(t, "http1", data["id"])
	assert.Equal(t, "Elsa.SendHttpRequest", data["type"])
	assert.Equal(t, "https://example.com", data["url"])
	assert.Len(t, data["expectedStatusCodes"], 2)
}

func TestCompiled_CachesSuccessOnly(t *testing.T) {
	c := newCompiled[int]("test")
	builds := 0
	build := func(src string) (int, error) {
		builds++
		if src == "bad" {
			return 0, compileErr("test", src, assert.AnError)
		}
		return len(src), nil
	}

	okBefore := testutil.ToFloat64(compilations.WithLabelValues("test", "ok"))
	errBefore := testutil.ToFloat64(compilations.WithLabelValues("test", "error"))

	for i := 0; i < 3; i++ {
		n, err := c.get("abc", build)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
	for i := 0; i < 2; i++ {
		_, err := c.get("bad", build)
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	}
	_, err := c.get("", build)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	assert.Equal(t, 3, builds)
	assert.Equal(t, 1, c.size())
	assert.Equal(t, okBefore+1, testutil.ToFloat64(compilations.WithLabelValues("test", "ok")))
	assert.Equal(t, errBefore+2, testutil.ToFloat64(compilations.WithLabelValues("test", "error")))
}

func TestEngineNames(t *testing.T) {
	cel, err := NewCELEngine()
	require.NoError(t, err)
	for want, e := range map[string]Engine{"jq": NewGoJQEngine(), "expr": NewExprEngine(), "cel": cel} {
		assert.Equal(t, want, e.Name())
	}
}

func TestGoJQ_DynamicPortQuery(t *testing.T) {
	out, err := NewGoJQEngine().EvaluateAll(context.Background(),
		`.expectedStatusCodes[]? | {name: (.statusCode | tostring)}`, httpData(t))
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"name": "200"},
		map[string]any{"name": "404"},
	}, out)
}

func TestGoJQ_Evaluate(t *testing.T) {
	e := NewGoJQEngine()
	tests := []struct {
		name  string
		query string
		data  map[string]any
		want  any
		code  string
	}{
		{name: "single output", query: ".name", data: map[string]any{"name": "flow"}, want: "flow"},
		{name: "no output", query: ".missing[]?", data: map[string]any{"name": "flow"}, want: nil},
		{name: "several outputs", query: "1, 2", want: []any{1, 2}},
		{name: "environment hidden", query: "$ENV | length", want: 0},
		{name: "empty query", query: "", code: schema.ErrCodeValidation},
		{name: "parse error", query: ".[", code: schema.ErrCodeValidation},
		{name: "runtime error", query: `error("boom")`, code: schema.ErrCodeExpression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.query, tt.data)
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, schema.IsCode(err, tt.code), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestGoJQ_QueryItem(t *testing.T) {
	out, err := NewGoJQEngine().Query(context.Background(), ".label", map[string]any{"label": "A"})
	require.NoError(t, err)
	assert.Equal(t, []any{"A"}, out)
}

func TestGoJQ_Concurrent(t *testing.T) {
	e := NewGoJQEngine()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Evaluate(context.Background(), ".n + 1", map[string]any{"n": 1.0})
			assert.NoError(t, err)
			assert.Equal(t, 2.0, out)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, e.programs.size())
}

func TestExpr_Match(t *testing.T) {
	e := NewExprEngine()
	tests := []struct {
		predicate string
		typ       string
		want      bool
	}{
		{`activityType startsWith "Acme.Http"`, "Acme.HttpCall", true},
		{`activityType startsWith "Acme.Http"`, "Elsa.Switch", false},
		{`activityType in ["A", "B"]`, "B", true},
		{`"text"`, "X", false},
		{`activityType ==`, "X", false},
	}
	for _, tt := range tests {
		got := e.Match(context.Background(), tt.predicate, map[string]any{"activityType": tt.typ})
		assert.Equal(t, tt.want, got, "%s on %s", tt.predicate, tt.typ)
	}
}

func TestExpr_CompileError(t *testing.T) {
	err := NewExprEngine().Compile(`activityType ==`, map[string]any{"activityType": ""})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestExpr_Evaluate(t *testing.T) {
	out, err := NewExprEngine().Evaluate(context.Background(), `len(cases) * 2`, map[string]any{"cases": []any{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 4, out)
}

func TestCEL_Guards(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	vars := map[string]any{GuardActivity: httpData(t)}

	tests := []struct {
		guard string
		vars  map[string]any
		want  bool
	}{
		{`has(activity.timeout) && activity.timeout != ""`, vars, true},
		{`has(activity.retries)`, vars, false},
		{`size(descriptor) == 0`, nil, true},
		{`activity.type.startsWith("Elsa.")`, vars, true},
	}
	for _, tt := range tests {
		got, err := e.EvaluateBool(context.Background(), tt.guard, tt.vars)
		require.NoError(t, err, tt.guard)
		assert.Equal(t, tt.want, got, tt.guard)
	}
}

func TestCEL_Errors(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.EvaluateBool(context.Background(), `1 + 1`, nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExpression))

	_, err = e.Evaluate(context.Background(), `activity.`, nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(context.Background(), "", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}
