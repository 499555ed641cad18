package expressions

import (
	"context"

	"github.com/itchyny/gojq"
)

// GoJQEngine derives dynamic ports from an activity's JSON for declarative
// providers, e.g. `.branches[]? | {name: .label}`. Queries cannot read the
// process environment. Safe for concurrent use.
type GoJQEngine struct {
	programs *compiled[*gojq.Code]
}

func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{programs: newCompiled[*gojq.Code]("jq")}
}

func (e *GoJQEngine) Name() string { return "jq" }

// Evaluate runs a query against data. One output is returned as is, several
// are collected into []any and none yields nil.
func (e *GoJQEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	outs, err := e.Query(ctx, expression, orEmpty(data))
	if err != nil {
		return nil, err
	}
	switch len(outs) {
	case 0:
		return nil, nil
	case 1:
		return outs[0], nil
	}
	return outs, nil
}

// EvaluateAll is like Evaluate but always returns every output in order.
func (e *GoJQEngine) EvaluateAll(ctx context.Context, expression string, data map[string]any) ([]any, error) {
	return e.Query(ctx, expression, orEmpty(data))
}

// Query runs a query against any decoded JSON value, such as one item of a
// list property.
func (e *GoJQEngine) Query(ctx context.Context, expression string, input any) ([]any, error) {
	code, err := e.code(expression)
	if err != nil {
		return nil, err
	}
	var outs []any
	iter := code.RunWithContext(ctx, input)
	for v, ok := iter.Next(); ok; v, ok = iter.Next() {
		if qerr, failed := v.(error); failed {
			return nil, evalErr(e.Name(), expression, qerr)
		}
		outs = append(outs, v)
	}
	return outs, nil
}

// Compile checks that a query parses and compiles.
func (e *GoJQEngine) Compile(expression string) error {
	_, err := e.code(expression)
	return err
}

func (e *GoJQEngine) code(expression string) (*gojq.Code, error) {
	return e.programs.get(expression, func(src string) (*gojq.Code, error) {
		q, err := gojq.Parse(src)
		if err != nil {
			return nil, compileErr(e.Name(), src, err)
		}
		code, err := gojq.Compile(q, gojq.WithEnvironLoader(noEnviron))
		if err != nil {
			return nil, compileErr(e.Name(), src, err)
		}
		return code, nil
	})
}

func noEnviron() []string { return nil }

var _ Engine = (*GoJQEngine)(nil)
