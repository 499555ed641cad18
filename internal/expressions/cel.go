package expressions

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/rendis/flowdesigner/pkg/schema"
)

// Guard variables. Both are map(string, dyn); an absent one evaluates as {}.
const (
	GuardActivity   = "activity"
	GuardDescriptor = "descriptor"
)

// CELEngine evaluates the guards that decide whether a fixed port of a
// declarative provider is present. Safe for concurrent use.
type CELEngine struct {
	env      *cel.Env
	programs *compiled[cel.Program]
}

func NewCELEngine() (*CELEngine, error) {
	obj := cel.MapType(cel.StringType, cel.DynType)
	env, err := cel.NewEnv(
		cel.Variable(GuardActivity, obj),
		cel.Variable(GuardDescriptor, obj),
	)
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}
	return &CELEngine{env: env, programs: newCompiled[cel.Program]("cel")}, nil
}

func (e *CELEngine) Name() string { return "cel" }

// Evaluate runs a guard. Keys of data other than the guard variables are ignored.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	prg, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		GuardActivity:   objectOrEmpty(data[GuardActivity]),
		GuardDescriptor: objectOrEmpty(data[GuardDescriptor]),
	}
	out, _, err := prg.ContextEval(ctx, vars)
	if err != nil {
		return nil, evalErr(e.Name(), expression, err)
	}
	return out.Value(), nil
}

// EvaluateBool runs a guard and requires a boolean result.
func (e *CELEngine) EvaluateBool(ctx context.Context, expression string, data map[string]any) (bool, error) {
	out, err := e.Evaluate(ctx, expression, data)
	if err != nil {
		return false, err
	}
	if b, ok := out.(bool); ok {
		return b, nil
	}
	return false, schema.NewErrorf(schema.ErrCodeExpression,
		"cel: guard %q returned %T, want bool", expression, out).
		WithDetails(map[string]any{"engine": e.Name(), "expression": expression})
}

// Compile checks that a guard compiles.
func (e *CELEngine) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *CELEngine) program(expression string) (cel.Program, error) {
	return e.programs.get(expression, func(src string) (cel.Program, error) {
		ast, iss := e.env.Compile(src)
		if iss.Err() != nil {
			return nil, compileErr(e.Name(), src, iss.Err())
		}
		prg, err := e.env.Program(ast)
		if err != nil {
			return nil, compileErr(e.Name(), src, err)
		}
		return prg, nil
	})
}

func objectOrEmpty(v any) any {
	if v == nil {
		return map[string]any{}
	}
	return v
}

var _ Engine = (*CELEngine)(nil)
