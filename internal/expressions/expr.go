package expressions

import (
	"context"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEngine backs the predicates that decide which activity types a
// declarative port provider supports, e.g. `activityType startsWith "Acme.Http"`.
// Safe for concurrent use.
type ExprEngine struct {
	programs *compiled[*vm.Program]
}

func NewExprEngine() *ExprEngine {
	return &ExprEngine{programs: newCompiled[*vm.Program]("expr")}
}

func (e *ExprEngine) Name() string { return "expr" }

// Evaluate runs expression with data as its environment. The first call for
// a given source text fixes the environment's shape used for type checking.
func (e *ExprEngine) Evaluate(_ context.Context, expression string, data map[string]any) (any, error) {
	env := orEmpty(data)
	prg, err := e.program(expression, env)
	if err != nil {
		return nil, err
	}
	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, evalErr(e.Name(), expression, err)
	}
	return out, nil
}

// Match evaluates a predicate. Non-boolean results and errors count as no match.
func (e *ExprEngine) Match(ctx context.Context, expression string, data map[string]any) bool {
	out, err := e.Evaluate(ctx, expression, data)
	if err != nil {
		return false
	}
	b, _ := out.(bool)
	return b
}

// Compile checks that an expression compiles against an environment shaped
// like sample.
func (e *ExprEngine) Compile(expression string, sample map[string]any) error {
	_, err := e.program(expression, orEmpty(sample))
	return err
}

func (e *ExprEngine) program(expression string, env map[string]any) (*vm.Program, error) {
	return e.programs.get(expression, func(src string) (*vm.Program, error) {
		prg, err := expr.Compile(src, expr.Env(env), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, compileErr(e.Name(), src, err)
		}
		return prg, nil
	})
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

var _ Engine = (*ExprEngine)(nil)
