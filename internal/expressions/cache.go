package expressions

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rendis/flowdesigner/pkg/schema"
)

var compilations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "flowdesigner_expression_compilations_total",
	Help: "Expressions compiled, by engine and outcome.",
}, []string{"engine", "outcome"})

func init() {
	prometheus.MustRegister(compilations)
}

// compiled memoizes compiled programs by source text. Failed compilations
// are not cached.
type compiled[P any] struct {
	engine string

	mu       sync.RWMutex
	programs map[string]P
}

func newCompiled[P any](engine string) *compiled[P] {
	return &compiled[P]{engine: engine, programs: make(map[string]P)}
}

func (c *compiled[P]) lookup(expression string) (P, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.programs[expression]
	return p, ok
}

// get returns the program for expression, running build at most once per
// successful source text.
func (c *compiled[P]) get(expression string, build func(string) (P, error)) (P, error) {
	if expression == "" {
		var zero P
		return zero, schema.NewErrorf(schema.ErrCodeValidation, "empty %s expression", c.engine)
	}
	if p, ok := c.lookup(expression); ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.programs[expression]; ok {
		return p, nil
	}
	p, err := build(expression)
	if err != nil {
		compilations.WithLabelValues(c.engine, "error").Inc()
		return p, err
	}
	compilations.WithLabelValues(c.engine, "ok").Inc()
	c.programs[expression] = p
	return p, nil
}

func (c *compiled[P]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// compileErr reports a source text that does not compile.
func compileErr(engine, expression string, err error) error {
	return schema.NewErrorf(schema.ErrCodeValidation, "%s: cannot compile %q: %s", engine, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"engine": engine, "expression": expression})
}

// evalErr reports a runtime failure of a compiled expression.
func evalErr(engine, expression string, err error) error {
	return schema.NewErrorf(schema.ErrCodeExpression, "%s: evaluating %q: %s", engine, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"engine": engine, "expression": expression})
}
