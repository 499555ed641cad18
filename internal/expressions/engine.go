package expressions

import (
	"context"
	"encoding/json"

	"github.com/rendis/flowdesigner/pkg/schema"
)

// Engine evaluates expressions against activity data.
// CEL runs port guards, GoJQ port queries and Expr type predicates.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// ActivityData converts an activity to the plain JSON object the engines
// operate on: envelope fields plus every type-specific property.
func ActivityData(a *schema.Activity) (map[string]any, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"encode activity %s: %s", a.ID, err.Error()).WithCause(err).WithActivity(a.ID)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"decode activity %s: %s", a.ID, err.Error()).WithCause(err).WithActivity(a.ID)
	}
	return out, nil
}
