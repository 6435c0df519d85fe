package premium

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// conditionCostLimit caps the runtime cost of a segment condition
const conditionCostLimit = 1000000

// condition is a compiled segment predicate
type condition struct {
	expr string
	prog cel.Program
}

// newConditionEnv declares one typed CEL variable per schema field, so
// conditions are type-checked against the schema when the artifact loads
func newConditionEnv(schema *Schema) (*cel.Env, error) {
	opts := []cel.EnvOption{cel.CrossTypeNumericComparisons(true)}
	for _, f := range schema.fields {
		typ := cel.StringType
		if f.Kind == KindNumeric {
			if f.Integer {
				typ = cel.IntType
			} else {
				typ = cel.DoubleType
			}
		}
		opts = append(opts, cel.Variable(f.Name, typ))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// compileCondition compiles a boolean expression such as `age <= 25`
func compileCondition(env *cel.Env, expr string) (condition, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return condition{}, fmt.Errorf("compile error in %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return condition{}, fmt.Errorf("condition %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prog, err := env.Program(ast, cel.CostLimit(conditionCostLimit))
	if err != nil {
		return condition{}, fmt.Errorf("program creation error: %w", err)
	}
	return condition{expr: expr, prog: prog}, nil
}

func (c condition) matches(activation map[string]any) (bool, error) {
	out, _, err := c.prog.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", c.expr, err)
	}
	matched, ok := out.Value().(bool)
	return ok && matched, nil
}

// route returns the first segment whose condition holds for the record
func (a *Artifact) route(rec *ValidatedRecord) (*segment, error) {
	activation := rec.Activation()
	for i := range a.segments {
		seg := &a.segments[i]
		ok, err := seg.cond.matches(activation)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %q: %v", ErrInternal, seg.name, err)
		}
		if ok {
			return seg, nil
		}
	}
	return nil, &NoSegmentError{Artifact: a.name}
}
