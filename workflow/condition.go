package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/deepnoodle-ai/stateflow"
	"github.com/risor-io/risor"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
)

// EvalError describes a failed expression evaluation. It unwraps to
// stateflow.ErrUndefinedVariable when the expression referenced a variable
// missing from the snapshot, which the executor treats as an engine
// failure rather than "condition not met".
type EvalError struct {
	Expression string
	Err        error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("failed to evaluate %q: %s", e.Expression, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// EvaluateExpression evaluates an expression against an immutable snapshot
// of run variables and reports whether the result is truthy. The snapshot
// is passed as script globals; the expression never sees a live reference
// to the run's mutable context.
func EvaluateExpression(ctx context.Context, expression string, globals map[string]any) (bool, error) {
	result, err := evalExpression(ctx, expression, globals)
	if err != nil {
		return false, err
	}
	return result.IsTruthy(), nil
}

// EvaluateValue evaluates an expression and converts the result to a plain
// Go value, for variable assignment.
func EvaluateValue(ctx context.Context, expression string, globals map[string]any) (any, error) {
	result, err := evalExpression(ctx, expression, globals)
	if err != nil {
		return nil, err
	}
	return fromRisorValue(result)
}

func evalExpression(ctx context.Context, expression string, globals map[string]any) (object.Object, error) {
	ast, err := parser.Parse(ctx, expression)
	if err != nil {
		return nil, &EvalError{Expression: expression, Err: err}
	}
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}
	sort.Strings(globalNames)
	code, err := compiler.Compile(ast, compiler.WithGlobalNames(globalNames))
	if err != nil {
		return nil, &EvalError{Expression: expression, Err: classifyEvalError(err)}
	}
	result, err := risor.EvalCode(ctx, code, risor.WithGlobals(globals))
	if err != nil {
		return nil, &EvalError{Expression: expression, Err: classifyEvalError(err)}
	}
	return result, nil
}

// classifyEvalError maps undefined-variable errors from the script engine
// onto the engine's sentinel, so they are never silently coerced to false.
func classifyEvalError(err error) error {
	if strings.Contains(err.Error(), "undefined variable") {
		return fmt.Errorf("%w: %s", stateflow.ErrUndefinedVariable, err)
	}
	return err
}

// fromRisorValue converts a script object into a plain Go value
func fromRisorValue(obj object.Object) (any, error) {
	switch obj := obj.(type) {
	case *object.String:
		return obj.Value(), nil
	case *object.Int:
		return obj.Value(), nil
	case *object.Float:
		return obj.Value(), nil
	case *object.Bool:
		return obj.Value(), nil
	case *object.Time:
		return obj.Value(), nil
	case *object.NilType:
		return nil, nil
	case *object.List:
		var values []any
		for _, item := range obj.Value() {
			value, err := fromRisorValue(item)
			if err != nil {
				return nil, err
			}
			values = append(values, value)
		}
		return values, nil
	case *object.Map:
		values := make(map[string]any, len(obj.Value()))
		for key, item := range obj.Value() {
			value, err := fromRisorValue(item)
			if err != nil {
				return nil, err
			}
			values[key] = value
		}
		return values, nil
	default:
		return nil, fmt.Errorf("unsupported expression result type: %T", obj)
	}
}
