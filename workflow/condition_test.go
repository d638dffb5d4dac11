package workflow

import (
	"context"
	"testing"

	"github.com/deepnoodle-ai/stateflow"
	"github.com/stretchr/testify/require"
)

func TestEvaluateExpression(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()

	match, err := EvaluateExpression(ctx, "x > 5", map[string]any{"x": 10})
	assert.NoError(err)
	assert.True(match)

	match, err = EvaluateExpression(ctx, "x > 5", map[string]any{"x": 3})
	assert.NoError(err)
	assert.False(match)

	match, err = EvaluateExpression(ctx, `status == "ok" && attempts < 3`,
		map[string]any{"status": "ok", "attempts": 1})
	assert.NoError(err)
	assert.True(match)
}

func TestEvaluateExpression_Truthiness(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()

	match, err := EvaluateExpression(ctx, "name", map[string]any{"name": "alice"})
	assert.NoError(err)
	assert.True(match)

	match, err = EvaluateExpression(ctx, "name", map[string]any{"name": ""})
	assert.NoError(err)
	assert.False(match)
}

func TestEvaluateExpression_UndefinedVariable(t *testing.T) {
	assert := require.New(t)

	// A missing variable must surface as an error sentinel, never be
	// coerced to false.
	_, err := EvaluateExpression(context.Background(), "missing > 5", map[string]any{"x": 1})
	assert.Error(err)
	assert.ErrorIs(err, stateflow.ErrUndefinedVariable)

	var evalErr *EvalError
	assert.ErrorAs(err, &evalErr)
	assert.Equal("missing > 5", evalErr.Expression)
}

func TestEvaluateValue(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()

	value, err := EvaluateValue(ctx, "count + 1", map[string]any{"count": 2})
	assert.NoError(err)
	assert.Equal(int64(3), value)

	value, err = EvaluateValue(ctx, `"retry-" + region`, map[string]any{"region": "east"})
	assert.NoError(err)
	assert.Equal("retry-east", value)

	value, err = EvaluateValue(ctx, "[1, 2, 3]", map[string]any{})
	assert.NoError(err)
	assert.Equal([]any{int64(1), int64(2), int64(3)}, value)

	value, err = EvaluateValue(ctx, `{"a": 1}`, map[string]any{})
	assert.NoError(err)
	assert.Equal(map[string]any{"a": int64(1)}, value)
}

func TestEvaluateValue_NestedAccess(t *testing.T) {
	assert := require.New(t)
	globals := map[string]any{
		"outputs": map[string]any{"fetch": "payload"},
	}
	value, err := EvaluateValue(context.Background(), `outputs["fetch"]`, globals)
	assert.NoError(err)
	assert.Equal("payload", value)
}

func TestEvaluateExpression_ParseFailure(t *testing.T) {
	assert := require.New(t)
	_, err := EvaluateExpression(context.Background(), "x >", map[string]any{"x": 1})
	assert.Error(err)
	var evalErr *EvalError
	assert.ErrorAs(err, &evalErr)
}
