package condition_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/nodes/condition"
)

func TestConditionNode_Execute(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		want      string
	}{
		{"string equality", "interested == interested", models.ExitHandleTrue},
		{"quoted string equality", "interested == 'interested'", models.ExitHandleTrue},
		{"double quoted", `interested == "interested"`, models.ExitHandleTrue},
		{"inequality", "interested != not_interested", models.ExitHandleTrue},
		{"numeric greater", "120 > 60", models.ExitHandleTrue},
		{"numeric not greater", "30 > 60", models.ExitHandleFalse},
		{"numeric compares by value not lexically", "9 < 10", models.ExitHandleTrue},
		{"greater or equal", "60 >= 60", models.ExitHandleTrue},
		{"lexical ordering when not numeric", "apple < banana", models.ExitHandleTrue},
		{"contains", "hello world contains world", models.ExitHandleTrue},
		{"contains miss", "hello world contains mars", models.ExitHandleFalse},
		{"bare true", "true", models.ExitHandleTrue},
		{"bare false", "false", models.ExitHandleFalse},
		{"nonzero number is truthy", "42", models.ExitHandleTrue},
		{"zero is falsy", "0", models.ExitHandleFalse},
		{"nonempty string is truthy", "interested", models.ExitHandleTrue},
		{"empty string is falsy", "", models.ExitHandleFalse},
		{"operator with empty operands falls back to truthy", " == ", models.ExitHandleTrue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := condition.NewConditionNode("node-1", map[string]any{"condition": tt.condition})
			require.NoError(t, err)

			result, err := node.Execute(context.Background(), nil)
			require.NoError(t, err)

			assert.Equal(t, tt.want, result.ExitHandle)
			assert.Equal(t, tt.want == models.ExitHandleTrue, result.Data["condition_result"])
			assert.Equal(t, tt.condition, result.Data["expression"])
		})
	}
}

func TestNewConditionNode_RequiresCondition(t *testing.T) {
	_, err := condition.NewConditionNode("node-1", map[string]any{})
	require.Error(t, err)
}
