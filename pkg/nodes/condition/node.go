// Package condition provides the branching node for workflow graph
// execution.
package condition

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/voxflow/voxflow/pkg/models"
)

// ConditionNode evaluates an expression and routes to the true or false
// exit handle. The expression arrives with placeholders already resolved,
// so evaluation is a pure string comparison that cannot fail.
type ConditionNode struct {
	id        string
	condition string
}

func NewConditionNode(id string, config map[string]any) (*ConditionNode, error) {
	condition, ok := config["condition"].(string)
	if !ok {
		return nil, errors.New("missing required field 'condition'")
	}

	return &ConditionNode{
		id:        id,
		condition: condition,
	}, nil
}

func (n *ConditionNode) ID() string {
	return n.id
}

func (n *ConditionNode) Type() string {
	return models.NodeTypeCondition
}

func (n *ConditionNode) Execute(_ context.Context, _ *models.ExecutionContext) (*models.NodeResult, error) {
	result := evaluate(n.condition)

	exitHandle := models.ExitHandleFalse
	if result {
		exitHandle = models.ExitHandleTrue
	}

	return &models.NodeResult{
		ExitHandle: exitHandle,
		Data: map[string]any{
			"condition_result": result,
			"expression":       n.condition,
		},
	}, nil
}

// evaluate supports binary comparisons on the resolved expression and falls
// back to truthiness of the whole string.
func evaluate(expr string) bool {
	expr = strings.TrimSpace(expr)

	for _, op := range []string{"==", "!=", ">=", "<=", ">", "<", "contains"} {
		left, right, found := cutOperator(expr, op)
		if !found {
			continue
		}

		return compare(left, right, op)
	}

	return truthy(expr)
}

func cutOperator(expr, op string) (string, string, bool) {
	idx := strings.Index(expr, " "+op+" ")
	if idx < 0 {
		return "", "", false
	}

	left := strings.TrimSpace(expr[:idx])
	right := strings.TrimSpace(expr[idx+len(op)+2:])

	return unquote(left), unquote(right), true
}

func compare(left, right, op string) bool {
	switch op {
	case "==":
		return left == right
	case "!=":
		return left != right
	case "contains":
		return strings.Contains(left, right)
	}

	// Ordering operators compare numerically when both sides parse,
	// lexically otherwise.
	lf, lok := parseNumber(left)

	rf, rok := parseNumber(right)
	if lok && rok {
		switch op {
		case ">":
			return lf > rf
		case "<":
			return lf < rf
		case ">=":
			return lf >= rf
		case "<=":
			return lf <= rf
		}
	}

	switch op {
	case ">":
		return left > right
	case "<":
		return left < right
	case ">=":
		return left >= right
	case "<=":
		return left <= right
	}

	return false
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)

	return f, err == nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}

	return s
}

func truthy(s string) bool {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0
	}

	return s != ""
}
