// Package template resolves {{source.field}} placeholders inside node
// configuration. Resolution never fails: an unresolvable placeholder becomes
// the empty string so a missing field degrades the message, not the run.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/voxflow/voxflow/pkg/models"
)

// Reserved source names; any other source is treated as a node id.
const (
	SourceTrigger    = "trigger"
	SourceAIAnalysis = "aiAnalysis"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// Render substitutes every placeholder in input against the execution
// context. {{trigger.field}} reads the trigger payload, {{aiAnalysis.field}}
// the attached analysis, and {{nodeId.field}} the named node's output.
func Render(input string, executionCtx *models.ExecutionContext) string {
	if executionCtx == nil || !strings.Contains(input, "{{") {
		return input
	}

	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		ref := placeholderPattern.FindStringSubmatch(match)[1]

		return Resolve(ref, executionCtx)
	})
}

// Resolve looks up a single dotted reference, returning "" when the source
// or field does not exist.
func Resolve(ref string, executionCtx *models.ExecutionContext) string {
	source, path, found := strings.Cut(ref, ".")
	if !found || path == "" {
		return ""
	}

	var data map[string]any

	switch source {
	case SourceTrigger:
		data = executionCtx.Trigger
	case SourceAIAnalysis:
		data = executionCtx.AIAnalysis
	default:
		data = executionCtx.NodeOutputs[source]
	}

	if data == nil {
		return ""
	}

	return stringify(lookup(data, path))
}

// RenderConfig walks a node configuration and renders every string value,
// including strings nested in maps and slices. Non-string values pass
// through untouched.
func RenderConfig(config map[string]any, executionCtx *models.ExecutionContext) map[string]any {
	if config == nil {
		return nil
	}

	resolved := make(map[string]any, len(config))
	for key, value := range config {
		resolved[key] = renderValue(value, executionCtx)
	}

	return resolved
}

func renderValue(value any, executionCtx *models.ExecutionContext) any {
	switch v := value.(type) {
	case string:
		return Render(v, executionCtx)
	case map[string]any:
		return RenderConfig(v, executionCtx)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = renderValue(item, executionCtx)
		}

		return out
	default:
		return value
	}
}

// lookup follows a dotted path through nested maps.
func lookup(data map[string]any, path string) any {
	key, rest, nested := strings.Cut(path, ".")

	value, ok := data[key]
	if !ok {
		return nil
	}

	if !nested {
		return value
	}

	child, ok := value.(map[string]any)
	if !ok {
		return nil
	}

	return lookup(child, rest)
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; keep integers unadorned.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}

		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "true"
		}

		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}
