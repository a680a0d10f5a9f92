package rule

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"complyeye/internal/models"
)

// percentageChangeThreshold is the fixed relative deviation used by the
// percentage_change operator. The comparison value doubles as the
// baseline; the threshold itself is not configurable per rule.
const percentageChangeThreshold = 0.10

// Extract reads a dot-separated path through nested maps in the event
// payload. A missing or non-map segment yields nil, never a panic, since
// payload shapes vary across sources.
func Extract(data map[string]any, path string) any {
	if data == nil || path == "" {
		return nil
	}

	parts := strings.Split(path, ".")
	current := data
	for i, part := range parts {
		val, ok := current[part]
		if !ok {
			return nil
		}
		if i == len(parts)-1 {
			return val
		}
		next, ok := val.(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

// EvaluateOperator tests an extracted value against an operator and
// comparison target. Malformed input never raises: an unknown operator,
// a non-numeric operand for a numeric comparison, or a non-list target
// for a membership test all evaluate to false. A nil value is false for
// every operator except not_equals against a non-nil target.
func EvaluateOperator(value any, op models.Operator, target any) bool {
	if value == nil {
		return op == models.OperatorNotEquals && target != nil
	}

	switch op {
	case models.OperatorEquals:
		return looseEqual(value, target)
	case models.OperatorNotEquals:
		return !looseEqual(value, target)
	case models.OperatorContains:
		return strings.Contains(stringify(value), stringify(target))
	case models.OperatorGreaterThan:
		return compareNumbers(value, target, func(a, b float64) bool { return a > b })
	case models.OperatorLessThan:
		return compareNumbers(value, target, func(a, b float64) bool { return a < b })
	case models.OperatorIn:
		return inList(value, target)
	case models.OperatorNotIn:
		if _, ok := asList(target); !ok {
			return false
		}
		return !inList(value, target)
	case models.OperatorPercentageChange:
		return exceedsPercentageChange(value, target)
	default:
		return false
	}
}

// exceedsPercentageChange reports whether value deviates from the
// configured target by more than the fixed 10% threshold. The target is
// treated as the baseline, which conflates threshold configuration with
// baseline value; kept separate here so the behavior is testable in
// isolation.
func exceedsPercentageChange(value, target any) bool {
	v, ok := toFloat(value)
	if !ok {
		return false
	}
	t, ok := toFloat(target)
	if !ok || t == 0 {
		return false
	}
	return math.Abs(v-t)/math.Abs(t) > percentageChangeThreshold
}

// looseEqual compares numerically when both sides coerce to numbers, so
// JSON payloads (float64) match rule values written as integers.
func looseEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return stringify(a) == stringify(b)
}

func inList(value, target any) bool {
	list, ok := asList(target)
	if !ok {
		return false
	}
	for _, item := range list {
		if looseEqual(value, item) {
			return true
		}
	}
	return false
}

func asList(target any) ([]any, bool) {
	switch t := target.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func compareNumbers(a, b any, cmp func(float64, float64) bool) bool {
	fa, ok := toFloat(a)
	if !ok {
		return false
	}
	fb, ok := toFloat(b)
	if !ok {
		return false
	}
	return cmp(fa, fb)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
