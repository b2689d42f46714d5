package query

import (
	"fmt"
	"time"
)

// timeLayouts are the literal formats accepted when a timestamp column is
// compared with a string
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// compare compares two values using the given operator
func compare(left any, operator TokenType, right any) (bool, error) {
	// Handle nil values
	if left == nil || right == nil {
		if operator == TokenEqual {
			return left == right, nil
		}
		if operator == TokenNotEqual {
			return left != right, nil
		}
		return false, nil
	}

	// Try numeric comparison
	leftNum, leftIsNum := ToFloat64(left)
	rightNum, rightIsNum := ToFloat64(right)

	if leftIsNum && rightIsNum {
		return compareNumbers(leftNum, operator, rightNum), nil
	}

	// Try time comparison
	if leftTime, ok := left.(time.Time); ok {
		rightTime, err := toTime(right)
		if err != nil {
			return false, err
		}
		return compareTimes(leftTime, operator, rightTime), nil
	}

	// Try string comparison
	leftStr, leftIsStr := toString(left)
	rightStr, rightIsStr := toString(right)

	if leftIsStr && rightIsStr {
		return compareStrings(leftStr, operator, rightStr), nil
	}

	// Try boolean comparison
	leftBool, leftIsBool := toBool(left)
	rightBool, rightIsBool := toBool(right)

	if leftIsBool && rightIsBool {
		if operator != TokenEqual && operator != TokenNotEqual {
			return false, fmt.Errorf("%w: booleans only support == and !=", ErrTypeMismatch)
		}
		return compareBools(leftBool, operator, rightBool), nil
	}

	// Type mismatch
	return false, fmt.Errorf("%w: cannot compare %T with %T", ErrTypeMismatch, left, right)
}

// ToFloat64 converts a value to float64 if it holds any Go numeric type
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

// toString converts a value to string if possible
func toString(v any) (string, bool) {
	if str, ok := v.(string); ok {
		return str, true
	}
	return "", false
}

// toBool converts a value to bool if possible
func toBool(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	return false, false
}

// toTime converts a time literal to time.Time
func toTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrTypeMismatch, val)
	default:
		return time.Time{}, fmt.Errorf("%w: cannot compare time with %T", ErrTypeMismatch, v)
	}
}

// compareNumbers compares two numbers
func compareNumbers(left float64, operator TokenType, right float64) bool {
	switch operator {
	case TokenEqual:
		return left == right
	case TokenNotEqual:
		return left != right
	case TokenLess:
		return left < right
	case TokenGreater:
		return left > right
	case TokenLessEqual:
		return left <= right
	case TokenGreaterEqual:
		return left >= right
	default:
		return false
	}
}

// compareStrings compares two strings (case-sensitive)
func compareStrings(left string, operator TokenType, right string) bool {
	switch operator {
	case TokenEqual:
		return left == right
	case TokenNotEqual:
		return left != right
	case TokenLess:
		return left < right
	case TokenGreater:
		return left > right
	case TokenLessEqual:
		return left <= right
	case TokenGreaterEqual:
		return left >= right
	default:
		return false
	}
}

// compareTimes compares two instants
func compareTimes(left time.Time, operator TokenType, right time.Time) bool {
	switch operator {
	case TokenEqual:
		return left.Equal(right)
	case TokenNotEqual:
		return !left.Equal(right)
	case TokenLess:
		return left.Before(right)
	case TokenGreater:
		return left.After(right)
	case TokenLessEqual:
		return !left.After(right)
	case TokenGreaterEqual:
		return !left.Before(right)
	default:
		return false
	}
}

// compareBools compares two booleans
func compareBools(left bool, operator TokenType, right bool) bool {
	switch operator {
	case TokenEqual:
		return left == right
	case TokenNotEqual:
		return left != right
	default:
		return false
	}
}

// ApplyFilter returns the rows matching filter, in their original order.
// A nil filter returns rows unchanged.
func ApplyFilter(rows []map[string]any, filter Expression) ([]map[string]any, error) {
	if filter == nil {
		return rows, nil
	}

	filtered := make([]map[string]any, 0)
	for i, row := range rows {
		match, err := filter.Evaluate(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if match {
			filtered = append(filtered, row)
		}
	}

	return filtered, nil
}
