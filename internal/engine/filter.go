package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

type filterOp string

const (
	opEquals          filterOp = "="
	opNotEquals       filterOp = "!="
	opLess            filterOp = "<"
	opLessOrEqual     filterOp = "<="
	opGreater         filterOp = ">"
	opGreaterOrEqual  filterOp = ">="
	opContains        filterOp = "contains"
	opNotContains     filterOp = "not_contains"
	opOneOf           filterOp = "one_of"
	opNotOneOf        filterOp = "not_one_of"
	opHasPrefix       filterOp = "has_prefix"
	opNotHasPrefix    filterOp = "not_has_prefix"
	opHasSuffix       filterOp = "has_suffix"
	opNotHasSuffix    filterOp = "not_has_suffix"
	opHasSubstring    filterOp = "has_substring"
	opNotHasSubstring filterOp = "not_has_substring"
	opRegex           filterOp = "regex"
	opNotRegex        filterOp = "not_regex"
	opIsNull          filterOp = "is_null"
	opIsNotNull       filterOp = "is_not_null"
)

type filter struct {
	op      filterOp
	operand FieldValue
	pattern *regexp.Regexp
}

// newFilter validates an operator against the property type and binds its
// operand.
func newFilter(op string, operands []FieldValue, propertyType *ast.Type) (*filter, error) {
	f := &filter{op: filterOp(op)}

	switch f.op {
	case opIsNull, opIsNotNull:
		if len(operands) != 0 {
			return nil, fmt.Errorf("filter operator %q takes no value", op)
		}
		return f, nil
	case opEquals, opNotEquals, opLess, opLessOrEqual, opGreater, opGreaterOrEqual,
		opContains, opNotContains, opOneOf, opNotOneOf,
		opHasPrefix, opNotHasPrefix, opHasSuffix, opNotHasSuffix,
		opHasSubstring, opNotHasSubstring, opRegex, opNotRegex:
	default:
		return nil, fmt.Errorf("unsupported filter operator %q", op)
	}

	if len(operands) != 1 {
		return nil, fmt.Errorf("filter operator %q takes exactly one value, got %d", op, len(operands))
	}
	f.operand = operands[0]

	switch f.op {
	case opContains, opNotContains:
		if propertyType.Elem == nil {
			return nil, fmt.Errorf("filter operator %q needs a list property", op)
		}
	case opOneOf, opNotOneOf:
		if _, ok := f.operand.AsList(); !ok {
			return nil, fmt.Errorf("filter operator %q needs a list value, got %s", op, f.operand.Kind())
		}
	case opHasPrefix, opNotHasPrefix, opHasSuffix, opNotHasSuffix, opHasSubstring, opNotHasSubstring:
		if _, ok := f.operand.AsString(); !ok {
			return nil, fmt.Errorf("filter operator %q needs a string value, got %s", op, f.operand.Kind())
		}
	case opRegex, opNotRegex:
		expr, ok := f.operand.AsString()
		if !ok {
			return nil, fmt.Errorf("filter operator %q needs a string value, got %s", op, f.operand.Kind())
		}
		pattern, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", expr, err)
		}
		f.pattern = pattern
	default:
		if err := checkScalarOperand(propertyType, f.operand); err != nil {
			return nil, fmt.Errorf("filter operator %q: %w", op, err)
		}
	}

	return f, nil
}

func checkScalarOperand(propertyType *ast.Type, operand FieldValue) error {
	if operand.IsNull() || propertyType.Elem != nil {
		return nil
	}

	var ok bool
	switch propertyType.Name() {
	case "String", "ID":
		ok = operand.Kind() == KindString
	case "Int":
		ok = operand.Kind() == KindInt64 || operand.Kind() == KindUint64
	case "Float":
		ok = operand.isNumber()
	case "Boolean":
		ok = operand.Kind() == KindBool
	default:
		ok = true
	}
	if !ok {
		return fmt.Errorf("value of kind %s can not be compared with %s", operand.Kind(), propertyType.Name())
	}
	return nil
}

func (f *filter) matches(value FieldValue) bool {
	switch f.op {
	case opIsNull:
		return value.IsNull()
	case opIsNotNull:
		return !value.IsNull()
	case opEquals:
		return value.Equal(f.operand)
	case opNotEquals:
		return !value.Equal(f.operand)
	}

	if value.IsNull() {
		return false
	}

	switch f.op {
	case opLess, opLessOrEqual, opGreater, opGreaterOrEqual:
		c, ok := value.Compare(f.operand)
		if !ok {
			return false
		}
		switch f.op {
		case opLess:
			return c < 0
		case opLessOrEqual:
			return c <= 0
		case opGreater:
			return c > 0
		default:
			return c >= 0
		}
	case opContains, opNotContains:
		items, ok := value.AsList()
		if !ok {
			return false
		}
		return containsValue(items, f.operand) == (f.op == opContains)
	case opOneOf, opNotOneOf:
		items, _ := f.operand.AsList()
		return containsValue(items, value) == (f.op == opOneOf)
	case opRegex, opNotRegex:
		s, ok := value.AsString()
		if !ok {
			return false
		}
		return f.pattern.MatchString(s) == (f.op == opRegex)
	}

	s, ok := value.AsString()
	if !ok {
		return false
	}
	needle, _ := f.operand.AsString()
	switch f.op {
	case opHasPrefix:
		return strings.HasPrefix(s, needle)
	case opNotHasPrefix:
		return !strings.HasPrefix(s, needle)
	case opHasSuffix:
		return strings.HasSuffix(s, needle)
	case opNotHasSuffix:
		return !strings.HasSuffix(s, needle)
	case opHasSubstring:
		return strings.Contains(s, needle)
	case opNotHasSubstring:
		return !strings.Contains(s, needle)
	}
	return false
}

func containsValue(items []FieldValue, value FieldValue) bool {
	for _, item := range items {
		if item.Equal(value) {
			return true
		}
	}
	return false
}
