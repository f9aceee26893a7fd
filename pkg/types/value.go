// Package types provides the core value types shared by the Tessera
// pruning engine, catalog, and query layers.
package types

import (
	"fmt"
	"strconv"
)

// ValueKind identifies the runtime type of a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindString
	KindBool
)

// String returns the name of the value kind.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a typed constant. It is used for predicate literals, accumulated
// pruning bounds, and shard interval boundaries.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// NullValue returns the SQL NULL constant.
func NullValue() Value {
	return Value{Kind: KindNull}
}

// IntValue returns an integer constant.
func IntValue(v int64) Value {
	return Value{Kind: KindInt, Int: v}
}

// FloatValue returns a floating-point constant.
func FloatValue(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}

// StringValue returns a string constant.
func StringValue(v string) Value {
	return Value{Kind: KindString, Str: v}
}

// BoolValue returns a boolean constant.
func BoolValue(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Equal reports structural equality. Unlike comparator functions it never
// treats values of different kinds as equal, and NULL equals nothing,
// including another NULL.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind || v.Kind == KindNull {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindString:
		return v.Str == other.Str
	case KindBool:
		return v.Bool == other.Bool
	default:
		return false
	}
}

// String returns the SQL representation of the value.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return "'" + v.Str + "'"
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("value(%d)", int(v.Kind))
	}
}

// CompareFunc is a total ordering over a column's value domain. A non-nil
// error signals that the comparator could not produce a result, which the
// pruning engine treats as corrupted metadata and aborts the call.
type CompareFunc func(a, b Value) (int, error)

// CompareValues is the default comparator. Integers and floats compare
// numerically across kinds; strings compare lexicographically; booleans
// order FALSE before TRUE. NULL and mismatched kinds are incomparable.
func CompareValues(a, b Value) (int, error) {
	if a.IsNull() || b.IsNull() {
		return 0, fmt.Errorf("types: cannot compare NULL values")
	}

	if an, aok := a.numeric(); aok {
		if bn, bok := b.numeric(); bok {
			switch {
			case an < bn:
				return -1, nil
			case an > bn:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}

	if a.Kind != b.Kind {
		return 0, fmt.Errorf("types: cannot compare %s with %s", a.Kind, b.Kind)
	}

	switch a.Kind {
	case KindString:
		switch {
		case a.Str < b.Str:
			return -1, nil
		case a.Str > b.Str:
			return 1, nil
		default:
			return 0, nil
		}
	case KindBool:
		switch {
		case !a.Bool && b.Bool:
			return -1, nil
		case a.Bool && !b.Bool:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("types: cannot compare values of kind %s", a.Kind)
	}
}

// numeric returns the value as a float64 if it is numeric.
func (v Value) numeric() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}
