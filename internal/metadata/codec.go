package metadata

import (
	"encoding/json"
	"fmt"

	"github.com/tessera-db/tessera/pkg/types"
)

// encodedValue is the persisted form of a types.Value. NULL is stored as
// the SQL NULL of the column, so encoders only see non-null values.
type encodedValue struct {
	Kind  string  `json:"kind"`
	Int   int64   `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Str   string  `json:"str,omitempty"`
	Bool  bool    `json:"bool,omitempty"`
}

// EncodeValue serializes a value for catalog storage. NULL encodes to an
// empty string and is stored as SQL NULL by callers.
func EncodeValue(v types.Value) (string, error) {
	if v.IsNull() {
		return "", nil
	}

	ev := encodedValue{}
	switch v.Kind {
	case types.KindInt:
		ev.Kind, ev.Int = "int", v.Int
	case types.KindFloat:
		ev.Kind, ev.Float = "float", v.Float
	case types.KindString:
		ev.Kind, ev.Str = "string", v.Str
	case types.KindBool:
		ev.Kind, ev.Bool = "bool", v.Bool
	default:
		return "", fmt.Errorf("metadata: cannot encode value of kind %s", v.Kind)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("metadata: encoding value: %w", err)
	}
	return string(data), nil
}

// DecodeValue deserializes a value from catalog storage.
func DecodeValue(s string) (types.Value, error) {
	if s == "" {
		return types.NullValue(), nil
	}

	var ev encodedValue
	if err := json.Unmarshal([]byte(s), &ev); err != nil {
		return types.Value{}, fmt.Errorf("metadata: decoding value: %w", err)
	}

	switch ev.Kind {
	case "int":
		return types.IntValue(ev.Int), nil
	case "float":
		return types.FloatValue(ev.Float), nil
	case "string":
		return types.StringValue(ev.Str), nil
	case "bool":
		return types.BoolValue(ev.Bool), nil
	default:
		return types.Value{}, fmt.Errorf("metadata: unknown encoded value kind %q", ev.Kind)
	}
}
