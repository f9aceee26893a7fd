package types

import (
	"testing"
)

func TestCompareValues_Numeric(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int less", IntValue(1), IntValue(2), -1},
		{"int greater", IntValue(5), IntValue(2), 1},
		{"int equal", IntValue(7), IntValue(7), 0},
		{"float less", FloatValue(1.5), FloatValue(2.5), -1},
		{"int vs float equal", IntValue(3), FloatValue(3.0), 0},
		{"int vs float less", IntValue(3), FloatValue(3.5), -1},
		{"float vs int greater", FloatValue(10.1), IntValue(10), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareValues(tt.a, tt.b)
			if err != nil {
				t.Fatalf("CompareValues(%v, %v) returned error: %v", tt.a, tt.b, err)
			}
			if got != tt.want {
				t.Errorf("CompareValues(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCompareValues_Strings(t *testing.T) {
	got, err := CompareValues(StringValue("aaa"), StringValue("bbb"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != -1 {
		t.Errorf("expected aaa < bbb, got %d", got)
	}

	got, err = CompareValues(StringValue("zzz"), StringValue("zzz"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("expected zzz == zzz, got %d", got)
	}
}

func TestCompareValues_Bools(t *testing.T) {
	got, err := CompareValues(BoolValue(false), BoolValue(true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != -1 {
		t.Errorf("expected FALSE < TRUE, got %d", got)
	}
}

func TestCompareValues_Incomparable(t *testing.T) {
	if _, err := CompareValues(NullValue(), IntValue(1)); err == nil {
		t.Error("expected error comparing NULL")
	}
	if _, err := CompareValues(IntValue(1), NullValue()); err == nil {
		t.Error("expected error comparing to NULL")
	}
	if _, err := CompareValues(StringValue("a"), IntValue(1)); err == nil {
		t.Error("expected error comparing string with int")
	}
	if _, err := CompareValues(BoolValue(true), FloatValue(1.0)); err == nil {
		t.Error("expected error comparing bool with float")
	}
}

func TestValueEqual(t *testing.T) {
	if !IntValue(5).Equal(IntValue(5)) {
		t.Error("expected 5 == 5")
	}
	if IntValue(5).Equal(IntValue(6)) {
		t.Error("expected 5 != 6")
	}
	// Structural equality is stricter than comparator equality.
	if IntValue(3).Equal(FloatValue(3.0)) {
		t.Error("expected int 3 != float 3.0 structurally")
	}
	if NullValue().Equal(NullValue()) {
		t.Error("expected NULL != NULL")
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{IntValue(42), "42"},
		{FloatValue(1.5), "1.5"},
		{StringValue("abc"), "'abc'"},
		{BoolValue(true), "TRUE"},
		{BoolValue(false), "FALSE"},
		{NullValue(), "NULL"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
