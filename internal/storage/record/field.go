package record

import (
	"bytes"
	"fmt"
)

// Field is a single discriminated value: its declared TypeID, whether it is
// NULL, and the payload for the type it carries. Only one of IntVal/
// FloatVal/CharVal is meaningful, selected by Type.
type Field struct {
	Type     TypeID
	Null     bool
	IntVal   int32
	FloatVal float32
	CharVal  []byte // fixed-width, zero-padded to its column's declared N
}

// NewIntField builds a non-null INT field.
func NewIntField(v int32) Field { return Field{Type: TypeInt, IntVal: v} }

// NewFloatField builds a non-null FLOAT field.
func NewFloatField(v float32) Field { return Field{Type: TypeFloat, FloatVal: v} }

// NewCharField builds a non-null CHAR(n) field, zero-padding or truncating
// v to exactly n bytes.
func NewCharField(v string, n uint32) Field {
	buf := make([]byte, n)
	copy(buf, v)
	return Field{Type: TypeChar, CharVal: buf}
}

// NewNullField builds a NULL field of the given type.
func NewNullField(t TypeID) Field { return Field{Type: t, Null: true} }

// IsNull evaluates IS NULL: always a concrete boolean, never Unknown.
func (f Field) IsNull() TriState { return FromBool(f.Null) }

// IsNotNull evaluates IS NOT NULL: always a concrete boolean.
func (f Field) IsNotNull() TriState { return FromBool(!f.Null) }

// compare orders two same-typed, non-null fields: -1, 0 or 1.
func (f Field) compare(o Field) (int, error) {
	if f.Type != o.Type {
		return 0, fmt.Errorf("record: field: type mismatch %s vs %s", f.Type, o.Type)
	}
	switch f.Type {
	case TypeInt:
		switch {
		case f.IntVal < o.IntVal:
			return -1, nil
		case f.IntVal > o.IntVal:
			return 1, nil
		default:
			return 0, nil
		}
	case TypeFloat:
		switch {
		case f.FloatVal < o.FloatVal:
			return -1, nil
		case f.FloatVal > o.FloatVal:
			return 1, nil
		default:
			return 0, nil
		}
	case TypeChar:
		return bytes.Compare(f.CharVal, o.CharVal), nil
	default:
		return 0, fmt.Errorf("record: field: unknown type %s", f.Type)
	}
}

// Equal implements three-valued equality: NULL if either operand is null.
func (f Field) Equal(o Field) TriState {
	if f.Null || o.Null {
		return Unknown
	}
	c, err := f.compare(o)
	if err != nil {
		return Unknown
	}
	return FromBool(c == 0)
}

// Less implements three-valued '<'.
func (f Field) Less(o Field) TriState {
	if f.Null || o.Null {
		return Unknown
	}
	c, err := f.compare(o)
	if err != nil {
		return Unknown
	}
	return FromBool(c < 0)
}

// Greater implements three-valued '>'.
func (f Field) Greater(o Field) TriState {
	if f.Null || o.Null {
		return Unknown
	}
	c, err := f.compare(o)
	if err != nil {
		return Unknown
	}
	return FromBool(c > 0)
}

// LessEqual implements three-valued '<='.
func (f Field) LessEqual(o Field) TriState { return f.Greater(o).Not() }

// GreaterEqual implements three-valued '>='.
func (f Field) GreaterEqual(o Field) TriState { return f.Less(o).Not() }

// NotEqual implements three-valued '!='.
func (f Field) NotEqual(o Field) TriState { return f.Equal(o).Not() }
