// Package record implements the self-describing tuple format: columns,
// schemas, three-valued fields and rows, plus their on-disk serialization.
//
// What: the column and schema encodings open with a 32-bit magic number so
// a reader can detect a corrupted or mis-typed page before trusting its
// contents, following the same magic-check idiom the disk layer uses for
// its meta page. A row encoding carries no magic; it opens with its field
// count.
// How: all integers are little-endian; CHAR(N) values are fixed-width,
// zero-padded byte arrays so column-wise key comparison never has to look
// past the declared length.
package record

import "fmt"

// TypeID identifies the SQL type of a column or field value.
type TypeID int32

const (
	// TypeInt is a 32-bit signed integer.
	TypeInt TypeID = iota
	// TypeFloat is a 32-bit IEEE-754 float.
	TypeFloat
	// TypeChar is a fixed-width, zero-padded byte string of declared length.
	TypeChar
)

func (t TypeID) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeFloat:
		return "FLOAT"
	case TypeChar:
		return "CHAR"
	default:
		return fmt.Sprintf("TypeID(%d)", int32(t))
	}
}

// FixedLength returns the serialized payload length for a TypeID, or -1 for
// CHAR where the length is declared per-column.
func (t TypeID) FixedLength() int {
	switch t {
	case TypeInt:
		return 4
	case TypeFloat:
		return 4
	default:
		return -1
	}
}

// TriState is the three-valued logic result of a comparison or predicate:
// TRUE, FALSE, or NULL (NULL absorbs whenever either operand is null).
type TriState int8

const (
	Unknown TriState = iota // NULL
	False
	True
)

func (s TriState) String() string {
	switch s {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return "NULL"
	}
}

// FromBool lifts a concrete boolean into TriState (never Unknown).
func FromBool(b bool) TriState {
	if b {
		return True
	}
	return False
}

// And implements three-valued conjunction: NULL propagates unless the other
// operand alone determines FALSE.
func (s TriState) And(o TriState) TriState {
	if s == False || o == False {
		return False
	}
	if s == Unknown || o == Unknown {
		return Unknown
	}
	return True
}

// Or implements three-valued disjunction: NULL propagates unless the other
// operand alone determines TRUE.
func (s TriState) Or(o TriState) TriState {
	if s == True || o == True {
		return True
	}
	if s == Unknown || o == Unknown {
		return Unknown
	}
	return False
}

// Not implements three-valued negation; NOT NULL is NULL.
func (s TriState) Not() TriState {
	switch s {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}
