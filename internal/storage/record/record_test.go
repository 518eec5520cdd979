package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return NewSchema(
		NewColumn("id", TypeInt, 0, 0, false, false),
		NewColumn("price", TypeFloat, 0, 0, true, false),
		NewColumn("name", TypeChar, 10, 0, false, true),
	)
}

func TestColumnRoundTrip(t *testing.T) {
	c := NewColumn("a", TypeChar, 12, 3, true, true)
	buf := c.Marshal()
	got, n, err := UnmarshalColumn(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, c, got)
}

func TestSchemaRoundTrip(t *testing.T) {
	s := testSchema()
	buf := s.Marshal()
	got, err := UnmarshalSchema(buf)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestRowRoundTripAllNonNull(t *testing.T) {
	s := testSchema()
	row := Row{Fields: []Field{
		NewIntField(42),
		NewFloatField(3.5),
		NewCharField("bob", 10),
	}}
	buf := row.Marshal()
	got, err := UnmarshalRow(buf, s)
	require.NoError(t, err)
	require.Equal(t, row.Fields, got.Fields)
}

func TestRowRoundTripWithNulls(t *testing.T) {
	s := testSchema()
	row := Row{Fields: []Field{
		NewIntField(7),
		NewNullField(TypeFloat),
		NewCharField("x", 10),
	}}
	buf := row.Marshal()
	got, err := UnmarshalRow(buf, s)
	require.NoError(t, err)
	require.Equal(t, row.Fields, got.Fields)
	require.True(t, got.Fields[1].Null)
}

func TestRowProjectKeyMap(t *testing.T) {
	row := Row{Fields: []Field{
		NewIntField(1),
		NewFloatField(2),
		NewCharField("z", 10),
	}}
	key := row.Project([]int{2, 0})
	require.Len(t, key.Fields, 2)
	require.Equal(t, TypeChar, key.Fields[0].Type)
	require.Equal(t, int32(1), key.Fields[1].IntVal)
}

func TestFieldThreeValuedComparison(t *testing.T) {
	a := NewIntField(5)
	b := NewIntField(5)
	n := NewNullField(TypeInt)

	require.Equal(t, True, a.Equal(b))
	require.Equal(t, Unknown, a.Equal(n))
	require.Equal(t, Unknown, n.Equal(n))

	require.Equal(t, True, a.IsNotNull())
	require.Equal(t, False, a.IsNull())
	require.Equal(t, True, n.IsNull())
}

func TestFieldOrderingChar(t *testing.T) {
	a := NewCharField("apple", 10)
	b := NewCharField("banana", 10)
	require.Equal(t, True, a.Less(b))
	require.Equal(t, False, a.Greater(b))
	require.Equal(t, True, a.LessEqual(b))
}

func TestTriStateAndOr(t *testing.T) {
	require.Equal(t, False, False.And(True))
	require.Equal(t, Unknown, Unknown.And(True))
	require.Equal(t, True, True.Or(False))
	require.Equal(t, Unknown, Unknown.Or(False))
	require.Equal(t, Unknown, Unknown.Or(False).Or(False))
}

func TestRowIDPackRoundTrip(t *testing.T) {
	rid := RowID{Page: 12345, Slot: 9}
	packed := rid.Pack()
	got := UnpackRowID(packed)
	require.Equal(t, rid, got)
}
