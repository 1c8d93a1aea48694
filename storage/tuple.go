package storage

import (
	"fmt"
	"strings"

	"github.com/dsg-courses/heapdb/common"
)

// RawTuple is the physical view of a row: a slice of bytes laid out exactly
// as it sits on a disk page. It does not know what data it contains; a
// RawTupleDesc is required to interpret it.
type RawTuple []byte

// RawTupleDesc describes the fixed physical binary layout backing a
// RawTuple: the byte offset and width of each field.
type RawTupleDesc struct {
	fields      []common.Type
	offsets     []int
	bytesPerRow int
}

func (desc *RawTupleDesc) String() string {
	return fmt.Sprintf("%v", desc.fields)
}

// NumColumns returns the number of fields in the physical schema.
func (desc *RawTupleDesc) NumColumns() int {
	return len(desc.fields)
}

// BytesPerTuple returns the fixed width in bytes required to store a row of
// this schema.
func (desc *RawTupleDesc) BytesPerTuple() int {
	return desc.bytesPerRow
}

// GetFieldType returns the type of the field at index i.
func (desc *RawTupleDesc) GetFieldType(i int) common.Type {
	return desc.fields[i]
}

func (desc *RawTupleDesc) GetFieldTypes() []common.Type {
	return desc.fields
}

// GetFieldOffset returns the byte offset where field i begins.
func (desc *RawTupleDesc) GetFieldOffset(i int) int {
	return desc.offsets[i]
}

// GetValue deserializes the value at index i from the given physical row.
func (desc *RawTupleDesc) GetValue(t RawTuple, i int) common.Value {
	return common.AsValue(desc.fields[i], t[desc.offsets[i]:])
}

// SetValue serializes val into its position in the physical row t.
func (desc *RawTupleDesc) SetValue(t RawTuple, i int, val common.Value) {
	common.Assert(val.Type() == desc.fields[i], "type mismatch")
	val.WriteTo(t[desc.offsets[i]:])
}

// NewRawTupleDesc builds a descriptor for the given field types, computing
// offsets and the total row width (always 8-byte aligned, since both
// IntType and StringType widths are multiples of 8).
func NewRawTupleDesc(fields []common.Type) *RawTupleDesc {
	size := 0
	offsetOfField := make([]int, len(fields))
	for i, f := range fields {
		offsetOfField[i] = size
		size += f.Size()
	}
	common.Assert(common.AlignedTo8(size), "tuple width should always be aligned to 8 bytes")
	common.Assert(size <= common.PageSizeBytes()-64, "tuple width should never approach the page size")
	return &RawTupleDesc{fields, offsetOfField, size}
}

// TupleDesc is the logical schema of a table or query result: an ordered
// list of (Type, name) pairs. Two TupleDescs are considered equal for
// schema-compatibility purposes when their field Types agree in order;
// names are advisory (used for display and for Aggregator's output field
// naming) and never participate in equality.
type TupleDesc struct {
	Types      []common.Type
	FieldNames []string
}

// NewTupleDesc builds a TupleDesc. names may be nil or shorter than types,
// in which case missing names are left empty.
func NewTupleDesc(types []common.Type, names []string) *TupleDesc {
	fieldNames := make([]string, len(types))
	copy(fieldNames, names)
	return &TupleDesc{Types: types, FieldNames: fieldNames}
}

// NumColumns returns the number of fields in the schema.
func (td *TupleDesc) NumColumns() int {
	return len(td.Types)
}

// Equals reports structural equality: same number of fields, each with the
// same Type, in the same order.
func (td *TupleDesc) Equals(other *TupleDesc) bool {
	if len(td.Types) != len(other.Types) {
		return false
	}
	for i, t := range td.Types {
		if other.Types[i] != t {
			return false
		}
	}
	return true
}

func (td *TupleDesc) String() string {
	parts := make([]string, len(td.Types))
	for i, t := range td.Types {
		parts[i] = fmt.Sprintf("%s(%s)", td.FieldNames[i], t)
	}
	return strings.Join(parts, ", ")
}

// raw returns the RawTupleDesc backing this logical schema's physical
// encoding on a HeapPage.
func (td *TupleDesc) raw() *RawTupleDesc {
	return NewRawTupleDesc(td.Types)
}

// Tuple is the logical view of a row: the unit operators pull through the
// execution pipeline. A Tuple backed by storage (FromRawTuple) carries a
// RecordID identifying where it lives on disk; a Tuple produced by an
// operator (FromValues, e.g. an Aggregator's output) is purely virtual and
// has a nil RecordID.
type Tuple struct {
	rawTuple RawTuple
	rawDesc  *RawTupleDesc
	values   []common.Value
	rid      common.RecordID
}

// FromRawTuple wraps physically stored bytes as a Tuple without copying or
// eagerly deserializing any field.
func FromRawTuple(rawTuple RawTuple, desc *RawTupleDesc, rid common.RecordID) Tuple {
	return Tuple{rawTuple: rawTuple, rawDesc: desc, rid: rid}
}

// FromValues creates a purely virtual Tuple, e.g. the output row of an
// Aggregator or of an Insert/Delete count operator.
func FromValues(values ...common.Value) Tuple {
	return Tuple{values: values}
}

// RID returns the tuple's RecordID, or the zero RecordID (IsNil() true) if
// the tuple is virtual.
func (t *Tuple) RID() common.RecordID {
	return t.rid
}

// NumColumns returns the number of fields in the tuple.
func (t *Tuple) NumColumns() int {
	if t.rawDesc != nil {
		return t.rawDesc.NumColumns()
	}
	return len(t.values)
}

// GetValue deserializes (or returns, for a virtual tuple) the value at
// index i.
func (t *Tuple) GetValue(i int) common.Value {
	if t.rawDesc != nil {
		return t.rawDesc.GetValue(t.rawTuple, i)
	}
	return t.values[i]
}

// WriteToBuffer materializes the tuple's values into buf according to desc,
// returning a new Tuple backed by buf. Used by Insert to lay a tuple out on
// a freshly allocated page slot.
func (t *Tuple) WriteToBuffer(buf []byte, desc *RawTupleDesc) Tuple {
	common.Assert(len(buf) >= desc.BytesPerTuple(), "buffer too small")
	common.Assert(t.NumColumns() == desc.NumColumns(), "tuple descriptor mismatch")
	for i := 0; i < desc.NumColumns(); i++ {
		desc.SetValue(buf, i, t.GetValue(i))
	}
	return FromRawTuple(buf, desc, t.rid)
}

// DeepCopy returns a fully independent, physically materialized copy of the
// tuple, preserving its RecordID.
func (t *Tuple) DeepCopy(desc *RawTupleDesc) Tuple {
	dest := make([]byte, desc.BytesPerTuple())
	return t.WriteToBuffer(dest, desc)
}

func (t *Tuple) String() string {
	parts := make([]string, t.NumColumns())
	for i := 0; i < t.NumColumns(); i++ {
		parts[i] = t.GetValue(i).String()
	}
	return strings.Join(parts, ", ")
}
