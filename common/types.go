package common

import (
	"encoding/binary"
	"fmt"
)

const (
	// PageSize is the fixed size, in bytes, of every page in the system.
	// Overridable only for tests; see SetPageSizeForTest.
	PageSize = 4096

	// IntSize is the on-disk width of an IntType value.
	IntSize = 8

	// StringLength is the fixed, bounded on-disk width of a StringType value.
	StringLength = 32
)

var pageSize = PageSize

// PageSizeBytes returns the page size currently in effect. Tests use
// SetPageSizeForTest to shrink it so that multi-page behavior (allocation,
// iteration across pages) can be exercised without huge tuple counts.
func PageSizeBytes() int {
	return pageSize
}

// SetPageSizeForTest overrides the page size. THIS FUNCTION SHOULD ONLY BE
// USED FOR TESTING: changing it while pages are cached anywhere produces
// undefined behavior.
func SetPageSizeForTest(size int) {
	pageSize = size
}

// ResetPageSizeForTest restores the default page size.
func ResetPageSizeForTest() {
	pageSize = PageSize
}

// DefaultBufferPoolPages is the default capacity hint for a BufferPool.
const DefaultBufferPoolPages = 50

// Permissions is the closed set of modes a page can be requested in.
type Permissions int8

const (
	ReadOnly Permissions = iota
	ReadWrite
)

func (p Permissions) String() string {
	switch p {
	case ReadOnly:
		return "ReadOnly"
	case ReadWrite:
		return "ReadWrite"
	}
	return "unknown"
}

// Type is the closed set of field types a Tuple's schema may contain.
type Type int8

const (
	// DefaultType marks an uninitialized Type value.
	DefaultType Type = iota
	IntType
	StringType
)

// Size returns the fixed on-disk width of the type in bytes.
func (t Type) Size() int {
	switch t {
	case IntType:
		return IntSize
	case StringType:
		return StringLength
	default:
		panic("unknown type")
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// TableID uniquely identifies a table's backing HeapFile. It is a stable
// hash of the HeapFile's canonical on-disk path (see common.Hash), so the
// same physical file opened twice maps to the same TableID across process
// runs on the same host.
type TableID uint64

// InvalidTableID is never assigned to a real table.
const InvalidTableID TableID = 0

// PageID addresses one fixed-size block within a table's HeapFile.
type PageID struct {
	TableID    TableID
	PageNumber int
}

func (p PageID) String() string {
	return fmt.Sprintf("Page(%d, %d)", p.TableID, p.PageNumber)
}

// RecordID identifies a specific tuple (a slot within a page).
type RecordID struct {
	PageID
	SlotNumber int
}

func (r RecordID) String() string {
	return fmt.Sprintf("rid(%s, %d)", r.PageID.String(), r.SlotNumber)
}

// IsNil reports whether this RecordID was never assigned (e.g. a virtual
// tuple produced by an operator rather than read from storage).
func (r RecordID) IsNil() bool {
	return r.TableID == InvalidTableID
}

// TransactionID is an opaque, unique identifier for a running transaction.
// It is compared for equality only; the numeric value itself carries no
// ordering meaning.
type TransactionID uint64

// InvalidTransactionID is never assigned to a real transaction.
const InvalidTransactionID TransactionID = 0

// LSN (Log Sequence Number) identifies a record's position in the write-
// ahead log. LogManager.Append returns one; WaitUntilFlushed takes one.
type LSN int64

// InvalidLSN is returned alongside an error from Append, and by a
// LogManager that assigns no LSNs at all (NoopLogManager).
const InvalidLSN LSN = -1

// Value is a deserialized data item carried by a Tuple. It is a tagged
// union over the closed Type set; there is no NULL representation (every
// physical slot in a table always holds a well-formed value of its
// column's type).
type Value struct {
	t Type
	i int64
	s string
}

// NewIntValue creates an IntType value.
func NewIntValue(v int64) Value {
	return Value{t: IntType, i: v}
}

// NewStringValue creates a StringType value. Panics if v exceeds
// StringLength bytes, mirroring the fixed-width storage constraint.
func NewStringValue(v string) Value {
	if len(v) > StringLength {
		panic("string value exceeds StringLength")
	}
	return Value{t: StringType, s: v}
}

// AsValue decodes a value of type t from the front of source.
func AsValue(t Type, source []byte) Value {
	switch t {
	case IntType:
		return Value{t: IntType, i: int64(binary.LittleEndian.Uint64(source))}
	case StringType:
		Assert(len(source) >= StringLength, "string field too short")
		n := StringLength
		for i := 0; i < StringLength; i++ {
			if source[i] == 0 {
				n = i
				break
			}
		}
		return Value{t: StringType, s: string(source[:n])}
	default:
		panic("unknown field type")
	}
}

// Type returns the value's type.
func (v Value) Type() Type {
	return v.t
}

// IntValue returns the underlying integer. Panics if v is not an IntType.
func (v Value) IntValue() int64 {
	Assert(v.t == IntType, "type mismatch in IntValue")
	return v.i
}

// StringValue returns the underlying string. Panics if v is not a StringType.
func (v Value) StringValue() string {
	Assert(v.t == StringType, "type mismatch in StringValue")
	return v.s
}

// WriteTo serializes v into the fixed-width encoding at the front of data.
func (v Value) WriteTo(data []byte) {
	switch v.t {
	case IntType:
		binary.LittleEndian.PutUint64(data, uint64(v.i))
	case StringType:
		n := copy(data, v.s)
		for i := n; i < StringLength; i++ {
			data[i] = 0
		}
	default:
		panic("unknown field type")
	}
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other. Both values must share the same Type.
func (v Value) Compare(other Value) int {
	Assert(v.t == other.t, "type mismatch in comparison")
	switch v.t {
	case IntType:
		switch {
		case v.i < other.i:
			return -1
		case v.i > other.i:
			return 1
		default:
			return 0
		}
	case StringType:
		switch {
		case v.s < other.s:
			return -1
		case v.s > other.s:
			return 1
		default:
			return 0
		}
	}
	panic("unreachable")
}

func (v Value) String() string {
	switch v.t {
	case IntType:
		return fmt.Sprintf("%d", v.i)
	case StringType:
		return v.s
	}
	return "<unset>"
}
