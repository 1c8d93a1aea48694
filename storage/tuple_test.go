package storage

import (
	"testing"

	"github.com/dsg-courses/heapdb/common"
	"github.com/stretchr/testify/assert"
)

func TestTupleFromValues(t *testing.T) {
	val1 := common.NewIntValue(1)
	val2 := common.NewStringValue("hello")
	tup := FromValues(val1, val2)

	assert.Equal(t, 2, tup.NumColumns())
	assert.Equal(t, val1, tup.GetValue(0))
	assert.Equal(t, val2, tup.GetValue(1))
	rid := tup.RID()
	assert.True(t, rid.IsNil(), "virtual tuple should have nil RID")
}

func TestTupleFromRaw(t *testing.T) {
	desc := NewRawTupleDesc([]common.Type{common.IntType, common.StringType})

	buf := make([]byte, desc.BytesPerTuple())
	expectedInt := int64(42)
	expectedStr := "world"

	desc.SetValue(buf, 0, common.NewIntValue(expectedInt))
	desc.SetValue(buf, 1, common.NewStringValue(expectedStr))

	rid := common.RecordID{PageID: common.PageID{TableID: 1, PageNumber: 1}, SlotNumber: 0}
	tup := FromRawTuple(buf, desc, rid)
	assert.Equal(t, 2, tup.NumColumns())
	intValue := tup.GetValue(0)
	assert.Equal(t, expectedInt, intValue.IntValue())
	strValue := tup.GetValue(1)
	assert.Equal(t, expectedStr, strValue.StringValue())
	assert.Equal(t, rid, tup.RID())
}

func TestDeepCopy(t *testing.T) {
	descPhys := NewRawTupleDesc([]common.Type{common.IntType})
	buf := make([]byte, descPhys.BytesPerTuple())
	descPhys.SetValue(buf, 0, common.NewIntValue(99))

	base := FromRawTuple(buf, descPhys, common.RecordID{SlotNumber: 5})
	copied := base.DeepCopy(descPhys)

	intValue := copied.GetValue(0)
	assert.Equal(t, int64(99), intValue.IntValue())

	descPhys.SetValue(buf, 0, common.NewIntValue(0))
	assert.Equal(t, int64(99), intValue.IntValue(), "deep copy must not alias the original buffer")
	assert.Equal(t, 5, copied.RID().SlotNumber)
}

func TestWriteToBuffer(t *testing.T) {
	val1 := common.NewIntValue(123)
	val2 := common.NewStringValue("serialize")
	tup := FromValues(val1, val2)
	desc := NewRawTupleDesc([]common.Type{common.IntType, common.StringType})
	buf := make([]byte, desc.BytesPerTuple())
	tup.WriteToBuffer(buf, desc)
	readVal1 := desc.GetValue(buf, 0)
	readVal2 := desc.GetValue(buf, 1)
	assert.Equal(t, int64(123), readVal1.IntValue())
	assert.Equal(t, "serialize", readVal2.StringValue())
}

func TestTupleDescEquals(t *testing.T) {
	a := NewTupleDesc([]common.Type{common.IntType, common.StringType}, []string{"a", "b"})
	b := NewTupleDesc([]common.Type{common.IntType, common.StringType}, []string{"x", "y"})
	c := NewTupleDesc([]common.Type{common.StringType, common.IntType}, nil)

	assert.True(t, a.Equals(b), "field names should not affect structural equality")
	assert.False(t, a.Equals(c))
}
