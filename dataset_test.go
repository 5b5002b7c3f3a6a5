package bufr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubsetAccessors(t *testing.T) {
	tables := mustTables(t)
	ds, err := DecodeMessage(amedasMessage(t, tables, tokyo), tables)
	require.NoError(t, err)
	s := ds.Subset(0)

	precip := s.Lookup(13011)
	require.Len(t, precip, 2)
	require.False(t, precip[0].IsMissing())
	require.True(t, precip[1].IsMissing())

	// The replication factor is structural and never looked up.
	require.Empty(t, s.Lookup(31001))
	_, ok := s.First(31001)
	require.False(t, ok)

	lat, ok := s.First(5001)
	require.True(t, ok)
	f, _ := lat.Float()
	require.InDelta(t, 35.0, f, 1e-9)

	require.Len(t, s.Values, 16)
	require.Len(t, s.Data(), 15)
	require.Len(t, s.Descriptors(), 16)
	require.Equal(t, Code(1202), s.Descriptors()[0].Code)
}

func TestSubsetIndexKeepsFirstAppearanceOrder(t *testing.T) {
	tables := mustTables(t)
	ds, err := DecodeMessage(amedasMessage(t, tables, tokyo), tables)
	require.NoError(t, err)

	idx := ds.Subset(0).Index()
	var keys []Code
	for el := idx.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Key)
	}
	require.Equal(t, []Code{1202, 5001, 6001, 7030, 4001, 4002, 4003, 4004, 4005, 4025, 13011, 25211}, keys)

	qc, ok := idx.Get(25211)
	require.True(t, ok)
	require.Len(t, qc, 2)
	n, _ := qc[1].Int()
	require.Equal(t, int32(2), n)
}

func TestValueString(t *testing.T) {
	d := ExpandedDescriptor{Code: 12001, Entry: TableBEntry{Code: 12001, Scale: 1}}
	require.Equal(t, "290.1", FloatValue(d, 290.1).String())
	require.Equal(t, "42", IntValue(d, 42).String())
	require.Equal(t, "abc", StringValue(d, "abc").String())
	require.Equal(t, "MISSING", MissingValue(d).String())

	f, ok := IntValue(d, 42).Float()
	require.True(t, ok)
	require.Equal(t, 42.0, f)
	_, ok = StringValue(d, "x").Float()
	require.False(t, ok)
	_, ok = FloatValue(d, 1).Int()
	require.False(t, ok)
}

func TestNumericValueNegativeScale(t *testing.T) {
	d := ExpandedDescriptor{Code: 10004, Entry: TableBEntry{Code: 10004, Unit: "PA", Scale: -1, Width: 14}}
	v := numericValue(&d, 10132, false)
	require.Equal(t, KindFloat, v.Kind())
	f, _ := v.Float()
	require.Equal(t, 101320.0, f)
}

func TestSignedReference(t *testing.T) {
	require.Equal(t, int64(100), signedReference(100, 14))
	require.Equal(t, int64(-100), signedReference(1<<13|100, 14))
	require.Equal(t, int64(0), signedReference(0, 1))
	require.Equal(t, int64(-math.MaxInt32), signedReference(math.MaxUint32, 32))
}
