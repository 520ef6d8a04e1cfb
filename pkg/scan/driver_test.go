package scan

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ferret/pkg/logflags"
	"ferret/pkg/maps"
	"ferret/pkg/target"
	"ferret/pkg/value"
)

const heapBase = 0x10000

func newDriver(fake *target.FakeProcess) *Driver {
	return &Driver{
		Target: fake,
		Cancel: &Cancel{},
		Log:    logflags.ScannerLogger(),
	}
}

func fakeWithHeap(data []byte) (*target.FakeProcess, []*maps.Region) {
	fake := target.NewFake(1234)
	fake.AddRegion(heapBase, data, maps.Heap)
	regions, _ := fake.Regions(maps.LevelAll)
	return fake, regions
}

func putU32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:], v)
}

func parse(t *testing.T, s string) *value.UserValue {
	t.Helper()
	uv, err := value.ParseNumber(s)
	require.NoError(t, err)
	return uv
}

func TestFirstScanFindsValue(t *testing.T) {
	mem := make([]byte, 256)
	putU32(mem, 0x40, 100)
	fake, regions := fakeWithHeap(mem)
	d := newDriver(fake)

	store, res, err := d.FirstScan(regions, Int32, MatchEqualTo, parse(t, "100"), Compare{})
	require.NoError(t, err)
	require.False(t, res.Interrupted)
	require.GreaterOrEqual(t, res.Matches, 1)

	loc, ok := store.NthMatch(0)
	require.True(t, ok)
	assert.Equal(t, uint64(heapBase+0x40), loc.Address())
	assert.Equal(t, res.Matches, store.NumMatches())
}

func TestFirstScanRejectsOldValuePredicates(t *testing.T) {
	fake, regions := fakeWithHeap(make([]byte, 16))
	d := newDriver(fake)
	_, _, err := d.FirstScan(regions, Int32, MatchIncreased, nil, Compare{})
	assert.ErrorIs(t, err, ErrFirstScanOnly)
}

func TestFirstScanAnyOnOneByteRegion(t *testing.T) {
	fake, regions := fakeWithHeap([]byte{0x7f})
	d := newDriver(fake)

	store, res, err := d.FirstScan(regions, AnyNumber, MatchAny, nil, Compare{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matches)
	loc, ok := store.NthMatch(0)
	require.True(t, ok)
	assert.Equal(t, uint64(heapBase), loc.Address())
	assert.Equal(t, value.U8|value.S8, loc.Entry().Flags.Widths)
}

func TestNarrowingIsMonotonic(t *testing.T) {
	mem := make([]byte, 1024)
	for off := 0; off < 1024; off += 4 {
		putU32(mem, off, 100)
	}
	fake, regions := fakeWithHeap(mem)
	d := newDriver(fake)

	store, res, err := d.FirstScan(regions, Int32, MatchEqualTo, parse(t, "100"), Compare{})
	require.NoError(t, err)
	before := res.Matches
	require.Greater(t, before, 1)

	// one survivor decreases, everything else stays
	fake.Poke(heapBase+0x80, []byte{99, 0, 0, 0})
	res, err = d.NextScan(store, Int32, MatchDecreased, nil, Compare{})
	require.NoError(t, err)
	assert.Less(t, res.Matches, before)
	assert.Equal(t, 1, res.Matches)

	loc, ok := store.NthMatch(0)
	require.True(t, ok)
	assert.Equal(t, uint64(heapBase+0x80), loc.Address())

	// a narrowing pass can never grow the set
	res, err = d.NextScan(store, Int32, MatchAny, nil, Compare{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matches)
}

func TestNextScanRefreshesOldValues(t *testing.T) {
	mem := make([]byte, 64)
	putU32(mem, 0, 100)
	fake, regions := fakeWithHeap(mem)
	d := newDriver(fake)

	store, _, err := d.FirstScan(regions, Int32, MatchEqualTo, parse(t, "100"), Compare{})
	require.NoError(t, err)

	fake.Poke(heapBase, []byte{99, 0, 0, 0})
	_, err = d.NextScan(store, Int32, MatchDecreased, nil, Compare{})
	require.NoError(t, err)

	// the stored old value now reads 99, so a repeated `decreased`
	// pass with a stable target drops the match
	res, err := d.NextScan(store, Int32, MatchDecreased, nil, Compare{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matches)
}

func TestSnapshotThenNotChangedKeepsEverything(t *testing.T) {
	mem := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	fake, regions := fakeWithHeap(mem)
	d := newDriver(fake)

	store, res, err := d.FirstScan(regions, AnyInteger, MatchAny, nil, Compare{})
	require.NoError(t, err)
	assert.Equal(t, len(mem), res.Matches)

	res, err = d.NextScan(store, AnyInteger, MatchNotChanged, nil, Compare{})
	require.NoError(t, err)
	assert.Equal(t, len(mem), res.Matches)

	fake.Poke(heapBase+3, []byte{0xee})
	res, err = d.NextScan(store, AnyInteger, MatchNotChanged, nil, Compare{})
	require.NoError(t, err)
	assert.Less(t, res.Matches, len(mem))
}

func TestBytearrayWildcardScan(t *testing.T) {
	mem := make([]byte, 128)
	copy(mem[0x10:], []byte{0xde, 0xad, 0x11, 0xef})
	copy(mem[0x40:], []byte{0xde, 0xad, 0x22, 0xef})
	fake, regions := fakeWithHeap(mem)
	d := newDriver(fake)

	uv, err := value.ParseBytearray([]string{"DE", "AD", "??", "EF"})
	require.NoError(t, err)

	store, res, err := d.FirstScan(regions, ByteArray, MatchEqualTo, uv, Compare{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matches)

	first, ok := store.NthMatch(0)
	require.True(t, ok)
	second, ok := store.NthMatch(1)
	require.True(t, ok)
	assert.Equal(t, uint64(heapBase+0x10), first.Address())
	assert.Equal(t, uint64(heapBase+0x40), second.Address())

	// the wildcard byte may change without losing the match
	fake.Poke(heapBase+0x12, []byte{0x99})
	res, err = d.NextScan(store, ByteArray, MatchEqualTo, uv, Compare{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matches)
}

func TestStringScan(t *testing.T) {
	mem := make([]byte, 64)
	copy(mem[5:], "needle")
	fake, regions := fakeWithHeap(mem)
	d := newDriver(fake)

	uv, err := value.ParseString("needle")
	require.NoError(t, err)

	store, res, err := d.FirstScan(regions, String, MatchEqualTo, uv, Compare{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matches)
	loc, _ := store.NthMatch(0)
	assert.Equal(t, uint64(heapBase+5), loc.Address())
}

func TestContinuationBytesSurviveNarrowing(t *testing.T) {
	mem := make([]byte, 64)
	putU32(mem, 8, 0x01020304)
	fake, regions := fakeWithHeap(mem)
	d := newDriver(fake)

	store, _, err := d.FirstScan(regions, Int32, MatchEqualTo, parse(t, "16909060"), Compare{})
	require.NoError(t, err)

	_, err = d.NextScan(store, Int32, MatchNotChanged, nil, Compare{})
	require.NoError(t, err)

	// the 4-byte old value is still reconstructible after compaction
	loc, ok := store.NthMatch(0)
	require.True(t, ok)
	v := loc.Value(4)
	n, ok := v.Uint(value.U32, false)
	require.True(t, ok)
	assert.Equal(t, uint64(0x01020304), n)
}

func TestCancellationBetweenRegions(t *testing.T) {
	fake := target.NewFake(1)
	for i := 0; i < 8; i++ {
		fake.AddRegion(uint64(0x1000*(i+1)), []byte{1, 2, 3, 4}, maps.Heap)
	}
	regions, _ := fake.Regions(maps.LevelAll)

	d := newDriver(fake)
	d.Cancel.Set()

	store, res, err := d.FirstScan(regions, AnyInteger, MatchAny, nil, Compare{})
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, 0, res.Matches)
	assert.NotNil(t, store)
}

func TestAttachDetachBracketsEveryPass(t *testing.T) {
	fake, regions := fakeWithHeap(make([]byte, 16))
	d := newDriver(fake)

	store, _, err := d.FirstScan(regions, AnyInteger, MatchAny, nil, Compare{})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.AttachCount())

	_, err = d.NextScan(store, AnyInteger, MatchAny, nil, Compare{})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.AttachCount())
}
