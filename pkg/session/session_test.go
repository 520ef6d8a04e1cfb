package session

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ferret/pkg/logflags"
	"ferret/pkg/maps"
	"ferret/pkg/target"
)

const heapBase = 0x10000

type fixture struct {
	s    *Session
	fake *target.FakeProcess
	out  *bytes.Buffer
	msg  *bytes.Buffer
}

func newFixture(t *testing.T, mem []byte) *fixture {
	t.Helper()
	fake := target.NewFake(4321)
	fake.AddRegion(heapBase, mem, maps.Heap)

	out := &bytes.Buffer{}
	msg := &bytes.Buffer{}
	s := NewWithTarget(fake, out, msg, logflags.ScannerLogger())
	require.NoError(t, s.HandleReset())
	return &fixture{s: s, fake: fake, out: out, msg: msg}
}

func (f *fixture) handle(t *testing.T, line ...string) {
	t.Helper()
	require.NoError(t, f.s.Handle(line), "command %v", line)
}

func putU32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:], v)
}

func TestScanNarrowSetRoundTrip(t *testing.T) {
	mem := make([]byte, 256)
	putU32(mem, 0x40, 100)
	putU32(mem, 0x80, 100)
	f := newFixture(t, mem)

	f.handle(t, "option", "scan_data_type", "int32")
	f.handle(t, "100")
	assert.Equal(t, 2, f.s.NumMatches())

	// the target drops one of them to 99, `<` narrows on decrease
	f.fake.Poke(heapBase+0x40, []byte{99, 0, 0, 0})
	f.handle(t, "<")
	assert.Equal(t, 1, f.s.NumMatches())

	loc, ok := f.s.Matches().NthMatch(0)
	require.True(t, ok)
	assert.Equal(t, uint64(heapBase+0x40), loc.Address())

	// set rewrites the survivor under its own width
	f.handle(t, "set", "0=42")
	got, err := f.fake.Peek(heapBase + 0x40)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(got[:4]))
}

func TestSetSelectsIDsAndWidths(t *testing.T) {
	mem := make([]byte, 64)
	putU32(mem, 0, 1000)
	putU32(mem, 8, 1000)
	putU32(mem, 16, 1000)
	f := newFixture(t, mem)

	f.handle(t, "option", "scan_data_type", "int32")
	f.handle(t, "1000")
	require.Equal(t, 3, f.s.NumMatches())

	f.handle(t, "set", "0,2=42")

	b0, _ := f.fake.Peek(heapBase)
	b1, _ := f.fake.Peek(heapBase + 8)
	b2, _ := f.fake.Peek(heapBase + 16)
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(b0[:4]))
	assert.Equal(t, uint32(1000), binary.LittleEndian.Uint32(b1[:4]))
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(b2[:4]))
}

func TestSetRejectsAggregateTypesAndBadIDs(t *testing.T) {
	mem := make([]byte, 16)
	putU32(mem, 0, 7)
	f := newFixture(t, mem)

	f.handle(t, "option", "scan_data_type", "int32")
	f.handle(t, "7")
	require.Equal(t, 1, f.s.NumMatches())

	assert.Error(t, f.s.Handle([]string{"set", "9=1"}))

	f.handle(t, "option", "scan_data_type", "bytearray")
	assert.Error(t, f.s.Handle([]string{"set", "0=1"}))
}

func TestUpdatePreservesMatches(t *testing.T) {
	mem := make([]byte, 64)
	putU32(mem, 4, 500)
	f := newFixture(t, mem)

	f.handle(t, "option", "scan_data_type", "int32")
	f.handle(t, "500")
	before := f.s.NumMatches()
	require.Greater(t, before, 0)

	f.handle(t, "update")
	assert.Equal(t, before, f.s.NumMatches())
}

func TestSnapshotThenBareEqual(t *testing.T) {
	mem := []byte{9, 8, 7, 6, 5, 4, 3, 2}
	f := newFixture(t, mem)

	f.handle(t, "snapshot")
	n := f.s.NumMatches()
	assert.Equal(t, len(mem), n)

	// nothing changed: everything is retained
	f.handle(t, "=")
	assert.Equal(t, n, f.s.NumMatches())
}

func TestBareComparisonsRequireMatches(t *testing.T) {
	f := newFixture(t, make([]byte, 16))
	assert.Error(t, f.s.Handle([]string{"="}))
	assert.Error(t, f.s.Handle([]string{"+"}))
	f.handle(t, "option", "scan_data_type", "int32")
	f.handle(t, "0")
	f.handle(t, "=")
}

func TestDeleteDecrementsCount(t *testing.T) {
	mem := make([]byte, 32)
	putU32(mem, 0, 77)
	putU32(mem, 8, 77)
	f := newFixture(t, mem)

	f.handle(t, "option", "scan_data_type", "int32")
	f.handle(t, "77")
	require.Equal(t, 2, f.s.NumMatches())

	f.handle(t, "delete", "0")
	assert.Equal(t, 1, f.s.NumMatches())
	assert.Equal(t, 1, f.s.Matches().NumMatches())

	assert.Error(t, f.s.Handle([]string{"delete", "5"}))
}

func TestDregionInverted(t *testing.T) {
	fake := target.NewFake(4321)
	fake.AddRegion(0x1000, make([]byte, 16), maps.Heap)
	fake.AddRegion(0x2000, make([]byte, 16), maps.Heap)
	fake.AddRegion(0x3000, make([]byte, 16), maps.Heap)
	for _, base := range []uint64{0x1000, 0x2000, 0x3000} {
		fake.Poke(base, []byte{55})
	}

	out, msg := &bytes.Buffer{}, &bytes.Buffer{}
	s := NewWithTarget(fake, out, msg, logflags.ScannerLogger())
	require.NoError(t, s.HandleReset())
	require.NoError(t, s.Handle([]string{"option", "scan_data_type", "int8"}))
	require.NoError(t, s.Handle([]string{"55"}))
	require.Equal(t, 3, s.NumMatches())

	require.NoError(t, s.Handle([]string{"dregion", "!1"}))

	require.Len(t, s.Regions(), 1)
	assert.Equal(t, uint64(0x2000), s.Regions()[0].Start)
	assert.Equal(t, 1, s.NumMatches())
	loc, ok := s.Matches().NthMatch(0)
	require.True(t, ok)
	assert.Equal(t, uint64(0x2000), loc.Address())
}

func TestDregionErrors(t *testing.T) {
	f := newFixture(t, make([]byte, 16))
	assert.Error(t, f.s.Handle([]string{"dregion", "!"}))
	assert.Error(t, f.s.Handle([]string{"dregion", "17"}))
	assert.Error(t, f.s.Handle([]string{"dregion", "x"}))
}

func TestListFormat(t *testing.T) {
	mem := make([]byte, 64)
	putU32(mem, 0x10, 1234)
	f := newFixture(t, mem)

	f.handle(t, "option", "scan_data_type", "int32")
	f.handle(t, "1234")
	require.Equal(t, 1, f.s.NumMatches())

	f.out.Reset()
	f.handle(t, "list")
	line := strings.TrimRight(f.out.String(), "\n")
	expected := fmt.Sprintf("[ 0] %12x, %2d + %12x, %5s,  1234",
		heapBase+0x10, 0, 0x10, "heap")
	assert.Equal(t, expected, line)
}

func TestListBytearraySuffix(t *testing.T) {
	mem := make([]byte, 32)
	copy(mem[4:], []byte{0xde, 0xad, 0xbe, 0xef})
	f := newFixture(t, mem)

	f.handle(t, "option", "scan_data_type", "bytearray")
	f.handle(t, "DE", "AD", "??", "EF")
	require.Equal(t, 1, f.s.NumMatches())

	f.out.Reset()
	f.handle(t, "list")
	assert.Contains(t, f.out.String(), "DE AD BE EF, [bytearray]")
}

func TestStringScanAndList(t *testing.T) {
	mem := make([]byte, 32)
	copy(mem[2:], "gold")
	f := newFixture(t, mem)

	f.handle(t, "option", "scan_data_type", "string")
	require.NoError(t, f.s.HandleString("gold"))
	require.Equal(t, 1, f.s.NumMatches())

	f.out.Reset()
	f.handle(t, "list")
	assert.Contains(t, f.out.String(), "gold, [string]")
}

func TestRangeScan(t *testing.T) {
	mem := make([]byte, 32)
	putU32(mem, 0, 95)
	putU32(mem, 8, 200)
	f := newFixture(t, mem)

	f.handle(t, "option", "scan_data_type", "int32")
	f.handle(t, "90..110")
	require.Equal(t, 1, f.s.NumMatches())
	loc, _ := f.s.Matches().NthMatch(0)
	assert.Equal(t, uint64(heapBase), loc.Address())
}

func TestWriteCommand(t *testing.T) {
	mem := make([]byte, 64)
	f := newFixture(t, mem)

	addr := fmt.Sprintf("%x", heapBase+8)
	f.handle(t, "write", "i32", addr, "777")
	got, _ := f.fake.Peek(heapBase + 8)
	assert.Equal(t, uint32(777), binary.LittleEndian.Uint32(got[:4]))

	f.handle(t, "write", "string", addr, "hey")
	got, _ = f.fake.Peek(heapBase + 8)
	assert.Equal(t, "hey", string(got[:3]))

	// wildcards keep the target's byte
	f.handle(t, "write", "bytearray", addr, "41", "??", "43")
	got, _ = f.fake.Peek(heapBase + 8)
	assert.Equal(t, []byte{0x41, 'e', 0x43}, got[:3])

	assert.Error(t, f.s.Handle([]string{"write", "i32", "zz", "1"}))
	assert.Error(t, f.s.Handle([]string{"write", "nope", addr, "1"}))
}

func TestDumpFormats(t *testing.T) {
	mem := make([]byte, 20)
	copy(mem, "ABCDEFGHIJKLMNOPQRST")
	f := newFixture(t, mem)

	addr := fmt.Sprintf("%x", heapBase)
	f.out.Reset()
	f.handle(t, "dump", addr, "20")
	lines := strings.Split(strings.TrimRight(f.out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], fmt.Sprintf("%x: 41 42 43", heapBase)))

	f.s.Options.DumpWithASCII = true
	f.out.Reset()
	f.handle(t, "dump", addr, "20")
	assert.Contains(t, f.out.String(), "ABCDEFGHIJKLMNOP")
}

func TestOptionValidation(t *testing.T) {
	f := newFixture(t, make([]byte, 8))

	assert.Error(t, f.s.Handle([]string{"option", "scan_data_type", "int128"}))
	assert.Error(t, f.s.Handle([]string{"option", "region_scan_level", "9"}))
	assert.Error(t, f.s.Handle([]string{"option", "nonsense", "1"}))

	f.handle(t, "option", "region_scan_level", "3")
	assert.Equal(t, maps.LevelAll, f.s.Options.RegionScanLevel)
	f.handle(t, "option", "endianness", "2")
	assert.True(t, f.s.Options.ReverseEndianness)
	f.handle(t, "option", "endianness", "0")
	assert.False(t, f.s.Options.ReverseEndianness)
}

func TestResetDropsMatches(t *testing.T) {
	mem := make([]byte, 16)
	putU32(mem, 0, 5)
	f := newFixture(t, mem)

	f.handle(t, "option", "scan_data_type", "int32")
	f.handle(t, "5")
	require.NotZero(t, f.s.NumMatches())

	f.handle(t, "reset")
	assert.Zero(t, f.s.NumMatches())
	assert.Nil(t, f.s.Matches())
	assert.NotEmpty(t, f.s.Regions())
}

func TestExitFlag(t *testing.T) {
	f := newFixture(t, make([]byte, 8))
	f.handle(t, "exit")
	assert.True(t, f.s.ExitRequested())
}
