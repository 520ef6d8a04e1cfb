package swath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ferret/pkg/value"
)

func matchEntry(b byte) Entry {
	return Entry{OldValue: b, Flags: value.Flags{Widths: value.U8 | value.S8}}
}

func addrs(s *Store) []uint64 {
	var out []uint64
	for it := s.Iter(); it.Valid(); it.Next() {
		if it.Entry().Flags.MaxWidthBytes() > 0 {
			out = append(out, it.Address())
		}
	}
	return out
}

func TestAddElementOrdering(t *testing.T) {
	s := Allocate(64, 1<<20)
	w := s.NewWriter()

	require.NoError(t, w.AddElement(0x1000, matchEntry(1)))
	require.NoError(t, w.AddElement(0x1001, matchEntry(2)))
	require.NoError(t, w.AddElement(0x2000, matchEntry(3)))
	w.Terminate()

	assert.Equal(t, []uint64{0x1000, 0x1001, 0x2000}, addrs(s))
	assert.Equal(t, 3, s.NumMatches())

	loc, ok := s.NthMatch(2)
	require.True(t, ok)
	assert.Equal(t, uint64(0x2000), loc.Address())
	assert.Equal(t, byte(3), loc.Entry().OldValue)

	_, ok = s.NthMatch(3)
	assert.False(t, ok)
}

func TestAddElementRejectsBackwardAddress(t *testing.T) {
	s := Allocate(64, 1<<20)
	w := s.NewWriter()
	require.NoError(t, w.AddElement(0x1000, matchEntry(1)))
	assert.Error(t, w.AddElement(0x1000, matchEntry(2)))
	assert.Error(t, w.AddElement(0xfff, matchEntry(2)))
}

// The gap rule: a new swath costs a header plus an entry, so padding
// wins while gap*EntrySize stays below that.
func TestAddElementGapRule(t *testing.T) {
	crossover := (HeaderSize + EntrySize) / EntrySize // gap of 3 with 16+8 byte sizes

	t.Run("below crossover pads", func(t *testing.T) {
		s := Allocate(64, 1<<20)
		w := s.NewWriter()
		require.NoError(t, w.AddElement(0x1000, matchEntry(1)))
		require.NoError(t, w.AddElement(0x1000+uint64(crossover-1), matchEntry(2)))
		w.Terminate()

		// one swath: header + crossover entries
		assert.Equal(t, HeaderSize+crossover*EntrySize, s.Size())
		assert.Equal(t, 2, s.NumMatches())

		// the padding entry is a null, not a match
		it := s.Iter()
		it.Next()
		assert.Equal(t, 0, it.Entry().Flags.MaxWidthBytes())
		assert.Equal(t, uint64(0x1001), it.Address())
	})

	t.Run("at crossover starts a new swath", func(t *testing.T) {
		s := Allocate(64, 1<<20)
		w := s.NewWriter()
		require.NoError(t, w.AddElement(0x1000, matchEntry(1)))
		require.NoError(t, w.AddElement(0x1000+uint64(crossover), matchEntry(2)))
		w.Terminate()

		assert.Equal(t, 2*(HeaderSize+EntrySize), s.Size())
		assert.Equal(t, []uint64{0x1000, 0x1000 + uint64(crossover)}, addrs(s))
	})
}

func TestGrowthDoublesAndClamps(t *testing.T) {
	s := Allocate(HeaderSize+EntrySize, 4*(HeaderSize+EntrySize))
	w := s.NewWriter()

	require.NoError(t, w.AddElement(0x1000, matchEntry(1)))
	alloc := s.BytesAllocated()
	require.NoError(t, w.AddElement(0x2000, matchEntry(2)))
	assert.Greater(t, s.BytesAllocated(), alloc)
	assert.LessOrEqual(t, s.BytesAllocated(), s.MaxNeededBytes())

	require.NoError(t, w.AddElement(0x3000, matchEntry(3)))
	require.NoError(t, w.AddElement(0x4000, matchEntry(4)))

	// the bound is hard: a fifth swath cannot fit
	err := w.AddElement(0x5000, matchEntry(5))
	assert.ErrorIs(t, err, ErrStoreFull)

	// the store is still consistent with the prior four
	w.Terminate()
	assert.Equal(t, 4, s.NumMatches())
}

func TestLocationValueReadsConsecutiveOldBytes(t *testing.T) {
	s := Allocate(64, 1<<20)
	w := s.NewWriter()
	require.NoError(t, w.AddElement(0x1000, Entry{
		OldValue: 0x64,
		Flags:    value.Flags{Widths: value.U32 | value.S32},
	}))
	for i, b := range []byte{0x00, 0x00, 0x00} {
		require.NoError(t, w.AddElement(0x1001+uint64(i), Entry{OldValue: b}))
	}
	w.Terminate()

	loc, ok := s.NthMatch(0)
	require.True(t, ok)
	v := loc.Value(4)
	n, ok := v.Uint(value.U32, false)
	require.True(t, ok)
	assert.Equal(t, uint64(100), n)
}

func TestDeleteInRange(t *testing.T) {
	s := Allocate(64, 1<<20)
	w := s.NewWriter()
	for _, a := range []uint64{0x1000, 0x2000, 0x3000} {
		require.NoError(t, w.AddElement(a, matchEntry(1)))
	}
	w.Terminate()

	cleared := s.DeleteInRange(0x2000, 0x1000, false)
	assert.Equal(t, 1, cleared)
	assert.Equal(t, []uint64{0x1000, 0x3000}, addrs(s))

	cleared = s.DeleteInRange(0x1000, 0x10, true)
	assert.Equal(t, 1, cleared)
	assert.Equal(t, []uint64{0x1000}, addrs(s))
}

// An in-place rewrite through a writer must never disturb the part of
// the arena the reader has not visited yet.
func TestRewriteCompactsInPlace(t *testing.T) {
	s := Allocate(64, 1<<20)
	w := s.NewWriter()
	for i := uint64(0); i < 64; i++ {
		require.NoError(t, w.AddElement(0x1000+i, matchEntry(byte(i))))
	}
	require.NoError(t, w.AddElement(0x9000, matchEntry(0xaa)))
	w.Terminate()
	sizeBefore := s.Size()

	// keep every fourth entry
	rw := s.NewWriter()
	for it := s.Iter(); it.Valid(); it.Next() {
		e := it.Entry()
		if e.Flags.MaxWidthBytes() == 0 {
			continue
		}
		if it.Address() != 0x9000 && it.Address()%4 != 0 {
			continue
		}
		require.NoError(t, rw.AddElement(it.Address(), e))
	}
	rw.Terminate()

	assert.Less(t, s.Size(), sizeBefore)
	want := []uint64{}
	for i := uint64(0); i < 64; i++ {
		if (0x1000+i)%4 == 0 {
			want = append(want, 0x1000+i)
		}
	}
	want = append(want, 0x9000)
	assert.Equal(t, want, addrs(s))
}
