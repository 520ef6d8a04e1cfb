package swath

import (
	"encoding/binary"
	"errors"

	"ferret/pkg/value"
)

// The arena is a single byte buffer holding swaths back to back. A
// swath is a 16 byte header (remote base address, entry count)
// followed by one 8 byte entry per covered target byte:
//
//	+0 old value   (1 byte)
//	+2 width mask  (uint16)
//	+4 bytearray length (uint16)
//	+6 string length    (uint16)
//
// The end of the live data is tracked by an explicit length instead of
// the in-band null swath of the original layout, and cursors are plain
// buffer offsets, so reallocation never invalidates them.
const (
	HeaderSize = 16
	EntrySize  = 8
)

// ErrStoreFull is returned when growth would exceed the high-water
// bound the store was allocated with.
var ErrStoreFull = errors.New("match store cannot grow further")

// Entry is the recorded state of one target byte.
type Entry struct {
	OldValue byte
	Flags    value.Flags
}

// Store is the compact container of match state.
type Store struct {
	buf       []byte // len(buf) == bytesAllocated
	used      int
	maxNeeded int
}

// Allocate reserves an empty store. maxNeeded is the upper bound
// derived from the total address space about to be scanned; growth is
// clamped to it.
func Allocate(initial, maxNeeded int) *Store {
	if initial < HeaderSize+EntrySize {
		initial = HeaderSize + EntrySize
	}
	if initial > maxNeeded {
		initial = maxNeeded
	}
	return &Store{
		buf:       make([]byte, initial),
		maxNeeded: maxNeeded,
	}
}

// BytesAllocated returns the current capacity of the arena in bytes.
func (s *Store) BytesAllocated() int { return len(s.buf) }

// MaxNeededBytes returns the growth bound.
func (s *Store) MaxNeededBytes() int { return s.maxNeeded }

// Size returns the live arena length in bytes.
func (s *Store) Size() int { return s.used }

// reach grows the arena until off bytes fit, doubling the allocation
// and clamping to maxNeeded.
func (s *Store) reach(off int) error {
	if off <= len(s.buf) {
		return nil
	}
	if off > s.maxNeeded {
		return ErrStoreFull
	}
	alloc := len(s.buf)
	for alloc < off {
		alloc *= 2
	}
	if alloc > s.maxNeeded {
		alloc = s.maxNeeded
	}
	next := make([]byte, alloc)
	copy(next, s.buf)
	s.buf = next
	return nil
}

func (s *Store) headerAt(off int) (base uint64, count int) {
	base = binary.LittleEndian.Uint64(s.buf[off:])
	count = int(binary.LittleEndian.Uint64(s.buf[off+8:]))
	return
}

func (s *Store) putHeader(off int, base uint64, count int) {
	binary.LittleEndian.PutUint64(s.buf[off:], base)
	binary.LittleEndian.PutUint64(s.buf[off+8:], uint64(count))
}

func (s *Store) entryAt(off int) Entry {
	return Entry{
		OldValue: s.buf[off],
		Flags: value.Flags{
			Widths:          value.Width(binary.LittleEndian.Uint16(s.buf[off+2:])),
			BytearrayLength: binary.LittleEndian.Uint16(s.buf[off+4:]),
			StringLength:    binary.LittleEndian.Uint16(s.buf[off+6:]),
		},
	}
}

func (s *Store) putEntry(off int, e Entry) {
	s.buf[off] = e.OldValue
	s.buf[off+1] = 0
	binary.LittleEndian.PutUint16(s.buf[off+2:], uint16(e.Flags.Widths))
	binary.LittleEndian.PutUint16(s.buf[off+4:], e.Flags.BytearrayLength)
	binary.LittleEndian.PutUint16(s.buf[off+6:], e.Flags.StringLength)
}

// Location addresses one entry as (swath offset, index within swath).
type Location struct {
	s   *Store
	off int
	idx int
}

// Valid reports whether the location refers to an entry.
func (l Location) Valid() bool { return l.s != nil }

// Address returns the entry's remote address.
func (l Location) Address() uint64 {
	base, _ := l.s.headerAt(l.off)
	return base + uint64(l.idx)
}

// Entry returns the recorded state.
func (l Location) Entry() Entry {
	return l.s.entryAt(l.off + HeaderSize + l.idx*EntrySize)
}

// SetEntry overwrites the recorded state.
func (l Location) SetEntry(e Entry) {
	l.s.putEntry(l.off+HeaderSize+l.idx*EntrySize, e)
}

// ClearFlags marks the entry as no longer a match.
func (l Location) ClearFlags() {
	e := l.Entry()
	e.Flags.Zero()
	l.SetEntry(e)
}

// Value reconstructs the old value at the location: up to n
// consecutive old bytes within the swath, zero beyond its end, flagged
// with the entry's match info.
func (l Location) Value(n int) value.Value {
	if n <= 0 {
		n = 8
	}
	e := l.Entry()
	_, count := l.s.headerAt(l.off)
	raw := make([]byte, n)
	for i := 0; i < n && l.idx+i < count; i++ {
		raw[i] = l.s.entryAt(l.off + HeaderSize + (l.idx+i)*EntrySize).OldValue
	}
	return value.Value{Flags: e.Flags, Bytes: raw}
}

// Iter walks the arena entry by entry in ascending address order. The
// swath header is copied into the iterator on entry: a writer
// compacting the same buffer may overwrite already-consumed bytes,
// headers included, so the header must never be re-read from the
// arena mid-swath.
type Iter struct {
	s     *Store
	end   int
	off   int
	base  uint64
	count int
	idx   int
}

// Iter returns an iterator over the current live data. The snapshot
// end is captured up front so a concurrent rewrite does not disturb
// the walk.
func (s *Store) Iter() *Iter {
	it := &Iter{s: s, end: s.used}
	if it.off < it.end {
		it.base, it.count = s.headerAt(it.off)
	}
	return it
}

// Valid reports whether the iterator references an entry.
func (it *Iter) Valid() bool { return it.off < it.end }

// Location returns the current position. Only valid while no rewrite
// of the same store is in flight.
func (it *Iter) Location() Location { return Location{s: it.s, off: it.off, idx: it.idx} }

// Address returns the current entry's remote address.
func (it *Iter) Address() uint64 {
	return it.base + uint64(it.idx)
}

// Entry returns the current entry.
func (it *Iter) Entry() Entry {
	return it.s.entryAt(it.off + HeaderSize + it.idx*EntrySize)
}

// OldValue reconstructs the old value at the current entry: up to n
// consecutive old bytes within the swath, zero beyond its end. Unlike
// Location.Value it relies only on the cached header and bytes at or
// after the current entry, so it is safe mid-rewrite.
func (it *Iter) OldValue(n int) value.Value {
	if n <= 0 {
		n = 8
	}
	raw := make([]byte, n)
	for i := 0; i < n && it.idx+i < it.count; i++ {
		raw[i] = it.s.entryAt(it.off + HeaderSize + (it.idx+i)*EntrySize).OldValue
	}
	return value.Value{Flags: it.Entry().Flags, Bytes: raw}
}

// Next advances to the following entry, stepping over swath headers.
// It reports whether a swath boundary was crossed.
func (it *Iter) Next() bool {
	it.idx++
	if it.idx < it.count {
		return false
	}
	it.off += HeaderSize + it.count*EntrySize
	it.idx = 0
	it.base, it.count = 0, 0
	if it.off < it.end {
		it.base, it.count = it.s.headerAt(it.off)
	}
	return true
}

// NumMatches counts entries whose flags still admit at least one
// interpretation.
func (s *Store) NumMatches() int {
	n := 0
	for it := s.Iter(); it.Valid(); it.Next() {
		if it.Entry().Flags.MaxWidthBytes() > 0 {
			n++
		}
	}
	return n
}

// NthMatch returns the location of the n-th (0-indexed) entry with a
// non-zero max width.
func (s *Store) NthMatch(n int) (Location, bool) {
	seen := 0
	for it := s.Iter(); it.Valid(); it.Next() {
		if it.Entry().Flags.MaxWidthBytes() > 0 {
			if seen == n {
				return it.Location(), true
			}
			seen++
		}
	}
	return Location{}, false
}

// DeleteInRange clears the flags of every entry whose address lies
// inside [start, start+size) when keepInside is false, or outside it
// when keepInside is true. It returns the number of matches cleared.
func (s *Store) DeleteInRange(start, size uint64, keepInside bool) int {
	cleared := 0
	for it := s.Iter(); it.Valid(); it.Next() {
		addr := it.Address()
		inside := addr >= start && addr < start+size
		if inside == keepInside {
			continue
		}
		loc := it.Location()
		if loc.Entry().Flags.MaxWidthBytes() > 0 {
			cleared++
		}
		loc.ClearFlags()
	}
	return cleared
}
