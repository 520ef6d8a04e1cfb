package swath

import "fmt"

// Writer appends entries to the arena in ascending address order. It
// is also the write cursor of a narrowing pass: it rewrites the same
// buffer a reader is walking, and because every kept entry corresponds
// to an already-read entry at the same or an earlier offset, the write
// offset never passes the read offset.
type Writer struct {
	s    *Store
	used int
	cur  int // offset of the swath being extended, -1 before the first
}

// NewWriter starts a write pass at the beginning of the arena.
func (s *Store) NewWriter() *Writer {
	return &Writer{s: s, cur: -1}
}

// lastAddress returns the remote address of the last entry in the
// current swath.
func (w *Writer) lastAddress() (uint64, int) {
	base, count := w.s.headerAt(w.cur)
	return base + uint64(count-1), count
}

// AddElement appends an entry covering remoteAddr. remoteAddr must be
// strictly greater than the last address written. Starting a new swath
// costs a header; when the gap to the previous entry is cheaper to
// bridge with null entries, the swath is padded instead.
func (w *Writer) AddElement(remoteAddr uint64, e Entry) error {
	if w.cur < 0 {
		if err := w.s.reach(w.used + HeaderSize + EntrySize); err != nil {
			return err
		}
		w.cur = w.used
		w.s.putHeader(w.cur, remoteAddr, 1)
		w.s.putEntry(w.cur+HeaderSize, e)
		w.used += HeaderSize + EntrySize
		return nil
	}

	last, count := w.lastAddress()
	if remoteAddr <= last {
		return fmt.Errorf("address %#x not above last written %#x", remoteAddr, last)
	}
	gap := int(remoteAddr - last)

	if gap*EntrySize >= HeaderSize+EntrySize {
		// a fresh swath takes less memory than padding the gap
		if err := w.s.reach(w.used + HeaderSize + EntrySize); err != nil {
			return err
		}
		w.cur = w.used
		w.s.putHeader(w.cur, remoteAddr, 1)
		w.s.putEntry(w.cur+HeaderSize, e)
		w.used += HeaderSize + EntrySize
		return nil
	}

	if err := w.s.reach(w.used + gap*EntrySize); err != nil {
		return err
	}
	base, _ := w.s.headerAt(w.cur)
	for i := 1; i < gap; i++ {
		w.s.putEntry(w.cur+HeaderSize+(count+i-1)*EntrySize, Entry{})
	}
	w.s.putEntry(w.cur+HeaderSize+(count+gap-1)*EntrySize, e)
	w.s.putHeader(w.cur, base, count+gap)
	w.used += gap * EntrySize
	return nil
}

// Terminate ends the pass: the arena's live length becomes whatever
// was written, discarding any stale suffix of a narrowing pass. Safe
// to call after a cancelled or failed pass; the store stays
// consistent.
func (w *Writer) Terminate() {
	w.s.used = w.used
}
