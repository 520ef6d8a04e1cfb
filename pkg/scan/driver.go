package scan

import (
	"errors"
	"fmt"
	"sync/atomic"

	"ferret/pkg/logflags"
	"ferret/pkg/maps"
	"ferret/pkg/swath"
	"ferret/pkg/target"
	"ferret/pkg/value"
)

// Cancel is the flag a signal handler sets to abort a long pass. The
// driver polls it at swath and region boundaries only.
type Cancel struct {
	flag atomic.Bool
}

func (c *Cancel) Set()            { c.flag.Store(true) }
func (c *Cancel) Reset()          { c.flag.Store(false) }
func (c *Cancel) Requested() bool { return c.flag.Load() }

// ErrFirstScanOnly rejects old-value predicates on an empty store.
var ErrFirstScanOnly = errors.New("match type requires a previous scan")

const initialStoreBytes = 512 * 1024

// Driver orchestrates scan passes against a target.
type Driver struct {
	Target target.Process
	Cancel *Cancel
	Log    logflags.Logger
}

// Result of a pass. Interrupted passes are not errors; the store is
// valid and reflects the work done before cancellation.
type Result struct {
	Matches     int
	Interrupted bool
}

// FirstScan walks regions and populates a fresh store with every
// candidate the routine admits. The store is sized up front from the
// total address space so growth has a hard ceiling.
func (d *Driver) FirstScan(regions []*maps.Region, dt DataType, mt MatchType, uv *value.UserValue, cmp Compare) (*swath.Store, Result, error) {
	if mt.NeedsOldValue() {
		return nil, Result{}, ErrFirstScanOnly
	}
	routine, err := GetRoutine(dt, mt, cmp)
	if err != nil {
		return nil, Result{}, err
	}

	var total uint64
	for _, r := range regions {
		total += r.Size
	}
	maxNeeded := int(total)*swath.EntrySize + (len(regions)+1)*swath.HeaderSize
	store := swath.Allocate(initialStoreBytes, maxNeeded)
	w := store.NewWriter()

	if err := d.Target.Attach(); err != nil {
		return nil, Result{}, err
	}
	defer d.Target.Detach()

	var res Result
	for _, region := range regions {
		if d.Cancel.Requested() {
			res.Interrupted = true
			break
		}
		buf := make([]byte, region.Size)
		if n, err := d.Target.ReadMemory(buf, region.Start); err != nil {
			d.Log.Debugf("region %d unreadable at %#x: %v", region.ID, region.Start, err)
			if n == 0 {
				continue
			}
			buf = buf[:n]
		}
		if err := d.scanBuffer(w, routine, region.Start, buf, uv); err != nil {
			w.Terminate()
			return nil, Result{}, err
		}
	}
	w.Terminate()
	res.Matches = store.NumMatches()
	d.Log.Debugf("first scan: %d matches, %d/%d arena bytes",
		res.Matches, store.Size(), store.BytesAllocated())
	return store, res, nil
}

// scanBuffer evaluates every byte offset of one region buffer.
func (d *Driver) scanBuffer(w *swath.Writer, routine Routine, base uint64, buf []byte, uv *value.UserValue) error {
	pending := 0 // continuation bytes of the previous match still to record
	for i := range buf {
		cur := value.Value{
			Flags: value.Flags{Widths: value.WidthsFitting(len(buf) - i)},
			Bytes: buf[i:],
		}
		var out value.Flags
		matched := routine(nil, &cur, uv, &out)
		if !matched && pending == 0 {
			continue
		}
		e := swath.Entry{OldValue: buf[i]}
		if pending > 0 {
			pending--
		}
		if matched {
			e.Flags = out
			if extra := out.MaxWidthBytes() - 1; extra > pending {
				pending = extra
			}
		}
		if err := w.AddElement(base+uint64(i), e); err != nil {
			return fmt.Errorf("recording match at %#x: %w", base+uint64(i), err)
		}
	}
	return nil
}

// NextScan narrows an existing store in place: a read cursor walks the
// old arena while the writer compacts survivors through the same
// buffer. Stored old values are refreshed with the bytes just read.
func (d *Driver) NextScan(store *swath.Store, dt DataType, mt MatchType, uv *value.UserValue, cmp Compare) (Result, error) {
	routine, err := GetRoutine(dt, mt, cmp)
	if err != nil {
		return Result{}, err
	}

	if err := d.Target.Attach(); err != nil {
		return Result{}, err
	}
	defer d.Target.Detach()

	w := store.NewWriter()
	var res Result
	pending := 0
	var tail []byte // fresh bytes of the match being continued
	nextAddr := uint64(0)

	it := store.Iter()
	for it.Valid() {
		if d.Cancel.Requested() {
			res.Interrupted = true
			break
		}
		crossed := false
		for it.Valid() && !crossed {
			addr := it.Address()
			e := it.Entry()

			if e.Flags.MaxWidthBytes() == 0 {
				crossed = it.Next()
				// padding or a continuation byte of a previous match
				if pending > 0 && addr == nextAddr {
					b := byte(0)
					if len(tail) > 0 {
						b, tail = tail[0], tail[1:]
					}
					if err := w.AddElement(addr, swath.Entry{OldValue: b}); err != nil {
						w.Terminate()
						return Result{}, err
					}
					pending--
					nextAddr++
				}
				continue
			}
			pending, tail = 0, nil

			need := e.Flags.MaxWidthBytes()
			if uv != nil {
				if l := int(uv.Flags.BytearrayLength); l > need {
					need = l
				}
				if l := int(uv.Flags.StringLength); l > need {
					need = l
				}
			}
			old := it.OldValue(need)
			crossed = it.Next()

			fresh, err := d.Target.Peek(addr)
			if err != nil || len(fresh) == 0 {
				// vanished mapping: the candidate is gone
				continue
			}
			cur := value.Value{
				Flags: value.Flags{
					Widths:          value.WidthsFitting(len(fresh)),
					BytearrayLength: e.Flags.BytearrayLength,
					StringLength:    e.Flags.StringLength,
				},
				Bytes: fresh,
			}
			if need > len(fresh) {
				// aggregate matches may span more than a peek
				wide := make([]byte, need)
				if _, err := d.Target.ReadMemory(wide, addr); err != nil {
					continue
				}
				cur.Bytes = wide
			}

			var out value.Flags
			if !routine(&old, &cur, uv, &out) || out.MaxWidthBytes() == 0 {
				continue
			}
			if err := w.AddElement(addr, swath.Entry{OldValue: cur.Bytes[0], Flags: out}); err != nil {
				w.Terminate()
				return Result{}, err
			}
			if extra := out.MaxWidthBytes() - 1; extra > 0 {
				pending = extra
				tail = append([]byte(nil), cur.Bytes[1:]...)
				nextAddr = addr + 1
			}
		}
	}
	w.Terminate()
	res.Matches = store.NumMatches()
	d.Log.Debugf("narrow scan: %d matches, %d arena bytes", res.Matches, store.Size())
	return res, nil
}
