package target

import (
	"fmt"
	"sort"

	"ferret/pkg/maps"
)

// FakeProcess is an in-memory target for tests: a set of writable
// segments standing in for a live process.
type FakeProcess struct {
	pid      int
	segments []*segment
	attached int
	open     bool
}

type segment struct {
	region maps.Region
	data   []byte
}

// NewFake builds an empty fake target.
func NewFake(pid int) *FakeProcess {
	return &FakeProcess{pid: pid}
}

// AddRegion registers a segment at start with the given contents and
// region type; ids are reassigned in address order after every call.
func (p *FakeProcess) AddRegion(start uint64, data []byte, typ maps.RegionType) {
	p.segments = append(p.segments, &segment{
		region: maps.Region{
			Start:    start,
			Size:     uint64(len(data)),
			LoadAddr: start,
			Perms:    maps.Perms{Read: true, Write: true},
			Type:     typ,
		},
		data: data,
	})
	sort.Slice(p.segments, func(i, j int) bool {
		return p.segments[i].region.Start < p.segments[j].region.Start
	})
	for i, s := range p.segments {
		s.region.ID = i
	}
}

// Poke rewrites fake memory directly, bypassing the attach discipline,
// the way a running target would.
func (p *FakeProcess) Poke(addr uint64, data []byte) {
	s := p.find(addr)
	if s == nil {
		panic(fmt.Sprintf("poke outside fake memory: %#x", addr))
	}
	copy(s.data[addr-s.region.Start:], data)
}

// AttachCount returns how many attach/detach pairs completed; tests
// use it to check the bracketing discipline.
func (p *FakeProcess) AttachCount() int { return p.attached }

func (p *FakeProcess) find(addr uint64) *segment {
	for _, s := range p.segments {
		if s.region.Contains(addr) {
			return s
		}
	}
	return nil
}

func (p *FakeProcess) Pid() int { return p.pid }

func (p *FakeProcess) Attach() error {
	p.open = true
	return nil
}

func (p *FakeProcess) Detach() error {
	if p.open {
		p.open = false
		p.attached++
	}
	return nil
}

func (p *FakeProcess) ReadMemory(buf []byte, addr uint64) (int, error) {
	s := p.find(addr)
	if s == nil {
		return 0, fmt.Errorf("read outside fake memory: %#x", addr)
	}
	off := addr - s.region.Start
	n := copy(buf, s.data[off:])
	if n < len(buf) {
		return n, fmt.Errorf("short read at %#x: %d of %d", addr, n, len(buf))
	}
	return n, nil
}

func (p *FakeProcess) WriteMemory(addr uint64, data []byte) (int, error) {
	s := p.find(addr)
	if s == nil {
		return 0, fmt.Errorf("write outside fake memory: %#x", addr)
	}
	off := addr - s.region.Start
	n := copy(s.data[off:], data)
	if n < len(data) {
		return n, fmt.Errorf("short write at %#x: %d of %d", addr, n, len(data))
	}
	return n, nil
}

func (p *FakeProcess) Peek(addr uint64) ([]byte, error) {
	s := p.find(addr)
	if s == nil {
		return nil, fmt.Errorf("peek outside fake memory: %#x", addr)
	}
	off := addr - s.region.Start
	n := uint64(8)
	if rest := s.region.Size - off; rest < n {
		n = rest
	}
	out := make([]byte, n)
	copy(out, s.data[off:])
	return out, nil
}

func (p *FakeProcess) Regions(level maps.ScanLevel) ([]*maps.Region, error) {
	out := make([]*maps.Region, 0, len(p.segments))
	for _, s := range p.segments {
		r := s.region
		out = append(out, &r)
	}
	return out, nil
}
