package maps

import "fmt"

// ScanLevel selects which mapped regions a first scan walks.
type ScanLevel int

const (
	// LevelHeapStackExe scans the heap, the stack and the mappings of
	// the executable itself.
	LevelHeapStackExe ScanLevel = 1
	// LevelHeapStackExeBss additionally scans anonymous writable
	// mappings (the usual home of .bss data).
	LevelHeapStackExeBss ScanLevel = 2
	// LevelAll scans every readable writable mapping.
	LevelAll ScanLevel = 3
)

// RegionType classifies a mapping for display and region filtering.
type RegionType int

const (
	Misc RegionType = iota
	Exe
	Code
	Heap
	Stack
)

var regionTypeNames = [...]string{"misc", "exe", "code", "heap", "stack"}

func (t RegionType) String() string {
	if int(t) < len(regionTypeNames) {
		return regionTypeNames[t]
	}
	return "??"
}

// Perms is the permission triple of a mapping plus its share mode.
type Perms struct {
	Read   bool
	Write  bool
	Exec   bool
	Shared bool
}

func (p Perms) String() string {
	b := [3]byte{'-', '-', '-'}
	if p.Read {
		b[0] = 'r'
	}
	if p.Write {
		b[1] = 'w'
	}
	if p.Exec {
		b[2] = 'x'
	}
	return string(b[:])
}

// Region is one mapped range of the target's address space.
type Region struct {
	ID       int
	Start    uint64
	Size     uint64
	LoadAddr uint64
	Perms    Perms
	Type     RegionType
	Filename string
}

// Contains reports whether addr falls inside the region.
func (r *Region) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.Start+r.Size
}

func (r *Region) String() string {
	name := r.Filename
	if name == "" {
		name = "unassociated"
	}
	return fmt.Sprintf("%#x-%#x %s %s %s", r.Start, r.Start+r.Size, r.Perms, r.Type, name)
}
