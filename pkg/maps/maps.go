package maps

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Read parses /proc/<pid>/maps and returns the writable regions
// admitted by the scan level, ids assigned in address order.
//
// ELF mappings are tracked as sequences: the first executable mapping
// of a file opens a code sequence, and subsequent mappings of the same
// file (or anonymous mappings directly following it) belong to the
// same load unit, sharing its load address. Mappings of the target
// executable are typed exe, other load units code.
func Read(pid int, level ScanLevel) ([]*Region, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	exePath, _ := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))

	var (
		regions     []*Region
		codeRegions int
		exeRegions  int
		prevEnd     uint64
		loadAddr    uint64
		exeLoad     uint64
		isExe       bool
		binName     string
	)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		r, ok := parseLine(sc.Text())
		if !ok {
			continue
		}

		// track ELF load unit boundaries
		if codeRegions > 0 {
			if r.Perms.Exec || (r.Filename != binName && (r.Filename != "" || r.Start != prevEnd)) ||
				codeRegions >= 4 {
				codeRegions = 0
				isExe = false
				if exeRegions > 1 {
					exeRegions = 0
				}
			} else {
				codeRegions++
				if isExe {
					exeRegions++
				}
			}
		}
		if codeRegions == 0 {
			if r.Perms.Exec && r.Filename != "" {
				codeRegions = 1
				if r.Filename == exePath {
					exeRegions = 1
					exeLoad = r.Start
					isExe = true
				}
				binName = r.Filename
			} else if exeRegions == 1 && r.Filename != "" && r.Filename == exePath {
				exeRegions++
				codeRegions = exeRegions
				exeLoad = r.Start
				isExe = true
				binName = r.Filename
			}
			if exeRegions < 2 {
				loadAddr = r.Start
			} else {
				loadAddr = exeLoad
			}
		}
		prevEnd = r.Start + r.Size

		if !r.Perms.Read || r.Size == 0 {
			continue
		}

		switch {
		case isExe:
			r.Type = Exe
		case codeRegions > 0:
			r.Type = Code
		case r.Filename == "[heap]":
			r.Type = Heap
		case r.Filename == "[stack]":
			r.Type = Stack
		}
		r.LoadAddr = loadAddr

		if !useful(r, level, exePath) {
			continue
		}
		r.ID = len(regions)
		regions = append(regions, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return regions, nil
}

func useful(r *Region, level ScanLevel, exePath string) bool {
	if !r.Perms.Write {
		return false
	}
	switch level {
	case LevelAll:
		return true
	case LevelHeapStackExeBss:
		if r.Filename == "" {
			return true
		}
		fallthrough
	default:
		return r.Type == Heap || r.Type == Stack || r.Type == Exe ||
			r.Filename == exePath
	}
}

// parseLine parses one maps line:
// 55e8..-55e9.. rw-p 00000000 08:05 1234  /usr/bin/foo
func parseLine(line string) (*Region, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return nil, false
	}
	bounds := strings.SplitN(fields[0], "-", 2)
	if len(bounds) != 2 {
		return nil, false
	}
	start, err := strconv.ParseUint(bounds[0], 16, 64)
	if err != nil {
		return nil, false
	}
	end, err := strconv.ParseUint(bounds[1], 16, 64)
	if err != nil || end < start {
		return nil, false
	}
	perms := fields[1]
	r := &Region{
		Start: start,
		Size:  end - start,
		Perms: Perms{
			Read:   strings.Contains(perms, "r"),
			Write:  strings.Contains(perms, "w"),
			Exec:   strings.Contains(perms, "x"),
			Shared: strings.Contains(perms, "s"),
		},
	}
	if len(fields) >= 6 {
		r.Filename = strings.Join(fields[5:], " ")
	}
	return r, true
}
