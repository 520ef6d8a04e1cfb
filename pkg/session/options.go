package session

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"ferret/pkg/maps"
	"ferret/pkg/scan"
)

const (
	versionLine = "ferret, an interactive memory scanner for running processes"

	copyingText = `ferret is free software; you may redistribute it under the terms of the
GNU Lesser General Public License, version 3 or (at your option) any
later version.`

	warrantyText = `ferret is distributed WITHOUT ANY WARRANTY; without even the implied
warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.`
)

// hostBigEndian is false on every supported platform (linux amd64 and
// arm64); value decoding assumes it.
const hostBigEndian = false

// HandleOption changes one user-visible setting.
func (s *Session) HandleOption(args []string) error {
	if len(args) != 2 {
		return errors.New("bad arguments, see `help option`")
	}
	name, val := strings.ToLower(args[0]), strings.ToLower(args[1])
	switch name {
	case "scan_data_type":
		dt, ok := scan.ParseDataType(val)
		if !ok {
			return errors.New("bad value for scan_data_type, see `help option`")
		}
		s.Options.ScanDataType = dt
	case "region_scan_level":
		switch val {
		case "1":
			s.Options.RegionScanLevel = maps.LevelHeapStackExe
		case "2":
			s.Options.RegionScanLevel = maps.LevelHeapStackExeBss
		case "3":
			s.Options.RegionScanLevel = maps.LevelAll
		default:
			return errors.New("bad value for region_scan_level, see `help option`")
		}
	case "detect_reverse_change":
		b, err := parseBoolOption(val)
		if err != nil {
			return errors.New("bad value for detect_reverse_change, see `help option`")
		}
		s.Options.DetectReverseChange = b
	case "dump_with_ascii":
		b, err := parseBoolOption(val)
		if err != nil {
			return errors.New("bad value for dump_with_ascii, see `help option`")
		}
		s.Options.DumpWithASCII = b
	case "endianness":
		switch val {
		case "0":
			// data is host endian, never swap
			s.Options.ReverseEndianness = false
		case "1":
			// data is little endian, swap on big endian hosts
			s.Options.ReverseEndianness = hostBigEndian
		case "2":
			// data is big endian, swap on little endian hosts
			s.Options.ReverseEndianness = !hostBigEndian
		default:
			return errors.New("bad value for endianness, see `help option`")
		}
	default:
		return errors.New("unknown option specified, see `help option`")
	}
	return nil
}

func parseBoolOption(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, errors.New("bad boolean")
}

// HandleShell runs the argument through the system shell.
func (s *Session) HandleShell(args []string) error {
	if len(args) == 0 {
		return errors.New("shell command requires an argument, see `help shell`")
	}
	cmd := exec.Command("sh", "-c", strings.Join(args, " "))
	cmd.Stdout = s.out
	cmd.Stderr = s.msg
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command was not executed: %w", err)
	}
	return nil
}

// HandleShow prints version, copying or warranty information.
func (s *Session) HandleShow(args []string) error {
	if len(args) == 0 {
		return errors.New("expecting an argument")
	}
	switch args[0] {
	case "version":
		fmt.Fprintln(s.msg, versionLine)
	case "copying":
		fmt.Fprintln(s.out, copyingText)
	case "warranty":
		fmt.Fprintln(s.out, warrantyText)
	default:
		return fmt.Errorf("unrecognized show command `%s`", args[0])
	}
	return nil
}
