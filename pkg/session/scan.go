package session

import (
	"errors"
	"fmt"
	"strings"

	"ferret/pkg/scan"
	"ferret/pkg/value"
)

// HandleSnapshot saves the whole eligible address space as candidates
// so pure changed/increased workflows can start without a value.
func (s *Session) HandleSnapshot() error {
	if err := s.requireTarget(); err != nil {
		return err
	}
	s.matches = nil
	s.num = 0
	return s.firstScan(scan.MatchAny, nil)
}

// HandleUpdate re-reads every match, refreshing the stored old values
// without narrowing.
func (s *Session) HandleUpdate() error {
	if err := s.requireTarget(); err != nil {
		return err
	}
	if s.matches == nil {
		return errors.New("cannot use that command without matches")
	}
	return s.nextScan(scan.MatchAny, nil)
}

// HandleDecinc handles the comparison shorthands. With an operand they
// compare against the user value; without one they compare against the
// previous pass.
func (s *Session) HandleDecinc(op string, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("too many values specified, see `help %s`", op)
	}
	var uv *value.UserValue
	if len(args) == 1 {
		parsed, err := value.ParseNumber(args[0])
		if err != nil {
			return fmt.Errorf("bad value specified, see `help %s`", op)
		}
		uv = parsed
	}

	bare := uv == nil
	var mt scan.MatchType
	switch op {
	case "=":
		mt = pick(bare, scan.MatchNotChanged, scan.MatchEqualTo)
	case "!=":
		mt = pick(bare, scan.MatchChanged, scan.MatchNotEqualTo)
	case "<":
		mt = pick(bare, scan.MatchDecreased, scan.MatchLessThan)
	case ">":
		mt = pick(bare, scan.MatchIncreased, scan.MatchGreaterThan)
	case "+":
		mt = pick(bare, scan.MatchIncreased, scan.MatchIncreasedBy)
	case "-":
		mt = pick(bare, scan.MatchDecreased, scan.MatchDecreasedBy)
	}
	return s.scanPass(mt, uv)
}

// HandleString scans for a byte-exact string; the raw tail after the
// `"` prefix, untokenized.
func (s *Session) HandleString(raw string) error {
	if s.Options.ScanDataType != scan.String {
		return errors.New("scan_data_type is not string, see `help option`")
	}
	uv, err := value.ParseString(raw)
	if err != nil {
		return err
	}
	return s.scanPass(scan.MatchEqualTo, uv)
}

// HandleDefault treats an unrecognized command as a scan literal: a
// number or range under the numeric types, a wildcard byte sequence
// under bytearray.
func (s *Session) HandleDefault(argv []string) error {
	var (
		uv  *value.UserValue
		mt  = scan.MatchEqualTo
		err error
	)
	switch s.Options.ScanDataType {
	case scan.ByteArray:
		uv, err = value.ParseBytearray(argv)
		if err != nil {
			return fmt.Errorf("unable to parse command `%s`: %v", strings.Join(argv, " "), err)
		}
	case scan.String:
		return fmt.Errorf("unable to parse command `%s`\n"+
			"If you want to scan for a string, use command `\"`.", strings.Join(argv, " "))
	default:
		if len(argv) != 1 {
			return errors.New("unknown command")
		}
		if lo, hi, ok := strings.Cut(argv[0], ".."); ok {
			uv, err = value.ParseRange(lo, hi)
			mt = scan.MatchRange
		} else {
			uv, err = value.ParseNumber(argv[0])
		}
		if err != nil {
			return fmt.Errorf("unable to parse number `%s`", argv[0])
		}
	}
	return s.scanPass(mt, uv)
}

// scanPass routes to a first scan or a narrowing pass depending on
// whether a store exists, enforcing the first-scan restriction.
func (s *Session) scanPass(mt scan.MatchType, uv *value.UserValue) error {
	if err := s.requireTarget(); err != nil {
		return err
	}
	if s.matches != nil {
		if err := s.nextScan(mt, uv); err != nil {
			return err
		}
	} else {
		if mt.NeedsOldValue() {
			return errors.New("cannot use that search without matches")
		}
		if err := s.firstScan(mt, uv); err != nil {
			return err
		}
	}
	if s.num == 1 {
		s.Infof("match identified, use \"set\" to modify value.")
		s.Infof("enter \"help\" for other commands.")
	}
	return nil
}

func (s *Session) firstScan(mt scan.MatchType, uv *value.UserValue) error {
	s.Cancel.Reset()
	store, res, err := s.driver().FirstScan(s.regions, s.Options.ScanDataType, mt, uv, s.compare())
	if err != nil {
		return fmt.Errorf("failed to search target address space: %w", err)
	}
	s.matches = store
	s.num = res.Matches
	if res.Interrupted {
		s.Infof("scan interrupted, %d matches so far.", s.num)
	} else {
		s.Infof("we currently have %d matches.", s.num)
	}
	return nil
}

func (s *Session) nextScan(mt scan.MatchType, uv *value.UserValue) error {
	s.Cancel.Reset()
	res, err := s.driver().NextScan(s.matches, s.Options.ScanDataType, mt, uv, s.compare())
	if err != nil {
		return fmt.Errorf("failed to search target address space: %w", err)
	}
	s.num = res.Matches
	if res.Interrupted {
		s.Infof("scan interrupted, %d matches so far.", s.num)
	} else {
		s.Infof("we currently have %d matches.", s.num)
	}
	return nil
}

func pick(bare bool, ifBare, ifValue scan.MatchType) scan.MatchType {
	if bare {
		return ifBare
	}
	return ifValue
}
