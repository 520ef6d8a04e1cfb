package session

import (
	"errors"
	"fmt"
	"io"
	"os"

	"ferret/pkg/logflags"
	"ferret/pkg/maps"
	"ferret/pkg/scan"
	"ferret/pkg/swath"
	"ferret/pkg/target"
)

// Options are the user-tunable settings recognised by `option`.
type Options struct {
	ScanDataType        scan.DataType
	RegionScanLevel     maps.ScanLevel
	DetectReverseChange bool
	DumpWithASCII       bool
	ReverseEndianness   bool
	// Backend strips decoration that confuses front-ends parsing the
	// output: dump lines carry no leading address. The interactive
	// prompt is not affected.
	Backend bool
}

// DefaultOptions matches a fresh interactive session.
func DefaultOptions() Options {
	return Options{
		ScanDataType:    scan.AnyInteger,
		RegionScanLevel: maps.LevelHeapStackExeBss,
	}
}

var (
	errNoTarget  = errors.New("no target set, use `pid` first")
	errNoMatches = errors.New("no matches are known")
)

// Session owns one scanning conversation with one target: the region
// list, the match store, the options, and the cancellation flag the
// SIGINT guard sets.
type Session struct {
	Options Options
	Cancel  *scan.Cancel

	target  target.Process
	regions []*maps.Region
	matches *swath.Store
	num     int

	// attach builds target I/O for a pid; tests swap in a fake.
	attach func(pid int) target.Process

	out  io.Writer
	msg  io.Writer
	log  logflags.Logger
	exit bool
}

// New builds a detached session writing command output to out and
// messages to msg.
func New(out, msg io.Writer, log logflags.Logger) *Session {
	if out == nil {
		out = os.Stdout
	}
	if msg == nil {
		msg = os.Stderr
	}
	return &Session{
		Options: DefaultOptions(),
		Cancel:  &scan.Cancel{},
		attach:  func(pid int) target.Process { return target.New(pid) },
		out:     out,
		msg:     msg,
		log:     log,
	}
}

// NewWithTarget builds a session bound to a pre-built target, used by
// tests and the one-shot subcommands.
func NewWithTarget(t target.Process, out, msg io.Writer, log logflags.Logger) *Session {
	s := New(out, msg, log)
	s.attach = func(int) target.Process { return t }
	s.target = t
	return s
}

// Pid returns the current target pid, 0 when detached.
func (s *Session) Pid() int {
	if s.target == nil {
		return 0
	}
	return s.target.Pid()
}

// NumMatches returns the published match count of the last pass.
func (s *Session) NumMatches() int { return s.num }

// Matches exposes the store; nil before the first scan.
func (s *Session) Matches() *swath.Store { return s.matches }

// Regions exposes the current region list.
func (s *Session) Regions() []*maps.Region { return s.regions }

// ExitRequested reports whether `exit` ran.
func (s *Session) ExitRequested() bool { return s.exit }

func (s *Session) driver() *scan.Driver {
	return &scan.Driver{Target: s.target, Cancel: s.Cancel, Log: s.log}
}

func (s *Session) compare() scan.Compare {
	return scan.Compare{
		ReverseEndianness:   s.Options.ReverseEndianness,
		DetectReverseChange: s.Options.DetectReverseChange,
	}
}

// Infof reports progress to the user.
func (s *Session) Infof(format string, args ...interface{}) {
	fmt.Fprintf(s.msg, "info: "+format+"\n", args...)
}

// Warnf reports a non-fatal oddity.
func (s *Session) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(s.msg, "warn: "+format+"\n", args...)
}

// Handle dispatches one already-tokenized command. Returning a non-nil
// error means the command failed and session state is unchanged beyond
// any explicitly reported partial work.
func (s *Session) Handle(argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	switch argv[0] {
	case "pid":
		return s.HandlePid(argv[1:])
	case "reset":
		return s.HandleReset()
	case "snapshot":
		return s.HandleSnapshot()
	case "set":
		return s.HandleSet(argv[1:])
	case "list", "ls":
		return s.HandleList()
	case "delete", "del":
		return s.HandleDelete(argv[1:])
	case "dregion":
		return s.HandleDregion(argv[1:])
	case "lregions":
		return s.HandleLregions()
	case "update":
		return s.HandleUpdate()
	case "watch":
		return s.HandleWatch(argv[1:])
	case "dump":
		return s.HandleDump(argv[1:])
	case "write":
		return s.HandleWrite(argv[1:])
	case "option":
		return s.HandleOption(argv[1:])
	case "shell":
		return s.HandleShell(argv[1:])
	case "show":
		return s.HandleShow(argv[1:])
	case "exit", "quit", "q":
		s.exit = true
		return nil
	case "=", "!=", "<", ">", "+", "-":
		return s.HandleDecinc(argv[0], argv[1:])
	default:
		return s.HandleDefault(argv)
	}
}

// requireTarget guards commands that need an attached pid.
func (s *Session) requireTarget() error {
	if s.target == nil {
		return errNoTarget
	}
	return nil
}

// requireMatches guards commands that need a populated store.
func (s *Session) requireMatches() error {
	if s.matches == nil || s.num == 0 {
		return errNoMatches
	}
	return nil
}

// HandlePid prints the current target or switches to a new one; a
// switch rebuilds the region list via reset.
func (s *Session) HandlePid(args []string) error {
	if len(args) == 0 {
		if s.target == nil {
			s.Infof("no target is currently set.")
			return nil
		}
		s.Infof("target pid is %d.", s.target.Pid())
		return nil
	}
	pid, err := parsePid(args[0])
	if err != nil {
		return err
	}
	s.target = s.attach(pid)
	return s.HandleReset()
}

// HandleReset drops the match store and rebuilds the region list.
func (s *Session) HandleReset() error {
	s.matches = nil
	s.num = 0
	if s.target == nil {
		s.regions = nil
		return nil
	}
	regions, err := s.target.Regions(s.Options.RegionScanLevel)
	if err != nil {
		s.target = nil
		s.regions = nil
		return fmt.Errorf("could not read regions (bad pid or no permission): %w", err)
	}
	s.regions = regions
	return nil
}

func parsePid(s string) (int, error) {
	var pid int
	if _, err := fmt.Sscanf(s, "%d", &pid); err != nil || pid <= 0 {
		return 0, fmt.Errorf("`%s` does not look like a valid pid", s)
	}
	return pid, nil
}
