package session

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ferret/pkg/scan"
	"ferret/pkg/swath"
	"ferret/pkg/value"
)

// HandleList prints every match in the stable front-end format:
// [id] address, region + offset, type, value.
func (s *Session) HandleList() error {
	if s.matches == nil {
		return nil
	}
	i := 0
	for it := s.matches.Iter(); it.Valid(); it.Next() {
		e := it.Entry()
		width := e.Flags.MaxWidthBytes()
		if width == 0 {
			continue
		}
		addr := it.Address()
		loc := it.Location()

		var v string
		switch {
		case e.Flags.BytearrayLength > 0:
			v = bytearrayText(loc, int(e.Flags.BytearrayLength)) + ", [bytearray]"
		case e.Flags.StringLength > 0:
			v = printableText(loc, int(e.Flags.StringLength)) + ", [string]"
		default:
			v = s.renderNumeric(loc, e.Flags)
		}

		regionID, matchOff, regionType := 99, uint64(0), "??"
		for _, r := range s.regions {
			if r.Contains(addr) {
				regionID = r.ID
				matchOff = addr - r.LoadAddr
				regionType = r.Type.String()
				break
			}
		}
		fmt.Fprintf(s.out, "[%2d] %12x, %2d + %12x, %5s,  %s\n",
			i, addr, regionID, matchOff, regionType, v)
		i++
	}
	return nil
}

// renderNumeric prints the stored old value under its widest
// surviving interpretation.
func (s *Session) renderNumeric(loc swath.Location, flags value.Flags) string {
	return s.renderNumericValue(loc.Value(flags.MaxWidthBytes()), flags)
}

func bytearrayText(loc swath.Location, n int) string {
	v := loc.Value(n)
	parts := make([]string, n)
	for i, b := range v.Bytes {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

func printableText(loc swath.Location, n int) string {
	v := loc.Value(n)
	out := make([]byte, n)
	for i, b := range v.Bytes {
		if b >= 0x20 && b < 0x7f {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

// HandleDelete clears one match by its ordinal.
func (s *Session) HandleDelete(args []string) error {
	if len(args) != 1 {
		return errors.New("was expecting one argument, see `help delete`")
	}
	id, err := parseMatchID(args[0])
	if err != nil {
		return err
	}
	loc, ok := matchByID(s.matches, id)
	if !ok {
		s.Infof("use \"list\" to list matches, or \"help\" for other commands.")
		return fmt.Errorf("you specified a non-existent match `%d`", id)
	}
	loc.ClearFlags()
	s.num--
	return nil
}

func parseMatchID(s string) (int, error) {
	id, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("could not parse match id `%s`", s)
	}
	return int(id), nil
}

func matchByID(store *swath.Store, id int) (swath.Location, bool) {
	if store == nil {
		return swath.Location{}, false
	}
	return store.NthMatch(id)
}

// setting is one parsed block of a set command: ids=value/seconds.
type setting struct {
	ids     []int
	all     bool
	uv      *value.UserValue
	seconds uint
}

// HandleSet writes a value into selected matches, optionally repeating
// every /seconds until interrupted.
func (s *Session) HandleSet(args []string) error {
	if len(args) == 0 {
		return errors.New("expected an argument, type `help set` for details")
	}
	if s.Options.ScanDataType == scan.ByteArray || s.Options.ScanDataType == scan.String {
		return errors.New("`set` is not supported for bytearray or string, use `write` instead")
	}
	if err := s.requireMatches(); err != nil {
		return err
	}

	settings := make([]*setting, 0, len(args))
	cont := false
	for _, arg := range args {
		blk, err := s.parseSetting(arg)
		if err != nil {
			return err
		}
		if blk.seconds > 0 {
			cont = true
			ids := "all"
			if !blk.all {
				ids = formatIDs(blk.ids)
			}
			s.Infof("setting %s every %d seconds until interrupted...", ids, blk.seconds)
		}
		settings = append(settings, blk)
	}

	s.Cancel.Reset()
	for seconds := uint(1); ; seconds++ {
		for _, blk := range settings {
			if seconds != 1 && (blk.seconds == 0 || seconds%blk.seconds != 0) {
				continue
			}
			if err := s.applySetting(blk); err != nil {
				return err
			}
		}
		if !cont {
			return nil
		}
		time.Sleep(time.Second)
		if s.Cancel.Requested() {
			return nil
		}
	}
}

// parseSetting splits "ids=value/seconds"; a block with no '=' is a
// value applied to all matches.
func (s *Session) parseSetting(arg string) (*setting, error) {
	blk := &setting{all: true}

	valstr := arg
	if ids, rest, ok := strings.Cut(arg, "="); ok {
		blk.all = false
		valstr = rest
		for _, id := range strings.Split(ids, ",") {
			n, err := parseMatchID(id)
			if err != nil {
				return nil, err
			}
			blk.ids = append(blk.ids, n)
		}
	}

	if vs, delay, ok := strings.Cut(valstr, "/"); ok {
		if delay == "" {
			return nil, fmt.Errorf("you specified an empty delay count, `%s`, see `help set`", valstr)
		}
		secs, err := strconv.ParseUint(delay, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("trailing garbage after delay count, `%s`", valstr)
		}
		if secs == 0 {
			s.Infof("you specified a zero delay, disabling continuous mode.")
		}
		blk.seconds = uint(secs)
		valstr = vs
	}

	uv, err := value.ParseNumber(valstr)
	if err != nil {
		return nil, fmt.Errorf("bad number `%s` provided", valstr)
	}
	blk.uv = uv
	return blk, nil
}

func (s *Session) applySetting(blk *setting) error {
	if blk.all {
		for it := s.matches.Iter(); it.Valid(); it.Next() {
			e := it.Entry()
			if e.Flags.MaxWidthBytes() == 0 {
				continue
			}
			if err := s.writeMatch(it.Address(), e.Flags, blk.uv); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range blk.ids {
		loc, ok := matchByID(s.matches, id)
		if !ok {
			return fmt.Errorf("found an invalid match-id `%d`", id)
		}
		if err := s.writeMatch(loc.Address(), loc.Entry().Flags, blk.uv); err != nil {
			return err
		}
	}
	return nil
}

// writeMatch encodes uv under the match's surviving width and writes
// it into the target, swapping bytes when the target is declared
// reverse-endian.
func (s *Session) writeMatch(addr uint64, flags value.Flags, uv *value.UserValue) error {
	buf, err := encodeForFlags(flags, uv, s.Options.ReverseEndianness)
	if err != nil {
		return err
	}
	s.Infof("setting *%#x to %#x...", addr, uv.Uint)
	if err := s.target.Attach(); err != nil {
		return err
	}
	defer s.target.Detach()
	if _, err := s.target.WriteMemory(addr, buf); err != nil {
		return fmt.Errorf("failed to set a value: %w", err)
	}
	return nil
}

// encodeForFlags renders uv at the widest width the flags admit.
func encodeForFlags(flags value.Flags, uv *value.UserValue, reverse bool) ([]byte, error) {
	width := flags.MaxWidthBytes()
	if width == 0 || width > 8 {
		return nil, errors.New("match has no writable width")
	}
	var bits uint64
	switch {
	case width == 8 && flags.Widths&value.AnyInteger == 0 && flags.Widths&value.F64 != 0:
		bits = math.Float64bits(uv.Float)
	case width == 4 && flags.Widths&value.AnyInteger == 0 && flags.Widths&value.F32 != 0:
		bits = uint64(math.Float32bits(float32(uv.Float)))
	default:
		bits = uv.Uint
	}
	return value.EncodeUint(bits, width, reverse), nil
}

func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// HandleWatch monitors one match for changes at one-second
// granularity until interrupted.
func (s *Session) HandleWatch(args []string) error {
	if len(args) != 1 {
		return errors.New("was expecting one argument, see `help watch`")
	}
	dt := s.Options.ScanDataType
	if dt == scan.ByteArray || dt == scan.String {
		return errors.New("`watch` is not supported for bytearray or string")
	}
	id, err := parseMatchID(args[0])
	if err != nil {
		return err
	}
	loc, ok := matchByID(s.matches, id)
	if !ok {
		s.Infof("use \"list\" to list matches, or \"help\" for other commands.")
		return fmt.Errorf("you specified a non-existent match `%d`", id)
	}

	addr := loc.Address()
	flags := loc.Entry().Flags
	old := loc.Value(flags.MaxWidthBytes())
	old.Flags = flags

	routine, err := scan.GetRoutine(scan.AnyNumber, scan.MatchChanged, s.compare())
	if err != nil {
		return err
	}

	s.Cancel.Reset()
	s.Infof("%s monitoring %#10x for changes until interrupted...",
		time.Now().Format("[15:04:05]"), addr)
	for {
		if s.Cancel.Requested() {
			return nil
		}
		if err := s.target.Attach(); err != nil {
			return err
		}
		fresh, err := s.target.Peek(addr)
		if err != nil {
			s.target.Detach()
			return err
		}
		cur := value.Value{
			Flags: value.Flags{Widths: value.WidthsFitting(len(fresh))},
			Bytes: fresh,
		}
		var out value.Flags
		if routine(&old, &cur, nil, &out) {
			old = value.Value{Flags: flags, Bytes: append([]byte(nil), fresh...)}
			s.Infof("%s %#10x -> %s", time.Now().Format("[15:04:05]"), addr,
				s.renderNumericValue(old, flags))
		}
		s.target.Detach()
		time.Sleep(time.Second)
	}
}

// renderNumericValue prints a value under the widest width its flags
// admit: floats when only float interpretations survive, signed before
// unsigned otherwise.
func (s *Session) renderNumericValue(v value.Value, flags value.Flags) string {
	rev := s.Options.ReverseEndianness
	width := flags.MaxWidthBytes()
	if flags.Widths&value.F64 != 0 && width == 8 && flags.Widths&value.AnyInteger == 0 {
		f, _ := v.Float(value.F64, rev)
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if flags.Widths&value.F32 != 0 && width == 4 && flags.Widths&value.AnyInteger == 0 {
		f, _ := v.Float(value.F32, rev)
		return strconv.FormatFloat(f, 'g', -1, 32)
	}
	for _, w := range []value.Width{value.S64, value.S32, value.S16, value.S8} {
		if flags.Widths&w != 0 && w.Bytes() == width {
			n, _ := v.Int(w, rev)
			return strconv.FormatInt(n, 10)
		}
	}
	for _, w := range []value.Width{value.U64, value.U32, value.U16, value.U8} {
		if flags.Widths&w != 0 && w.Bytes() == width {
			n, _ := v.Uint(w, rev)
			return strconv.FormatUint(n, 10)
		}
	}
	if flags.Widths&value.F32 != 0 {
		f, _ := v.Float(value.F32, rev)
		return strconv.FormatFloat(f, 'g', -1, 32)
	}
	return "??"
}
