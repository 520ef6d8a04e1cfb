package session

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"ferret/pkg/value"
)

// HandleDump prints LEN bytes at ADDR as hex, 16 per line, with an
// optional printable panel, or writes them raw to a file.
func (s *Session) HandleDump(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("bad argument, see `help dump`")
	}
	if err := s.requireTarget(); err != nil {
		return err
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
	if err != nil {
		return errors.New("bad address, see `help dump`")
	}
	length, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return errors.New("bad length, see `help dump`")
	}

	buf := make([]byte, length)
	if err := s.target.Attach(); err != nil {
		return err
	}
	if _, err := s.target.ReadMemory(buf, addr); err != nil {
		s.target.Detach()
		return fmt.Errorf("read memory failed: %w", err)
	}
	s.target.Detach()

	if len(args) == 3 {
		if err := os.WriteFile(args[2], buf, 0644); err != nil {
			return fmt.Errorf("write to file failed: %w", err)
		}
		return nil
	}

	for i := 0; i < len(buf); i += 16 {
		if !s.Options.Backend {
			fmt.Fprintf(s.out, "%x: ", addr+uint64(i))
		}
		end := i + 16
		if end > len(buf) {
			end = len(buf)
		}
		for _, b := range buf[i:end] {
			fmt.Fprintf(s.out, "%02X ", b)
		}
		if s.Options.DumpWithASCII {
			for j := end; j%16 != 0; j++ {
				fmt.Fprint(s.out, "   ")
			}
			for _, b := range buf[i:end] {
				if b >= 0x20 && b < 0x7f {
					fmt.Fprintf(s.out, "%c", b)
				} else {
					fmt.Fprint(s.out, ".")
				}
			}
		}
		fmt.Fprintln(s.out)
	}
	return nil
}

// HandleWrite pokes an explicit value into an explicit address:
// write TYPE ADDR VALUE...
func (s *Session) HandleWrite(args []string) error {
	if len(args) < 3 {
		return errors.New("bad arguments, see `help write`")
	}
	if err := s.requireTarget(); err != nil {
		return err
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 64)
	if err != nil {
		return errors.New("bad address, see `help write`")
	}

	buf, err := s.encodeWrite(args[0], addr, args[2:])
	if err != nil {
		return err
	}
	if err := s.target.Attach(); err != nil {
		return err
	}
	defer s.target.Detach()
	if _, err := s.target.WriteMemory(addr, buf); err != nil {
		return fmt.Errorf("write memory failed: %w", err)
	}
	return nil
}

func (s *Session) encodeWrite(typ string, addr uint64, args []string) ([]byte, error) {
	rev := s.Options.ReverseEndianness

	width := 0
	float := false
	switch strings.ToLower(typ) {
	case "i8", "int8":
		width = 1
	case "i16", "int16":
		width = 2
	case "i32", "int32":
		width = 4
	case "i64", "int64":
		width = 8
	case "f32", "float32":
		width, float = 4, true
	case "f64", "float64":
		width, float = 8, true
	case "bytearray":
		return s.encodeBytearrayWrite(addr, args)
	case "string":
		return []byte(strings.Join(args, " ")), nil
	default:
		return nil, errors.New("bad data_type, see `help write`")
	}

	if len(args) != 1 {
		return nil, errors.New("bad arguments, see `help write`")
	}
	if float {
		f, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, errors.New("bad value, see `help write`")
		}
		var bits uint64
		if width == 4 {
			bits = uint64(math.Float32bits(float32(f)))
		} else {
			bits = math.Float64bits(f)
		}
		return value.EncodeUint(bits, width, rev), nil
	}
	uv, err := value.ParseNumber(args[0])
	if err != nil {
		return nil, errors.New("bad value, see `help write`")
	}
	return value.EncodeUint(uv.Uint, width, rev), nil
}

// encodeBytearrayWrite keeps the target's bytes at wildcard positions
// by reading before writing.
func (s *Session) encodeBytearrayWrite(addr uint64, args []string) ([]byte, error) {
	uv, err := value.ParseBytearray(args)
	if err != nil {
		return nil, fmt.Errorf("bad byte array specified: %v", err)
	}
	buf := make([]byte, len(uv.Bytes))
	wildcard := false
	for _, e := range uv.Bytes {
		if e.Wildcard {
			wildcard = true
			break
		}
	}
	if wildcard {
		if err := s.target.Attach(); err != nil {
			return nil, err
		}
		_, err := s.target.ReadMemory(buf, addr)
		s.target.Detach()
		if err != nil {
			return nil, fmt.Errorf("read memory failed: %w", err)
		}
	}
	for i, e := range uv.Bytes {
		if !e.Wildcard {
			buf[i] = e.Byte
		}
	}
	return buf, nil
}
