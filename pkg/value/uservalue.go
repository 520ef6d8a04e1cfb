package value

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errBadNumber = errors.New("not a number")

// ByteElement is one position of a user-supplied byte array. Wildcard
// positions match any target byte.
type ByteElement struct {
	Byte     byte
	Wildcard bool
}

// UserValue is a parsed user literal: a number carrying every width it
// fits, the high bound of a range, a byte array, or a string.
type UserValue struct {
	Flags Flags

	Int   int64
	Uint  uint64
	Float float64

	// Hi is set for range scans; it bounds the same widths as the
	// receiver.
	Hi *UserValue

	Bytes  []ByteElement
	String string
}

// ParseNumber parses a numeric literal and records every
// interpretation the literal fits. Integers accept the 0x/0 prefixes
// of strconv base 0; anything with a fraction or exponent is float
// only.
func ParseNumber(s string) (*UserValue, error) {
	uv := &UserValue{}

	sval, serr := strconv.ParseInt(s, 0, 64)
	uval, uerr := strconv.ParseUint(s, 0, 64)
	fval, ferr := strconv.ParseFloat(s, 64)

	if serr != nil && uerr != nil && ferr != nil {
		return nil, fmt.Errorf("%w: %q", errBadNumber, s)
	}

	if serr == nil {
		uv.Int = sval
		if uerr != nil {
			// negative literal, reuse the two's complement pattern
			uv.Uint = uint64(sval)
		}
	}
	if uerr == nil {
		uv.Uint = uval
		if serr != nil {
			// above MaxInt64, keep the bit pattern
			uv.Int = int64(uval)
		}
	}

	switch {
	case serr == nil && uerr == nil:
		uv.Flags.Widths = integerWidthsFor(sval, uval)
	case serr == nil:
		uv.Flags.Widths = signedWidthsFor(sval)
	case uerr == nil:
		uv.Flags.Widths = U64
	}

	if ferr == nil {
		uv.Float = fval
		uv.Flags.Widths |= F64
		if fitsFloat32(fval) {
			uv.Flags.Widths |= F32
		}
	} else if serr == nil || uerr == nil {
		uv.Float = float64(uv.Int)
		uv.Flags.Widths |= AnyFloat
	}

	if uv.Flags.Widths == 0 {
		return nil, fmt.Errorf("%w: %q", errBadNumber, s)
	}
	return uv, nil
}

// ParseRange parses "lo..hi" into a range user value.
func ParseRange(lo, hi string) (*UserValue, error) {
	l, err := ParseNumber(lo)
	if err != nil {
		return nil, err
	}
	h, err := ParseNumber(hi)
	if err != nil {
		return nil, err
	}
	l.Hi = h
	l.Flags.Widths &= h.Flags.Widths
	return l, nil
}

// ParseBytearray parses hex byte tokens with "??" or "*" wildcards,
// either space separated ("DE AD ?? EF") or as one token per element.
func ParseBytearray(tokens []string) (*UserValue, error) {
	var elems []ByteElement
	for _, tok := range tokens {
		for _, part := range strings.Fields(tok) {
			switch part {
			case "??", "*":
				elems = append(elems, ByteElement{Wildcard: true})
			default:
				b, err := strconv.ParseUint(part, 16, 8)
				if err != nil {
					return nil, fmt.Errorf("bad byte %q", part)
				}
				elems = append(elems, ByteElement{Byte: byte(b)})
			}
		}
	}
	if len(elems) == 0 {
		return nil, errors.New("empty byte array")
	}
	if len(elems) > math.MaxUint16 {
		return nil, errors.New("byte array too long")
	}
	uv := &UserValue{Bytes: elems}
	uv.Flags.BytearrayLength = uint16(len(elems))
	return uv, nil
}

// ParseString wraps a raw string literal.
func ParseString(s string) (*UserValue, error) {
	if s == "" {
		return nil, errors.New("empty string")
	}
	if len(s) > math.MaxUint16 {
		return nil, errors.New("string too long")
	}
	uv := &UserValue{String: s}
	uv.Flags.StringLength = uint16(len(s))
	return uv, nil
}

func integerWidthsFor(s int64, u uint64) Width {
	var w Width
	if s >= math.MinInt8 && s <= math.MaxInt8 {
		w |= S8
	}
	if s >= math.MinInt16 && s <= math.MaxInt16 {
		w |= S16
	}
	if s >= math.MinInt32 && s <= math.MaxInt32 {
		w |= S32
	}
	w |= S64
	if u <= math.MaxUint8 {
		w |= U8
	}
	if u <= math.MaxUint16 {
		w |= U16
	}
	if u <= math.MaxUint32 {
		w |= U32
	}
	w |= U64
	return w
}

func signedWidthsFor(s int64) Width {
	var w Width
	if s >= math.MinInt8 && s <= math.MaxInt8 {
		w |= S8
	}
	if s >= math.MinInt16 && s <= math.MaxInt16 {
		w |= S16
	}
	if s >= math.MinInt32 && s <= math.MaxInt32 {
		w |= S32
	}
	return w | S64
}

func fitsFloat32(f float64) bool {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return false
	}
	return math.Abs(f) <= math.MaxFloat32
}
