package value

import (
	"encoding/binary"
	"math"
)

// Width is a bit set of the numeric interpretations that are still
// viable for the bytes starting at a given target address.
type Width uint16

const (
	U8 Width = 1 << iota
	S8
	U16
	S16
	U32
	S32
	U64
	S64
	F32
	F64
)

const (
	AnyInteger = U8 | S8 | U16 | S16 | U32 | S32 | U64 | S64
	AnyFloat   = F32 | F64
	AnyNumber  = AnyInteger | AnyFloat
)

// widthBytes maps every single-bit Width to its size in bytes.
var widthBytes = map[Width]int{
	U8: 1, S8: 1,
	U16: 2, S16: 2,
	U32: 4, S32: 4,
	U64: 8, S64: 8,
	F32: 4, F64: 8,
}

// Bytes returns the size of a single-bit width, 0 for compound masks.
func (w Width) Bytes() int {
	return widthBytes[w]
}

// Signed reports whether a single-bit width is a signed integer.
func (w Width) Signed() bool {
	return w&(S8|S16|S32|S64) != 0
}

// Float reports whether a single-bit width is a floating point type.
func (w Width) Float() bool {
	return w&AnyFloat != 0
}

// WidthsFitting returns the widths whose representation fits in n
// remaining bytes.
func WidthsFitting(n int) Width {
	var w Width
	if n >= 1 {
		w |= U8 | S8
	}
	if n >= 2 {
		w |= U16 | S16
	}
	if n >= 4 {
		w |= U32 | S32 | F32
	}
	if n >= 8 {
		w |= U64 | S64 | F64
	}
	return w
}

// EachWidth calls fn for every single-bit width present in the mask.
func EachWidth(mask Width, fn func(w Width)) {
	for _, w := range []Width{U8, S8, U16, S16, U32, S32, U64, S64, F32, F64} {
		if mask&w != 0 {
			fn(w)
		}
	}
}

// Flags records which interpretations of the bytes at one target
// address are still match candidates. At most one of BytearrayLength
// and StringLength may be non-zero; both exclude the numeric widths.
type Flags struct {
	Widths          Width
	BytearrayLength uint16
	StringLength    uint16
}

// Zero clears all flags; a zeroed entry is no longer a match.
func (f *Flags) Zero() {
	*f = Flags{}
}

// MaxWidthBytes returns the widest still-viable interpretation in
// bytes, 0 if the entry is not a match.
func (f Flags) MaxWidthBytes() int {
	if f.BytearrayLength > 0 {
		return int(f.BytearrayLength)
	}
	if f.StringLength > 0 {
		return int(f.StringLength)
	}
	max := 0
	EachWidth(f.Widths, func(w Width) {
		if n := w.Bytes(); n > max {
			max = n
		}
	})
	return max
}

// Value is a scratch view of up to MaxWidthBytes target bytes together
// with the interpretations that may be read from them. Bytes always
// holds the raw target-order representation; decoding applies the
// endianness choice.
type Value struct {
	Flags Flags
	Bytes []byte
}

// uintN decodes the first n bytes as an unsigned integer. reverse
// selects the byte order opposite to the target's native one.
func (v *Value) uintN(n int, reverse bool) uint64 {
	var raw [8]byte
	copy(raw[:], v.Bytes[:n])
	if reverse {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			raw[i], raw[j] = raw[j], raw[i]
		}
	}
	switch n {
	case 1:
		return uint64(raw[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(raw[:2]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(raw[:4]))
	default:
		return binary.LittleEndian.Uint64(raw[:8])
	}
}

// Uint decodes the value under a single-bit unsigned width. ok is
// false when not enough bytes are present.
func (v *Value) Uint(w Width, reverse bool) (uint64, bool) {
	n := w.Bytes()
	if len(v.Bytes) < n {
		return 0, false
	}
	return v.uintN(n, reverse), true
}

// Int decodes the value under a single-bit signed width.
func (v *Value) Int(w Width, reverse bool) (int64, bool) {
	u, ok := v.Uint(w, reverse)
	if !ok {
		return 0, false
	}
	switch w.Bytes() {
	case 1:
		return int64(int8(u)), true
	case 2:
		return int64(int16(u)), true
	case 4:
		return int64(int32(u)), true
	default:
		return int64(u), true
	}
}

// Float decodes the value under F32 or F64.
func (v *Value) Float(w Width, reverse bool) (float64, bool) {
	u, ok := v.Uint(w, reverse)
	if !ok {
		return 0, false
	}
	if w == F32 {
		return float64(math.Float32frombits(uint32(u))), true
	}
	return math.Float64frombits(u), true
}

// EncodeUint produces the target-order representation of val under a
// width of n bytes.
func EncodeUint(val uint64, n int, reverse bool) []byte {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], val)
	out := make([]byte, n)
	copy(out, raw[:n])
	if reverse {
		SwapBytes(out)
	}
	return out
}

// SwapBytes reverses b in place.
func SwapBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
