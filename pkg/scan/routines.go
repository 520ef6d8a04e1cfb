package scan

import (
	"errors"
	"fmt"

	"ferret/pkg/value"
)

// A Routine evaluates one candidate position. old is the recorded
// state of a previous pass (nil on a first scan), cur the freshly read
// bytes with the widths the remaining space admits, uv the user value
// (nil for Any). On a match the routine writes the surviving subset of
// interpretations into out and returns true.
type Routine func(old, cur *value.Value, uv *value.UserValue, out *value.Flags) bool

// Compare controls how routines decode target bytes.
type Compare struct {
	// ReverseEndianness byte-swaps every width before comparison,
	// declared by the user when the target stores the foreign order.
	ReverseEndianness bool
	// DetectReverseChange additionally accepts direction predicates
	// satisfied by the byte-swapped interpretation, catching counters
	// kept in the opposite order.
	DetectReverseChange bool
}

var errBadCombination = errors.New("match type not valid for scan data type")

// GetRoutine resolves the routine for a (data type, match type) pair.
func GetRoutine(dt DataType, mt MatchType, cmp Compare) (Routine, error) {
	switch dt {
	case ByteArray:
		switch mt {
		case MatchAny:
			return anyRoutine, nil
		case MatchEqualTo:
			return bytearrayEqual, nil
		}
		return nil, fmt.Errorf("%w: %s on bytearray", errBadCombination, mt)
	case String:
		switch mt {
		case MatchAny:
			return anyRoutine, nil
		case MatchEqualTo:
			return stringEqual, nil
		}
		return nil, fmt.Errorf("%w: %s on string", errBadCombination, mt)
	}

	admissible := dt.Widths()
	if admissible == 0 {
		return nil, fmt.Errorf("unknown scan data type %d", dt)
	}
	if mt == MatchAny {
		return numericAny(admissible), nil
	}
	return numericRoutine(admissible, mt, cmp), nil
}

// anyRoutine keeps whatever interpretations the candidate already has;
// used by snapshot and update passes on aggregate types.
func anyRoutine(old, cur *value.Value, uv *value.UserValue, out *value.Flags) bool {
	if old != nil {
		*out = old.Flags
	} else {
		*out = cur.Flags
	}
	return out.MaxWidthBytes() > 0
}

// numericAny keeps every admissible width the candidate still has.
func numericAny(admissible value.Width) Routine {
	return func(old, cur *value.Value, uv *value.UserValue, out *value.Flags) bool {
		mask := cur.Flags.Widths & admissible
		if old != nil {
			mask &= old.Flags.Widths
		}
		out.Widths = mask
		return mask != 0
	}
}

func numericRoutine(admissible value.Width, mt MatchType, cmp Compare) Routine {
	return func(old, cur *value.Value, uv *value.UserValue, out *value.Flags) bool {
		mask := cur.Flags.Widths & admissible
		if old != nil {
			mask &= old.Flags.Widths
		}
		var kept value.Width
		value.EachWidth(mask, func(w value.Width) {
			if widthMatches(w, old, cur, uv, mt, cmp, cmp.ReverseEndianness) {
				kept |= w
				return
			}
			if cmp.DetectReverseChange && mt.NeedsOldValue() &&
				widthMatches(w, old, cur, uv, mt, cmp, !cmp.ReverseEndianness) {
				kept |= w
			}
		})
		out.Widths = kept
		return kept != 0
	}
}

// widthMatches applies the predicate for one width. reverse selects
// the byte order both old and new values are decoded with.
func widthMatches(w value.Width, old, cur *value.Value, uv *value.UserValue, mt MatchType, cmp Compare, reverse bool) bool {
	if w.Float() {
		return floatMatches(w, old, cur, uv, mt, reverse)
	}
	if w.Signed() {
		return signedMatches(w, old, cur, uv, mt, reverse)
	}
	return unsignedMatches(w, old, cur, uv, mt, reverse)
}

func signedMatches(w value.Width, old, cur *value.Value, uv *value.UserValue, mt MatchType, reverse bool) bool {
	n, ok := cur.Int(w, reverse)
	if !ok {
		return false
	}
	var o int64
	if mt.NeedsOldValue() {
		if old == nil {
			return false
		}
		if o, ok = old.Int(w, reverse); !ok {
			return false
		}
	}
	userFits := uv != nil && uv.Flags.Widths&w != 0
	switch mt {
	case MatchEqualTo:
		return userFits && n == uv.Int
	case MatchNotEqualTo:
		return userFits && n != uv.Int
	case MatchGreaterThan:
		return userFits && n > uv.Int
	case MatchLessThan:
		return userFits && n < uv.Int
	case MatchRange:
		return userFits && uv.Hi != nil && n >= uv.Int && n <= uv.Hi.Int
	case MatchChanged:
		return n != o
	case MatchNotChanged:
		return n == o
	case MatchIncreased:
		return n > o
	case MatchDecreased:
		return n < o
	case MatchIncreasedBy:
		return userFits && n-o == uv.Int
	case MatchDecreasedBy:
		return userFits && o-n == uv.Int
	}
	return false
}

func unsignedMatches(w value.Width, old, cur *value.Value, uv *value.UserValue, mt MatchType, reverse bool) bool {
	n, ok := cur.Uint(w, reverse)
	if !ok {
		return false
	}
	var o uint64
	if mt.NeedsOldValue() {
		if old == nil {
			return false
		}
		if o, ok = old.Uint(w, reverse); !ok {
			return false
		}
	}
	userFits := uv != nil && uv.Flags.Widths&w != 0
	switch mt {
	case MatchEqualTo:
		return userFits && n == uv.Uint
	case MatchNotEqualTo:
		return userFits && n != uv.Uint
	case MatchGreaterThan:
		return userFits && n > uv.Uint
	case MatchLessThan:
		return userFits && n < uv.Uint
	case MatchRange:
		return userFits && uv.Hi != nil && n >= uv.Uint && n <= uv.Hi.Uint
	case MatchChanged:
		return n != o
	case MatchNotChanged:
		return n == o
	case MatchIncreased:
		return n > o
	case MatchDecreased:
		return n < o
	case MatchIncreasedBy:
		return userFits && n-o == uv.Uint
	case MatchDecreasedBy:
		return userFits && o-n == uv.Uint
	}
	return false
}

func floatMatches(w value.Width, old, cur *value.Value, uv *value.UserValue, mt MatchType, reverse bool) bool {
	n, ok := cur.Float(w, reverse)
	if !ok {
		return false
	}
	var o float64
	if mt.NeedsOldValue() {
		if old == nil {
			return false
		}
		if o, ok = old.Float(w, reverse); !ok {
			return false
		}
	}
	userFits := uv != nil && uv.Flags.Widths&w != 0
	switch mt {
	case MatchEqualTo:
		return userFits && n == uv.Float
	case MatchNotEqualTo:
		return userFits && n != uv.Float
	case MatchGreaterThan:
		return userFits && n > uv.Float
	case MatchLessThan:
		return userFits && n < uv.Float
	case MatchRange:
		return userFits && uv.Hi != nil && n >= uv.Float && n <= uv.Hi.Float
	case MatchChanged:
		return n != o
	case MatchNotChanged:
		return n == o
	case MatchIncreased:
		return n > o
	case MatchDecreased:
		return n < o
	case MatchIncreasedBy:
		return userFits && n-o == uv.Float
	case MatchDecreasedBy:
		return userFits && o-n == uv.Float
	}
	return false
}

// bytearrayEqual honours per-byte wildcards; wildcard positions match
// unconditionally. Endianness does not apply.
func bytearrayEqual(old, cur *value.Value, uv *value.UserValue, out *value.Flags) bool {
	if uv == nil || len(uv.Bytes) == 0 || len(cur.Bytes) < len(uv.Bytes) {
		return false
	}
	for i, e := range uv.Bytes {
		if e.Wildcard {
			continue
		}
		if cur.Bytes[i] != e.Byte {
			return false
		}
	}
	out.BytearrayLength = uint16(len(uv.Bytes))
	return true
}

// stringEqual compares the declared number of raw bytes.
func stringEqual(old, cur *value.Value, uv *value.UserValue, out *value.Flags) bool {
	if uv == nil || uv.String == "" || len(cur.Bytes) < len(uv.String) {
		return false
	}
	if string(cur.Bytes[:len(uv.String)]) != uv.String {
		return false
	}
	out.StringLength = uint16(len(uv.String))
	return true
}
