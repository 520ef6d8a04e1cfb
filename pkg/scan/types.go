package scan

import (
	"ferret/pkg/value"
)

// DataType restricts which interpretations a scan considers.
type DataType int

const (
	AnyNumber DataType = iota
	AnyInteger
	AnyFloat
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	ByteArray
	String
)

var dataTypeNames = map[DataType]string{
	AnyNumber:  "number",
	AnyInteger: "int",
	AnyFloat:   "float",
	Int8:       "int8",
	Int16:      "int16",
	Int32:      "int32",
	Int64:      "int64",
	Float32:    "float32",
	Float64:    "float64",
	ByteArray:  "bytearray",
	String:     "string",
}

func (t DataType) String() string { return dataTypeNames[t] }

// ParseDataType resolves an `option scan_data_type` value.
func ParseDataType(s string) (DataType, bool) {
	for t, name := range dataTypeNames {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

// Widths returns the width mask a data type admits.
func (t DataType) Widths() value.Width {
	switch t {
	case AnyNumber:
		return value.AnyNumber
	case AnyInteger:
		return value.AnyInteger
	case AnyFloat:
		return value.AnyFloat
	case Int8:
		return value.U8 | value.S8
	case Int16:
		return value.U16 | value.S16
	case Int32:
		return value.U32 | value.S32
	case Int64:
		return value.U64 | value.S64
	case Float32:
		return value.F32
	case Float64:
		return value.F64
	default:
		return 0
	}
}

// MatchType selects the predicate of a scan pass.
type MatchType int

const (
	MatchAny MatchType = iota
	MatchEqualTo
	MatchNotEqualTo
	MatchGreaterThan
	MatchLessThan
	MatchRange
	MatchChanged
	MatchNotChanged
	MatchIncreased
	MatchDecreased
	MatchIncreasedBy
	MatchDecreasedBy
)

var matchTypeNames = [...]string{
	"any", "==", "!=", ">", "<", "range",
	"changed", "not-changed", "increased", "decreased",
	"increased-by", "decreased-by",
}

func (m MatchType) String() string {
	if int(m) < len(matchTypeNames) {
		return matchTypeNames[m]
	}
	return "??"
}

// NeedsOldValue reports whether the predicate compares against a prior
// scan and is therefore invalid as a first scan.
func (m MatchType) NeedsOldValue() bool {
	switch m {
	case MatchChanged, MatchNotChanged, MatchIncreased, MatchDecreased,
		MatchIncreasedBy, MatchDecreasedBy:
		return true
	}
	return false
}
