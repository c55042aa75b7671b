// Package dtype implements the CiA-301 data-type registry: the fixed set of
// basic Object Dictionary types, their bit widths and legal ranges, and the
// concise-SDO wire-format descriptor used to pack a value for transmission.
//
// The table mirrors github.com/samsamfire/gocanopen's pkg/od index/constants
// split, generalized to the full CiA-301 basic-type set (including the
// 24/40/48/56-bit integer and unsigned families and the string/time/domain
// kinds) per the original lely-core dcf/device.py DataType class.
package dtype

import "fmt"

// Index is a CiA-301 data-type index, e.g. 0x0007 for UNSIGNED32.
type Index uint16

// Basic numeric/array/composite CiA-301 data-type indices.
const (
	BOOLEAN        Index = 0x0001
	INTEGER8       Index = 0x0002
	INTEGER16      Index = 0x0003
	INTEGER32      Index = 0x0004
	UNSIGNED8      Index = 0x0005
	UNSIGNED16     Index = 0x0006
	UNSIGNED32     Index = 0x0007
	REAL32         Index = 0x0008
	VISIBLE_STRING Index = 0x0009
	OCTET_STRING   Index = 0x000A
	UNICODE_STRING Index = 0x000B
	TIME_OF_DAY    Index = 0x000C
	TIME_DIFF      Index = 0x000D
	DOMAIN         Index = 0x000F
	INTEGER24      Index = 0x0010
	REAL64         Index = 0x0011
	INTEGER40      Index = 0x0012
	INTEGER48      Index = 0x0013
	INTEGER56      Index = 0x0014
	INTEGER64      Index = 0x0015
	UNSIGNED24     Index = 0x0016
	UNSIGNED40     Index = 0x0018
	UNSIGNED48     Index = 0x0019
	UNSIGNED56     Index = 0x001A
	UNSIGNED64     Index = 0x001B
)

// Kind categorizes how a Value of this type is parsed and (through
// Concise) how it would be packed onto the wire for concise SDO.
type Kind uint8

const (
	KindInt Kind = iota
	KindUint
	KindFloat
	KindVisibleString
	KindOctetString
	KindUnicodeString
	KindTimeOfDay
	KindTimeDiff
	KindDomain
)

// Type describes one CiA-301 data-type registry entry.
type Type struct {
	Index Index
	Name  string
	// Bits is the bit width for basic (packable numeric) types; zero otherwise.
	Bits int
	Kind Kind
	// Min/Max bound the legal range for basic integer/float types.
	// For float kinds these carry the IEEE min/max as float64.
	Min float64
	Max float64

	// Parser carries an optional literal parser for a custom (manufacturer-
	// specific) type registered via AddCustom. The dtype and value packages
	// do not call it; they always parse by Kind.
	Parser func(literal string) (any, error)
	// CFormat is the printf-style VALUE format used when emitting a device
	// descriptor for this type (pkg/cdevice), addressing the
	// whitespace-separated integer fields of the literal by explicit Go verb
	// index, e.g. "{ .subseconds = %[2]d, .seconds = %[1]d }". Only
	// meaningful for custom types; built-in types are emitted from a fixed
	// table instead.
	CFormat string
}

// IsBasic reports whether the type is a packable numeric CiA-301 basic type
// (BOOLEAN..REAL32, REAL64, the 24/40/48/56-bit integer/unsigned families).
func (t Type) IsBasic() bool {
	switch t.Kind {
	case KindInt, KindUint, KindFloat:
		return true
	default:
		return false
	}
}

// IsArray reports whether the type is one of the four array-like kinds
// (VISIBLE_STRING, OCTET_STRING, UNICODE_STRING, DOMAIN).
func (t Type) IsArray() bool {
	switch t.Index {
	case VISIBLE_STRING, OCTET_STRING, UNICODE_STRING, DOMAIN:
		return true
	default:
		return false
	}
}

var registry = map[Index]Type{}

func register(t Type) {
	registry[t.Index] = t
}

func init() {
	register(Type{Index: BOOLEAN, Name: "BOOLEAN", Bits: 1, Kind: KindUint, Min: 0, Max: 1})
	register(Type{Index: INTEGER8, Name: "INTEGER8", Bits: 8, Kind: KindInt, Min: -0x80, Max: 0x7F})
	register(Type{Index: INTEGER16, Name: "INTEGER16", Bits: 16, Kind: KindInt, Min: -0x8000, Max: 0x7FFF})
	register(Type{Index: INTEGER32, Name: "INTEGER32", Bits: 32, Kind: KindInt, Min: -0x80000000, Max: 0x7FFFFFFF})
	register(Type{Index: UNSIGNED8, Name: "UNSIGNED8", Bits: 8, Kind: KindUint, Min: 0, Max: 0xFF})
	register(Type{Index: UNSIGNED16, Name: "UNSIGNED16", Bits: 16, Kind: KindUint, Min: 0, Max: 0xFFFF})
	register(Type{Index: UNSIGNED32, Name: "UNSIGNED32", Bits: 32, Kind: KindUint, Min: 0, Max: 0xFFFFFFFF})
	register(Type{Index: REAL32, Name: "REAL32", Bits: 32, Kind: KindFloat, Min: -3.40282346638528859811704183484516925e38, Max: 3.40282346638528859811704183484516925e38})
	register(Type{Index: VISIBLE_STRING, Name: "VISIBLE_STRING", Kind: KindVisibleString})
	register(Type{Index: OCTET_STRING, Name: "OCTET_STRING", Kind: KindOctetString})
	register(Type{Index: UNICODE_STRING, Name: "UNICODE_STRING", Kind: KindUnicodeString})
	register(Type{Index: TIME_OF_DAY, Name: "TIME_OF_DAY", Kind: KindTimeOfDay})
	register(Type{Index: TIME_DIFF, Name: "TIME_DIFF", Kind: KindTimeDiff})
	register(Type{Index: DOMAIN, Name: "DOMAIN", Kind: KindDomain})
	register(Type{Index: INTEGER24, Name: "INTEGER24", Bits: 24, Kind: KindInt, Min: -0x800000, Max: 0x7FFFFF})
	register(Type{Index: REAL64, Name: "REAL64", Bits: 64, Kind: KindFloat, Min: -1.79769313486231570814527423731704357e308, Max: 1.79769313486231570814527423731704357e308})
	register(Type{Index: INTEGER40, Name: "INTEGER40", Bits: 40, Kind: KindInt, Min: -0x8000000000, Max: 0x7FFFFFFFFF})
	register(Type{Index: INTEGER48, Name: "INTEGER48", Bits: 48, Kind: KindInt, Min: -0x800000000000, Max: 0x7FFFFFFFFFFF})
	register(Type{Index: INTEGER56, Name: "INTEGER56", Bits: 56, Kind: KindInt, Min: -0x80000000000000, Max: 0x7FFFFFFFFFFFFF})
	register(Type{Index: INTEGER64, Name: "INTEGER64", Bits: 64, Kind: KindInt, Min: -0x8000000000000000, Max: 0x7FFFFFFFFFFFFFFF})
	register(Type{Index: UNSIGNED24, Name: "UNSIGNED24", Bits: 24, Kind: KindUint, Min: 0, Max: 0xFFFFFF})
	register(Type{Index: UNSIGNED40, Name: "UNSIGNED40", Bits: 40, Kind: KindUint, Min: 0, Max: 0xFFFFFFFFFF})
	register(Type{Index: UNSIGNED48, Name: "UNSIGNED48", Bits: 48, Kind: KindUint, Min: 0, Max: 0xFFFFFFFFFFFF})
	register(Type{Index: UNSIGNED56, Name: "UNSIGNED56", Bits: 56, Kind: KindUint, Min: 0, Max: 0xFFFFFFFFFFFFFF})
	register(Type{Index: UNSIGNED64, Name: "UNSIGNED64", Bits: 64, Kind: KindUint, Min: 0, Max: 0xFFFFFFFFFFFFFFFF})
}

// Lookup returns the registered Type for idx, or ok=false if unknown.
func Lookup(idx Index) (Type, bool) {
	t, ok := registry[idx]
	return t, ok
}

// MustLookup is Lookup but panics on an unknown index; reserved for
// call sites operating on a compile-time-constant Index.
func MustLookup(idx Index) Type {
	t, ok := registry[idx]
	if !ok {
		panic(fmt.Sprintf("dtype: unregistered index 0x%04X", idx))
	}
	return t
}

// AddCustom installs a new data-type index at runtime, e.g. a
// manufacturer-specific TIME_SCET/TIME_SUTC index. Per the process-wide
// write-once discipline (spec §5), calling AddCustom for an index that is
// already registered returns an error instead of silently overwriting it.
func AddCustom(t Type) error {
	if _, exists := registry[t.Index]; exists {
		return fmt.Errorf("dtype: index 0x%04X already registered", t.Index)
	}
	register(t)
	return nil
}

// ConciseFormat describes the little-endian wire layout concise-SDO uses to
// pack a value of this type: index:u16, sub:u8, length:u32, then the
// payload in PayloadBits (ceil'd to bytes), as a signed/unsigned integer or
// IEEE-754 float.
type ConciseFormat struct {
	PayloadBits int
	Float       bool
	Signed      bool
}

// Concise returns the wire-format descriptor for a basic type. ok is false
// for non-basic (string/domain/time) types, which concise-SDO does not pack
// directly (spec §4.2).
func (t Type) Concise() (ConciseFormat, bool) {
	if !t.IsBasic() {
		return ConciseFormat{}, false
	}
	return ConciseFormat{PayloadBits: t.Bits, Float: t.Kind == KindFloat, Signed: t.Kind == KindInt}, true
}
