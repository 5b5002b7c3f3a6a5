package bufr

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// MissingSentinel is substituted for missing observations in projections,
// following the convention of the JMA sample decoders.
const MissingSentinel = -9999

// Value is one decoded descriptor value: an int32, a float64, a string, or
// missing. It keeps the expanded descriptor it was decoded from.
type Value struct {
	Descriptor ExpandedDescriptor

	kind     Kind
	i        int32
	f        float64
	s        string
	assoc    uint64
	hasAssoc bool
}

// IntValue returns an integer value for d.
func IntValue(d ExpandedDescriptor, v int32) Value {
	return Value{Descriptor: d, kind: KindInt, i: v}
}

// FloatValue returns a floating-point value for d.
func FloatValue(d ExpandedDescriptor, v float64) Value {
	return Value{Descriptor: d, kind: KindFloat, f: v}
}

// StringValue returns a text value for d.
func StringValue(d ExpandedDescriptor, v string) Value {
	return Value{Descriptor: d, kind: KindString, s: v}
}

// MissingValue returns a missing value for d.
func MissingValue(d ExpandedDescriptor) Value {
	return Value{Descriptor: d, kind: KindMissing}
}

// Code returns the descriptor code the value was decoded from.
func (v Value) Code() Code { return v.Descriptor.Code }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the field was coded as missing.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Int returns the integer variant.
func (v Value) Int() (int32, bool) {
	return v.i, v.kind == KindInt
}

// Float returns the value as float64. Integer values convert; text and
// missing values do not.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Text returns the string variant.
func (v Value) Text() (string, bool) {
	return v.s, v.kind == KindString
}

// Associated returns the associated field bits (operator 204) read with the
// value, if any.
func (v Value) Associated() (uint64, bool) {
	return v.assoc, v.hasAssoc
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', max(v.Descriptor.Entry.Scale, 0), 64)
	case KindString:
		return v.s
	default:
		return "MISSING"
	}
}

// missingAllowed reports whether an all-ones field means missing for d.
// Replication factors, associated field significance and new reference
// values always carry their literal value.
func missingAllowed(d *ExpandedDescriptor) bool {
	return d.Code.X() != 31 && d.Role != RoleReferenceDefinition
}

func allOnes(width int) uint64 {
	if width >= 64 {
		return math.MaxUint64
	}
	return 1<<uint(width) - 1
}

// numericValue applies the Table B transform to a raw field:
//
//	value = (raw + reference) × 10^(−scale)
//
// Integer-kind entries keep raw + reference when it fits in an int32.
func numericValue(d *ExpandedDescriptor, raw uint64, missing bool) Value {
	if missing {
		return MissingValue(*d)
	}
	e := d.Entry
	x := int64(raw) + e.Reference
	if e.Kind() == KindInt && x >= math.MinInt32 && x <= math.MaxInt32 {
		return IntValue(*d, int32(x))
	}
	f := float64(x)
	switch {
	case e.Scale > 0:
		f /= math.Pow10(e.Scale)
	case e.Scale < 0:
		f *= math.Pow10(-e.Scale)
	}
	return FloatValue(*d, f)
}

// textValue decodes CCITT IA5 octets. Fields of all 0xFF are missing;
// trailing blanks and NULs are padding.
func textValue(d *ExpandedDescriptor, b []byte) Value {
	allFF := len(b) > 0
	for _, c := range b {
		if c != 0xFF {
			allFF = false
			break
		}
	}
	if allFF {
		return MissingValue(*d)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		s = b
	}
	return StringValue(*d, strings.TrimRight(string(s), " \x00"))
}

// signedReference decodes a 203YYY reference value: the leftmost bit is the
// sign, the rest the magnitude.
func signedReference(raw uint64, width int) int64 {
	sign := uint64(1) << uint(width-1)
	if raw&sign != 0 {
		return -int64(raw &^ sign)
	}
	return int64(raw)
}
