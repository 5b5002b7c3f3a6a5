package bufr

import (
	"fmt"
	"strconv"
)

// Code is a BUFR descriptor in its canonical F·XXYYY integer form, e.g. 5001
// for 0 05 001 (latitude) or 301011 for the year/month/day sequence.
type Code int

// Descriptor classes (the F part of a code).
const (
	ClassElement     = 0
	ClassReplication = 1
	ClassOperator    = 2
	ClassSequence    = 3
)

// NewCode builds a code from its F, X and Y parts.
func NewCode(f, x, y int) Code {
	return Code(f*100000 + x*1000 + y)
}

// ParseCode parses a six-digit descriptor such as "005001" or "301011".
func ParseCode(s string) (Code, error) {
	if len(s) != 6 {
		return 0, fmt.Errorf("%w: %q is not a six-digit descriptor", ErrInvalidDescriptor, s)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a six-digit descriptor", ErrInvalidDescriptor, s)
	}
	c := Code(n)
	if c.F() > 3 || c.X() > 63 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidDescriptor, s)
	}
	return c, nil
}

// codeFromWire decodes the 16-bit section 3 form: 2 bits F, 6 bits X, 8 bits Y.
func codeFromWire(w uint16) Code {
	return NewCode(int(w>>14), int((w>>8)&0x3F), int(w&0xFF))
}

// F returns the descriptor class.
func (c Code) F() int { return int(c) / 100000 }

// X returns the class/group part.
func (c Code) X() int { return int(c) / 1000 % 100 }

// Y returns the entry/operand part.
func (c Code) Y() int { return int(c) % 1000 }

func (c Code) String() string { return fmt.Sprintf("%06d", int(c)) }
