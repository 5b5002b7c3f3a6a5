package bufr

import (
	"fmt"
	"strings"
)

// Kind is the representation a decoded element takes.
type Kind uint8

const (
	KindMissing Kind = iota
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "missing"
	}
}

// TableBEntry defines an element descriptor (class 0).
type TableBEntry struct {
	Code      Code
	Name      string
	Unit      string
	Scale     int
	Reference int64
	Width     int // bits
}

// IsCharacter reports whether the entry holds CCITT IA5 text.
func (e TableBEntry) IsCharacter() bool {
	u := strings.ToUpper(strings.ReplaceAll(e.Unit, " ", ""))
	return u == "CCITTIA5" || u == "CHARACTER"
}

// IsCodeOrFlag reports whether the entry refers to a code or flag table.
func (e TableBEntry) IsCodeOrFlag() bool {
	u := strings.ToUpper(e.Unit)
	return strings.HasPrefix(u, "CODE TABLE") || strings.HasPrefix(u, "FLAG TABLE") ||
		u == "CODE" || u == "FLAG"
}

// Kind returns how values of this entry are represented once decoded:
// text for CCITT IA5, integers for code/flag tables and unscaled numerics,
// floats for everything else.
func (e TableBEntry) Kind() Kind {
	switch {
	case e.IsCharacter():
		return KindString
	case e.IsCodeOrFlag(), e.Scale == 0:
		return KindInt
	default:
		return KindFloat
	}
}

// TableDEntry defines a sequence descriptor (class 3).
type TableDEntry struct {
	Code    Code
	Members []Code
}

// Tables holds Table B and Table D definitions.
//
// Tables is written once and then shared read-only: every Load must complete
// before decoding starts, after which any number of goroutines may decode
// against the same store.
type Tables struct {
	b map[Code]TableBEntry
	d map[Code]TableDEntry
}

// NewTables returns an empty table store.
func NewTables() *Tables {
	return &Tables{
		b: make(map[Code]TableBEntry),
		d: make(map[Code]TableDEntry),
	}
}

// Load bulk-inserts entries. A later entry for a code already present
// replaces the earlier one, which is how local tables override the master.
func (t *Tables) Load(b []TableBEntry, d []TableDEntry) error {
	for _, e := range b {
		if e.Code.F() != ClassElement {
			return fmt.Errorf("%w: table B entry %s is not an element descriptor", ErrInvalidDescriptor, e.Code)
		}
		if e.Width <= 0 {
			return fmt.Errorf("%w: table B entry %s has width %d", ErrInvalidDescriptor, e.Code, e.Width)
		}
		t.b[e.Code] = e
	}
	for _, e := range d {
		if e.Code.F() != ClassSequence {
			return fmt.Errorf("%w: table D entry %s is not a sequence descriptor", ErrInvalidDescriptor, e.Code)
		}
		members := make([]Code, len(e.Members))
		copy(members, e.Members)
		t.d[e.Code] = TableDEntry{Code: e.Code, Members: members}
	}
	return nil
}

// LookupElement returns the Table B entry for code.
func (t *Tables) LookupElement(code Code) (TableBEntry, error) {
	e, ok := t.b[code]
	if !ok {
		return TableBEntry{}, fmt.Errorf("table B %s: %w", code, ErrNotFound)
	}
	return e, nil
}

// LookupSequence returns the Table D entry for code.
func (t *Tables) LookupSequence(code Code) (TableDEntry, error) {
	e, ok := t.d[code]
	if !ok {
		return TableDEntry{}, fmt.Errorf("table D %s: %w", code, ErrNotFound)
	}
	return e, nil
}

// Len returns the number of Table B and Table D entries.
func (t *Tables) Len() (b, d int) { return len(t.b), len(t.d) }
