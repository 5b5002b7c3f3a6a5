package bufr

import (
	"fmt"
	"maps"
	"math"
)

// Expansion limits.
const (
	// maxDepth bounds Table D and replication nesting. Real tables nest
	// fewer than ten deep; anything deeper is a table that refers to itself.
	maxDepth = 50

	// maxExpanded caps the expansion steps of one subset. Emitted
	// descriptors, operators, sequences and replication passes all count, so
	// nested replications cannot loop unbounded even when their bodies hold
	// nothing but operators.
	maxExpanded = 1 << 22

	// maxIncrease is the largest 207YYY whose 10^YYY fits in an int64.
	maxIncrease = 18
)

// Role says what an expanded descriptor is doing in the data stream.
type Role uint8

const (
	// RoleValue is an ordinary element value.
	RoleValue Role = iota
	// RoleReplicationFactor is a delayed replication count.
	RoleReplicationFactor
	// RoleReferenceDefinition is a new reference value under operator 203.
	RoleReferenceDefinition
	// RoleLocalSkipped is a local descriptor announced by operator 206 that
	// the tables do not define; its bits are read but not interpreted.
	RoleLocalSkipped
)

// ExpandedDescriptor is one elementary descriptor after Table D sequences,
// replication and operators have been resolved.
type ExpandedDescriptor struct {
	Code Code
	// Entry is the effective Table B entry: scale, reference and width
	// already carry any active operator changes.
	Entry TableBEntry
	// Group identifies the innermost replication group (0 outside any) and
	// Repetition the pass through it.
	Group      int
	Repetition int
	// AssocWidth is the width of the associated field (operator 204) that
	// precedes the value in the data stream.
	AssocWidth int
	// Structural marks descriptors that describe the data layout rather than
	// an observation: replication factors, reference definitions and skipped
	// local descriptors.
	Structural bool
	Role       Role
}

// sink receives descriptors in data-stream order. The value decoders
// implement it by reading bits; Expand implements it by collecting.
type sink interface {
	element(d *ExpandedDescriptor) error
	// count returns the delayed replication count for factor d.
	count(d *ExpandedDescriptor) (int, error)
	// reference returns the new reference value announced by d, or false
	// when it is not known (static expansion).
	reference(d *ExpandedDescriptor) (int64, bool, error)
}

// modifiers is the operator state in effect while expanding. It is passed by
// value into every sequence and replication body, so changes made inside one
// never outlive it. refs and assoc are copied on write.
type modifiers struct {
	widthDelta   int            // 201
	scaleDelta   int            // 202
	refWidth     int            // 203YYY: defining new reference values
	refs         map[Code]int64 // 203: redefined reference values
	assoc        []int          // 204: associated field widths
	pendingLocal int            // 206
	increase     int            // 207
	charWidth    int            // 208, in bits
}

func (m *modifiers) assocWidth() int {
	w := 0
	for _, a := range m.assoc {
		w += a
	}
	return w
}

// apply returns the effective entry for e under m. Width, scale and
// reference operators do not touch text, code and flag tables, or class 31.
func (m *modifiers) apply(e TableBEntry) (TableBEntry, error) {
	if e.IsCharacter() {
		if m.charWidth > 0 {
			e.Width = m.charWidth
		}
		return e, nil
	}
	if e.Code.X() == 31 || e.IsCodeOrFlag() {
		return e, nil
	}
	if m.increase > 0 {
		p := pow10i(m.increase)
		if e.Reference > math.MaxInt64/p || e.Reference < math.MinInt64/p {
			return e, fmt.Errorf("%w: %s reference %d overflows under 207%03d",
				ErrInvalidDescriptor, e.Code, e.Reference, m.increase)
		}
		e.Scale += m.increase
		e.Reference *= p
		e.Width += (10*m.increase + 2) / 3
	}
	e.Width += m.widthDelta
	e.Scale += m.scaleDelta
	if r, ok := m.refs[e.Code]; ok {
		e.Reference = r
	}
	return e, nil
}

type expander struct {
	tables *Tables
	out    sink
	groups int // last replication group id handed out
	n      int // descriptors emitted
}

// Expand flattens a descriptor list against tables. counts supplies delayed
// replication counts in the order the factors are met; it may be nil when
// the list holds no delayed replication. Reference values defined with
// operator 203 come from the data stream and are left unapplied.
func Expand(codes []Code, tables *Tables, counts []int) ([]ExpandedDescriptor, error) {
	s := &staticSink{counts: counts}
	e := &expander{tables: tables, out: s}
	if err := e.run(codes); err != nil {
		return nil, err
	}
	return s.out, nil
}

func (e *expander) run(codes []Code) error {
	return e.expand(codes, modifiers{}, 0, 0, 0)
}

// step counts one unit of expansion work against maxExpanded.
func (e *expander) step() error {
	e.n++
	if e.n > maxExpanded {
		return fmt.Errorf("%w: more than %d expansion steps in one subset", ErrLimitExceeded, maxExpanded)
	}
	return nil
}

func (e *expander) expand(codes []Code, mods modifiers, depth, group, rep int) error {
	for i := 0; i < len(codes); i++ {
		c := codes[i]
		switch c.F() {
		case ClassElement:
			if err := e.element(c, &mods, group, rep); err != nil {
				return err
			}

		case ClassReplication:
			consumed, err := e.replicate(codes[i:], mods, depth)
			if err != nil {
				return err
			}
			i += consumed - 1

		case ClassOperator:
			if err := e.step(); err != nil {
				return err
			}
			if err := e.operator(c, &mods, group, rep); err != nil {
				return err
			}

		case ClassSequence:
			if depth+1 > maxDepth {
				return fmt.Errorf("%w: %s nested more than %d levels", ErrCyclicTableD, c, maxDepth)
			}
			if err := e.step(); err != nil {
				return err
			}
			seq, err := e.tables.LookupSequence(c)
			if err != nil {
				return err
			}
			if err := e.expand(seq.Members, mods, depth+1, group, rep); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%w: %s", ErrInvalidDescriptor, c)
		}
	}
	return nil
}

// element emits one Table B descriptor, honouring pending 203 and 206 state.
func (e *expander) element(c Code, mods *modifiers, group, rep int) error {
	if mods.refWidth > 0 {
		if _, err := e.tables.LookupElement(c); err != nil {
			return err
		}
		d := ExpandedDescriptor{
			Code:       c,
			Entry:      TableBEntry{Code: c, Name: "NEW REFERENCE VALUE", Unit: "NUMERIC", Width: mods.refWidth},
			Group:      group,
			Repetition: rep,
			Structural: true,
			Role:       RoleReferenceDefinition,
		}
		if err := e.step(); err != nil {
			return err
		}
		ref, ok, err := e.out.reference(&d)
		if err != nil {
			return err
		}
		if ok {
			refs := maps.Clone(mods.refs)
			if refs == nil {
				refs = make(map[Code]int64)
			}
			refs[c] = ref
			mods.refs = refs
		}
		return nil
	}

	if w := mods.pendingLocal; w > 0 {
		mods.pendingLocal = 0
		entry, err := e.tables.LookupElement(c)
		if err != nil || entry.Width != w {
			d := ExpandedDescriptor{
				Code:       c,
				Entry:      TableBEntry{Code: c, Name: "UNDEFINED LOCAL DESCRIPTOR", Unit: "NUMERIC", Width: w},
				Group:      group,
				Repetition: rep,
				Structural: true,
				Role:       RoleLocalSkipped,
			}
			if err := e.step(); err != nil {
				return err
			}
			return e.out.element(&d)
		}
	}

	entry, err := e.tables.LookupElement(c)
	if err != nil {
		return err
	}
	if entry, err = mods.apply(entry); err != nil {
		return err
	}
	d := ExpandedDescriptor{
		Code:       c,
		Entry:      entry,
		Group:      group,
		Repetition: rep,
		Role:       RoleValue,
	}
	if c.X() != 31 {
		d.AssocWidth = mods.assocWidth()
	}
	if err := checkWidth(d.Entry); err != nil {
		return err
	}
	if err := e.step(); err != nil {
		return err
	}
	return e.out.element(&d)
}

// replicate expands the replication starting at codes[0] and returns how
// many descriptors of codes it consumed.
func (e *expander) replicate(codes []Code, mods modifiers, depth int) (int, error) {
	op := codes[0]
	span, times := op.X(), op.Y()
	if span == 0 {
		return 0, fmt.Errorf("%w: replication %s spans no descriptors", ErrInvalidDescriptor, op)
	}
	if depth+1 > maxDepth {
		return 0, fmt.Errorf("%w: replication %s nested more than %d levels", ErrCyclicTableD, op, maxDepth)
	}
	e.groups++
	id := e.groups

	if times > 0 {
		if 1+span > len(codes) {
			return 0, fmt.Errorf("%w: replication %s needs %d descriptors, %d follow",
				ErrInvalidDescriptor, op, span, len(codes)-1)
		}
		body := codes[1 : 1+span]
		for r := 0; r < times; r++ {
			if err := e.step(); err != nil {
				return 0, err
			}
			if err := e.expand(body, mods, depth+1, id, r); err != nil {
				return 0, err
			}
		}
		return 1 + span, nil
	}

	// Delayed: the factor descriptor follows the operator, then the body.
	if 2+span > len(codes) {
		return 0, fmt.Errorf("%w: delayed replication %s needs a factor and %d descriptors, %d follow",
			ErrInvalidDescriptor, op, span, len(codes)-1)
	}
	fc := codes[1]
	if fc.F() != ClassElement || fc.X() != 31 {
		return 0, fmt.Errorf("%w: delayed replication %s followed by %s, not a replication factor",
			ErrInvalidDescriptor, op, fc)
	}
	switch fc.Y() {
	case 0, 1, 2:
	case 11, 12:
		return 0, fmt.Errorf("%w: delayed repetition factor %s", ErrUnsupportedOperator, fc)
	default:
		return 0, fmt.Errorf("%w: %s is not a replication factor", ErrInvalidDescriptor, fc)
	}
	entry, err := e.tables.LookupElement(fc)
	if err != nil {
		return 0, err
	}
	d := ExpandedDescriptor{
		Code:       fc,
		Entry:      entry,
		Group:      id,
		Structural: true,
		Role:       RoleReplicationFactor,
	}
	if err := e.step(); err != nil {
		return 0, err
	}
	n, err := e.out.count(&d)
	if err != nil {
		return 0, err
	}
	body := codes[2 : 2+span]
	for r := 0; r < n; r++ {
		if err := e.step(); err != nil {
			return 0, err
		}
		if err := e.expand(body, mods, depth+1, id, r); err != nil {
			return 0, err
		}
	}
	return 2 + span, nil
}

// operator updates mods for a class 2 descriptor, or emits the inline
// character field of 205YYY.
func (e *expander) operator(c Code, mods *modifiers, group, rep int) error {
	y := c.Y()
	switch c.X() {
	case 1:
		mods.widthDelta = operand(y)
	case 2:
		mods.scaleDelta = operand(y)
	case 3:
		switch y {
		case 0:
			mods.refs = nil
		case 255:
			mods.refWidth = 0
		default:
			if y > 64 {
				return fmt.Errorf("%w: %s reference width %d exceeds 64", ErrUnsupportedOperator, c, y)
			}
			mods.refWidth = y
		}
	case 4:
		if y == 0 {
			if len(mods.assoc) > 0 {
				mods.assoc = mods.assoc[:len(mods.assoc)-1 : len(mods.assoc)-1]
			}
		} else {
			mods.assoc = append(mods.assoc[:len(mods.assoc):len(mods.assoc)], y)
		}
	case 5:
		if y == 0 {
			return fmt.Errorf("%w: %s inserts no characters", ErrInvalidDescriptor, c)
		}
		d := ExpandedDescriptor{
			Code:       c,
			Entry:      TableBEntry{Code: c, Name: "CHARACTER INFORMATION", Unit: "CCITT IA5", Width: 8 * y},
			Group:      group,
			Repetition: rep,
			Role:       RoleValue,
		}
		return e.out.element(&d)
	case 6:
		mods.pendingLocal = y
	case 7:
		if y > maxIncrease {
			return fmt.Errorf("%w: %s increases scale by more than %d", ErrUnsupportedOperator, c, maxIncrease)
		}
		mods.increase = y
	case 8:
		mods.charWidth = 8 * y
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOperator, c)
	}
	return nil
}

// operand decodes the YYY of 201/202: 0 cancels, otherwise YYY-128.
func operand(y int) int {
	if y == 0 {
		return 0
	}
	return y - 128
}

func checkWidth(e TableBEntry) error {
	if e.IsCharacter() {
		if e.Width <= 0 || e.Width%8 != 0 {
			return fmt.Errorf("%w: %s text width %d is not a whole number of octets", ErrInvalidDescriptor, e.Code, e.Width)
		}
		return nil
	}
	if e.Width <= 0 || e.Width > 64 {
		return fmt.Errorf("%w: %s effective width %d outside 1-64", ErrInvalidDescriptor, e.Code, e.Width)
	}
	return nil
}

func pow10i(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// staticSink collects an expansion without a data stream.
type staticSink struct {
	out    []ExpandedDescriptor
	counts []int
	next   int
}

func (s *staticSink) element(d *ExpandedDescriptor) error {
	s.out = append(s.out, *d)
	return nil
}

func (s *staticSink) count(d *ExpandedDescriptor) (int, error) {
	s.out = append(s.out, *d)
	if s.next >= len(s.counts) {
		return 0, fmt.Errorf("%w: factor %s is delayed replication #%d, %d counts given",
			ErrMissingReplicationCount, d.Code, s.next+1, len(s.counts))
	}
	n := s.counts[s.next]
	s.next++
	if n < 0 {
		return 0, fmt.Errorf("%w: negative replication count %d", ErrInvalidDescriptor, n)
	}
	return n, nil
}

func (s *staticSink) reference(d *ExpandedDescriptor) (int64, bool, error) {
	s.out = append(s.out, *d)
	return 0, false, nil
}
