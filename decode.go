// Package bufr decodes WMO FM 94 BUFR messages (editions 3 and 4) into
// datasets of typed observation values, resolving Table B/D descriptors,
// replication and the common data-width/scale/reference operators without
// any external decoding library.
package bufr

import (
	"errors"
	"fmt"
)

// Input sanity limits.
const (
	// maxValues caps the values decoded from one message. A compressed
	// element costs as little as 7 bits yet yields one value per subset, so
	// the data section size alone does not bound memory.
	maxValues = 1 << 20
)

// valueBudget counts decoded values against maxValues.
type valueBudget struct{ n int }

func (b *valueBudget) take(k int) error {
	b.n += k
	if b.n > maxValues {
		return fmt.Errorf("%w: more than %d values in one message", ErrLimitExceeded, maxValues)
	}
	return nil
}

// DecodeMessage parses and decodes one raw BUFR message.
//
// Structural errors (bad markers, truncated sections, unsupported editions)
// return a nil Dataset. Errors met while decoding the data section return
// the subsets decoded so far together with a *SubsetError. Whole octets left
// unread after the declared subsets are reported as ErrSubsetCount.
func DecodeMessage(raw []byte, tables *Tables) (*Dataset, error) {
	m, err := ParseMessage(raw)
	if err != nil {
		return nil, err
	}
	return Decode(m, tables)
}

// Decode decodes the data section of a parsed message.
func Decode(m *Message, tables *Tables) (*Dataset, error) {
	if tables == nil {
		return nil, errors.New("bufr: nil tables")
	}
	if m.Compressed {
		return decodeCompressed(m, tables)
	}
	return decodeUncompressed(m, tables)
}

// decodeUncompressed decodes subsets one after another from a single bit
// stream. Each subset re-runs expansion so delayed replication counts can
// differ between subsets.
func decodeUncompressed(m *Message, tables *Tables) (*Dataset, error) {
	r := newBitReader(m.Data)
	budget := &valueBudget{}
	subsets := make([]Subset, 0, min(m.Subsets, 1024))
	hint := 0
	for i := 0; i < m.Subsets; i++ {
		sd := &subsetDecoder{r: r, budget: budget, values: make([]Value, 0, hint)}
		ex := &expander{tables: tables, out: sd}
		if err := ex.run(m.Descriptors); err != nil {
			return assemble(m, subsets), &SubsetError{Subset: i, Err: dataError(err)}
		}
		hint = len(sd.values)
		subsets = append(subsets, Subset{Values: sd.values})
	}
	// Edition 3 pads section 4 to an even length, so one spare octet may
	// follow the bit padding.
	slack := 8
	if m.Edition == 3 {
		slack = 16
	}
	if left := r.remaining(); left >= slack {
		return assemble(m, subsets), fmt.Errorf("%w: %d bits left after %d subsets",
			ErrSubsetCount, left, m.Subsets)
	}
	return assemble(m, subsets), nil
}

// dataError tags running out of bits as a truncated data section.
func dataError(err error) error {
	if errors.Is(err, ErrOutOfBits) {
		return fmt.Errorf("%w: %w", ErrTruncatedData, err)
	}
	return err
}

// subsetDecoder reads the values of one uncompressed subset.
type subsetDecoder struct {
	r      *bitReader
	budget *valueBudget
	values []Value
}

func (s *subsetDecoder) element(d *ExpandedDescriptor) error {
	if err := s.budget.take(1); err != nil {
		return err
	}
	v, err := s.read(d)
	if err != nil {
		return err
	}
	s.values = append(s.values, v)
	return nil
}

func (s *subsetDecoder) count(d *ExpandedDescriptor) (int, error) {
	if err := s.budget.take(1); err != nil {
		return 0, err
	}
	raw, err := s.r.read(d.Entry.Width)
	if err != nil {
		return 0, fmt.Errorf("replication factor %s: %w", d.Code, err)
	}
	v := numericValue(d, raw, false)
	s.values = append(s.values, v)
	n, _ := v.Int()
	if n < 0 {
		return 0, fmt.Errorf("%w: replication factor %s decodes to %d", ErrInvalidDescriptor, d.Code, n)
	}
	return int(n), nil
}

func (s *subsetDecoder) reference(d *ExpandedDescriptor) (int64, bool, error) {
	if err := s.budget.take(1); err != nil {
		return 0, false, err
	}
	raw, err := s.r.read(d.Entry.Width)
	if err != nil {
		return 0, false, fmt.Errorf("reference value for %s: %w", d.Code, err)
	}
	ref := signedReference(raw, d.Entry.Width)
	s.values = append(s.values, numericValue(d, uint64(ref), false))
	return ref, true, nil
}

func (s *subsetDecoder) read(d *ExpandedDescriptor) (Value, error) {
	var assoc uint64
	if d.AssocWidth > 0 {
		a, err := s.r.read(d.AssocWidth)
		if err != nil {
			return Value{}, fmt.Errorf("associated field of %s: %w", d.Code, err)
		}
		assoc = a
	}

	var v Value
	if d.Entry.IsCharacter() {
		b, err := s.r.readBytes(d.Entry.Width / 8)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", d.Code, err)
		}
		v = textValue(d, b)
	} else {
		raw, err := s.r.read(d.Entry.Width)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", d.Code, err)
		}
		v = numericValue(d, raw, missingAllowed(d) && raw == allOnes(d.Entry.Width))
	}
	if d.AssocWidth > 0 {
		v.assoc, v.hasAssoc = assoc, true
	}
	return v, nil
}
