package bufr

import (
	"fmt"
)

// nbincWidth is the width of the increment-width field that follows every
// compressed element's reference value.
const nbincWidth = 6

// decodeCompressed decodes a message whose data section holds all subsets
// element by element: a local reference R0, an increment width NBINC, then
// one NBINC-bit increment per subset. Subsets share one expansion, so delayed
// replication counts must agree across subsets.
func decodeCompressed(m *Message, tables *Tables) (*Dataset, error) {
	if m.Subsets == 0 {
		return assemble(m, nil), nil
	}
	cd := &compressedDecoder{r: newBitReader(m.Data), n: m.Subsets, values: make([][]Value, m.Subsets)}
	ex := &expander{tables: tables, out: cd}
	if err := ex.run(m.Descriptors); err != nil {
		// No subset is complete until the last element has been read.
		return assemble(m, nil), &SubsetError{Subset: 0, Err: dataError(err)}
	}
	subsets := make([]Subset, m.Subsets)
	for i, vals := range cd.values {
		subsets[i] = Subset{Values: vals}
	}
	return assemble(m, subsets), nil
}

type compressedDecoder struct {
	r      *bitReader
	n      int
	budget valueBudget
	values [][]Value
}

func (c *compressedDecoder) element(d *ExpandedDescriptor) error {
	if err := c.budget.take(c.n); err != nil {
		return err
	}
	vals, err := c.read(d)
	if err != nil {
		return err
	}
	for i, v := range vals {
		c.values[i] = append(c.values[i], v)
	}
	return nil
}

func (c *compressedDecoder) count(d *ExpandedDescriptor) (int, error) {
	if err := c.budget.take(c.n); err != nil {
		return 0, err
	}
	raws, _, err := c.readRaw(d.Entry.Width, false)
	if err != nil {
		return 0, fmt.Errorf("replication factor %s: %w", d.Code, err)
	}
	for i := 1; i < len(raws); i++ {
		if raws[i] != raws[0] {
			return 0, fmt.Errorf("%w: replication factor %s differs between subsets (%d, %d)",
				ErrInvalidDescriptor, d.Code, raws[0], raws[i])
		}
	}
	for i, raw := range raws {
		c.values[i] = append(c.values[i], numericValue(d, raw, false))
	}
	return int(raws[0]), nil
}

func (c *compressedDecoder) reference(d *ExpandedDescriptor) (int64, bool, error) {
	if err := c.budget.take(c.n); err != nil {
		return 0, false, err
	}
	raws, _, err := c.readRaw(d.Entry.Width, false)
	if err != nil {
		return 0, false, fmt.Errorf("reference value for %s: %w", d.Code, err)
	}
	for i := 1; i < len(raws); i++ {
		if raws[i] != raws[0] {
			return 0, false, fmt.Errorf("%w: reference value for %s differs between subsets",
				ErrInvalidDescriptor, d.Code)
		}
	}
	ref := signedReference(raws[0], d.Entry.Width)
	for i := range c.values {
		c.values[i] = append(c.values[i], numericValue(d, uint64(ref), false))
	}
	return ref, true, nil
}

// read decodes one compressed element for every subset.
func (c *compressedDecoder) read(d *ExpandedDescriptor) ([]Value, error) {
	var assoc []uint64
	if d.AssocWidth > 0 {
		a, _, err := c.readRaw(d.AssocWidth, false)
		if err != nil {
			return nil, fmt.Errorf("associated field of %s: %w", d.Code, err)
		}
		assoc = a
	}

	vals := make([]Value, c.n)
	if d.Entry.IsCharacter() {
		if err := c.readText(d, vals); err != nil {
			return nil, err
		}
	} else {
		raws, missing, err := c.readRaw(d.Entry.Width, missingAllowed(d))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Code, err)
		}
		for i := range vals {
			vals[i] = numericValue(d, raws[i], missing[i])
		}
	}
	for i := range assoc {
		vals[i].assoc, vals[i].hasAssoc = assoc[i], true
	}
	return vals, nil
}

// readRaw reads R0, NBINC and the per-subset increments of a numeric field.
// With canMiss, an all-ones R0 (when NBINC is 0) or an all-ones increment
// marks the subset's value missing.
func (c *compressedDecoder) readRaw(width int, canMiss bool) ([]uint64, []bool, error) {
	r0, err := c.r.read(width)
	if err != nil {
		return nil, nil, err
	}
	nbinc, err := c.r.read(nbincWidth)
	if err != nil {
		return nil, nil, err
	}
	raws := make([]uint64, c.n)
	missing := make([]bool, c.n)
	if nbinc == 0 {
		allMissing := canMiss && r0 == allOnes(width)
		for i := range raws {
			raws[i] = r0
			missing[i] = allMissing
		}
		return raws, missing, nil
	}
	w := int(nbinc)
	for i := range raws {
		inc, err := c.r.read(w)
		if err != nil {
			return nil, nil, err
		}
		if canMiss && inc == allOnes(w) {
			missing[i] = true
			continue
		}
		raws[i] = r0 + inc
	}
	return raws, missing, nil
}

// readText reads a compressed character field: R0 is the full field width
// of text (conventionally zeros), NBINC counts octets per subset.
func (c *compressedDecoder) readText(d *ExpandedDescriptor, vals []Value) error {
	r0, err := c.r.readBytes(d.Entry.Width / 8)
	if err != nil {
		return fmt.Errorf("%s: %w", d.Code, err)
	}
	nbinc, err := c.r.read(nbincWidth)
	if err != nil {
		return fmt.Errorf("%s: %w", d.Code, err)
	}
	if nbinc == 0 {
		v := textValue(d, r0)
		for i := range vals {
			vals[i] = v
		}
		return nil
	}
	for i := range vals {
		b, err := c.r.readBytes(int(nbinc))
		if err != nil {
			return fmt.Errorf("%s subset %d: %w", d.Code, i, err)
		}
		vals[i] = textValue(d, b)
	}
	return nil
}
