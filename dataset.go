package bufr

import (
	"github.com/elliotchance/orderedmap/v3"
)

// Dataset is the decoded content of one message: its section 1 metadata and
// one Subset per report. The decoder does not touch it after returning it.
type Dataset struct {
	Edition         int
	Identification  Identification
	Observed        bool
	Compressed      bool
	DeclaredSubsets int // subset count from section 3
	Descriptors     []Code
	Subsets         []Subset
}

// Subset is one report: values in data-stream order, one per expanded
// descriptor.
type Subset struct {
	Values []Value
}

// assemble builds the Dataset for m from its decoded subsets.
func assemble(m *Message, subsets []Subset) *Dataset {
	if subsets == nil {
		subsets = []Subset{}
	}
	return &Dataset{
		Edition:         m.Edition,
		Identification:  m.Identification,
		Observed:        m.Observed,
		Compressed:      m.Compressed,
		DeclaredSubsets: m.Subsets,
		Descriptors:     m.Descriptors,
		Subsets:         subsets,
	}
}

// Len returns the number of decoded subsets.
func (ds *Dataset) Len() int { return len(ds.Subsets) }

// Subset returns subset i.
func (ds *Dataset) Subset(i int) *Subset { return &ds.Subsets[i] }

// Complete reports whether every subset declared in section 3 was decoded.
func (ds *Dataset) Complete() bool { return len(ds.Subsets) == ds.DeclaredSubsets }

// Descriptors returns the expanded descriptor of each value, in order.
func (s *Subset) Descriptors() []ExpandedDescriptor {
	out := make([]ExpandedDescriptor, len(s.Values))
	for i, v := range s.Values {
		out[i] = v.Descriptor
	}
	return out
}

// Lookup returns every non-structural occurrence of code, in order.
func (s *Subset) Lookup(code Code) []Value {
	var out []Value
	for _, v := range s.Values {
		if v.Code() == code && !v.Descriptor.Structural {
			out = append(out, v)
		}
	}
	return out
}

// First returns the first non-structural occurrence of code.
func (s *Subset) First(code Code) (Value, bool) {
	for _, v := range s.Values {
		if v.Code() == code && !v.Descriptor.Structural {
			return v, true
		}
	}
	return Value{}, false
}

// Data returns the values that carry observations, dropping replication
// factors and other structural descriptors.
func (s *Subset) Data() []Value {
	out := make([]Value, 0, len(s.Values))
	for _, v := range s.Values {
		if !v.Descriptor.Structural {
			out = append(out, v)
		}
	}
	return out
}

// Index groups the non-structural values by code, keeping codes in the
// order they first appear.
func (s *Subset) Index() *orderedmap.OrderedMap[Code, []Value] {
	idx := orderedmap.NewOrderedMap[Code, []Value]()
	for _, v := range s.Values {
		if v.Descriptor.Structural {
			continue
		}
		occ, _ := idx.Get(v.Code())
		idx.Set(v.Code(), append(occ, v))
	}
	return idx
}
