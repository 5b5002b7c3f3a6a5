package bufr

// Selection picks one value out of every occurrence of a column's codes in a
// subset. It reports false when nothing qualifies.
type Selection func(occurrences []Value) (Value, bool)

// Nth selects the n-th occurrence, counting from zero.
func Nth(n int) Selection {
	return func(occ []Value) (Value, bool) {
		if n < 0 || n >= len(occ) {
			return Value{}, false
		}
		return occ[n], true
	}
}

// Column is one output field: the codes it draws from (any of which may
// supply a value) and which occurrence to keep.
type Column struct {
	Name   string
	Codes  []Code
	Select Selection
}

// Columns reproducing the JMA AMeDAS precipitation sample output: position,
// then two (precipitation, quality flag) pairs, where the first and second
// occurrences of the repeated codes fill the two pairs.
var ReferenceColumns = []Column{
	{Name: "lat", Codes: []Code{5001}, Select: Nth(0)},
	{Name: "lon", Codes: []Code{6001}, Select: Nth(0)},
	{Name: "precip1", Codes: []Code{13011, 13019}, Select: Nth(0)},
	{Name: "qc1", Codes: []Code{25211}, Select: Nth(0)},
	{Name: "precip2", Codes: []Code{13011, 13019}, Select: Nth(1)},
	{Name: "qc2", Codes: []Code{25211}, Select: Nth(1)},
}

// StationColumns is ReferenceColumns led by the station index.
var StationColumns = append([]Column{
	{Name: "station", Codes: []Code{1202}, Select: Nth(0)},
}, ReferenceColumns...)

// Row holds one subset's selected values, one per column.
type Row struct {
	Columns []Column
	Values  []Value
	Found   []bool
}

// Project selects columns out of every subset of ds.
func Project(ds *Dataset, cols []Column) []Row {
	rows := make([]Row, 0, ds.Len())
	for i := range ds.Subsets {
		rows = append(rows, projectSubset(&ds.Subsets[i], cols))
	}
	return rows
}

func projectSubset(s *Subset, cols []Column) Row {
	row := Row{Columns: cols, Values: make([]Value, len(cols)), Found: make([]bool, len(cols))}
	for i, col := range cols {
		var occ []Value
		for _, v := range s.Values {
			if v.Descriptor.Structural {
				continue
			}
			for _, c := range col.Codes {
				if v.Code() == c {
					occ = append(occ, v)
					break
				}
			}
		}
		sel := col.Select
		if sel == nil {
			sel = Nth(0)
		}
		row.Values[i], row.Found[i] = sel(occ)
	}
	return row
}

// Float returns column i as a float64, or MissingSentinel when the column
// was not found, is missing or is not numeric.
func (r Row) Float(i int) float64 {
	if !r.Found[i] {
		return MissingSentinel
	}
	f, ok := r.Values[i].Float()
	if !ok {
		return MissingSentinel
	}
	return f
}

// Int returns column i as an int64, or MissingSentinel when the column was
// not found, is missing or is not an integer.
func (r Row) Int(i int) int64 {
	if !r.Found[i] {
		return MissingSentinel
	}
	n, ok := r.Values[i].Int()
	if !ok {
		return MissingSentinel
	}
	return int64(n)
}
