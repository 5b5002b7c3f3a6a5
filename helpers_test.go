package bufr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// bitWriter packs values MSB-first, the inverse of bitReader.
type bitWriter struct {
	buf []byte
	n   int // bits written
}

func (w *bitWriter) write(v uint64, width int) {
	for b := width - 1; b >= 0; b-- {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		bit := byte((v >> uint(b)) & 1)
		w.buf[w.n/8] |= bit << uint(7-w.n%8)
		w.n++
	}
}

func (w *bitWriter) writeBytes(b []byte) {
	for _, c := range b {
		w.write(uint64(c), 8)
	}
}

// missing writes an all-ones field.
func (w *bitWriter) missing(width int) { w.write(allOnes(width), width) }

// physical encodes v for entry e: raw = v·10^scale − reference.
func (w *bitWriter) physical(e TableBEntry, v float64) {
	raw := int64(math.Round(v*math.Pow10(e.Scale))) - e.Reference
	w.write(uint64(raw), e.Width)
}

func (w *bitWriter) bytes() []byte { return w.buf }

// testMessage describes a message to assemble with build.
type testMessage struct {
	edition     int
	centre      int
	subsets     int
	observed    bool
	compressed  bool
	optional    []byte
	descriptors []Code
	data        []byte
}

func put24(b []byte, v int) {
	b[0], b[1], b[2] = byte(v>>16), byte(v>>8), byte(v)
}

func wireCode(c Code) (byte, byte) {
	w := uint16(c.F())<<14 | uint16(c.X())<<8 | uint16(c.Y())
	return byte(w >> 8), byte(w)
}

// build assembles sections 0-5.
func (tm testMessage) build() []byte {
	ed := tm.edition
	if ed == 0 {
		ed = 4
	}
	var flags byte
	if tm.optional != nil {
		flags = 0x80
	}

	var sec1 []byte
	if ed == 3 {
		sec1 = make([]byte, 18)
		sec1[5] = byte(tm.centre)
		sec1[7] = flags
		sec1[8] = 2 // surface data - land
		sec1[10] = 13
		sec1[12] = 20 // 2020
		sec1[13], sec1[14], sec1[15], sec1[16] = 2, 14, 0, 0
	} else {
		sec1 = make([]byte, 22)
		sec1[4], sec1[5] = byte(tm.centre>>8), byte(tm.centre)
		sec1[9] = flags
		sec1[10] = 0
		sec1[13] = 13
		sec1[15], sec1[16] = 0x07, 0xE4 // 2020
		sec1[17], sec1[18], sec1[19], sec1[20], sec1[21] = 2, 14, 0, 10, 0
	}
	put24(sec1, len(sec1))

	var sec2 []byte
	if tm.optional != nil {
		sec2 = make([]byte, 4+len(tm.optional))
		put24(sec2, len(sec2))
		copy(sec2[4:], tm.optional)
	}

	sec3 := make([]byte, 7+2*len(tm.descriptors))
	put24(sec3, len(sec3))
	sec3[4], sec3[5] = byte(tm.subsets>>8), byte(tm.subsets)
	if tm.observed {
		sec3[6] |= 0x80
	}
	if tm.compressed {
		sec3[6] |= 0x40
	}
	for i, c := range tm.descriptors {
		sec3[7+2*i], sec3[8+2*i] = wireCode(c)
	}

	sec4 := make([]byte, 4+len(tm.data))
	put24(sec4, len(sec4))
	copy(sec4[4:], tm.data)

	total := 8 + len(sec1) + len(sec2) + len(sec3) + len(sec4) + 4
	msg := make([]byte, 0, total)
	msg = append(msg, 'B', 'U', 'F', 'R', 0, 0, 0, byte(ed))
	put24(msg[4:7], total)
	msg = append(msg, sec1...)
	msg = append(msg, sec2...)
	msg = append(msg, sec3...)
	msg = append(msg, sec4...)
	msg = append(msg, "7777"...)
	return msg
}

func mustTables(t *testing.T) *Tables {
	t.Helper()
	tables, err := DefaultTables()
	require.NoError(t, err)
	return tables
}

func entry(t *testing.T, tables *Tables, c Code) TableBEntry {
	t.Helper()
	e, err := tables.LookupElement(c)
	require.NoError(t, err)
	return e
}

// amedasPeriod is one (period, amount, QC) group of a 307192 report. A NaN
// precip is coded missing.
type amedasPeriod struct {
	minutes int
	precip  float64
	qc      int
}

type amedasReport struct {
	station  int
	lat, lon float64
	height   float64
	periods  []amedasPeriod
}

// encode appends r to w following sequence 307192.
func (r amedasReport) encode(t *testing.T, tables *Tables, w *bitWriter) {
	t.Helper()
	w.write(uint64(r.station), 17)
	w.physical(entry(t, tables, 5001), r.lat)
	w.physical(entry(t, tables, 6001), r.lon)
	w.physical(entry(t, tables, 7030), r.height)
	w.write(2020, 12)
	w.write(2, 4)
	w.write(14, 6)
	w.write(0, 5)
	w.write(10, 6)
	w.write(uint64(len(r.periods)), 8)
	for _, p := range r.periods {
		w.physical(entry(t, tables, 4025), float64(p.minutes))
		if math.IsNaN(p.precip) {
			w.missing(14)
		} else {
			w.physical(entry(t, tables, 13011), p.precip)
		}
		w.write(uint64(p.qc), 8)
	}
}

// amedasMessage builds an uncompressed 307192 message holding reports.
func amedasMessage(t *testing.T, tables *Tables, reports ...amedasReport) []byte {
	t.Helper()
	var w bitWriter
	for _, r := range reports {
		r.encode(t, tables, &w)
	}
	return testMessage{
		centre:      34,
		subsets:     len(reports),
		observed:    true,
		descriptors: []Code{307192},
		data:        w.bytes(),
	}.build()
}

var tokyo = amedasReport{
	station: 47412,
	lat:     35.0,
	lon:     139.0,
	height:  25.0,
	periods: []amedasPeriod{
		{minutes: -60, precip: 0.5, qc: 1},
		{minutes: -10, precip: math.NaN(), qc: 2},
	},
}

var osaka = amedasReport{
	station: 47772,
	lat:     34.68,
	lon:     135.52,
	height:  23.0,
	periods: []amedasPeriod{{minutes: -60, precip: 12.5, qc: 0}},
}
