package bufr

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Supported editions. Edition 2 messages share the edition 3 layout but carry
// no compression flag; they are rejected rather than guessed at.
const (
	minEdition = 3
	maxEdition = 4
)

const (
	sec0Len   = 8
	endMarker = "7777"

	// minimum section lengths, including the 3-byte length field
	minSec1Ed3 = 17
	minSec1Ed4 = 22
	minSec2    = 4
	minSec3    = 7
	minSec4    = 4
)

// Identification holds the section 1 fields of a message.
type Identification struct {
	MasterTable          int
	Centre               int
	SubCentre            int
	UpdateSequence       int
	HasOptionalSection   bool
	DataCategory         int
	DataSubCategory      int // international subcategory (edition 4)
	LocalSubCategory     int
	MasterTableVersion   int
	LocalTableVersion    int
	Year, Month, Day     int
	Hour, Minute, Second int
}

// Time returns the typical date/time of the message in UTC.
func (id Identification) Time() time.Time {
	return time.Date(id.Year, time.Month(id.Month), id.Day, id.Hour, id.Minute, id.Second, 0, time.UTC)
}

// Message is a BUFR message sliced into its sections.
type Message struct {
	// Sections holds the raw bytes of sections 0 to 5. Sections[2] is nil
	// when the optional section is absent.
	Sections       [6][]byte
	Edition        int
	TotalLength    int
	Identification Identification
	Optional       []byte // section 2 payload
	Subsets        int
	Observed       bool
	Compressed     bool
	Descriptors    []Code
	Data           []byte // section 4 payload
}

// ParseMessage slices raw into its six sections. raw must start with "BUFR";
// bytes past the declared total length are ignored.
func ParseMessage(raw []byte) (*Message, error) {
	if len(raw) < 4 || string(raw[0:4]) != "BUFR" {
		return nil, fmt.Errorf("%w: missing BUFR start marker", ErrMalformedHeader)
	}
	if len(raw) < sec0Len {
		return nil, fmt.Errorf("%w: section 0 needs %d bytes, got %d", ErrTruncatedSection, sec0Len, len(raw))
	}
	total := int(uint24(raw[4:7]))
	edition := int(raw[7])
	if edition < minEdition || edition > maxEdition {
		return nil, fmt.Errorf("%w: edition %d (supported: %d-%d)", ErrUnsupportedEdition, edition, minEdition, maxEdition)
	}
	if total < sec0Len+len(endMarker) {
		return nil, fmt.Errorf("%w: total length %d too small", ErrMalformedHeader, total)
	}
	if total > len(raw) {
		return nil, fmt.Errorf("%w: total length %d exceeds buffer (%d bytes)", ErrTruncatedSection, total, len(raw))
	}
	raw = raw[:total]
	if string(raw[total-4:]) != endMarker {
		return nil, fmt.Errorf("%w: missing 7777 end marker", ErrMalformedHeader)
	}

	m := &Message{Edition: edition, TotalLength: total}
	m.Sections[0] = raw[:sec0Len]
	m.Sections[5] = raw[total-4:]
	limit := total - 4 // sections 1-4 must end before the end marker

	off := sec0Len
	sec1, next, err := sectionAt(raw, off, limit, 1)
	if err != nil {
		return nil, err
	}
	m.Sections[1] = sec1
	if m.Identification, err = parseSection1(sec1, edition); err != nil {
		return nil, err
	}
	off = next

	if m.Identification.HasOptionalSection {
		sec2, next, err := sectionAt(raw, off, limit, 2)
		if err != nil {
			return nil, err
		}
		if len(sec2) < minSec2 {
			return nil, fmt.Errorf("%w: section 2 length %d", ErrMalformedHeader, len(sec2))
		}
		m.Sections[2] = sec2
		m.Optional = sec2[4:]
		off = next
	}

	sec3, next, err := sectionAt(raw, off, limit, 3)
	if err != nil {
		return nil, err
	}
	if err := m.parseSection3(sec3); err != nil {
		return nil, err
	}
	off = next

	sec4, next, err := sectionAt(raw, off, limit, 4)
	if err != nil {
		return nil, err
	}
	if len(sec4) < minSec4 {
		return nil, fmt.Errorf("%w: section 4 length %d", ErrMalformedHeader, len(sec4))
	}
	m.Sections[4] = sec4
	m.Data = sec4[4:]
	if next != limit {
		return nil, fmt.Errorf("%w: section 4 ends at %d, end marker at %d", ErrMalformedHeader, next, limit)
	}
	return m, nil
}

// sectionAt slices the section starting at off. Every section after section 0
// opens with its own 24-bit length; limit is the offset of the end marker.
func sectionAt(buf []byte, off, limit, num int) ([]byte, int, error) {
	if off+3 > limit {
		return nil, 0, fmt.Errorf("%w: section %d header at %d runs into end marker at %d",
			ErrTruncatedSection, num, off, limit)
	}
	sLen := int(uint24(buf[off : off+3]))
	if sLen < 4 {
		return nil, 0, fmt.Errorf("%w: section %d length %d", ErrMalformedHeader, num, sLen)
	}
	end := off + sLen
	if end > limit {
		return nil, 0, fmt.Errorf("%w: section %d at %d: length %d overflows message (%d bytes before end marker)",
			ErrTruncatedSection, num, off, sLen, limit)
	}
	return buf[off:end], end, nil
}

// parseSection1 decodes the identification section. The layout differs
// between editions:
//
//	edition 3                       edition 4
//	 3  master table                 3  master table
//	 4  sub-centre                   4-5  centre
//	 5  centre                       6-7  sub-centre
//	 6  update sequence              8  update sequence
//	 7  flags (bit 1: section 2)     9  flags (bit 1: section 2)
//	 8  data category               10  data category
//	 9  data sub-category           11  international sub-category
//	10  master table version        12  local sub-category
//	11  local table version         13  master table version
//	12  year of century             14  local table version
//	13-16 month day hour minute     15-16 year
//	                                17-21 month day hour minute second
func parseSection1(sec []byte, edition int) (Identification, error) {
	var id Identification
	switch edition {
	case 3:
		if len(sec) < minSec1Ed3 {
			return id, fmt.Errorf("%w: section 1 (edition 3) needs %d bytes, got %d", ErrMalformedHeader, minSec1Ed3, len(sec))
		}
		id.MasterTable = int(sec[3])
		id.SubCentre = int(sec[4])
		id.Centre = int(sec[5])
		id.UpdateSequence = int(sec[6])
		id.HasOptionalSection = sec[7]&0x80 != 0
		id.DataCategory = int(sec[8])
		id.DataSubCategory = int(sec[9])
		id.LocalSubCategory = int(sec[9])
		id.MasterTableVersion = int(sec[10])
		id.LocalTableVersion = int(sec[11])
		id.Year = centuryYear(int(sec[12]))
		id.Month = int(sec[13])
		id.Day = int(sec[14])
		id.Hour = int(sec[15])
		id.Minute = int(sec[16])
	case 4:
		if len(sec) < minSec1Ed4 {
			return id, fmt.Errorf("%w: section 1 (edition 4) needs %d bytes, got %d", ErrMalformedHeader, minSec1Ed4, len(sec))
		}
		id.MasterTable = int(sec[3])
		id.Centre = int(binary.BigEndian.Uint16(sec[4:6]))
		id.SubCentre = int(binary.BigEndian.Uint16(sec[6:8]))
		id.UpdateSequence = int(sec[8])
		id.HasOptionalSection = sec[9]&0x80 != 0
		id.DataCategory = int(sec[10])
		id.DataSubCategory = int(sec[11])
		id.LocalSubCategory = int(sec[12])
		id.MasterTableVersion = int(sec[13])
		id.LocalTableVersion = int(sec[14])
		id.Year = int(binary.BigEndian.Uint16(sec[15:17]))
		id.Month = int(sec[17])
		id.Day = int(sec[18])
		id.Hour = int(sec[19])
		id.Minute = int(sec[20])
		id.Second = int(sec[21])
	default:
		return id, fmt.Errorf("%w: edition %d", ErrUnsupportedEdition, edition)
	}
	return id, nil
}

// centuryYear expands an edition 3 year of century. Some producers write
// years past 2000 as 100+yy, which maps to the same result.
func centuryYear(yy int) int {
	switch {
	case yy > 100:
		return 1900 + yy
	case yy == 100:
		return 2000
	case yy >= 70:
		return 1900 + yy
	default:
		return 2000 + yy
	}
}

// parseSection3 decodes the data description section: subset count, the
// observed/compressed flags and the list of unexpanded descriptors.
func (m *Message) parseSection3(sec []byte) error {
	if len(sec) < minSec3 {
		return fmt.Errorf("%w: section 3 needs %d bytes, got %d", ErrMalformedHeader, minSec3, len(sec))
	}
	m.Sections[3] = sec
	m.Subsets = int(binary.BigEndian.Uint16(sec[4:6]))
	m.Observed = sec[6]&0x80 != 0
	m.Compressed = sec[6]&0x40 != 0

	// Edition 3 pads sections to an even length, leaving one spare octet.
	n := (len(sec) - minSec3) / 2
	if n == 0 {
		return fmt.Errorf("%w: section 3 lists no descriptors", ErrMalformedHeader)
	}
	m.Descriptors = make([]Code, n)
	for i := range m.Descriptors {
		off := minSec3 + 2*i
		m.Descriptors[i] = codeFromWire(binary.BigEndian.Uint16(sec[off : off+2]))
	}
	return nil
}

func uint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
