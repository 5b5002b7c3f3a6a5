package bufr

import (
	"encoding/binary"
	"fmt"
)

// bitReader reads unsigned integers of arbitrary bit width from a byte slice.
// Bits are consumed MSB-first within each byte (big-endian bit order) and the
// cursor only moves forward.
type bitReader struct {
	buf []byte
	pos int // current bit position
}

func newBitReader(b []byte) *bitReader { return &bitReader{buf: b} }

// read reads n bits (0 ≤ n ≤ 64) and returns them as a uint64.
func (r *bitReader) read(n int) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("bitReader: invalid read width %d", n)
	}
	end := r.pos + n
	if end > len(r.buf)*8 {
		return 0, fmt.Errorf("%w: read %d bits at pos %d overflows buffer (%d bytes)",
			ErrOutOfBits, n, r.pos, len(r.buf))
	}
	// Fast path: byte-aligned reads of exact byte widths.
	if r.pos%8 == 0 {
		off := r.pos / 8
		switch n {
		case 8:
			r.pos = end
			return uint64(r.buf[off]), nil
		case 16:
			r.pos = end
			return uint64(binary.BigEndian.Uint16(r.buf[off:])), nil
		case 32:
			r.pos = end
			return uint64(binary.BigEndian.Uint32(r.buf[off:])), nil
		case 64:
			r.pos = end
			return binary.BigEndian.Uint64(r.buf[off:]), nil
		}
	}
	var v uint64
	for i := 0; i < n; i++ {
		byteIdx := (r.pos + i) / 8
		bitIdx := 7 - ((r.pos + i) % 8)
		bit := (r.buf[byteIdx] >> bitIdx) & 1
		v = (v << 1) | uint64(bit)
	}
	r.pos = end
	return v, nil
}

// readBytes reads n whole octets starting at the current (possibly unaligned)
// bit position. Character data in BUFR need not start on a byte boundary.
func (r *bitReader) readBytes(n int) ([]byte, error) {
	if n*8 > r.remaining() {
		return nil, fmt.Errorf("%w: read %d octets at pos %d overflows buffer (%d bytes)",
			ErrOutOfBits, n, r.pos, len(r.buf))
	}
	out := make([]byte, n)
	if r.pos%8 == 0 {
		off := r.pos / 8
		copy(out, r.buf[off:off+n])
		r.pos += n * 8
		return out, nil
	}
	for i := range out {
		v, err := r.read(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// skip advances the cursor by n bits.
func (r *bitReader) skip(n int) error {
	if n < 0 || n > r.remaining() {
		return fmt.Errorf("%w: skip %d bits at pos %d overflows buffer (%d bytes)",
			ErrOutOfBits, n, r.pos, len(r.buf))
	}
	r.pos += n
	return nil
}

// remaining returns the number of unread bits.
func (r *bitReader) remaining() int { return len(r.buf)*8 - r.pos }
