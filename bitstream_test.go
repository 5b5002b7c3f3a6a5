package bufr

import (
	"errors"
	"testing"
)

// TestBitReaderReadZeroBits verifies that reading 0 bits returns 0 without advancing position.
func TestBitReaderReadZeroBits(t *testing.T) {
	r := newBitReader([]byte{0xFF})
	v, err := r.read(0)
	if err != nil {
		t.Fatalf("read(0) error: %v", err)
	}
	if v != 0 {
		t.Errorf("read(0): got %d, want 0", v)
	}
	if r.pos != 0 {
		t.Errorf("read(0) advanced pos to %d, want 0", r.pos)
	}
}

// TestBitReaderReadSingleByte verifies reading all 8 bits of a single byte.
func TestBitReaderReadSingleByte(t *testing.T) {
	r := newBitReader([]byte{0b10110100})
	v, err := r.read(8)
	if err != nil {
		t.Fatalf("read(8) error: %v", err)
	}
	if v != 0b10110100 {
		t.Errorf("read(8): got %08b, want 10110100", v)
	}
}

// TestBitReaderReadMSBFirst verifies that bits are consumed MSB-first within each byte.
func TestBitReaderReadMSBFirst(t *testing.T) {
	// 0b10000000: only the MSB is set
	r := newBitReader([]byte{0b10000000})
	v, err := r.read(1)
	if err != nil {
		t.Fatalf("read(1) error: %v", err)
	}
	if v != 1 {
		t.Errorf("read(1) from 0x80: got %d, want 1", v)
	}
	v, err = r.read(1)
	if err != nil {
		t.Fatalf("second read(1) error: %v", err)
	}
	if v != 0 {
		t.Errorf("second read(1) from 0x80: got %d, want 0", v)
	}
}

// TestBitReaderReadCrossesBytes verifies reading spans two bytes correctly.
func TestBitReaderReadCrossesBytes(t *testing.T) {
	// bytes: 0b00000001 0b10000000
	// bits: 0000 0001 | 1000 0000
	// reading 10 bits starting at bit 0: 0000000110 = 6
	r := newBitReader([]byte{0x01, 0x80})
	v, err := r.read(10)
	if err != nil {
		t.Fatalf("read(10) error: %v", err)
	}
	if v != 0b0000000110 {
		t.Errorf("read(10): got %010b (%d), want 0000000110 (6)", v, v)
	}
}

// TestBitReaderSequentialReads verifies that multiple sequential reads accumulate position correctly.
func TestBitReaderSequentialReads(t *testing.T) {
	// 0xAB = 0b10101011
	r := newBitReader([]byte{0xAB})
	cases := []struct {
		bits uint
		want uint64
	}{
		{1, 1}, // MSB: 1
		{1, 0}, // next: 0
		{1, 1}, // next: 1
		{1, 0}, // next: 0
		{1, 1}, // next: 1
		{1, 0}, // next: 0
		{1, 1}, // next: 1
		{1, 1}, // LSB: 1
	}
	for i, tc := range cases {
		v, err := r.read(int(tc.bits))
		if err != nil {
			t.Fatalf("step %d read(%d) error: %v", i, tc.bits, err)
		}
		if v != tc.want {
			t.Errorf("step %d read(%d): got %d, want %d", i, tc.bits, v, tc.want)
		}
	}
}

// TestBitReaderOverflowReturnsError verifies that reading past the buffer returns an error.
func TestBitReaderOverflowReturnsError(t *testing.T) {
	r := newBitReader([]byte{0xFF})
	_, err := r.read(9) // 9 bits from a 1-byte (8-bit) buffer
	if !errors.Is(err, ErrOutOfBits) {
		t.Errorf("read(9) from 1-byte buffer: got %v, want ErrOutOfBits", err)
	}
	if r.pos != 0 {
		t.Errorf("failed read advanced pos to %d", r.pos)
	}
}

// TestBitReaderOverflowEmptyBuffer verifies error on read from empty buffer.
func TestBitReaderOverflowEmptyBuffer(t *testing.T) {
	r := newBitReader([]byte{})
	_, err := r.read(1)
	if err == nil {
		t.Error("read(1) from empty buffer: expected error, got nil")
	}
}

// TestBitReaderSkip verifies skip advances the cursor and refuses to run past the end.
func TestBitReaderSkip(t *testing.T) {
	r := newBitReader([]byte{0x0F, 0xF0})
	if err := r.skip(4); err != nil {
		t.Fatalf("skip(4) error: %v", err)
	}
	v, err := r.read(8)
	if err != nil {
		t.Fatalf("read(8) error: %v", err)
	}
	if v != 0xFF {
		t.Errorf("read(8) after skip(4): got 0x%02X, want 0xFF", v)
	}
	if err := r.skip(5); !errors.Is(err, ErrOutOfBits) {
		t.Errorf("skip(5) with 4 bits left: got %v, want ErrOutOfBits", err)
	}
}

// TestBitReaderRemaining verifies remaining tracks consumed bits.
func TestBitReaderRemaining(t *testing.T) {
	r := newBitReader([]byte{0xFF, 0x00, 0xAB})
	if r.remaining() != 24 {
		t.Errorf("remaining(): got %d, want 24", r.remaining())
	}
	r.read(3)
	r.read(8)
	if r.remaining() != 13 {
		t.Errorf("remaining() after 11 bits: got %d, want 13", r.remaining())
	}
}

// TestBitReaderReadBytesUnaligned verifies octets can be read from a mid-byte position.
func TestBitReaderReadBytesUnaligned(t *testing.T) {
	// 4 bits of padding, then "AB" (0x41 0x42), then 4 bits.
	r := newBitReader([]byte{0x04, 0x14, 0x20})
	r.read(4)
	b, err := r.readBytes(2)
	if err != nil {
		t.Fatalf("readBytes(2) error: %v", err)
	}
	if string(b) != "AB" {
		t.Errorf("readBytes(2): got %q, want \"AB\"", b)
	}
	if _, err := r.readBytes(1); !errors.Is(err, ErrOutOfBits) {
		t.Errorf("readBytes(1) with 4 bits left: got %v, want ErrOutOfBits", err)
	}
}

// TestBitReaderInvalidWidth verifies widths outside 0-64 are rejected.
func TestBitReaderInvalidWidth(t *testing.T) {
	r := newBitReader(make([]byte, 16))
	if _, err := r.read(65); err == nil {
		t.Error("read(65): expected error, got nil")
	}
	if _, err := r.read(-1); err == nil {
		t.Error("read(-1): expected error, got nil")
	}
}

// TestBitReaderRead64Bits verifies reading a full 64-bit value across 8 bytes.
func TestBitReaderRead64Bits(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	r := newBitReader(buf)
	v, err := r.read(64)
	if err != nil {
		t.Fatalf("read(64) error: %v", err)
	}
	want := uint64(0x0102030405060708)
	if v != want {
		t.Errorf("read(64): got 0x%016X, want 0x%016X", v, want)
	}
}

// TestBitReaderReadKnownPattern verifies a multi-bit pattern as packed in a BUFR data section.
// Encoding 3 values of 5 bits each in two bytes: [10110 01100 1xxxxx] packed MSB-first.
// 0b10110011 0b00100000 = 0xB3 0x20
// bits: 1 0 1 1 0 | 0 1 1 0 0 | 1 0 0 0 0 0 (padded)
// value[0] = 0b10110 = 22, value[1] = 0b01100 = 12, value[2] = 0b10000 = 16
func TestBitReaderReadKnownPattern(t *testing.T) {
	r := newBitReader([]byte{0xB3, 0x20})
	cases := []struct {
		bits int
		want uint64
	}{
		{5, 22}, // 10110
		{5, 12}, // 01100
		{5, 16}, // 10000 (upper bits of second byte)
	}
	for i, tc := range cases {
		v, err := r.read(tc.bits)
		if err != nil {
			t.Fatalf("case %d read(%d) error: %v", i, tc.bits, err)
		}
		if v != tc.want {
			t.Errorf("case %d read(%d): got %d, want %d", i, tc.bits, v, tc.want)
		}
	}
}
