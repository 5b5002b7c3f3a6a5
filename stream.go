package bufr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// MessageReader splits a byte stream of concatenated BUFR messages. Bytes
// between messages (bulletin headers, padding) are skipped.
type MessageReader struct {
	r       *bufio.Reader
	pending []byte // bytes given back after a false start, read before r
	count   int
}

// NewMessageReader returns a reader of messages from r.
func NewMessageReader(r io.Reader) *MessageReader {
	return &MessageReader{r: bufio.NewReaderSize(r, 64<<10)}
}

// Next returns the raw bytes of the next message, from "BUFR" through the
// declared total length. It returns io.EOF when no further message starts.
// A "BUFR" whose declared length does not end on "7777" is not a message;
// scanning resumes right after it.
func (mr *MessageReader) Next() ([]byte, error) {
	for {
		if err := mr.seekMarker(); err != nil {
			return nil, err
		}
		var hdr [sec0Len]byte
		copy(hdr[:4], "BUFR")
		if err := mr.readFull(hdr[4:]); err != nil {
			return nil, fmt.Errorf("%w: message %d: section 0: %v", ErrTruncatedSection, mr.count+1, err)
		}
		total := int(uint24(hdr[4:7]))
		if total < sec0Len+len(endMarker) {
			mr.unread(hdr[4:])
			continue
		}
		msg := make([]byte, total)
		copy(msg, hdr[:])
		if err := mr.readFull(msg[sec0Len:]); err != nil {
			return nil, fmt.Errorf("%w: message %d declares %d bytes: %v", ErrTruncatedSection, mr.count+1, total, err)
		}
		if string(msg[total-len(endMarker):]) != endMarker {
			mr.unread(msg[4:])
			continue
		}
		mr.count++
		return msg, nil
	}
}

// unread queues b to be read again ahead of any bytes already pending.
func (mr *MessageReader) unread(b []byte) {
	buf := make([]byte, 0, len(b)+len(mr.pending))
	buf = append(buf, b...)
	mr.pending = append(buf, mr.pending...)
}

func (mr *MessageReader) readByte() (byte, error) {
	if len(mr.pending) > 0 {
		c := mr.pending[0]
		mr.pending = mr.pending[1:]
		return c, nil
	}
	return mr.r.ReadByte()
}

func (mr *MessageReader) readFull(buf []byte) error {
	n := copy(buf, mr.pending)
	mr.pending = mr.pending[n:]
	if n == len(buf) {
		return nil
	}
	if _, err := io.ReadFull(mr.r, buf[n:]); err != nil {
		if n > 0 && errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// seekMarker consumes input up to and including the next "BUFR".
func (mr *MessageReader) seekMarker() error {
	const marker = "BUFR"
	matched := 0
	for matched < len(marker) {
		c, err := mr.readByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return err
		}
		switch {
		case c == marker[matched]:
			matched++
		case c == marker[0]:
			matched = 1
		default:
			matched = 0
		}
	}
	return nil
}

// ReadMessages reads every message from r.
func ReadMessages(r io.Reader) ([][]byte, error) {
	mr := NewMessageReader(r)
	var out [][]byte
	for {
		msg, err := mr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, msg)
	}
}
