package bufr

import (
	"errors"
	"fmt"
)

// Decoder errors. Callers match them with errors.Is; the returned errors wrap
// them with positional context.
var (
	ErrMalformedHeader     = errors.New("malformed BUFR header")
	ErrUnsupportedEdition  = errors.New("unsupported BUFR edition")
	ErrTruncatedSection    = errors.New("truncated section")
	ErrTruncatedData       = errors.New("truncated data section")
	ErrUnsupportedOperator = errors.New("unsupported operator descriptor")
	ErrCyclicTableD        = errors.New("table D expansion too deep")
	ErrNotFound            = errors.New("descriptor not found")
	ErrOutOfBits           = errors.New("out of bits")

	ErrMissingReplicationCount = errors.New("no replication count available")
	ErrLimitExceeded           = errors.New("decoder limit exceeded")
	ErrInvalidDescriptor       = errors.New("invalid descriptor")
	ErrSubsetCount             = errors.New("data section does not match subset count")
)

// SubsetError reports a failure while decoding one data subset. Subsets
// decoded before it are still returned alongside the error.
type SubsetError struct {
	Subset int
	Err    error
}

func (e *SubsetError) Error() string {
	return fmt.Sprintf("subset %d: %v", e.Subset, e.Err)
}

func (e *SubsetError) Unwrap() error { return e.Err }
