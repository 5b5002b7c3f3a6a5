package bufr

import (
	"context"
	"io"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// BatchOptions configures DecodeBatch.
type BatchOptions struct {
	// Workers bounds concurrent decodes; 0 means runtime.NumCPU().
	Workers int
	// Logger receives one entry per failed message. Nil discards them.
	Logger logrus.FieldLogger
}

// Result is the outcome of decoding one message of a batch. Dataset may be
// non-nil alongside Err when only some subsets decoded.
type Result struct {
	Index   int
	Dataset *Dataset
	Err     error
}

// DecodeBatch decodes msgs concurrently against a shared, read-only table
// store. Results are returned in input order. Cancelling ctx stops new
// messages from being started; those get ctx.Err() as their error.
func DecodeBatch(ctx context.Context, msgs [][]byte, tables *Tables, opts BatchOptions) []Result {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	results := make([]Result, len(msgs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i := range msgs {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if err := ctx.Err(); err != nil {
			for j := i; j < len(msgs); j++ {
				results[j] = Result{Index: j, Err: err}
			}
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			ds, err := DecodeMessage(msgs[idx], tables)
			results[idx] = Result{Index: idx, Dataset: ds, Err: err}
			if err != nil {
				entry := log.WithError(err).WithField("message", idx+1)
				if ds != nil {
					entry = entry.WithField("decoded_subsets", ds.Len())
				}
				entry.Warn("decoding failed")
			}
		}(i)
	}
	wg.Wait()
	return results
}
