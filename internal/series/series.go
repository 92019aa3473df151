// Package series provides an append-only, timestamp-ordered sample store
// with as-of lookups, shared between the ingestion and query layers.
package series

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrOutOfOrder is returned when an appended sample does not strictly
// advance the series clock. The series is left unchanged.
var ErrOutOfOrder = errors.New("sample timestamp out of order")

// Sample is a single observation of one instrument attribute.
type Sample struct {
	Ts    time.Time
	Value float64
}

// TimeSeries stores samples in strictly increasing timestamp order.
// It is not safe for concurrent use; owners serialize access.
type TimeSeries struct {
	samples []Sample
}

// New returns an empty series, optionally pre-sizing storage.
func New(capacity int) *TimeSeries {
	if capacity < 0 {
		capacity = 0
	}
	return &TimeSeries{samples: make([]Sample, 0, capacity)}
}

// Append stores a sample. The timestamp must be strictly greater than the
// last stored timestamp.
func (t *TimeSeries) Append(at time.Time, value float64) error {
	if n := len(t.samples); n > 0 && !at.After(t.samples[n-1].Ts) {
		return fmt.Errorf("%w: %s is not after %s",
			ErrOutOfOrder, at.Format(time.RFC3339), t.samples[n-1].Ts.Format(time.RFC3339))
	}
	t.samples = append(t.samples, Sample{Ts: at, Value: value})
	return nil
}

// AsOf returns the most recent sample at or before the given instant.
// A query past the end of the series returns the last sample; a query
// before the first sample, or against an empty series, reports no data.
func (t *TimeSeries) AsOf(at time.Time) (Sample, bool) {
	idx := sort.Search(len(t.samples), func(i int) bool {
		return t.samples[i].Ts.After(at)
	})
	if idx == 0 {
		return Sample{}, false
	}
	return t.samples[idx-1], true
}

// Latest returns the most recent sample.
func (t *TimeSeries) Latest() (Sample, bool) {
	if len(t.samples) == 0 {
		return Sample{}, false
	}
	return t.samples[len(t.samples)-1], true
}

// First returns the oldest sample.
func (t *TimeSeries) First() (Sample, bool) {
	if len(t.samples) == 0 {
		return Sample{}, false
	}
	return t.samples[0], true
}

// Len reports the number of stored samples.
func (t *TimeSeries) Len() int { return len(t.samples) }

// Tail returns a copy of the most recent n samples, oldest first.
func (t *TimeSeries) Tail(n int) []Sample {
	if n <= 0 || len(t.samples) == 0 {
		return nil
	}
	if n > len(t.samples) {
		n = len(t.samples)
	}
	out := make([]Sample, n)
	copy(out, t.samples[len(t.samples)-n:])
	return out
}

// Samples returns a copy of the full history, oldest first.
func (t *TimeSeries) Samples() []Sample {
	out := make([]Sample, len(t.samples))
	copy(out, t.samples)
	return out
}
