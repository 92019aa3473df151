package provider

import (
	"context"
	"time"

	"marketdata-go/internal/series"
)

// Composite seeds history from one source and pulls increments from another,
// pairing a deep-history endpoint with a cheap realtime quote endpoint.
type Composite struct {
	Initial     Provider
	Incremental Provider
}

// NewComposite wires the two halves together.
func NewComposite(initial, incremental Provider) *Composite {
	return &Composite{Initial: initial, Incremental: incremental}
}

// FetchInitial delegates to the history source.
func (c *Composite) FetchInitial(ctx context.Context, ticker string) ([]series.Sample, []series.Sample, error) {
	return c.Initial.FetchInitial(ctx, ticker)
}

// FetchIncremental delegates to the realtime source.
func (c *Composite) FetchIncremental(ctx context.Context, ticker string, since time.Time) ([]series.Sample, []series.Sample, error) {
	return c.Incremental.FetchIncremental(ctx, ticker, since)
}
