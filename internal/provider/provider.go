// Package provider hosts the market-data sources the registry pulls from.
package provider

import (
	"context"
	"errors"
	"time"

	"marketdata-go/internal/series"
)

var (
	// ErrUnavailable covers network, auth, and rate-limit failures upstream.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrUnknownTicker is returned when the upstream does not recognize the symbol.
	ErrUnknownTicker = errors.New("unknown ticker")
)

// Provider supplies initial and incremental samples for a ticker. Both calls
// return prices and signals in ascending timestamp order; sources that do
// not compute signals return an empty signal slice and leave derivation to
// the caller.
type Provider interface {
	FetchInitial(ctx context.Context, ticker string) (prices, signals []series.Sample, err error)
	FetchIncremental(ctx context.Context, ticker string, since time.Time) (prices, signals []series.Sample, err error)
}

// TickerSample pairs a sample with the ticker it belongs to, used by
// streaming sources.
type TickerSample struct {
	Ticker string
	Sample series.Sample
}
