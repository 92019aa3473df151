// Package registry owns the concurrency-safe ticker table at the heart of
// the service: the authoritative mapping from symbol to instrument history.
//
// Reads share the lock and never block each other. Mutations take the
// exclusive lock only around the map change itself; the provider fetch that
// feeds an Add happens outside any lock, with the ticker parked in an
// explicit pending state so a half-initialized record is never observable.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"marketdata-go/internal/instrument"
	"marketdata-go/internal/metrics"
	"marketdata-go/internal/provider"
	"marketdata-go/internal/series"
	"marketdata-go/internal/strategy"
)

var (
	// ErrAlreadyExists is returned when adding a ticker that is tracked or
	// mid-add.
	ErrAlreadyExists = errors.New("ticker already tracked")
	// ErrNotFound is returned for operations against an untracked ticker.
	ErrNotFound = errors.New("ticker not tracked")
)

// AddError wraps a provider failure during Add. The registry is left
// unchanged: no partial ticker remains behind.
type AddError struct {
	Ticker string
	Err    error
}

func (e *AddError) Error() string { return fmt.Sprintf("add %s: %v", e.Ticker, e.Err) }
func (e *AddError) Unwrap() error { return e.Err }

// Registry maps tickers to instrument records.
type Registry struct {
	source       provider.Provider
	signaler     strategy.Signaler
	log          zerolog.Logger
	fetchTimeout time.Duration

	mu      sync.RWMutex
	records map[string]*instrument.Record
	order   []string
	pending map[string]struct{}
}

// Option configures Registry construction.
type Option func(*Registry)

// WithFetchTimeout bounds the provider fetch performed by Add so one stuck
// instrument never starves the service. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Registry) { r.fetchTimeout = d }
}

// New builds an empty registry backed by the given provider. The signaler,
// when non-nil, derives signal samples for prices the provider does not
// score itself.
func New(source provider.Provider, sig strategy.Signaler, log zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		source:   source,
		signaler: sig,
		log:      log,
		records:  make(map[string]*instrument.Record),
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add fetches seed history for the ticker and inserts a fully built record.
// The fetch happens outside the lock; concurrent adds of the same ticker are
// rejected while the first is in flight, and a fetch failure (including
// context cancellation) leaves the registry unchanged.
func (r *Registry) Add(ctx context.Context, ticker string) error {
	r.mu.Lock()
	if _, ok := r.records[ticker]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyExists, ticker)
	}
	if _, ok := r.pending[ticker]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s (add in flight)", ErrAlreadyExists, ticker)
	}
	r.pending[ticker] = struct{}{}
	r.mu.Unlock()

	abort := func() {
		r.mu.Lock()
		delete(r.pending, ticker)
		r.mu.Unlock()
	}

	fctx := ctx
	if r.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()
	}

	prices, signals, err := r.source.FetchInitial(fctx, ticker)
	if err != nil {
		abort()
		metrics.ProviderErrors.WithLabelValues("fetch_initial").Inc()
		r.log.Warn().Err(err).Str("ticker", ticker).Msg("seed fetch failed")
		return &AddError{Ticker: ticker, Err: err}
	}

	rec := instrument.NewRecord(ticker, r.signaler)
	if err := rec.Seed(prices, signals); err != nil {
		abort()
		return &AddError{Ticker: ticker, Err: err}
	}

	r.mu.Lock()
	delete(r.pending, ticker)
	r.records[ticker] = rec
	r.order = append(r.order, ticker)
	r.mu.Unlock()

	metrics.TrackedTickers.Inc()
	np, ns := rec.Counts()
	r.log.Info().Str("ticker", ticker).Int("prices", np).Int("signals", ns).Msg("ticker added")
	return nil
}

// Remove detaches the ticker's record. Queries already holding the record
// finish against the orphaned data; queries starting afterwards see the
// ticker as absent.
func (r *Registry) Remove(ticker string) error {
	r.mu.Lock()
	if _, ok := r.records[ticker]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	delete(r.records, ticker)
	for i, t := range r.order {
		if t == ticker {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	metrics.TrackedTickers.Dec()
	r.log.Info().Str("ticker", ticker).Msg("ticker removed")
	return nil
}

// Lookup returns the live record for a ticker. The returned pointer stays
// valid even if the ticker is removed afterwards.
func (r *Registry) Lookup(ticker string) (*instrument.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[ticker]
	return rec, ok
}

// Query resolves price and signal for the ticker at the given instant.
func (r *Registry) Query(ticker string, at time.Time) (instrument.Quote, error) {
	rec, ok := r.Lookup(ticker)
	if !ok {
		return instrument.Quote{}, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	metrics.QueriesTotal.WithLabelValues(ticker).Inc()
	return rec.AsOf(at), nil
}

// PnL computes the ticker's point-in-time paper PnL; the bool is false when
// the price series has no data at the instant.
func (r *Registry) PnL(ticker string, at time.Time) (float64, bool, error) {
	rec, ok := r.Lookup(ticker)
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	pnl, ok := rec.PnL(at)
	return pnl, ok, nil
}

// Ingest applies incremental samples to the ticker's record. Samples that
// violate the per-series ordering invariant are rejected individually (a
// repeated quote is the common case) and counted; the store stays
// consistent. Returns how many samples were applied.
func (r *Registry) Ingest(ticker string, prices, signals []series.Sample) (int, error) {
	rec, ok := r.Lookup(ticker)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}

	applied := 0
	for _, p := range prices {
		if err := rec.IngestPrice(p.Ts, p.Value); err != nil {
			if errors.Is(err, series.ErrOutOfOrder) {
				metrics.SamplesRejected.WithLabelValues(ticker).Inc()
				continue
			}
			return applied, err
		}
		metrics.SamplesIngested.WithLabelValues(ticker, "price").Inc()
		applied++
	}
	for _, s := range signals {
		if err := rec.IngestSignal(s.Ts, s.Value); err != nil {
			if errors.Is(err, series.ErrOutOfOrder) {
				metrics.SamplesRejected.WithLabelValues(ticker).Inc()
				continue
			}
			return applied, err
		}
		metrics.SamplesIngested.WithLabelValues(ticker, "signal").Inc()
		applied++
	}
	return applied, nil
}

// Tickers returns a consistent snapshot of tracked tickers in insertion
// order, which is also the report row order.
func (r *Registry) Tickers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports the number of tracked tickers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
