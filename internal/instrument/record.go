// Package instrument pairs the price and signal history of a single ticker
// and answers point-in-time questions about it.
package instrument

import (
	"fmt"
	"sync"
	"time"

	"marketdata-go/internal/series"
	"marketdata-go/internal/strategy"
)

// Quote is a point-in-time view of one instrument. Either side may be nil
// when the corresponding series has no data at the requested instant.
type Quote struct {
	Price  *series.Sample
	Signal *series.Sample
}

// Record owns the ordered price and signal history for one ticker. All
// access is serialized internally so concurrent ingests never interleave.
type Record struct {
	ticker string

	mu      sync.RWMutex
	prices  *series.TimeSeries
	signals *series.TimeSeries
	sig     strategy.Signaler
}

// NewRecord builds an empty record. When sig is non-nil, price ingestion
// derives signal samples for instants the provider did not cover.
func NewRecord(ticker string, sig strategy.Signaler) *Record {
	return &Record{
		ticker:  ticker,
		prices:  series.New(0),
		signals: series.New(0),
		sig:     sig,
	}
}

// Ticker returns the symbol this record tracks.
func (r *Record) Ticker() string { return r.ticker }

// Seed loads provider history into the record. When the provider supplies no
// signal samples, the full signal history is derived from the price history.
func (r *Record) Seed(prices, signals []series.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range prices {
		if err := r.prices.Append(p.Ts, p.Value); err != nil {
			return fmt.Errorf("seed prices for %s: %w", r.ticker, err)
		}
	}
	if len(signals) > 0 {
		for _, s := range signals {
			if err := r.signals.Append(s.Ts, s.Value); err != nil {
				return fmt.Errorf("seed signals for %s: %w", r.ticker, err)
			}
		}
		return nil
	}
	if r.sig == nil {
		return nil
	}
	for i, p := range prices {
		lo := 0
		if w := r.sig.Window(); i+1 > w {
			lo = i + 1 - w
		}
		if score, ok := r.sig.Score(prices[lo : i+1]); ok {
			if err := r.signals.Append(p.Ts, score); err != nil {
				return fmt.Errorf("derive signals for %s: %w", r.ticker, err)
			}
		}
	}
	return nil
}

// IngestPrice appends one price sample and, when a signaler is configured
// and the signal series is not already ahead of it, a derived signal sample
// at the same instant.
func (r *Record) IngestPrice(at time.Time, price float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.prices.Append(at, price); err != nil {
		return err
	}
	if r.sig == nil {
		return nil
	}
	if last, ok := r.signals.Latest(); ok && !at.After(last.Ts) {
		return nil
	}
	if score, ok := r.sig.Score(r.prices.Tail(r.sig.Window())); ok {
		return r.signals.Append(at, score)
	}
	return nil
}

// IngestSignal appends one provider-sourced signal sample.
func (r *Record) IngestSignal(at time.Time, signal float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.signals.Append(at, signal)
}

// AsOf resolves both series independently at the given instant.
func (r *Record) AsOf(at time.Time) Quote {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var q Quote
	if s, ok := r.prices.AsOf(at); ok {
		q.Price = &s
	}
	if s, ok := r.signals.AsOf(at); ok {
		q.Signal = &s
	}
	return q
}

// PnL computes the directional paper profit proxy at the given instant:
// the sign of the as-of signal multiplied by the price return from the first
// recorded price to the as-of price. A missing signal counts as sign zero;
// no as-of price means no data.
func (r *Record) PnL(at time.Time) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	first, ok := r.prices.First()
	if !ok || first.Value == 0 {
		return 0, false
	}
	cur, ok := r.prices.AsOf(at)
	if !ok {
		return 0, false
	}

	var sign float64
	if s, ok := r.signals.AsOf(at); ok {
		switch {
		case s.Value > 0:
			sign = 1
		case s.Value < 0:
			sign = -1
		}
	}
	return sign * (cur.Value - first.Value) / first.Value, true
}

// LastPrice returns the most recent price sample, used by the refresh loop
// to bound incremental fetches.
func (r *Record) LastPrice() (series.Sample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prices.Latest()
}

// Counts reports the stored price and signal sample counts.
func (r *Record) Counts() (prices, signals int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prices.Len(), r.signals.Len()
}
