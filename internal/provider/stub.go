package provider

import (
	"context"
	"sync"
	"time"

	"marketdata-go/internal/series"
)

const (
	stubBasePrice = 100.0
	stubStep      = 0.1
	stubBars      = 12
)

// Stub emits deterministic synthetic samples, useful for tests and offline
// work. Prices walk upward in fixed steps from a fixed base so any fetch is
// a pure function of the clock.
type Stub struct {
	interval time.Duration
	start    time.Time

	mu      sync.Mutex
	prices  map[string][]series.Sample
	signals map[string][]series.Sample
	errs    map[string]error
}

// NewStub builds a stub whose synthetic bars are spaced by interval and
// anchored at start.
func NewStub(start time.Time, interval time.Duration) *Stub {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Stub{
		interval: interval,
		start:    start,
		prices:   make(map[string][]series.Sample),
		signals:  make(map[string][]series.Sample),
		errs:     make(map[string]error),
	}
}

// SetHistory pins explicit seed data for a ticker, overriding synthesis.
func (s *Stub) SetHistory(ticker string, prices, signals []series.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[ticker] = append([]series.Sample(nil), prices...)
	s.signals[ticker] = append([]series.Sample(nil), signals...)
}

// FailWith makes every fetch for the ticker return the given error.
func (s *Stub) FailWith(ticker string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[ticker] = err
}

// FetchInitial returns the pinned history, or a synthetic ramp of bars.
func (s *Stub) FetchInitial(ctx context.Context, ticker string) ([]series.Sample, []series.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[ticker]; err != nil {
		return nil, nil, err
	}
	if prices, ok := s.prices[ticker]; ok {
		return append([]series.Sample(nil), prices...),
			append([]series.Sample(nil), s.signals[ticker]...), nil
	}

	prices := make([]series.Sample, 0, stubBars)
	for i := 0; i < stubBars; i++ {
		prices = append(prices, series.Sample{
			Ts:    s.start.Add(time.Duration(i) * s.interval),
			Value: stubBasePrice + stubStep*float64(i),
		})
	}
	return prices, nil, nil
}

// FetchIncremental returns the single synthetic bar following since.
func (s *Stub) FetchIncremental(ctx context.Context, ticker string, since time.Time) ([]series.Sample, []series.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[ticker]; err != nil {
		return nil, nil, err
	}

	next := s.start
	if since.After(s.start) || since.Equal(s.start) {
		elapsed := since.Sub(s.start)
		next = s.start.Add((elapsed/s.interval + 1) * s.interval)
	}
	steps := float64(next.Sub(s.start) / s.interval)
	return []series.Sample{{Ts: next, Value: stubBasePrice + stubStep*steps}}, nil, nil
}
