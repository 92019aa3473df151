// Package poller drives periodic incremental refreshes of tracked tickers.
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"marketdata-go/internal/metrics"
	"marketdata-go/internal/provider"
	"marketdata-go/internal/registry"
)

// Poller pulls incremental samples for every tracked ticker on a fixed
// cadence. Per-ticker failures are logged and skipped; only context
// cancellation stops the loop.
type Poller struct {
	reg      *registry.Registry
	source   provider.Provider
	interval time.Duration
	log      zerolog.Logger
}

// New builds a poller refreshing at the given interval.
func New(reg *registry.Registry, source provider.Provider, interval time.Duration, log zerolog.Logger) *Poller {
	return &Poller{reg: reg, source: source, interval: interval, log: log}
}

// Run refreshes on every tick until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce walks the current ticker snapshot and applies one incremental
// fetch per ticker.
func (p *Poller) RefreshOnce(ctx context.Context) {
	for _, ticker := range p.reg.Tickers() {
		if ctx.Err() != nil {
			return
		}

		var since time.Time
		if rec, ok := p.reg.Lookup(ticker); ok {
			if last, ok := rec.LastPrice(); ok {
				since = last.Ts
			}
		}

		prices, signals, err := p.source.FetchIncremental(ctx, ticker, since)
		if err != nil {
			metrics.ProviderErrors.WithLabelValues("fetch_incremental").Inc()
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("incremental fetch failed")
			continue
		}
		if len(prices) == 0 && len(signals) == 0 {
			continue
		}

		applied, err := p.reg.Ingest(ticker, prices, signals)
		if err != nil {
			// Removed between snapshot and ingest, or a non-ordering failure.
			p.log.Debug().Err(err).Str("ticker", ticker).Msg("ingest skipped")
			continue
		}
		p.log.Debug().Str("ticker", ticker).Int("applied", applied).Msg("refreshed")
	}
}
