// Command server runs the in-memory market-data service: it seeds the
// tracked tickers from the configured provider, refreshes them on a fixed
// cadence, and answers as-of queries over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"marketdata-go/internal/config"
	"marketdata-go/internal/metrics"
	"marketdata-go/internal/poller"
	"marketdata-go/internal/provider"
	"marketdata-go/internal/registry"
	"marketdata-go/internal/report"
	"marketdata-go/internal/series"
	"marketdata-go/internal/server"
	"marketdata-go/internal/strategy"
	"marketdata-go/internal/util"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		tickers []string
		port    int
		minutes int
	)

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "In-memory market data server with as-of queries and PnL reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("tickers") {
				cfg.Tickers = tickers
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("minutes") {
				cfg.Provider.IntervalMinutes = minutes
			}
			for i, t := range cfg.Tickers {
				cfg.Tickers[i] = strings.ToUpper(t)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config")
	cmd.Flags().StringSliceVarP(&tickers, "tickers", "t", []string{"AAPL"}, "tickers to track at startup")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "session server port")
	cmd.Flags().IntVarP(&minutes, "minutes", "m", 5, "bar interval in minutes (5, 15, 30 or 60)")
	return cmd
}

func run(cfg *config.Config) error {
	log := util.NewLogger(cfg.App.LogLevel, cfg.App.Env)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	keys := config.LoadKeys()
	source, err := buildProvider(cfg, keys, log)
	if err != nil {
		return err
	}

	window := strategy.WindowForInterval(cfg.Provider.IntervalMinutes)
	signaler := strategy.Build(cfg.Strategy.Mode, window)
	log.Info().Str("strategy", signaler.Name()).Int("window", window).Msg("signal derivation configured")

	reg := registry.New(source, signaler, log,
		registry.WithFetchTimeout(time.Duration(cfg.Provider.FetchTimeoutMs)*time.Millisecond))

	for _, ticker := range cfg.Tickers {
		if err := reg.Add(ctx, ticker); err != nil {
			log.Warn().Err(err).Str("ticker", ticker).Msg("startup seed skipped")
		}
	}

	gen := report.NewGenerator(reg, log)
	if err := report.WriteCSV(cfg.Server.ReportPath, gen.Generate(time.Now())); err != nil {
		log.Warn().Err(err).Msg("initial report write failed")
	}

	interval := time.Duration(cfg.Provider.IntervalMinutes) * time.Minute
	if cfg.Provider.Stream {
		stream := provider.NewStream(cfg.Provider.StreamURL, keys.Finnhub, log)
		samples := make(chan provider.TickerSample, 1024)
		go func() {
			if err := stream.Run(ctx, cfg.Tickers, samples); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("trade stream stopped")
				cancel()
			}
		}()
		go consumeStream(ctx, reg, samples, log)
	} else {
		pol := poller.New(reg, source, interval, log)
		go func() {
			if err := pol.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("refresh loop stopped")
				cancel()
			}
		}()
	}

	srv := server.New(reg, gen, cfg.Server.ReportPath, log)
	if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		return err
	}
	log.Info().Msg("shut down cleanly")
	return nil
}

func buildProvider(cfg *config.Config, keys config.Keys, log zerolog.Logger) (provider.Provider, error) {
	switch strings.ToLower(cfg.Provider.Name) {
	case "stub":
		interval := time.Duration(cfg.Provider.IntervalMinutes) * time.Minute
		start := time.Now().Add(-time.Duration(stubSeedBars) * interval).Truncate(interval)
		return provider.NewStub(start, interval), nil
	case "", "market":
		if keys.AlphaVantage == "" || keys.Finnhub == "" {
			return nil, fmt.Errorf("market provider requires ALPHA_VANTAGE_API_KEY and FINNHUB_API_KEY")
		}
		history := provider.NewAlphaVantage(cfg.Provider.AlphaVantageURL, keys.AlphaVantage, cfg.Provider.IntervalMinutes, log)
		quotes := provider.NewFinnhub(cfg.Provider.FinnhubURL, keys.Finnhub, log)
		return provider.NewComposite(history, quotes), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}

// stubSeedBars backdates the stub's synthetic history far enough to fill a
// small signal window during offline runs.
const stubSeedBars = 64

func consumeStream(ctx context.Context, reg *registry.Registry, samples <-chan provider.TickerSample, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ts := <-samples:
			if _, err := reg.Ingest(ts.Ticker, []series.Sample{ts.Sample}, nil); err != nil {
				log.Debug().Err(err).Str("ticker", ts.Ticker).Msg("stream sample dropped")
			}
		}
	}
}
