// Package report renders point-in-time snapshots of the registry as rows
// and as the on-disk CSV artifact.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"marketdata-go/internal/metrics"
	"marketdata-go/internal/registry"
	"marketdata-go/internal/series"
)

// NA marks a missing value in the CSV artifact.
const NA = "NA"

// Row is one ticker's snapshot. Nil fields mean no data at the as-of
// instant; a row is emitted regardless so the report never silently drops a
// tracked ticker.
type Row struct {
	Ticker string
	Price  *series.Sample
	Signal *series.Sample
	PnL    *float64
}

// Generator produces report snapshots from live registry state. It holds no
// state of its own; every report is computed fresh.
type Generator struct {
	reg *registry.Registry
	log zerolog.Logger
}

// NewGenerator builds a generator over the registry.
func NewGenerator(reg *registry.Registry, log zerolog.Logger) *Generator {
	return &Generator{reg: reg, log: log}
}

// Generate returns one row per tracked ticker, in registry snapshot order.
// A ticker removed between the snapshot and the walk still yields a row with
// NA markers so the row count matches the snapshot cardinality.
func (g *Generator) Generate(asOf time.Time) []Row {
	tickers := g.reg.Tickers()
	rows := make([]Row, 0, len(tickers))

	for _, ticker := range tickers {
		row := Row{Ticker: ticker}
		if rec, ok := g.reg.Lookup(ticker); ok {
			q := rec.AsOf(asOf)
			row.Price = q.Price
			row.Signal = q.Signal
			if pnl, ok := rec.PnL(asOf); ok {
				row.PnL = &pnl
			}
		}
		rows = append(rows, row)
	}

	metrics.ReportsGenerated.Inc()
	g.log.Debug().Int("rows", len(rows)).Time("as_of", asOf).Msg("report generated")
	return rows
}

// WriteCSV replaces the artifact at path with the given rows.
func WriteCSV(path string, rows []Row) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"ticker", "asOfPrice", "asOfSignal", "pnl"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Ticker,
			formatSample(row.Price, 2),
			formatSample(row.Signal, -1),
			formatFloat(row.PnL, 4),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

func formatSample(s *series.Sample, prec int) string {
	if s == nil {
		return NA
	}
	return strconv.FormatFloat(s.Value, 'f', prec, 64)
}

func formatFloat(v *float64, prec int) string {
	if v == nil {
		return NA
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
