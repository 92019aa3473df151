package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketdata-go/internal/provider"
	"marketdata-go/internal/registry"
	"marketdata-go/internal/series"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func seededRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	stub := provider.NewStub(day(1), 24*time.Hour)
	stub.SetHistory("AAPL",
		[]series.Sample{{Ts: day(1), Value: 100}, {Ts: day(3), Value: 110}},
		[]series.Sample{{Ts: day(1), Value: 1}},
	)
	stub.SetHistory("EMPT", nil, nil)

	reg := registry.New(stub, nil, zerolog.Nop())
	require.NoError(t, reg.Add(context.Background(), "AAPL"))
	require.NoError(t, reg.Add(context.Background(), "EMPT"))
	return reg
}

func TestGenerateRowPerTicker(t *testing.T) {
	reg := seededRegistry(t)
	gen := NewGenerator(reg, zerolog.Nop())

	rows := gen.Generate(day(5))
	require.Len(t, rows, reg.Len())
	assert.Equal(t, "AAPL", rows[0].Ticker)
	assert.Equal(t, "EMPT", rows[1].Ticker)

	require.NotNil(t, rows[0].Price)
	assert.Equal(t, 110.0, rows[0].Price.Value)
	require.NotNil(t, rows[0].PnL)
	assert.InDelta(t, 0.1, *rows[0].PnL, 1e-9)

	// Tickers with no data still produce a row, with nil markers.
	assert.Nil(t, rows[1].Price)
	assert.Nil(t, rows[1].Signal)
	assert.Nil(t, rows[1].PnL)
}

func TestGenerateIsPure(t *testing.T) {
	reg := seededRegistry(t)
	gen := NewGenerator(reg, zerolog.Nop())

	first := gen.Generate(day(5))
	second := gen.Generate(day(5))
	assert.Equal(t, first, second, "repeated generation must not perturb state")
}

func TestWriteCSVOverwrites(t *testing.T) {
	reg := seededRegistry(t)
	gen := NewGenerator(reg, zerolog.Nop())
	path := filepath.Join(t.TempDir(), "data", "report.csv")

	require.NoError(t, WriteCSV(path, gen.Generate(day(5))))

	require.NoError(t, reg.Remove("EMPT"))
	require.NoError(t, WriteCSV(path, gen.Generate(day(5))))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	// Header plus one row: the second write fully replaced the first.
	require.Len(t, records, 2)
	assert.Equal(t, []string{"ticker", "asOfPrice", "asOfSignal", "pnl"}, records[0])
	assert.Equal(t, []string{"AAPL", "110.00", "1", "0.1000"}, records[1])
}

func TestWriteCSVMarksMissingData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	rows := []Row{{Ticker: "EMPT"}}
	require.NoError(t, WriteCSV(path, rows))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"EMPT", NA, NA, NA}, records[1])
}
