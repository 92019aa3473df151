package poller

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marketdata-go/internal/provider"
	"marketdata-go/internal/registry"
	"marketdata-go/internal/series"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestRefreshOnceAppendsFreshBars(t *testing.T) {
	stub := provider.NewStub(day(1), time.Hour)
	stub.SetHistory("AAPL", []series.Sample{{Ts: day(1), Value: 100}}, nil)

	reg := registry.New(stub, nil, zerolog.Nop())
	if err := reg.Add(context.Background(), "AAPL"); err != nil {
		t.Fatalf("add: %v", err)
	}

	p := New(reg, stub, time.Hour, zerolog.Nop())
	p.RefreshOnce(context.Background())

	rec, ok := reg.Lookup("AAPL")
	if !ok {
		t.Fatal("ticker missing after refresh")
	}
	last, ok := rec.LastPrice()
	if !ok || !last.Ts.After(day(1)) {
		t.Fatalf("expected a bar after the seed, got %+v ok=%v", last, ok)
	}

	// Each refresh advances the series by the provider's next bar.
	before := last.Ts
	p.RefreshOnce(context.Background())
	last, _ = rec.LastPrice()
	if !last.Ts.After(before) {
		t.Fatalf("refresh did not advance: %s -> %s", before, last.Ts)
	}
}

func TestRefreshSkipsFailingTicker(t *testing.T) {
	stub := provider.NewStub(day(1), time.Hour)
	stub.SetHistory("AAPL", []series.Sample{{Ts: day(1), Value: 100}}, nil)
	stub.SetHistory("MSFT", []series.Sample{{Ts: day(1), Value: 50}}, nil)

	reg := registry.New(stub, nil, zerolog.Nop())
	for _, ticker := range []string{"AAPL", "MSFT"} {
		if err := reg.Add(context.Background(), ticker); err != nil {
			t.Fatalf("add %s: %v", ticker, err)
		}
	}
	stub.FailWith("AAPL", provider.ErrUnavailable)

	p := New(reg, stub, time.Hour, zerolog.Nop())
	p.RefreshOnce(context.Background())

	// The failing ticker keeps its seed history; the healthy one advances.
	aapl, _ := reg.Lookup("AAPL")
	if last, _ := aapl.LastPrice(); !last.Ts.Equal(day(1)) {
		t.Fatalf("failing ticker advanced unexpectedly to %s", last.Ts)
	}
	msft, _ := reg.Lookup("MSFT")
	if last, _ := msft.LastPrice(); !last.Ts.After(day(1)) {
		t.Fatalf("healthy ticker did not advance, still at %s", last.Ts)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	stub := provider.NewStub(day(1), time.Hour)
	reg := registry.New(stub, nil, zerolog.Nop())
	p := New(reg, stub, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
