package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marketdata-go/internal/provider"
	"marketdata-go/internal/registry"
	"marketdata-go/internal/report"
	"marketdata-go/internal/series"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry, string) {
	t.Helper()

	stub := provider.NewStub(day(1), 24*time.Hour)
	stub.SetHistory("AAPL",
		[]series.Sample{{Ts: day(1), Value: 100}, {Ts: day(3), Value: 110}},
		[]series.Sample{{Ts: day(1), Value: 1}},
	)
	reg := registry.New(stub, nil, zerolog.Nop())
	gen := report.NewGenerator(reg, zerolog.Nop())

	reportPath := filepath.Join(t.TempDir(), "report.csv")
	srv := httptest.NewServer(New(reg, gen, reportPath, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv, reg, reportPath
}

func doRequest(t *testing.T, method, url string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestHome(t *testing.T) {
	srv, _, _ := newTestServer(t)
	status, body := doRequest(t, http.MethodGet, srv.URL+"/")
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	var msg string
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		t.Fatalf("decode body %q: %v", body, err)
	}
	if msg != "Connected to trading server" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestAddTickerLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status, _ := doRequest(t, http.MethodPost, srv.URL+"/add_ticker/aapl")
	if status != http.StatusOK {
		t.Fatalf("add: status %d", status)
	}

	// Lowercase path resolves to the same ticker.
	status, _ = doRequest(t, http.MethodPost, srv.URL+"/add_ticker/AAPL")
	if status != http.StatusAlreadyReported {
		t.Fatalf("duplicate add: status %d, want 208", status)
	}

	status, _ = doRequest(t, http.MethodDelete, srv.URL+"/del_ticker/AAPL")
	if status != http.StatusOK {
		t.Fatalf("delete: status %d", status)
	}
	status, _ = doRequest(t, http.MethodDelete, srv.URL+"/del_ticker/AAPL")
	if status != http.StatusNotFound {
		t.Fatalf("delete absent: status %d, want 404", status)
	}
}

func TestAddTickerProviderFailure(t *testing.T) {
	stub := provider.NewStub(day(1), 24*time.Hour)
	stub.FailWith("MSFT", provider.ErrUnavailable)

	reg := registry.New(stub, nil, zerolog.Nop())
	gen := report.NewGenerator(reg, zerolog.Nop())
	srv := httptest.NewServer(New(reg, gen, filepath.Join(t.TempDir(), "report.csv"), zerolog.Nop()).Handler())
	defer srv.Close()

	status, _ := doRequest(t, http.MethodPost, srv.URL+"/add_ticker/MSFT")
	if status != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", status)
	}
	if reg.Len() != 0 {
		t.Fatalf("failed add left %d tickers behind", reg.Len())
	}
}

func TestDataQuery(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if status, _ := doRequest(t, http.MethodPost, srv.URL+"/add_ticker/AAPL"); status != http.StatusOK {
		t.Fatal("seed add failed")
	}

	status, body := doRequest(t, http.MethodGet, srv.URL+"/data/2024-01-02-00:00")
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	var result map[string]struct {
		Price  *float64 `json:"price"`
		Signal *float64 `json:"signal"`
	}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("decode body %q: %v", body, err)
	}
	td, ok := result["AAPL"]
	if !ok {
		t.Fatalf("missing AAPL row in %q", body)
	}
	if td.Price == nil || *td.Price != 100 {
		t.Fatalf("price = %v, want 100", td.Price)
	}
	if td.Signal == nil || *td.Signal != 1 {
		t.Fatalf("signal = %v, want 1", td.Signal)
	}

	// Before history: explicit nulls, not missing rows.
	status, body = doRequest(t, http.MethodGet, srv.URL+"/data/2023-12-31-00:00")
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	result = nil
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("decode body %q: %v", body, err)
	}
	td, ok = result["AAPL"]
	if !ok {
		t.Fatalf("missing AAPL row in %q", body)
	}
	if td.Price != nil || td.Signal != nil {
		t.Fatalf("expected nulls before history, got %+v", td)
	}
}

func TestDataQueryBadTime(t *testing.T) {
	srv, _, _ := newTestServer(t)
	status, _ := doRequest(t, http.MethodGet, srv.URL+"/data/yesterday")
	if status != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", status)
	}
}

func TestReportEndpointWritesArtifact(t *testing.T) {
	srv, _, reportPath := newTestServer(t)
	if status, _ := doRequest(t, http.MethodPost, srv.URL+"/add_ticker/AAPL"); status != http.StatusOK {
		t.Fatal("seed add failed")
	}

	status, body := doRequest(t, http.MethodGet, srv.URL+"/report")
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	var resp struct {
		Message string `json:"message"`
		Rows    int    `json:"rows"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode body %q: %v", body, err)
	}
	if resp.Rows != 1 {
		t.Fatalf("rows = %d, want 1", resp.Rows)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report artifact missing: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("report artifact empty")
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	srv, reg, reportPath := newTestServer(t)
	srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s := New(reg, report.NewGenerator(reg, zerolog.Nop()), reportPath, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
