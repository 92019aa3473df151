package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marketdata-go/internal/series"
)

// DefaultFinnhubURL is the production REST base.
const DefaultFinnhubURL = "https://finnhub.io/api/v1"

// Finnhub serves realtime quotes from the Finnhub quote endpoint. Each fetch
// yields at most one price sample: the current quote.
type Finnhub struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewFinnhub builds a quote client. An empty baseURL selects production.
func NewFinnhub(baseURL, apiKey string, log zerolog.Logger) *Finnhub {
	if baseURL == "" {
		baseURL = DefaultFinnhubURL
	}
	return &Finnhub{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type finnhubQuote struct {
	Current   float64 `json:"c"`
	Timestamp int64   `json:"t"`
}

func (f *Finnhub) quote(ctx context.Context, ticker string) (series.Sample, error) {
	query := url.Values{"symbol": {ticker}, "token": {f.apiKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/quote?"+query.Encode(), nil)
	if err != nil {
		return series.Sample{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return series.Sample{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusTooManyRequests {
		return series.Sample{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return series.Sample{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var q finnhubQuote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return series.Sample{}, fmt.Errorf("%w: decode quote: %v", ErrUnavailable, err)
	}
	// Finnhub answers unknown symbols with an all-zero quote.
	if q.Timestamp == 0 {
		return series.Sample{}, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	return series.Sample{Ts: time.Unix(q.Timestamp, 0), Value: q.Current}, nil
}

// FetchInitial seeds with the single current quote.
func (f *Finnhub) FetchInitial(ctx context.Context, ticker string) ([]series.Sample, []series.Sample, error) {
	s, err := f.quote(ctx, ticker)
	if err != nil {
		return nil, nil, err
	}
	return []series.Sample{s}, nil, nil
}

// FetchIncremental returns the current quote when it is newer than since.
func (f *Finnhub) FetchIncremental(ctx context.Context, ticker string, since time.Time) ([]series.Sample, []series.Sample, error) {
	s, err := f.quote(ctx, ticker)
	if err != nil {
		return nil, nil, err
	}
	if !s.Ts.After(since) {
		return nil, nil, nil
	}
	return []series.Sample{s}, nil, nil
}
