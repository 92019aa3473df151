package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marketdata-go/internal/series"
)

// DefaultAlphaVantageURL is the production query endpoint.
const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

const alphaVantageTimeLayout = "2006-01-02 15:04:05"

// AlphaVantage pulls intraday close-price history from the Alpha Vantage
// TIME_SERIES_INTRADAY endpoint. It produces prices only; signal derivation
// belongs to the caller.
type AlphaVantage struct {
	baseURL  string
	apiKey   string
	interval int
	client   *http.Client
	log      zerolog.Logger
}

// NewAlphaVantage builds a history client for the given bar interval in
// minutes. An empty baseURL selects the production endpoint.
func NewAlphaVantage(baseURL, apiKey string, intervalMinutes int, log zerolog.Logger) *AlphaVantage {
	if baseURL == "" {
		baseURL = DefaultAlphaVantageURL
	}
	return &AlphaVantage{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		interval: intervalMinutes,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

// FetchInitial downloads the full intraday history for the ticker, ascending.
func (a *AlphaVantage) FetchInitial(ctx context.Context, ticker string) ([]series.Sample, []series.Sample, error) {
	query := url.Values{
		"function":       {"TIME_SERIES_INTRADAY"},
		"symbol":         {ticker},
		"interval":       {fmt.Sprintf("%dmin", a.interval)},
		"outputsize":     {"full"},
		"extended_hours": {"false"},
		"apikey":         {a.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	// Alpha Vantage reports request problems inside a 200 response.
	if strings.Contains(string(body), "Invalid API call") {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	if strings.Contains(string(body), "rate limit") {
		return nil, nil, fmt.Errorf("%w: rate limit reached", ErrUnavailable)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	raw, ok := payload[fmt.Sprintf("Time Series (%dmin)", a.interval)]
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing time series for %s", ErrUnavailable, ticker)
	}

	var bars map[string]struct {
		Close string `json:"4. close"`
	}
	if err := json.Unmarshal(raw, &bars); err != nil {
		return nil, nil, fmt.Errorf("%w: decode bars: %v", ErrUnavailable, err)
	}

	prices := make([]series.Sample, 0, len(bars))
	for stamp, bar := range bars {
		ts, err := time.Parse(alphaVantageTimeLayout, stamp)
		if err != nil {
			a.log.Warn().Str("ticker", ticker).Str("ts", stamp).Msg("skipping unparseable bar timestamp")
			continue
		}
		px, err := strconv.ParseFloat(bar.Close, 64)
		if err != nil {
			a.log.Warn().Str("ticker", ticker).Str("close", bar.Close).Msg("skipping unparseable close")
			continue
		}
		prices = append(prices, series.Sample{Ts: ts, Value: px})
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].Ts.Before(prices[j].Ts) })

	a.log.Info().Str("ticker", ticker).Int("bars", len(prices)).Msg("fetched intraday history")
	return prices, nil, nil
}

// FetchIncremental re-downloads the history and returns only bars after
// since. Alpha Vantage has no delta endpoint, so callers wanting cheap
// realtime updates should pair this client with a quote source.
func (a *AlphaVantage) FetchIncremental(ctx context.Context, ticker string, since time.Time) ([]series.Sample, []series.Sample, error) {
	prices, _, err := a.FetchInitial(ctx, ticker)
	if err != nil {
		return nil, nil, err
	}
	idx := sort.Search(len(prices), func(i int) bool { return prices[i].Ts.After(since) })
	return prices[idx:], nil, nil
}
