package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"marketdata-go/internal/series"
)

// DefaultStreamURL is the production Finnhub trade websocket.
const DefaultStreamURL = "wss://ws.finnhub.io"

// Stream maintains a Finnhub trade websocket subscription and converts
// trades into price samples pushed onto a channel. It reconnects with
// exponential backoff until the context is canceled.
type Stream struct {
	url string
	log zerolog.Logger
}

// NewStream builds a streaming source. An empty baseURL selects production.
func NewStream(baseURL, apiKey string, log zerolog.Logger) *Stream {
	if baseURL == "" {
		baseURL = DefaultStreamURL
	}
	return &Stream{url: fmt.Sprintf("%s?token=%s", baseURL, apiKey), log: log}
}

type streamEnvelope struct {
	Type string        `json:"type"`
	Data []streamTrade `json:"data"`
}

type streamTrade struct {
	Symbol    string  `json:"s"`
	Price     float64 `json:"p"`
	TradeTime int64   `json:"t"` // milliseconds
}

// Run pushes price samples onto out until the context is canceled.
func (s *Stream) Run(ctx context.Context, symbols []string, out chan<- TickerSample) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.consume(ctx, symbols, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Msg("trade stream disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (s *Stream) consume(ctx context.Context, symbols []string, out chan<- TickerSample) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, sym := range symbols {
		msg := fmt.Sprintf(`{"type":"subscribe","symbol":"%s"}`, sym)
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return err
		}
	}
	s.log.Info().Strs("symbols", symbols).Msg("connected trade stream")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.log.Warn().Err(err).Msg("stream ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env streamEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.log.Warn().Err(err).Msg("failed to decode stream message")
			continue
		}
		if env.Type != "trade" {
			continue
		}
		for _, tr := range env.Data {
			if tr.Symbol == "" || tr.Price <= 0 {
				continue
			}
			ts := TickerSample{
				Ticker: tr.Symbol,
				Sample: series.Sample{Ts: time.UnixMilli(tr.TradeTime), Value: tr.Price},
			}
			select {
			case out <- ts:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
