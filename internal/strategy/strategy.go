// Package strategy derives trading signals from price history.
package strategy

import (
	"strings"

	"marketdata-go/internal/series"
)

// Signaler scores the most recent price against preceding history.
type Signaler interface {
	// Window reports how many trailing samples Score needs.
	Window() int
	// Score returns the signal for the last sample of prices (oldest first),
	// or false when history is too short to score.
	Score(prices []series.Sample) (float64, bool)
	Name() string
}

// Build returns the signaler matching the configured mode. The window is
// expressed in samples at the configured bar interval.
func Build(mode string, window int) Signaler {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "bands", "mean_reversion":
		return NewBands(window)
	case "momentum", "trend":
		return NewMomentum(window)
	default:
		return NewBands(window)
	}
}

// WindowForInterval converts a bar interval in minutes into the sample count
// covering a trailing 24 hours, the lookback the banded signal is tuned for.
func WindowForInterval(minutes int) int {
	if minutes <= 0 {
		minutes = 5
	}
	return 24 * 60 / minutes
}
