package strategy

import (
	"math"

	"marketdata-go/internal/series"
)

// Bands scores the latest price against a rolling mean plus or minus one
// standard deviation: above the upper band is a long signal (+1), below the
// lower band a short signal (-1), inside the bands flat (0).
type Bands struct {
	window int
}

// NewBands builds a mean-reversion band signaler over the given sample window.
func NewBands(window int) *Bands {
	if window < 2 {
		window = 2
	}
	return &Bands{window: window}
}

// Name returns the configured identifier for logging.
func (b *Bands) Name() string { return "bands" }

// Window reports the trailing sample count the score requires.
func (b *Bands) Window() int { return b.window }

// Score evaluates the last sample of prices against the rolling band.
func (b *Bands) Score(prices []series.Sample) (float64, bool) {
	if len(prices) < b.window {
		return 0, false
	}
	window := prices[len(prices)-b.window:]

	var sum float64
	for _, s := range window {
		sum += s.Value
	}
	mean := sum / float64(len(window))

	var sq float64
	for _, s := range window {
		d := s.Value - mean
		sq += d * d
	}
	sigma := math.Sqrt(sq / float64(len(window)-1))

	latest := window[len(window)-1].Value
	switch {
	case latest > mean+sigma:
		return 1, true
	case latest < mean-sigma:
		return -1, true
	default:
		return 0, true
	}
}
