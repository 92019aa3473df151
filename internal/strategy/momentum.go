package strategy

import "marketdata-go/internal/series"

// momentumThreshold is the minimum absolute return over the lookback window
// before a directional signal is emitted.
const momentumThreshold = 0.01

// Momentum signals the direction of the price change over the lookback
// window when it clears a minimum return threshold.
type Momentum struct {
	window int
}

// NewMomentum builds a trend-direction signaler over the given sample window.
func NewMomentum(window int) *Momentum {
	if window < 2 {
		window = 2
	}
	return &Momentum{window: window}
}

// Name returns the configured identifier for logging.
func (m *Momentum) Name() string { return "momentum" }

// Window reports the trailing sample count the score requires.
func (m *Momentum) Window() int { return m.window }

// Score evaluates the return from the start to the end of the window.
func (m *Momentum) Score(prices []series.Sample) (float64, bool) {
	if len(prices) < m.window {
		return 0, false
	}
	window := prices[len(prices)-m.window:]
	oldest := window[0].Value
	latest := window[len(window)-1].Value
	if oldest <= 0 {
		return 0, false
	}
	change := (latest - oldest) / oldest
	switch {
	case change > momentumThreshold:
		return 1, true
	case change < -momentumThreshold:
		return -1, true
	default:
		return 0, true
	}
}
