package generator

import (
	"math/rand"
	"time"
)

// Jitter selects the inter-tick delay distribution for the generation
// and sync timers (spec §6, `randomize`/`syncRandomize`).
type Jitter string

const (
	JitterNone        Jitter = "none"
	JitterUniform     Jitter = "uniform"
	JitterExponential Jitter = "exponential"
)

// NextInterval returns the delay until the next tick at frequency f
// (ticks/second; f<=0 falls back to 1Hz per spec §6). Grounded on
// ndn-peer.cpp's SetGenerationRandomize/SetSyncRandomize bounds:
// uniform draws from [0, 2/f], exponential has mean 1/f capped at 50/f.
func (j Jitter) NextInterval(f float64) time.Duration {
	if f <= 0 {
		f = 1
	}
	period := time.Duration(float64(time.Second) / f)

	switch j {
	case JitterUniform:
		return time.Duration(rand.Float64() * 2 * float64(period))
	case JitterExponential:
		mean := float64(period)
		bound := 50 * mean
		d := rand.ExpFloat64() * mean
		if d > bound {
			d = bound
		}
		return time.Duration(d)
	default:
		return period
	}
}
