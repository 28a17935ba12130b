package keyer

import "time"

// Watchdog bounds how long the transmit-enable line may stay asserted. It
// is stateless and re-evaluated every tick, independently of the phase
// timers: the last line of defense if the cycle logic stalls or miscounts.
type Watchdog struct {
	Max time.Duration
}

// Expired reports whether the line has been keyed longer than the ceiling.
func (w Watchdog) Expired(txOn bool, since, now time.Time) bool {
	return txOn && now.Sub(since) > w.Max
}
