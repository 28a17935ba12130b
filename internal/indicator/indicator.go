// Package indicator blinks the status LED in morse. During normal operation
// it repeats a single letter for the confirmed battery state; after a safety
// halt it repeats SOS continuously so the failure is unmistakable in the
// field.
package indicator

import (
	"time"

	"github.com/sweeney/beacon-keyer/internal/battery"
	"github.com/sweeney/beacon-keyer/internal/morse"
)

// One letter per battery state, chosen to be distinct on a blinking LED.
var stateLetters = map[battery.State]string{
	battery.StateGood:            "g",
	battery.StateLow:             "l",
	battery.StateVeryLow:         "v",
	battery.StateShutdownPending: "d",
	battery.StateCritical:        "sos",
}

const haltMessage = "sos"

// Indicator owns the LED sequencer. The pattern is regenerated only when
// the source message changes.
type Indicator struct {
	seq     *morse.Sequencer
	message string
}

// New creates an Indicator with the given dot duration.
func New(dot time.Duration) *Indicator {
	seq := morse.NewSequencer(dot)
	seq.SetRepeat(true)
	return &Indicator{seq: seq}
}

// Tick returns the LED level for this tick. halted selects the safety-halt
// pattern regardless of battery state.
func (ind *Indicator) Tick(now time.Time, batt battery.State, halted bool) bool {
	message := stateLetters[batt]
	if halted {
		message = haltMessage
	}
	if message != ind.message {
		ind.message = message
		ind.seq.Start(morse.Encode(message), now)
	}
	return ind.seq.Tick(now)
}
