// Package battery classifies noisy voltage readings into a small ordered
// set of health states with consecutive-sample debouncing.
// This package has NO external dependencies (no ADC, MQTT, OS, or
// time.Sleep). Time is always injectable via time.Time parameters.
package battery

import "time"

// State represents the debounced battery health state, ordered best first.
type State string

const (
	StateGood            State = "GOOD"
	StateLow             State = "LOW"
	StateVeryLow         State = "VERY_LOW"
	StateShutdownPending State = "SHUTDOWN_PENDING"
	StateCritical        State = "CRITICAL"
)

// Severity returns the ordering rank of a state, 0 = best. Unknown states
// rank worst so a corrupted value never reads as healthy.
func (s State) Severity() int {
	switch s {
	case StateGood:
		return 0
	case StateLow:
		return 1
	case StateVeryLow:
		return 2
	case StateShutdownPending:
		return 3
	case StateCritical:
		return 4
	}
	return 5
}

// Thresholds holds the four ordered cut points delimiting the five states.
// Each band is closed-open [low, high): a voltage at or above Good is GOOD,
// at or above Low (but below Good) is LOW, and so on. Anything below
// ShutdownPending is CRITICAL, so every reading maps to exactly one state.
type Thresholds struct {
	Good            float64
	Low             float64
	VeryLow         float64
	ShutdownPending float64
}

// DefaultThresholds suit a 12V lead-acid pack under light load.
var DefaultThresholds = Thresholds{
	Good:            12.0,
	Low:             11.5,
	VeryLow:         11.2,
	ShutdownPending: 10.8,
}

// DefaultDebounceCount is the number of consecutive agreeing samples
// required to confirm a state change.
const DefaultDebounceCount = 3

// Classify maps a voltage to its band. It is total: out-of-range values
// clamp to the extreme states.
func (t Thresholds) Classify(voltage float64) State {
	switch {
	case voltage >= t.Good:
		return StateGood
	case voltage >= t.Low:
		return StateLow
	case voltage >= t.VeryLow:
		return StateVeryLow
	case voltage >= t.ShutdownPending:
		return StateShutdownPending
	}
	return StateCritical
}

// Valid reports whether the cut points are strictly descending.
func (t Thresholds) Valid() bool {
	return t.Good > t.Low && t.Low > t.VeryLow && t.VeryLow > t.ShutdownPending
}

// Transition describes a confirmed state change.
type Transition struct {
	Timestamp time.Time
	From      State
	To        State
	Voltage   float64
}

// Guardian tracks the confirmed state and the debounce candidate.
type Guardian struct {
	thresholds    Thresholds
	debounceCount int

	current  State
	previous State

	candidate      State
	candidateCount int

	transitions int
}

// NewGuardian creates a Guardian starting in StateGood. The first debounced
// classification supersedes it like any other transition.
func NewGuardian(thresholds Thresholds, debounceCount int) *Guardian {
	if debounceCount < 1 {
		debounceCount = 1
	}
	return &Guardian{
		thresholds:    thresholds,
		debounceCount: debounceCount,
		current:       StateGood,
		previous:      StateGood,
	}
}

// Sample classifies one voltage reading and feeds it through the debounce
// filter. It returns a non-nil Transition only when a state change is
// confirmed. A single out-of-band reading can never change the state.
func (g *Guardian) Sample(voltage float64, now time.Time) *Transition {
	state := g.thresholds.Classify(voltage)

	if state == g.current {
		// Reading agrees with the confirmed state: drop any candidate.
		g.candidate = ""
		g.candidateCount = 0
		return nil
	}

	if state != g.candidate {
		// A different candidate replaces the pending one.
		g.candidate = state
		g.candidateCount = 1
	} else {
		g.candidateCount++
	}

	if g.candidateCount < g.debounceCount {
		return nil
	}

	g.previous = g.current
	g.current = state
	g.candidate = ""
	g.candidateCount = 0
	g.transitions++

	return &Transition{
		Timestamp: now,
		From:      g.previous,
		To:        g.current,
		Voltage:   voltage,
	}
}

// Current returns the confirmed state.
func (g *Guardian) Current() State {
	return g.current
}

// Previous returns the state before the last confirmed transition.
func (g *Guardian) Previous() State {
	return g.previous
}

// Transitions returns the number of confirmed transitions since start.
func (g *Guardian) Transitions() int {
	return g.transitions
}
