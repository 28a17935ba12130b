// Package keyer contains the transmission cycle state machine for the
// beacon. It sequences pre-roll, morse preamble, audio, station ID and tail
// around the transmit-enable line, and preempts into a terminal safety halt
// on battery or watchdog conditions.
// Like internal/battery this is pure polled logic: no sleeps, no goroutines,
// time always passed in. Each Tick re-evaluates every boundary from scratch.
package keyer

import (
	"time"

	"github.com/sweeney/beacon-keyer/internal/audio"
	"github.com/sweeney/beacon-keyer/internal/battery"
	"github.com/sweeney/beacon-keyer/internal/morse"
)

// Phase is the transmission cycle phase. Exactly one is active at a time.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhasePreRoll    Phase = "PRE_ROLL"
	PhasePreamble   Phase = "PREAMBLE"
	PhaseAudio      Phase = "AUDIO"
	PhaseStationID  Phase = "STATION_ID"
	PhaseTail       Phase = "TAIL"
	PhaseSafetyHalt Phase = "SAFETY_HALT"
)

// Transmitting reports whether the transmitter is keyed in this phase.
// The transmit-enable line is asserted exactly when this is true.
func (p Phase) Transmitting() bool {
	return p != PhaseIdle && p != PhaseSafetyHalt
}

// Switch is the transmit-enable actuator.
type Switch interface {
	Set(on bool) error
}

// Config holds the timing and content parameters of the cycle.
type Config struct {
	PreRoll        time.Duration // key-up settle time before content
	Tail           time.Duration // key-down hold time after content
	CycleInterval  time.Duration // idle time between cycles
	MaxKeyDuration time.Duration // watchdog ceiling on continuous keying
	Dot            time.Duration // morse dot duration
	AudioFloor     time.Duration // minimum cumulative audio per cycle
	Callsign       string
	Preamble       string // morse test/sync text sent before the audio
	StartRetries   int    // attempts to start a clip before skipping
}

// Defaults chosen so the watchdog ceiling dwarfs any legitimate phase.
const (
	DefaultPreRoll        = 1 * time.Second
	DefaultTail           = 500 * time.Millisecond
	DefaultCycleInterval  = 10 * time.Minute
	DefaultMaxKeyDuration = 90 * time.Second
	DefaultDot            = 60 * time.Millisecond
	DefaultAudioFloor     = 30 * time.Second
	DefaultPreamble       = "vvv"
	DefaultStartRetries   = 3
)

func (c Config) withDefaults() Config {
	if c.PreRoll == 0 {
		c.PreRoll = DefaultPreRoll
	}
	if c.Tail == 0 {
		c.Tail = DefaultTail
	}
	if c.CycleInterval == 0 {
		c.CycleInterval = DefaultCycleInterval
	}
	if c.MaxKeyDuration == 0 {
		c.MaxKeyDuration = DefaultMaxKeyDuration
	}
	if c.Dot == 0 {
		c.Dot = DefaultDot
	}
	if c.AudioFloor == 0 {
		c.AudioFloor = DefaultAudioFloor
	}
	if c.Preamble == "" {
		c.Preamble = DefaultPreamble
	}
	if c.StartRetries == 0 {
		c.StartRetries = DefaultStartRetries
	}
	return c
}

// EventType labels a keyer event for diagnostics.
type EventType string

const (
	EventTxOn            EventType = "TX_ON"
	EventTxOff           EventType = "TX_OFF"
	EventCycleComplete   EventType = "CYCLE_COMPLETE"
	EventAudioSkipped    EventType = "AUDIO_SKIPPED"
	EventCyclesSuspended EventType = "CYCLES_SUSPENDED"
	EventSafetyHalt      EventType = "SAFETY_HALT"
	EventSwitchError     EventType = "SWITCH_ERROR"
)

// Event is a diagnostic record emitted by Tick. Publishing it is the
// caller's business; nothing in the keyer depends on delivery.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Phase     Phase
	Reason    string
	Cycle     int
}

// Keyer owns the transmission cycle state. Single writer, driven only by
// Tick; everything else is read-only accessors.
type Keyer struct {
	cfg      Config
	tx       Switch
	player   audio.Player
	selector *audio.Selector
	seq      *morse.Sequencer
	watchdog Watchdog

	phase      Phase
	phaseStart time.Time
	started    bool

	txOn      bool
	txOnSince time.Time

	cycleCount int
	finalCycle bool // running the mandatory last cycle before suspension
	suspended  bool // no further cycles will be scheduled
	haltReason string

	clip         audio.Clip
	audioStarted bool
	audioAccum   time.Duration
	retries      int

	toneActive bool
}

// New creates a Keyer in the idle phase with the transmitter unkeyed.
func New(cfg Config, tx Switch, player audio.Player, selector *audio.Selector) *Keyer {
	cfg = cfg.withDefaults()
	return &Keyer{
		cfg:      cfg,
		tx:       tx,
		player:   player,
		selector: selector,
		seq:      morse.NewSequencer(cfg.Dot),
		watchdog: Watchdog{Max: cfg.MaxKeyDuration},
		phase:    PhaseIdle,
	}
}

// Tick advances the machine by one poll step. Safety conditions (watchdog,
// battery critical) are evaluated before any phase logic so they win over a
// simultaneous normal transition. Returned events are diagnostics only.
func (k *Keyer) Tick(now time.Time, batt battery.State) []Event {
	if !k.started {
		k.started = true
		k.phaseStart = now
	}

	if k.phase == PhaseSafetyHalt {
		return nil
	}

	var events []Event

	if k.watchdog.Expired(k.txOn, k.txOnSince, now) {
		k.safetyHalt(now, "watchdog timeout", &events)
		return events
	}
	if batt == battery.StateCritical {
		k.safetyHalt(now, "battery critical", &events)
		return events
	}

	// A battery that reaches shutdown-pending mid-cycle makes the cycle in
	// progress the last one: it still carries the mandatory identification.
	if k.phase.Transmitting() && batt.Severity() >= battery.StateShutdownPending.Severity() {
		k.finalCycle = true
	}

	switch k.phase {
	case PhaseIdle:
		k.tickIdle(now, batt, &events)
	case PhasePreRoll:
		if k.elapsed(now) >= k.cfg.PreRoll {
			k.enterPreamble(now)
		}
	case PhasePreamble:
		k.toneActive = k.seq.Tick(now)
		if k.seq.Done() {
			k.enterAudio(now)
		}
	case PhaseAudio:
		k.tickAudio(now, &events)
	case PhaseStationID:
		k.toneActive = k.seq.Tick(now)
		if k.seq.Done() {
			k.enterPhase(PhaseTail, now)
		}
	case PhaseTail:
		if k.elapsed(now) >= k.cfg.Tail {
			k.finishCycle(now, &events)
		}
	}

	return events
}

func (k *Keyer) tickIdle(now time.Time, batt battery.State, events *[]Event) {
	if k.suspended {
		return
	}

	if k.elapsed(now) < k.cfg.CycleInterval {
		return
	}

	if batt.Severity() >= battery.StateShutdownPending.Severity() {
		// Run exactly one more full cycle so the mandatory identification
		// still goes out, then never restart.
		k.finalCycle = true
	}
	k.enterPhase(PhasePreRoll, now)
	k.setTx(true, now, events)
}

func (k *Keyer) tickAudio(now time.Time, events *[]Event) {
	if k.audioStarted {
		if !k.player.Done(now) {
			return
		}
		// Bank the finished play exactly once; a failed restart must not
		// re-read Elapsed on later ticks.
		k.audioAccum += k.player.Elapsed(now)
		k.audioStarted = false
		if k.audioAccum >= k.cfg.AudioFloor {
			k.enterStationID(now)
			return
		}
	}

	// Start, or restart below the floor. One attempt per tick, bounded.
	if err := k.player.Start(k.clip, now); err != nil {
		k.retries--
		if k.retries > 0 {
			return
		}
		if k.audioAccum == 0 {
			*events = append(*events, k.event(now, EventAudioSkipped, err.Error()))
		}
		// With at least one play banked, move on rather than stall.
		k.enterStationID(now)
		return
	}
	k.audioStarted = true
}

func (k *Keyer) finishCycle(now time.Time, events *[]Event) {
	k.setTx(false, now, events)
	k.cycleCount++
	*events = append(*events, k.event(now, EventCycleComplete, ""))
	k.enterPhase(PhaseIdle, now)
	if k.finalCycle {
		k.suspend(now, events)
	}
}

func (k *Keyer) suspend(now time.Time, events *[]Event) {
	if k.suspended {
		return
	}
	k.suspended = true
	*events = append(*events, k.event(now, EventCyclesSuspended, "battery shutdown pending"))
}

func (k *Keyer) safetyHalt(now time.Time, reason string, events *[]Event) {
	k.player.Stop()
	k.seq.Stop()
	k.toneActive = false
	k.setTx(false, now, events)
	k.enterPhase(PhaseSafetyHalt, now)
	k.haltReason = reason
	*events = append(*events, k.event(now, EventSafetyHalt, reason))
}

func (k *Keyer) enterPreamble(now time.Time) {
	k.seq.Start(morse.Encode(k.cfg.Preamble), now)
	k.enterPhase(PhasePreamble, now)
}

func (k *Keyer) enterAudio(now time.Time) {
	k.toneActive = false
	k.clip = k.selector.Pick()
	k.audioStarted = false
	k.audioAccum = 0
	k.retries = k.cfg.StartRetries
	k.enterPhase(PhaseAudio, now)
}

func (k *Keyer) enterStationID(now time.Time) {
	k.seq.Start(morse.Encode("de "+k.cfg.Callsign), now)
	k.enterPhase(PhaseStationID, now)
}

func (k *Keyer) enterPhase(p Phase, now time.Time) {
	k.phase = p
	k.phaseStart = now
}

func (k *Keyer) setTx(on bool, now time.Time, events *[]Event) {
	if on == k.txOn {
		return
	}
	if err := k.tx.Set(on); err != nil {
		// Keep the machine consistent with intent; the watchdog still
		// bounds the hardware if the line is stuck.
		*events = append(*events, k.event(now, EventSwitchError, err.Error()))
	}
	k.txOn = on
	if on {
		k.txOnSince = now
		*events = append(*events, k.event(now, EventTxOn, ""))
	} else {
		k.toneActive = false
		*events = append(*events, k.event(now, EventTxOff, ""))
	}
}

func (k *Keyer) event(now time.Time, typ EventType, reason string) Event {
	return Event{
		Timestamp: now,
		Type:      typ,
		Phase:     k.phase,
		Reason:    reason,
		Cycle:     k.cycleCount,
	}
}

func (k *Keyer) elapsed(now time.Time) time.Duration {
	return now.Sub(k.phaseStart)
}

// Phase returns the current phase.
func (k *Keyer) Phase() Phase {
	return k.phase
}

// TxOn reports whether the transmit-enable line is asserted.
func (k *Keyer) TxOn() bool {
	return k.txOn
}

// ToneActive reports whether the identification tone channel is keyed.
func (k *Keyer) ToneActive() bool {
	return k.toneActive
}

// CycleCount returns the number of completed cycles. Diagnostics only.
func (k *Keyer) CycleCount() int {
	return k.cycleCount
}

// Suspended reports whether future cycles are permanently suppressed.
func (k *Keyer) Suspended() bool {
	return k.suspended
}

// HaltReason returns the safety halt trigger, empty while running.
func (k *Keyer) HaltReason() string {
	return k.haltReason
}
