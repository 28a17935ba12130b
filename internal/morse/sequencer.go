package morse

import "time"

// Sequencer plays a symbol pattern against a single boolean channel without
// ever blocking. Each call to Tick compares the injected time against the
// end of the current symbol and advances when it has passed.
type Sequencer struct {
	dot     time.Duration
	pattern []Symbol
	index   int
	// end of the symbol currently being emitted; zero when idle
	symbolEnd time.Time
	keyDown   bool
	running   bool
	repeat    bool
}

// NewSequencer creates a stopped sequencer with the given dot duration.
func NewSequencer(dot time.Duration) *Sequencer {
	return &Sequencer{dot: dot}
}

// Start arms the sequencer with a pattern. An empty pattern completes
// immediately (unknown characters encode to nothing).
func (s *Sequencer) Start(pattern []Symbol, now time.Time) {
	s.pattern = pattern
	s.index = 0
	s.running = len(pattern) > 0
	if s.running {
		s.applySymbol(pattern[0], now)
	} else {
		s.keyDown = false
	}
}

// SetRepeat makes the sequencer re-arm its pattern after completion, with
// one extra WordBreak of silence between repetitions. Used by the status
// indicator; the identification phases leave it off.
func (s *Sequencer) SetRepeat(repeat bool) {
	s.repeat = repeat
}

// Stop halts emission and drops the current pattern.
func (s *Sequencer) Stop() {
	s.running = false
	s.keyDown = false
	s.pattern = nil
}

// Tick advances the sequencer and returns whether the channel is active.
func (s *Sequencer) Tick(now time.Time) bool {
	if !s.running {
		return false
	}
	if now.Before(s.symbolEnd) {
		return s.keyDown
	}

	s.index++
	if s.index >= len(s.pattern) {
		if !s.repeat {
			s.running = false
			s.keyDown = false
			return false
		}
		// Patterns end with a WordBreak; one more makes the standard
		// inter-word spacing between repetitions.
		s.index = -1
		s.nextSymbol(WordBreak)
		return false
	}
	if s.index == 0 {
		// Re-entry after the repeat gap.
		s.nextSymbol(s.pattern[0])
		return s.keyDown
	}
	s.nextSymbol(s.pattern[s.index])
	return s.keyDown
}

// Done reports whether a non-repeating pattern has been fully played.
func (s *Sequencer) Done() bool {
	return !s.running
}

func (s *Sequencer) applySymbol(sym Symbol, now time.Time) {
	s.symbolEnd = now.Add(time.Duration(sym.Weight) * s.dot)
	s.keyDown = sym.KeyDown
}

// nextSymbol chains the new symbol off the previous symbol's end so that
// coarse polling does not stretch the pattern.
func (s *Sequencer) nextSymbol(sym Symbol) {
	s.symbolEnd = s.symbolEnd.Add(time.Duration(sym.Weight) * s.dot)
	s.keyDown = sym.KeyDown
}
