package audio

import (
	"fmt"
	"time"
)

// FakePlayer is a test double with scripted per-clip durations.
type FakePlayer struct {
	// Durations maps clip ID to its playback length.
	Durations map[string]time.Duration

	// RejectStarts makes the next N Start calls fail.
	RejectStarts int

	// Started records the clip IDs handed to Start, in order.
	Started []string

	// Stopped counts Stop calls.
	Stopped int

	// Closed tracks if Close was called.
	Closed bool

	playing  bool
	ever     bool
	startAt  time.Time
	duration time.Duration
}

// NewFakePlayer creates a FakePlayer with the given clip durations.
func NewFakePlayer(durations map[string]time.Duration) *FakePlayer {
	return &FakePlayer{Durations: durations}
}

// Start begins scripted playback of the clip.
func (f *FakePlayer) Start(clip Clip, now time.Time) error {
	if f.RejectStarts > 0 {
		f.RejectStarts--
		return fmt.Errorf("clip unavailable")
	}

	dur, ok := f.Durations[clip.ID]
	if !ok {
		return fmt.Errorf("unknown clip %q", clip.ID)
	}

	f.Started = append(f.Started, clip.ID)
	f.playing = true
	f.ever = true
	f.startAt = now
	f.duration = dur
	return nil
}

// Done reports whether the scripted duration has elapsed.
func (f *FakePlayer) Done(now time.Time) bool {
	if !f.playing {
		return true
	}
	if !now.Before(f.startAt.Add(f.duration)) {
		f.playing = false
		return true
	}
	return false
}

// Elapsed returns the scripted playback progress, capped at the clip
// duration once complete.
func (f *FakePlayer) Elapsed(now time.Time) time.Duration {
	if !f.ever {
		return 0
	}
	elapsed := now.Sub(f.startAt)
	if elapsed > f.duration {
		return f.duration
	}
	return elapsed
}

// Stop aborts scripted playback.
func (f *FakePlayer) Stop() {
	f.Stopped++
	f.playing = false
}

// Close marks the player as closed.
func (f *FakePlayer) Close() error {
	f.Closed = true
	return nil
}
