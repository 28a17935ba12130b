package audio

import "time"

// Player plays one clip at a time. It is polled, never waited on: the
// caller passes the loop's time into Done and Elapsed each tick.
type Player interface {
	// Start begins playback of the clip. An error means the clip could not
	// be started (player busy, file unreadable); the caller may retry.
	Start(clip Clip, now time.Time) error

	// Done reports whether playback has finished naturally. It returns
	// true when nothing was ever started.
	Done(now time.Time) bool

	// Elapsed returns how long the current (or just-finished) playback ran.
	Elapsed(now time.Time) time.Duration

	// Stop aborts playback, if any.
	Stop()

	// Close releases player resources.
	Close() error
}
