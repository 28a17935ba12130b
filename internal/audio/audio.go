// Package audio provides clip enumeration, the per-cycle selection policy
// and playback with hardware abstraction. The real player hands the clip to
// an external command (aplay by default); decoding and output are that
// process's problem. The fake player allows testing without sound hardware.
package audio

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Clip identifies one playable audio file.
type Clip struct {
	ID   string
	Path string
}

// ScanClips enumerates playable clips in dir, sorted by name. A deployment
// with no clips at all has no useful degraded mode, so an empty result is
// an error the caller should treat as fatal before ever keying up.
func ScanClips(dir string) ([]Clip, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read clip dir: %w", err)
	}

	var clips []Clip
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".wav", ".mp3":
			clips = append(clips, Clip{
				ID:   strings.TrimSuffix(name, filepath.Ext(name)),
				Path: filepath.Join(dir, name),
			})
		}
	}
	if len(clips) == 0 {
		return nil, fmt.Errorf("no audio clips found in %s", dir)
	}

	sort.Slice(clips, func(i, j int) bool { return clips[i].ID < clips[j].ID })
	return clips, nil
}

// Selector picks the clip for each transmission cycle.
type Selector struct {
	clips    []Clip
	noRepeat bool
	rng      *rand.Rand
	lastIdx  int
}

// NewSelector creates a Selector over the given clips. When noRepeat is set
// and more than one clip is available, the immediately previous pick is
// excluded.
func NewSelector(clips []Clip, noRepeat bool, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{
		clips:    clips,
		noRepeat: noRepeat,
		rng:      rng,
		lastIdx:  -1,
	}
}

// Pick selects a clip uniformly at random.
func (s *Selector) Pick() Clip {
	n := len(s.clips)
	if n == 1 {
		s.lastIdx = 0
		return s.clips[0]
	}

	idx := s.rng.Intn(n)
	if s.noRepeat && idx == s.lastIdx {
		// Shift into the remaining n-1 slots.
		idx = (idx + 1 + s.rng.Intn(n-1)) % n
	}
	s.lastIdx = idx
	return s.clips[idx]
}
