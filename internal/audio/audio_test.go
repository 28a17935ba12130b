package audio

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScanClips(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.wav", "a.WAV", "c.mp3", "notes.txt", "readme")
	os.Mkdir(filepath.Join(dir, "sub.wav"), 0755)

	clips, err := ScanClips(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(clips) != len(want) {
		t.Fatalf("got %d clips, want %d", len(clips), len(want))
	}
	for i, w := range want {
		if clips[i].ID != w {
			t.Errorf("clip %d: got %q, want %q", i, clips[i].ID, w)
		}
	}
}

func TestScanClipsEmptyIsError(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "notes.txt")

	if _, err := ScanClips(dir); err == nil {
		t.Error("expected error for directory with no clips")
	}
	if _, err := ScanClips(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestSelectorSingleClip(t *testing.T) {
	clips := []Clip{{ID: "only"}}
	s := NewSelector(clips, true, rand.New(rand.NewSource(1)))

	for i := 0; i < 5; i++ {
		if got := s.Pick(); got.ID != "only" {
			t.Fatalf("pick %d: got %q", i, got.ID)
		}
	}
}

func TestSelectorNoRepeat(t *testing.T) {
	clips := []Clip{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	s := NewSelector(clips, true, rand.New(rand.NewSource(42)))

	last := s.Pick().ID
	for i := 0; i < 200; i++ {
		got := s.Pick().ID
		if got == last {
			t.Fatalf("pick %d repeated %q with no-repeat enabled", i, got)
		}
		last = got
	}
}

func TestSelectorCoversAllClips(t *testing.T) {
	clips := []Clip{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	s := NewSelector(clips, false, rand.New(rand.NewSource(7)))

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[s.Pick().ID] = true
	}
	if len(seen) != 3 {
		t.Errorf("only saw %d of 3 clips in 200 picks", len(seen))
	}
}

func TestFakePlayerLifecycle(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFakePlayer(map[string]time.Duration{"a": 3 * time.Second})

	if !f.Done(t0) {
		t.Error("player with nothing started should report done")
	}

	if err := f.Start(Clip{ID: "a"}, t0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Done(t0.Add(time.Second)) {
		t.Error("should still be playing at 1s")
	}
	if got := f.Elapsed(t0.Add(time.Second)); got != time.Second {
		t.Errorf("elapsed = %v, want 1s", got)
	}
	if !f.Done(t0.Add(3 * time.Second)) {
		t.Error("should be done at 3s")
	}
	if got := f.Elapsed(t0.Add(10 * time.Second)); got != 3*time.Second {
		t.Errorf("elapsed after completion = %v, want 3s", got)
	}
}

func TestFakePlayerRejectStarts(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFakePlayer(map[string]time.Duration{"a": time.Second})
	f.RejectStarts = 2

	if err := f.Start(Clip{ID: "a"}, t0); err == nil {
		t.Fatal("first start should be rejected")
	}
	if err := f.Start(Clip{ID: "a"}, t0); err == nil {
		t.Fatal("second start should be rejected")
	}
	if err := f.Start(Clip{ID: "a"}, t0); err != nil {
		t.Fatalf("third start should succeed: %v", err)
	}
	if len(f.Started) != 1 {
		t.Errorf("started = %v, want one entry", f.Started)
	}
}
