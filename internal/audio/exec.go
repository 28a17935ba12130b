package audio

import (
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// DefaultCommand is the external playback command. It must accept a file
// path as its only argument and exit when playback completes.
const DefaultCommand = "aplay"

// ExecPlayer plays clips by running an external command per clip. Process
// exit is the natural-completion signal.
type ExecPlayer struct {
	command string

	mu       sync.Mutex
	cmd      *exec.Cmd
	started  time.Time
	finished time.Time
	running  bool
	ever     bool
}

// NewExecPlayer creates a player that runs the given command.
func NewExecPlayer(command string) *ExecPlayer {
	if command == "" {
		command = DefaultCommand
	}
	return &ExecPlayer{command: command}
}

// Start launches the playback process for the clip.
func (p *ExecPlayer) Start(clip Clip, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("player busy")
	}

	cmd := exec.Command(p.command, clip.Path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.command, err)
	}

	p.cmd = cmd
	p.started = now
	p.running = true
	p.ever = true

	go func() {
		cmd.Wait()
		p.mu.Lock()
		p.running = false
		p.finished = time.Now()
		p.mu.Unlock()
	}()

	return nil
}

// Done reports whether the playback process has exited.
func (p *ExecPlayer) Done(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.running
}

// Elapsed returns the wall-clock duration of the current or last playback.
func (p *ExecPlayer) Elapsed(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ever {
		return 0
	}
	if p.running {
		return now.Sub(p.started)
	}
	return p.finished.Sub(p.started)
}

// Stop kills the playback process, if any.
func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	cmd := p.cmd
	running := p.running
	p.mu.Unlock()

	if running && cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
}

// Close stops any playback in progress.
func (p *ExecPlayer) Close() error {
	p.Stop()
	return nil
}
