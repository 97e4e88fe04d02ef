package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// ffplaySink plays 24kHz mono PCM16LE by piping it into ffplay. Reset kills
// and relaunches the player, dropping whatever it had buffered; that is the
// cheapest way to make barge-in cut the audio instantly.
type ffplaySink struct {
	sampleRate int
	logger     *zap.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func newFFPlaySink(sampleRate int, logger *zap.Logger) *ffplaySink {
	return &ffplaySink{sampleRate: sampleRate, logger: logger}
}

func (s *ffplaySink) Write(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureRunningLocked(); err != nil {
		return err
	}
	_, err := s.stdin.Write(pcm)
	if err != nil {
		s.stopLocked()
	}
	return err
}

func (s *ffplaySink) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *ffplaySink) ensureRunningLocked() error {
	if s.cmd != nil && s.cmd.Process != nil {
		return nil
	}
	// ffplay takes `-ch_layout`, not ffmpeg's `-ac`.
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-nodisp",
		"-autoexit",
		"-f", "s16le",
		"-ch_layout", "mono",
		"-ar", fmt.Sprintf("%d", s.sampleRate),
		"-i", "-",
	}
	cmd := exec.Command("ffplay", args...)
	if runtime.GOOS == "darwin" && os.Getenv("SDL_AUDIODRIVER") == "" {
		// SDL sometimes picks a dummy backend on macOS; prefer CoreAudio.
		cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER=coreaudio")
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return err
	}
	s.logger.Debug("ffplay started", zap.Int("pid", cmd.Process.Pid))
	s.cmd = cmd
	s.stdin = stdin
	go func(c *exec.Cmd) {
		c.Wait()
		s.mu.Lock()
		if s.cmd == c {
			s.cmd = nil
			s.stdin = nil
		}
		s.mu.Unlock()
	}(cmd)
	return nil
}

func (s *ffplaySink) stopLocked() {
	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd = nil
	s.stdin = nil
}
