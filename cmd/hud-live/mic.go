package main

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/kitts-ai/hud-live/pkg/core"
	"github.com/kitts-ai/hud-live/pkg/live"
)

// ffmpegSource captures 16kHz mono PCM16LE through an ffmpeg child process
// and hands it out in engine-sized frames.
type ffmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	logger *zap.Logger

	closeOnce sync.Once
}

// newCaptureSource spawns ffmpeg against the platform capture backend. device
// is backend specific: an avfoundation index on macOS, a pulse source name on
// Linux. Empty selects the default.
func newCaptureSource(device string, systemAudio bool, logger *zap.Logger) (*ffmpegSource, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
	}
	switch runtime.GOOS {
	case "darwin":
		if device == "" {
			device = "0"
		}
		// `none:<idx>` keeps ffmpeg from opening a camera.
		args = append(args, "-f", "avfoundation", "-i", "none:"+device)
	default:
		if device == "" {
			device = "default"
			if systemAudio {
				device = "@DEFAULT_MONITOR@"
			}
		}
		args = append(args, "-f", "pulse", "-i", device)
	}
	args = append(args,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", live.InputSampleRate),
		"-f", "s16le",
		"-",
	)

	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, core.NewDeviceError(fmt.Sprintf("capture pipe: %v", err))
	}
	stderr, _ := cmd.StderrPipe()
	if err := cmd.Start(); err != nil {
		return nil, core.NewDeviceError(fmt.Sprintf("capture start: %v", err))
	}
	go drainFFmpegStderr(stderr, logger)

	logger.Info("capture started",
		zap.String("device", device),
		zap.Bool("system_audio", systemAudio))
	return &ffmpegSource{
		cmd:    cmd,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, 64*1024),
		logger: logger,
	}, nil
}

// ReadFrame blocks until one full frame is available.
func (s *ffmpegSource) ReadFrame(buf []byte) error {
	if _, err := io.ReadFull(s.reader, buf[:live.FrameBytes]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return err
	}
	return nil
}

func (s *ffmpegSource) Close() error {
	s.closeOnce.Do(func() {
		s.stdout.Close()
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
			s.cmd.Process.Wait()
		}
	})
	return nil
}

func drainFFmpegStderr(r io.Reader, logger *zap.Logger) {
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		logger.Debug("ffmpeg", zap.String("line", line))
	}
}
