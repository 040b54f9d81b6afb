package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ffmpeg muxer and codec per negotiated MIME type.
var ffmpegFormats = map[string][2]string{
	"audio/webm;codecs=opus": {"webm", "libopus"},
	"audio/ogg;codecs=opus":  {"ogg", "libopus"},
	"audio/wav":              {"wav", "pcm_s16le"},
}

// FFmpegRecorder captures microphone audio by streaming an ffmpeg
// process's stdout.
type FFmpegRecorder struct {
	command string
}

// NewFFmpegRecorder creates a recorder using the given ffmpeg command.
func NewFFmpegRecorder(command string) *FFmpegRecorder {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegRecorder{command: command}
}

// Supports reports whether ffmpeg can mux the given MIME type.
func (r *FFmpegRecorder) Supports(mime string) bool {
	_, ok := ffmpegFormats[mime]
	return ok
}

// Start launches ffmpeg against the configured input device and begins
// streaming chunks. Device errors are classified from ffmpeg's stderr.
func (r *FFmpegRecorder) Start(ctx context.Context, cfg Config) (Session, error) {
	mux, ok := ffmpegFormats[cfg.Format.MIME]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSupportedFormat, cfg.Format.MIME)
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", mux[1],
		"-f", mux[0],
		"-",
	}

	cmd := exec.CommandContext(ctx, r.command, args...)
	// Context cancellation must stop ffmpeg the same way Stop does. The
	// default Cancel sends SIGKILL, which drops the encoder's unflushed
	// tail and leaves the container unfinalized.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 3 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Let ffmpeg either open the device or fail fast. An immediate exit
	// here is a device problem, not a capture problem.
	select {
	case err := <-waitErr:
		_ = stdout.Close()
		return nil, classifyDeviceError(err, stderr.String())
	case <-time.After(250 * time.Millisecond):
	}

	s := &ffmpegSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		chunks:  make(chan []byte, 8),
		stopped: make(chan struct{}),
	}
	go s.pump(cfg.ChunkInterval)
	return s, nil
}

// classifyDeviceError maps ffmpeg startup failures onto the capture
// error taxonomy so callers can distinguish denied from missing devices.
func classifyDeviceError(err error, stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "access denied"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(stderr))
	case strings.Contains(msg, "no such"), strings.Contains(msg, "not found"), strings.Contains(msg, "cannot find"):
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, strings.TrimSpace(stderr))
	}
	if err != nil {
		if trimmed := strings.TrimSpace(stderr); trimmed != "" {
			return fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimmed)
		}
		return fmt.Errorf("ffmpeg exited before capture started: %w", err)
	}
	return fmt.Errorf("ffmpeg exited before capture started: %s", strings.TrimSpace(stderr))
}

type ffmpegSession struct {
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error

	chunks  chan []byte
	stopped chan struct{}

	mu      sync.Mutex
	pending []byte

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Chunks() <-chan []byte {
	return s.chunks
}

// pump reads the ffmpeg stream and flushes accumulated bytes to the
// chunk channel at the configured cadence. The final partial chunk is
// flushed on EOF, after which the channel closes.
func (s *ffmpegSession) pump(interval time.Duration) {
	defer close(s.chunks)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 4096)
		for {
			n, err := s.stdout.Read(buf)
			if n > 0 {
				s.mu.Lock()
				s.pending = append(s.pending, buf[:n]...)
				s.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-readDone:
			s.flush()
			return
		}
	}
}

func (s *ffmpegSession) flush() {
	s.mu.Lock()
	chunk := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(chunk) > 0 {
		s.send(chunk)
	}
}

// send delivers a chunk to the consumer. While the session is live it
// blocks like a plain channel send. Once Stop has run a short grace
// period covers a consumer that is still draining; a session stopped
// with no consumer at all (an aborted start) drops the chunk instead
// of pinning the pump goroutine forever.
func (s *ffmpegSession) send(chunk []byte) {
	select {
	case s.chunks <- chunk:
	case <-s.stopped:
		select {
		case s.chunks <- chunk:
		case <-time.After(2 * time.Second):
		}
	}
}

// Stop interrupts ffmpeg and waits for it to exit, releasing the
// device. The chunk channel closes once the final fragment is out.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeExitErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeExitErr(err)
			}
		}

		_ = s.stdout.Close()
		close(s.stopped)

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})
	return s.stopErr
}

// normalizeExitErr drops the exit status ffmpeg reports when it is
// interrupted mid-stream; that is the normal stop path.
func normalizeExitErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
