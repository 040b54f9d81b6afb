package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// FFplayOpener plays recording URLs through an ffplay process.
type FFplayOpener struct {
	command string
}

// NewFFplayOpener creates an opener using the given ffplay command.
func NewFFplayOpener(command string) *FFplayOpener {
	if command == "" {
		command = "ffplay"
	}
	return &FFplayOpener{command: command}
}

// Open starts ffplay against the URL. It returns once the process is
// running; playback ends when the stream finishes or Stop is called.
func (o *FFplayOpener) Open(ctx context.Context, url string) (Handle, error) {
	args := []string{
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "error",
		url,
	}

	cmd := exec.CommandContext(ctx, o.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", o.command, err)
	}

	h := &ffplayHandle{
		process: cmd.Process,
		done:    make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		if err != nil && !h.stopped {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) || stderr.Len() > 0 {
				h.err = fmt.Errorf("playback failed: %w: %s", err, strings.TrimSpace(stderr.String()))
			}
		}
		h.mu.Unlock()
		close(h.done)
	}()

	return h, nil
}

type ffplayHandle struct {
	process *os.Process
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
	err     error
}

func (h *ffplayHandle) Done() <-chan struct{} { return h.done }

// Err reports a playback failure, valid after Done is closed.
func (h *ffplayHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *ffplayHandle) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	h.mu.Unlock()

	if h.process != nil {
		_ = h.process.Signal(os.Interrupt)
	}

	select {
	case <-h.done:
	case <-time.After(1200 * time.Millisecond):
		if h.process != nil {
			_ = h.process.Kill()
		}
		<-h.done
	}
	return nil
}
