package recording

import (
	"sync"
	"time"

	"parley/capture"
	"parley/internal/types"
)

// attempt tracks a single recording from microphone acquisition to
// finalize. The controller holds at most one.
type attempt struct {
	id        string
	language  string
	format    capture.Format
	startedAt time.Time
	session   capture.Session
	done      chan struct{}

	mu     sync.Mutex
	status types.RecordingStatus
	chunks [][]byte
}

// accumulate drains the capture session's chunk channel in delivery
// order until it closes, then signals done.
func (a *attempt) accumulate() {
	defer close(a.done)
	for chunk := range a.session.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		a.mu.Lock()
		a.chunks = append(a.chunks, chunk)
		a.mu.Unlock()
	}
}

// payload concatenates accumulated chunks in capture order.
func (a *attempt) payload() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	size := 0
	for _, chunk := range a.chunks {
		size += len(chunk)
	}
	out := make([]byte, 0, size)
	for _, chunk := range a.chunks {
		out = append(out, chunk...)
	}
	return out
}

func (a *attempt) setStatus(s types.RecordingStatus) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

func (a *attempt) getStatus() types.RecordingStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}
