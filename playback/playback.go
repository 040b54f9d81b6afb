// Package playback provides the audio sink capability and the single
// "currently playing" slot shared by all conferences.
package playback

import (
	"context"
	"sync"
)

// Handle is one active playback of a stored recording.
type Handle interface {
	// Stop ends playback. Safe to call more than once.
	Stop() error

	// Done is closed when playback finishes on its own or is stopped.
	Done() <-chan struct{}
}

// Opener starts playback of a recording URL.
type Opener interface {
	Open(ctx context.Context, url string) (Handle, error)
}

// Manager enforces the at-most-one-active playback invariant: starting
// a new conference's recording stops the previous one first.
type Manager struct {
	opener Opener

	mu        sync.Mutex
	currentID string
	current   Handle
}

// NewManager creates a playback manager around the given opener.
func NewManager(opener Opener) *Manager {
	return &Manager{opener: opener}
}

// Play starts playback for the given conference, stopping any other
// active playback first.
func (m *Manager) Play(ctx context.Context, conferenceID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		_ = m.current.Stop()
		m.current = nil
		m.currentID = ""
	}

	h, err := m.opener.Open(ctx, url)
	if err != nil {
		return err
	}

	m.current = h
	m.currentID = conferenceID

	go func() {
		<-h.Done()
		m.mu.Lock()
		if m.current == h {
			m.current = nil
			m.currentID = ""
		}
		m.mu.Unlock()
	}()

	return nil
}

// Stop ends playback for the given conference. A stale id (already
// stopped, or never playing) is a no-op.
func (m *Manager) Stop(conferenceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.currentID != conferenceID {
		return
	}
	_ = m.current.Stop()
	m.current = nil
	m.currentID = ""
}

// StopAll ends any active playback.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		_ = m.current.Stop()
		m.current = nil
		m.currentID = ""
	}
}

// Playing returns the conference id currently playing, if any.
func (m *Manager) Playing() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID, m.current != nil
}

// Wait blocks until the current playback (if any) finishes.
func (m *Manager) Wait() {
	m.mu.Lock()
	h := m.current
	m.mu.Unlock()
	if h != nil {
		<-h.Done()
	}
}
