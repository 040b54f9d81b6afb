// Package capture provides the microphone capture capability.
//
// A Recorder acquires the device and produces a Session that emits
// binary audio chunks at a fixed cadence. The container format is
// negotiated once per session from an ordered preference list and then
// used consistently for the capture configuration, the finalized
// payload's declared type, and the upload filename extension.
package capture

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied is returned when the audio device refuses access.
	ErrPermissionDenied = errors.New("microphone access denied")

	// ErrDeviceNotFound is returned when the configured input device does not exist.
	ErrDeviceNotFound = errors.New("audio input device not found")

	// ErrNoSupportedFormat is returned when negotiation exhausts the preference list.
	ErrNoSupportedFormat = errors.New("no supported capture format")
)

// Format identifies one audio container type.
type Format struct {
	MIME string
	Ext  string
}

// DefaultPreferences is the ordered container preference list:
// webm/opus first, ogg/opus as fallback, then uncompressed wav.
var DefaultPreferences = []Format{
	{MIME: "audio/webm;codecs=opus", Ext: "webm"},
	{MIME: "audio/ogg;codecs=opus", Ext: "ogg"},
	{MIME: "audio/wav", Ext: "wav"},
}

// Config describes how a capture session should run.
type Config struct {
	Format        Format
	InputFormat   string // capture backend, ffmpeg naming (pulse, avfoundation, ...)
	InputDevice   string
	SampleRate    int
	Channels      int
	ChunkInterval time.Duration
}

// Session is a live microphone capture.
type Session interface {
	// Chunks delivers captured fragments in capture order. The channel
	// closes after Stop, once the final fragment has been delivered.
	// Empty fragments are never sent. Callers that stop a session
	// should drain the channel; a stopped session with no consumer
	// discards the remainder.
	Chunks() <-chan []byte

	// Stop ends capture and releases the device. Safe to call on every
	// exit path; subsequent calls are no-ops.
	Stop() error
}

// Recorder acquires microphone capture sessions.
type Recorder interface {
	// Supports reports whether the recorder can produce the given MIME type.
	Supports(mime string) bool

	// Start acquires the device and begins capture.
	Start(ctx context.Context, cfg Config) (Session, error)
}

// Negotiate picks the first format the recorder supports, walking the
// preference list in order.
func Negotiate(r Recorder, prefs []Format) (Format, error) {
	for _, f := range prefs {
		if r.Supports(f.MIME) {
			return f, nil
		}
	}
	return Format{}, ErrNoSupportedFormat
}
