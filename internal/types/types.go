// Package types provides shared type definitions for the application.
package types

// Conference is the client-visible projection of one stored conference.
// ID is assigned by the backend when the session is created; it is empty
// before that point and immutable afterwards.
type Conference struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Duration string `json:"duration"`
	Summary  string `json:"summary"`
	Language string `json:"language"`

	// Translated holds the last translation fetched for this conference,
	// keyed by target language. Only one translation is kept at a time;
	// the backend recomputes on demand.
	Translated     string `json:"translated,omitempty"`
	TranslatedLang string `json:"translatedLang,omitempty"`
}

// RecordingStatus models the lifecycle of one recording attempt.
type RecordingStatus string

const (
	StatusIdle       RecordingStatus = "idle"
	StatusRecording  RecordingStatus = "recording"
	StatusSubmitting RecordingStatus = "submitting"
	StatusReady      RecordingStatus = "ready"
	StatusFailed     RecordingStatus = "failed"
)

// RecordingState is a snapshot of the controller's current attempt.
type RecordingState struct {
	Status     RecordingStatus `json:"status"`
	Language   string          `json:"language"`
	StartedAt  int64           `json:"startedAt,omitempty"` // Unix ms; zero when idle
	Conference string          `json:"conference,omitempty"`
}

// TranslateResult is the outcome of a translate call for one conference.
type TranslateResult struct {
	ConferenceID string `json:"conferenceId"`
	TargetLang   string `json:"targetLang"`
	Text         string `json:"text"`
	CacheHit     bool   `json:"cacheHit"`
}

// DetectResult represents the result of language detection.
type DetectResult struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	DefaultTarget string `json:"defaultTarget"`
}
