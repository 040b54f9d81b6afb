// Package recording implements the conference recording session
// controller: one state machine spanning microphone acquisition,
// backend session registration, chunk accumulation, and finalize,
// plus the translate/delete/playback sub-operations on the stored
// conference list.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"parley/capture"
	"parley/internal/types"
	"parley/playback"
)

var (
	// ErrRecordingActive rejects a start while an attempt is recording or submitting.
	ErrRecordingActive = errors.New("a recording is already in progress")

	// ErrNoActiveRecording rejects a stop with nothing to stop.
	ErrNoActiveRecording = errors.New("no active recording")

	// ErrTranslatePending rejects a second translate for a conference
	// while one is still in flight. Callers treat it as a no-op.
	ErrTranslatePending = errors.New("a translation is already pending for this conference")

	// ErrUnknownConference is returned for operations on ids not in the list.
	ErrUnknownConference = errors.New("unknown conference")
)

// SessionAPI is the slice of the backend contract the controller uses.
type SessionAPI interface {
	StartConference(ctx context.Context, parentLanguage string) (string, error)
	SubmitRecording(ctx context.Context, conferenceID string, audio []byte, mimeType, filename string) (string, error)
	ListConferences(ctx context.Context) ([]types.Conference, error)
	DeleteConference(ctx context.Context, conferenceID string) error
	Translate(ctx context.Context, conferenceID, targetLanguage string) (string, error)
	RecordingURL(conferenceID string) string
}

// TranslationCache is an optional best-effort store for fetched
// translations. A nil cache disables caching.
type TranslationCache interface {
	Get(conferenceID, targetLang string) (string, bool)
	Set(conferenceID, targetLang, text string)
	DeleteAll(conferenceID string)
}

// Config controls recording behavior.
type Config struct {
	// Formats is the ordered container preference list for negotiation.
	Formats []capture.Format

	// Capture is the session template; its Format field is filled in
	// after negotiation.
	Capture capture.Config
}

// Controller owns at most one active recording attempt and the
// displayed conference list, most recent first.
type Controller struct {
	recorder capture.Recorder
	api      SessionAPI
	player   *playback.Manager
	cache    TranslationCache
	cfg      Config

	mu          sync.Mutex
	current     *attempt
	conferences []types.Conference
	translating map[string]struct{}
}

// NewController creates a controller. cache may be nil.
func NewController(recorder capture.Recorder, api SessionAPI, player *playback.Manager, cache TranslationCache, cfg Config) *Controller {
	if len(cfg.Formats) == 0 {
		cfg.Formats = capture.DefaultPreferences
	}
	return &Controller{
		recorder:    recorder,
		api:         api,
		player:      player,
		cache:       cache,
		cfg:         cfg,
		translating: make(map[string]struct{}),
	}
}

// Start begins a new recording attempt in the given parent language.
// The sequence is: negotiate format, acquire the microphone, register
// the backend session, then begin chunk accumulation. Any failure
// releases the microphone and leaves the controller idle.
func (c *Controller) Start(ctx context.Context, language string) error {
	a := &attempt{
		language: language,
		status:   types.StatusIdle,
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return ErrRecordingActive
	}
	c.current = a
	c.mu.Unlock()

	abort := func() {
		c.mu.Lock()
		if c.current == a {
			c.current = nil
		}
		c.mu.Unlock()
	}

	format, err := capture.Negotiate(c.recorder, c.cfg.Formats)
	if err != nil {
		abort()
		return err
	}

	captureCfg := c.cfg.Capture
	captureCfg.Format = format

	session, err := c.recorder.Start(ctx, captureCfg)
	if err != nil {
		abort()
		return fmt.Errorf("acquire microphone: %w", err)
	}

	id, err := c.api.StartConference(ctx, language)
	if err != nil {
		// The device is already held at this point; release it on the
		// abort path too.
		discard(session)
		abort()
		return err
	}

	c.mu.Lock()
	if c.current != a {
		// Closed out from under us during setup.
		c.mu.Unlock()
		discard(session)
		return ErrNoActiveRecording
	}
	a.id = id
	a.format = format
	a.session = session
	a.startedAt = time.Now()
	c.mu.Unlock()
	a.setStatus(types.StatusRecording)

	go a.accumulate()

	slog.Info("recording started", "conference", id, "language", language, "format", format.MIME)
	return nil
}

// Stop ends the active attempt, submits the concatenated payload, and
// on success prepends the resulting conference to the list. On failure
// the attempt is discarded and the controller returns to idle.
func (c *Controller) Stop(ctx context.Context) (types.Conference, error) {
	c.mu.Lock()
	a := c.current
	if a == nil || a.getStatus() != types.StatusRecording {
		c.mu.Unlock()
		return types.Conference{}, ErrNoActiveRecording
	}
	a.setStatus(types.StatusSubmitting)
	c.mu.Unlock()

	stoppedAt := time.Now()
	if err := a.session.Stop(); err != nil {
		slog.Warn("audio capture did not stop cleanly", "conference", a.id, "error", err)
	}

	// Finalize only after the capture facility has delivered the last
	// chunk; submitting from the stop click would race it.
	<-a.done

	payload := a.payload()
	filename := "recording." + a.format.Ext

	text, err := c.api.SubmitRecording(ctx, a.id, payload, a.format.MIME, filename)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == a {
		c.current = nil
	}

	if err != nil {
		a.setStatus(types.StatusFailed)
		slog.Error("recording submission failed", "conference", a.id, "error", err)
		return types.Conference{}, err
	}

	a.setStatus(types.StatusReady)
	conf := types.Conference{
		ID:       a.id,
		Date:     a.startedAt.Format(time.RFC3339),
		Duration: formatDuration(stoppedAt.Sub(a.startedAt)),
		Summary:  text,
		Language: a.language,
	}
	c.conferences = append([]types.Conference{conf}, c.conferences...)

	slog.Info("recording submitted", "conference", a.id, "duration", conf.Duration, "bytes", len(payload))
	return conf, nil
}

// Status returns a snapshot of the current attempt.
func (c *Controller) Status() types.RecordingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return types.RecordingState{Status: types.StatusIdle}
	}
	a := c.current
	state := types.RecordingState{
		Status:     a.getStatus(),
		Language:   a.language,
		Conference: a.id,
	}
	if !a.startedAt.IsZero() {
		state.StartedAt = a.startedAt.UnixMilli()
	}
	return state
}

// Refresh replaces the conference list with the backend's stored list.
func (c *Controller) Refresh(ctx context.Context) ([]types.Conference, error) {
	confs, err := c.api.ListConferences(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.conferences = confs
	c.mu.Unlock()
	return c.Conferences(), nil
}

// Conferences returns a copy of the displayed list, most recent first.
func (c *Controller) Conferences() []types.Conference {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Conference, len(c.conferences))
	copy(out, c.conferences)
	return out
}

// SetConferences seeds the displayed list, e.g. from a cached snapshot.
func (c *Controller) SetConferences(confs []types.Conference) {
	c.mu.Lock()
	c.conferences = append([]types.Conference(nil), confs...)
	c.mu.Unlock()
}

// Translate fetches (or serves from cache) the translation of a
// conference summary into the target language and attaches it to the
// conference. A failure leaves the conference untouched.
func (c *Controller) Translate(ctx context.Context, conferenceID, targetLang string) (types.TranslateResult, error) {
	c.mu.Lock()
	if c.indexOf(conferenceID) == -1 {
		c.mu.Unlock()
		return types.TranslateResult{}, fmt.Errorf("%w: %s", ErrUnknownConference, conferenceID)
	}
	if _, pending := c.translating[conferenceID]; pending {
		c.mu.Unlock()
		return types.TranslateResult{}, ErrTranslatePending
	}
	c.translating[conferenceID] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.translating, conferenceID)
		c.mu.Unlock()
	}()

	result := types.TranslateResult{ConferenceID: conferenceID, TargetLang: targetLang}

	if c.cache != nil {
		if text, ok := c.cache.Get(conferenceID, targetLang); ok {
			result.Text = text
			result.CacheHit = true
			c.attachTranslation(conferenceID, targetLang, text)
			return result, nil
		}
	}

	text, err := c.api.Translate(ctx, conferenceID, targetLang)
	if err != nil {
		return types.TranslateResult{}, err
	}

	result.Text = text
	c.attachTranslation(conferenceID, targetLang, text)
	if c.cache != nil {
		c.cache.Set(conferenceID, targetLang, text)
	}
	return result, nil
}

// Delete removes a conference from the backend and, on success, from
// the displayed list. Any active playback of it is stopped so stale
// references cannot touch removed data.
func (c *Controller) Delete(ctx context.Context, conferenceID string) error {
	if err := c.api.DeleteConference(ctx, conferenceID); err != nil {
		return err
	}

	if c.player != nil {
		c.player.Stop(conferenceID)
	}
	if c.cache != nil {
		c.cache.DeleteAll(conferenceID)
	}

	c.mu.Lock()
	if idx := c.indexOf(conferenceID); idx != -1 {
		c.conferences = append(c.conferences[:idx], c.conferences[idx+1:]...)
	}
	c.mu.Unlock()

	slog.Info("conference deleted", "conference", conferenceID)
	return nil
}

// Play starts playback of a stored recording. The playback manager
// stops any other active playback first.
func (c *Controller) Play(ctx context.Context, conferenceID string) error {
	c.mu.Lock()
	known := c.indexOf(conferenceID) != -1
	c.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownConference, conferenceID)
	}
	return c.player.Play(ctx, conferenceID, c.api.RecordingURL(conferenceID))
}

// StopPlayback stops playback of the given conference if it is the one
// playing.
func (c *Controller) StopPlayback(conferenceID string) {
	if c.player != nil {
		c.player.Stop(conferenceID)
	}
}

// Close releases held resources: the microphone of any live attempt
// and any active playback.
func (c *Controller) Close() {
	c.mu.Lock()
	a := c.current
	c.current = nil
	c.mu.Unlock()

	if a != nil && a.session != nil {
		_ = a.session.Stop()
		<-a.done
	}
	if c.player != nil {
		c.player.StopAll()
	}
}

// discard stops a session that no accumulator will drain, consuming
// its remaining chunks so the producer can exit.
func discard(session capture.Session) {
	_ = session.Stop()
	go func() {
		for range session.Chunks() {
		}
	}()
}

// indexOf must be called with c.mu held.
func (c *Controller) indexOf(conferenceID string) int {
	for i := range c.conferences {
		if c.conferences[i].ID == conferenceID {
			return i
		}
	}
	return -1
}

func (c *Controller) attachTranslation(conferenceID, targetLang, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexOf(conferenceID); idx != -1 {
		c.conferences[idx].Translated = text
		c.conferences[idx].TranslatedLang = targetLang
	}
}

// formatDuration renders elapsed wall clock as whole minutes, rounding
// up so a short recording still reads "1 min".
func formatDuration(d time.Duration) string {
	minutes := int((d + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min", minutes)
}
