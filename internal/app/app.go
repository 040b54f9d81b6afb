// Package app wires the application services together: configuration,
// the backend client, the on-disk cache, audio capture and playback,
// and the recording session controller.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parley/backend"
	"parley/cache"
	"parley/capture"
	"parley/config"
	"parley/internal/types"
	"parley/langdetect"
	"parley/playback"
	"parley/recording"
)

// Service is the assembled application.
type Service struct {
	cfg        *config.Config
	backend    *backend.Client
	store      *cache.Cache
	player     *playback.Manager
	controller *recording.Controller
}

// New assembles a Service from configuration. The cache is best
// effort: if it cannot be opened the service runs without one.
func New(cfg *config.Config) *Service {
	client := backend.NewClient(backend.Config{
		BaseURL:         cfg.Backend.BaseURL,
		RequestTimeout:  cfg.RequestTimeout(),
		FinalizeTimeout: cfg.FinalizeTimeout(),
		RetryCount:      cfg.Backend.RetryCount,
	})

	var store *cache.Cache
	if dir, err := config.CacheDir(); err == nil {
		store, err = cache.New(dir)
		if err != nil {
			slog.Warn("cache unavailable, continuing without it", "error", err)
			store = nil
		}
	}

	recorder := capture.NewFFmpegRecorder(cfg.Audio.RecorderCommand)
	player := playback.NewManager(playback.NewFFplayOpener(cfg.Audio.PlayerCommand))

	var translations recording.TranslationCache
	if store != nil {
		translations = &cacheAdapter{store: store}
	}

	controller := recording.NewController(recorder, client, player, translations, recording.Config{
		Capture: capture.Config{
			InputFormat:   cfg.Audio.InputFormat,
			InputDevice:   cfg.Audio.InputDevice,
			SampleRate:    48000,
			Channels:      1,
			ChunkInterval: cfg.ChunkInterval(),
		},
	})

	return &Service{
		cfg:        cfg,
		backend:    client,
		store:      store,
		player:     player,
		controller: controller,
	}
}

// Config returns the service's configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// Controller returns the recording session controller.
func (s *Service) Controller() *recording.Controller { return s.controller }

// Player returns the playback manager.
func (s *Service) Player() *playback.Manager { return s.player }

// StartRecording validates the parent language and begins a recording
// attempt.
func (s *Service) StartRecording(ctx context.Context, language string) error {
	if language == "" {
		language = s.cfg.DefaultLanguage
	}
	if err := langdetect.Validate(language); err != nil {
		return err
	}
	return s.controller.Start(ctx, language)
}

// StopRecording ends the active attempt and submits it.
func (s *Service) StopRecording(ctx context.Context) (types.Conference, error) {
	conf, err := s.controller.Stop(ctx)
	if err != nil {
		return types.Conference{}, err
	}
	s.snapshotConferences()
	return conf, nil
}

// Conferences fetches the stored list from the backend, falling back
// to the last cached snapshot when the backend is unreachable.
func (s *Service) Conferences(ctx context.Context) ([]types.Conference, error) {
	confs, err := s.controller.Refresh(ctx)
	if err != nil {
		if s.store != nil {
			if cached, ok := s.store.Conferences(); ok {
				slog.Warn("backend unreachable, serving cached conference list", "error", err)
				s.controller.SetConferences(cached)
				return cached, nil
			}
		}
		return nil, err
	}
	s.snapshotConferences()
	return confs, nil
}

// Conference returns a single stored conference by id.
func (s *Service) Conference(ctx context.Context, id string) (types.Conference, error) {
	confs, err := s.Conferences(ctx)
	if err != nil {
		return types.Conference{}, err
	}
	for _, c := range confs {
		if c.ID == id {
			return c, nil
		}
	}
	return types.Conference{}, fmt.Errorf("%w: %s", recording.ErrUnknownConference, id)
}

// Translate translates a conference summary. An empty target picks one
// from the summary's detected language and the configured target map.
func (s *Service) Translate(ctx context.Context, id, target string) (types.TranslateResult, error) {
	if target == "" {
		conf, err := s.Conference(ctx, id)
		if err != nil {
			return types.TranslateResult{}, err
		}
		target = s.defaultTarget(conf.Summary)
	}
	if err := langdetect.Validate(target); err != nil {
		return types.TranslateResult{}, err
	}
	return s.controller.Translate(ctx, id, target)
}

// defaultTarget maps the summary's detected language to a translation
// target via config, defaulting to the configured parent language.
func (s *Service) defaultTarget(summary string) string {
	code, _ := langdetect.Detect(summary)
	if target, ok := s.cfg.DefaultTargets[code]; ok {
		return target
	}
	if s.cfg.DefaultLanguage != "" && s.cfg.DefaultLanguage != code {
		return s.cfg.DefaultLanguage
	}
	return "en"
}

// Delete removes a conference everywhere: backend, list, cache, and
// any active playback of it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.controller.Delete(ctx, id); err != nil {
		return err
	}
	s.snapshotConferences()
	return nil
}

// Play starts playback of a stored recording, ensuring the list is
// loaded first.
func (s *Service) Play(ctx context.Context, id string) error {
	if len(s.controller.Conferences()) == 0 {
		if _, err := s.Conferences(ctx); err != nil {
			return err
		}
	}
	return s.controller.Play(ctx, id)
}

// snapshotConferences persists the displayed list for offline reads.
func (s *Service) snapshotConferences() {
	if s.store == nil {
		return
	}
	if err := s.store.SetConferences(s.controller.Conferences()); err != nil {
		slog.Debug("conference snapshot not written", "error", err)
	}
}

// Shutdown releases the microphone, stops playback, and closes the
// cache.
func (s *Service) Shutdown() {
	s.controller.Close()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("cache close failed", "error", err)
		}
	}
}

// cacheAdapter narrows *cache.Cache to the controller's needs.
type cacheAdapter struct {
	store *cache.Cache
}

func (a *cacheAdapter) Get(conferenceID, targetLang string) (string, bool) {
	t, ok := a.store.GetTranslation(conferenceID, targetLang)
	if !ok {
		return "", false
	}
	return t.Text, true
}

func (a *cacheAdapter) Set(conferenceID, targetLang, text string) {
	err := a.store.SetTranslation(conferenceID, targetLang, cache.Translation{
		Text:       text,
		TargetLang: targetLang,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		slog.Debug("translation not cached", "conference", conferenceID, "error", err)
	}
}

func (a *cacheAdapter) DeleteAll(conferenceID string) {
	if err := a.store.DeleteTranslations(conferenceID); err != nil {
		slog.Debug("cached translations not removed", "conference", conferenceID, "error", err)
	}
}
