package recording

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"parley/capture"
	"parley/internal/types"
	"parley/playback"
)

type fakeSession struct {
	ch    chan []byte
	final []byte

	mu      sync.Mutex
	stopped bool
}

func newFakeSession(chunks ...[]byte) *fakeSession {
	s := &fakeSession{ch: make(chan []byte, 16)}
	for _, c := range chunks {
		s.ch <- c
	}
	return s
}

func (s *fakeSession) Chunks() <-chan []byte { return s.ch }

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if len(s.final) > 0 {
		s.ch <- s.final
	}
	close(s.ch)
	return nil
}

func (s *fakeSession) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeRecorder struct {
	mimes    []string
	session  *fakeSession
	startErr error

	startCfg capture.Config
	starts   int
}

func (r *fakeRecorder) Supports(mime string) bool {
	for _, m := range r.mimes {
		if m == mime {
			return true
		}
	}
	return false
}

func (r *fakeRecorder) Start(_ context.Context, cfg capture.Config) (capture.Session, error) {
	r.starts++
	r.startCfg = cfg
	if r.startErr != nil {
		return nil, r.startErr
	}
	return r.session, nil
}

type fakeAPI struct {
	mu sync.Mutex

	startErr     error
	submitErr    error
	translateErr error
	deleteErr    error

	conferenceID  string
	submitText    string
	translateText string
	listResult    []types.Conference

	startCalls     int
	submitAudio    []byte
	submitMIME     string
	submitFilename string
	deleted        []string
	translateCalls int

	translateGate chan struct{}
}

func (a *fakeAPI) StartConference(_ context.Context, parentLanguage string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startCalls++
	if a.startErr != nil {
		return "", a.startErr
	}
	return a.conferenceID, nil
}

func (a *fakeAPI) SubmitRecording(_ context.Context, conferenceID string, audio []byte, mimeType, filename string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submitAudio = audio
	a.submitMIME = mimeType
	a.submitFilename = filename
	if a.submitErr != nil {
		return "", a.submitErr
	}
	return a.submitText, nil
}

func (a *fakeAPI) ListConferences(_ context.Context) ([]types.Conference, error) {
	return a.listResult, nil
}

func (a *fakeAPI) DeleteConference(_ context.Context, conferenceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleteErr != nil {
		return a.deleteErr
	}
	a.deleted = append(a.deleted, conferenceID)
	return nil
}

func (a *fakeAPI) Translate(_ context.Context, conferenceID, targetLanguage string) (string, error) {
	a.mu.Lock()
	a.translateCalls++
	gate := a.translateGate
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if a.translateErr != nil {
		return "", a.translateErr
	}
	return a.translateText, nil
}

func (a *fakeAPI) RecordingURL(conferenceID string) string {
	return "http://backend/recordings/" + conferenceID + "_recording.webm"
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) Get(conferenceID, targetLang string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.entries[conferenceID+"/"+targetLang]
	return text, ok
}

func (c *fakeCache) Set(conferenceID, targetLang, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[conferenceID+"/"+targetLang] = text
}

func (c *fakeCache) DeleteAll(conferenceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, conferenceID)
}

type fakeHandle struct {
	once sync.Once
	done chan struct{}
}

func newFakeHandle() *fakeHandle { return &fakeHandle{done: make(chan struct{})} }

func (h *fakeHandle) Stop() error {
	h.once.Do(func() { close(h.done) })
	return nil
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

type fakeOpener struct{}

func (fakeOpener) Open(_ context.Context, _ string) (playback.Handle, error) {
	return newFakeHandle(), nil
}

func newTestController(recorder *fakeRecorder, api *fakeAPI, cache TranslationCache) *Controller {
	return NewController(recorder, api, playback.NewManager(fakeOpener{}), cache, Config{})
}

func TestStartStopSubmitsChunksInOrder(t *testing.T) {
	session := newFakeSession([]byte("c1"), []byte("c2"))
	session.final = []byte("c3")
	recorder := &fakeRecorder{mimes: []string{"audio/webm;codecs=opus"}, session: session}
	api := &fakeAPI{conferenceID: "conf-1", submitText: "summary text"}

	c := newTestController(recorder, api, nil)
	ctx := context.Background()

	if err := c.Start(ctx, "es"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.Status().Status; got != types.StatusRecording {
		t.Fatalf("status = %q, want %q", got, types.StatusRecording)
	}
	if recorder.startCfg.Format.MIME != "audio/webm;codecs=opus" {
		t.Errorf("capture format = %q, want negotiated webm", recorder.startCfg.Format.MIME)
	}

	conf, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got := string(api.submitAudio); got != "c1c2c3" {
		t.Errorf("submitted payload = %q, want %q", got, "c1c2c3")
	}
	if api.submitFilename != "recording.webm" {
		t.Errorf("filename = %q, want recording.webm", api.submitFilename)
	}
	if api.submitMIME != "audio/webm;codecs=opus" {
		t.Errorf("mime = %q, want audio/webm;codecs=opus", api.submitMIME)
	}
	if conf.ID != "conf-1" || conf.Summary != "summary text" || conf.Language != "es" {
		t.Errorf("unexpected conference: %+v", conf)
	}
	if conf.Duration != "1 min" {
		t.Errorf("duration = %q, want 1 min", conf.Duration)
	}

	list := c.Conferences()
	if len(list) != 1 || list[0].ID != "conf-1" {
		t.Errorf("list = %+v, want single conf-1 entry", list)
	}
	if got := c.Status().Status; got != types.StatusIdle {
		t.Errorf("status after stop = %q, want idle", got)
	}
}

func TestStartUsesFallbackFormat(t *testing.T) {
	session := newFakeSession()
	recorder := &fakeRecorder{mimes: []string{"audio/ogg;codecs=opus"}, session: session}
	api := &fakeAPI{conferenceID: "conf-1", submitText: "text"}

	c := newTestController(recorder, api, nil)
	ctx := context.Background()

	if err := c.Start(ctx, "en"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if api.submitFilename != "recording.ogg" {
		t.Errorf("filename = %q, want recording.ogg", api.submitFilename)
	}
	if api.submitMIME != "audio/ogg;codecs=opus" {
		t.Errorf("mime = %q, want audio/ogg;codecs=opus", api.submitMIME)
	}
}

func TestStartRejectedWhileActive(t *testing.T) {
	recorder := &fakeRecorder{mimes: []string{"audio/webm;codecs=opus"}, session: newFakeSession()}
	api := &fakeAPI{conferenceID: "conf-1"}

	c := newTestController(recorder, api, nil)
	ctx := context.Background()

	if err := c.Start(ctx, "en"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(ctx, "en"); !errors.Is(err, ErrRecordingActive) {
		t.Fatalf("second Start = %v, want ErrRecordingActive", err)
	}
	if recorder.starts != 1 {
		t.Errorf("recorder started %d times, want 1", recorder.starts)
	}
}

func TestStartMicDeniedLeavesControllerIdle(t *testing.T) {
	recorder := &fakeRecorder{
		mimes:    []string{"audio/webm;codecs=opus"},
		startErr: capture.ErrPermissionDenied,
	}
	api := &fakeAPI{}

	c := newTestController(recorder, api, nil)

	err := c.Start(context.Background(), "en")
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("Start = %v, want ErrPermissionDenied", err)
	}
	if api.startCalls != 0 {
		t.Errorf("backend session created %d times despite mic denial", api.startCalls)
	}
	if got := c.Status().Status; got != types.StatusIdle {
		t.Errorf("status = %q, want idle", got)
	}
	if len(c.Conferences()) != 0 {
		t.Errorf("conference list mutated on failed start")
	}
}

func TestStartSessionCreateFailureReleasesMic(t *testing.T) {
	session := newFakeSession()
	recorder := &fakeRecorder{mimes: []string{"audio/webm;codecs=opus"}, session: session}
	api := &fakeAPI{startErr: errors.New("backend unavailable")}

	c := newTestController(recorder, api, nil)

	if err := c.Start(context.Background(), "en"); err == nil {
		t.Fatal("Start succeeded despite session create failure")
	}
	if !session.wasStopped() {
		t.Error("capture session left running after failed start")
	}
	if got := c.Status().Status; got != types.StatusIdle {
		t.Errorf("status = %q, want idle", got)
	}
}

func TestStopWithoutActiveRecording(t *testing.T) {
	c := newTestController(&fakeRecorder{}, &fakeAPI{}, nil)
	if _, err := c.Stop(context.Background()); !errors.Is(err, ErrNoActiveRecording) {
		t.Fatalf("Stop = %v, want ErrNoActiveRecording", err)
	}
}

func TestStopSubmitFailureDiscardsAttempt(t *testing.T) {
	session := newFakeSession([]byte("c1"))
	recorder := &fakeRecorder{mimes: []string{"audio/webm;codecs=opus"}, session: session}
	api := &fakeAPI{conferenceID: "conf-1", submitErr: errors.New("quota exceeded")}

	c := newTestController(recorder, api, nil)
	ctx := context.Background()

	if err := c.Start(ctx, "en"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := c.Stop(ctx)
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("Stop = %v, want quota exceeded detail", err)
	}
	if len(c.Conferences()) != 0 {
		t.Error("failed attempt added to conference list")
	}
	if got := c.Status().Status; got != types.StatusIdle {
		t.Errorf("status = %q, want idle after failure", got)
	}

	// A fresh attempt must be possible after the failure.
	recorder.session = newFakeSession()
	if err := c.Start(ctx, "en"); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
}

func TestTranslateAttachesOnlyTargetConference(t *testing.T) {
	api := &fakeAPI{translateText: "texte traduit"}
	c := newTestController(&fakeRecorder{}, api, nil)
	c.SetConferences([]types.Conference{
		{ID: "conf-2", Summary: "second"},
		{ID: "conf-1", Summary: "first"},
	})

	result, err := c.Translate(context.Background(), "conf-1", "fr")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if result.Text != "texte traduit" || result.CacheHit {
		t.Errorf("unexpected result: %+v", result)
	}

	list := c.Conferences()
	if list[1].Translated != "texte traduit" || list[1].TranslatedLang != "fr" {
		t.Errorf("conf-1 = %+v, want translation attached", list[1])
	}
	if list[0].Translated != "" {
		t.Errorf("conf-2 translated mutated: %+v", list[0])
	}
}

func TestTranslateServesFromCache(t *testing.T) {
	cache := newFakeCache()
	cache.Set("conf-1", "fr", "depuis le cache")
	api := &fakeAPI{translateText: "fresh"}

	c := newTestController(&fakeRecorder{}, api, cache)
	c.SetConferences([]types.Conference{{ID: "conf-1"}})

	result, err := c.Translate(context.Background(), "conf-1", "fr")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if !result.CacheHit || result.Text != "depuis le cache" {
		t.Errorf("unexpected result: %+v", result)
	}
	if api.translateCalls != 0 {
		t.Errorf("backend called %d times on cache hit", api.translateCalls)
	}
}

func TestTranslateStoresInCache(t *testing.T) {
	cache := newFakeCache()
	api := &fakeAPI{translateText: "texto"}

	c := newTestController(&fakeRecorder{}, api, cache)
	c.SetConferences([]types.Conference{{ID: "conf-1"}})

	if _, err := c.Translate(context.Background(), "conf-1", "es"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if text, ok := cache.Get("conf-1", "es"); !ok || text != "texto" {
		t.Errorf("cache entry = %q, %v; want texto, true", text, ok)
	}
}

func TestTranslateRejectsWhilePending(t *testing.T) {
	api := &fakeAPI{translateText: "slow", translateGate: make(chan struct{})}
	c := newTestController(&fakeRecorder{}, api, nil)
	c.SetConferences([]types.Conference{{ID: "conf-1"}})

	first := make(chan error, 1)
	go func() {
		_, err := c.Translate(context.Background(), "conf-1", "fr")
		first <- err
	}()

	deadline := time.After(2 * time.Second)
	for {
		api.mu.Lock()
		started := api.translateCalls > 0
		api.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first translate never reached the backend")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := c.Translate(context.Background(), "conf-1", "fr"); !errors.Is(err, ErrTranslatePending) {
		t.Fatalf("second Translate = %v, want ErrTranslatePending", err)
	}

	close(api.translateGate)
	if err := <-first; err != nil {
		t.Fatalf("first Translate: %v", err)
	}
}

func TestTranslateUnknownConference(t *testing.T) {
	c := newTestController(&fakeRecorder{}, &fakeAPI{}, nil)
	if _, err := c.Translate(context.Background(), "ghost", "fr"); !errors.Is(err, ErrUnknownConference) {
		t.Fatalf("Translate = %v, want ErrUnknownConference", err)
	}
}

func TestDeleteRemovesExactConference(t *testing.T) {
	cache := newFakeCache()
	api := &fakeAPI{}
	c := newTestController(&fakeRecorder{}, api, cache)
	c.SetConferences([]types.Conference{
		{ID: "conf-2"},
		{ID: "conf-1"},
	})

	ctx := context.Background()
	if err := c.Play(ctx, "conf-1"); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if err := c.Delete(ctx, "conf-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	list := c.Conferences()
	if len(list) != 1 || list[0].ID != "conf-2" {
		t.Errorf("list = %+v, want only conf-2", list)
	}
	if len(api.deleted) != 1 || api.deleted[0] != "conf-1" {
		t.Errorf("backend deletes = %v, want [conf-1]", api.deleted)
	}
	if id, playing := c.player.Playing(); playing {
		t.Errorf("playback of %q still active after delete", id)
	}
	if len(cache.deleted) != 1 || cache.deleted[0] != "conf-1" {
		t.Errorf("cache deletes = %v, want [conf-1]", cache.deleted)
	}
}

func TestDeleteBackendFailureLeavesList(t *testing.T) {
	api := &fakeAPI{deleteErr: errors.New("conference not found")}
	c := newTestController(&fakeRecorder{}, api, nil)
	c.SetConferences([]types.Conference{{ID: "conf-1"}})

	if err := c.Delete(context.Background(), "conf-1"); err == nil {
		t.Fatal("Delete succeeded despite backend failure")
	}
	if len(c.Conferences()) != 1 {
		t.Error("list mutated on failed delete")
	}
}

func TestPlayUnknownConference(t *testing.T) {
	c := newTestController(&fakeRecorder{}, &fakeAPI{}, nil)
	if err := c.Play(context.Background(), "ghost"); !errors.Is(err, ErrUnknownConference) {
		t.Fatalf("Play = %v, want ErrUnknownConference", err)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		elapsed time.Duration
		want    string
	}{
		{10 * time.Second, "1 min"},
		{60 * time.Second, "1 min"},
		{61 * time.Second, "2 min"},
		{2 * time.Minute, "2 min"},
		{179 * time.Second, "3 min"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.elapsed); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.elapsed, got, tc.want)
		}
	}
}
