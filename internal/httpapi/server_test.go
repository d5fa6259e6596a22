package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"officedj/internal/auth"
	"officedj/internal/core"
	"officedj/internal/i18n"
	"officedj/internal/soundboard"
	"officedj/internal/store"
)

const testSecret = "test-secret"

type fakeQueue struct {
	mutex   sync.Mutex
	entries []core.QueueEntry
	moves   []string
	deleted []string
	listErr error
}

func (f *fakeQueue) ListQueue(context.Context) ([]core.QueueEntry, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.QueueEntry(nil), f.entries...), nil
}

func (f *fakeQueue) Insert(_ context.Context, entry core.NewQueueEntry) (*core.QueueEntry, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	e := core.QueueEntry{
		ID:            "q1",
		SpotifySongID: entry.SpotifySongID,
		Title:         entry.Title,
		Artist:        entry.Artist,
		AlbumCoverURL: entry.AlbumCoverURL,
		DurationMs:    entry.DurationMs,
		AddedByUserID: entry.AddedByUserID,
		AddedByName:   entry.AddedByName,
		Position:      len(f.entries) + 1,
		IsPlaying:     len(f.entries) == 0,
	}
	f.entries = append(f.entries, e)
	return &e, nil
}

func (f *fakeQueue) UpdatePosition(_ context.Context, id string, pos int) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.moves = append(f.moves, id)
	return nil
}

func (f *fakeQueue) SetPlaying(context.Context, string, bool) error { return nil }

func (f *fakeQueue) Delete(_ context.Context, id string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeQueue) SetYouTubeVideoID(context.Context, string, string) error { return nil }
func (f *fakeQueue) AppendHistory(context.Context, core.QueueEntry) error    { return nil }

type fakeReactions struct {
	removed bool
}

func (f *fakeReactions) ListReactions(_ context.Context, songIDs []string) ([]core.Reaction, error) {
	return []core.Reaction{{ID: "r1", SongID: songIDs[0], Emoji: "🔥"}}, nil
}

func (f *fakeReactions) SetReaction(_ context.Context, songID, userID, userName, emoji string) (*core.Reaction, error) {
	if f.removed {
		return nil, nil
	}
	return &core.Reaction{ID: "r1", SongID: songID, UserID: userID, UserName: userName, Emoji: emoji}, nil
}

type fakeHistory struct{}

func (fakeHistory) ListHistory(context.Context) ([]core.HistoryEntry, error) {
	return []core.HistoryEntry{{ID: "h1", Title: "Played Song"}}, nil
}

func (fakeHistory) Leaderboard(context.Context) (*store.Leaderboard, error) {
	return &store.Leaderboard{
		TopAdder: &store.LeaderboardUser{UserID: "u1", UserName: "Alice", Count: 5},
	}, nil
}

type fakePlayback struct {
	mutex   sync.Mutex
	skips   int
	starts  int
	volume  float64
	skipErr error
}

func (f *fakePlayback) Start(context.Context) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.starts++
	return nil
}

func (f *fakePlayback) Skip(context.Context) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.skipErr != nil {
		return f.skipErr
	}
	f.skips++
	return nil
}

func (f *fakePlayback) Pause(context.Context) error  { return nil }
func (f *fakePlayback) Resume(context.Context) error { return nil }
func (f *fakePlayback) Toggle(context.Context) error { return nil }
func (f *fakePlayback) State() core.PlaybackState    { return core.StatePlaying }

func (f *fakePlayback) SetVolume(_ context.Context, volume float64) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.volume = volume
	return nil
}

type fakeSearcher struct {
	tracks []core.Track
	err    error
}

func (f *fakeSearcher) Search(context.Context, string) ([]core.Track, error) {
	return f.tracks, f.err
}

type fakeFinder struct {
	videoID string
	err     error
}

func (f *fakeFinder) Find(context.Context, string, string) (string, error) {
	return f.videoID, f.err
}

type fakeResolver struct {
	mutex    sync.Mutex
	resolved []string
}

func (f *fakeResolver) ResolveAsync(entry core.QueueEntry) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.resolved = append(f.resolved, entry.ID)
}

type fakeSoundPublisher struct {
	mutex  sync.Mutex
	events []any
}

func (f *fakeSoundPublisher) PublishSound(_ context.Context, event any) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.events = append(f.events, event)
}

type serverFixture struct {
	server    *Server
	queue     *fakeQueue
	reactions *fakeReactions
	playback  *fakePlayback
	searcher  *fakeSearcher
	finder    *fakeFinder
	resolver  *fakeResolver
	soundsOut *fakeSoundPublisher
	sounds    *soundboard.Store
	syncerRun context.CancelFunc
}

type fixtureSettings struct {
	runSyncer bool
}

type fixtureOption func(*fixtureSettings)

// withoutSync leaves the syncer in its initial syncing state.
func withoutSync() fixtureOption {
	return func(s *fixtureSettings) { s.runSyncer = false }
}

func newServerFixture(t *testing.T, opts ...fixtureOption) *serverFixture {
	t.Helper()

	settings := fixtureSettings{runSyncer: true}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg := core.DefaultConfig()
	cfg.Auth.JWTSecret = testSecret
	cfg.App.FloodLimitPerMinute = 3

	queue := &fakeQueue{}
	reactions := &fakeReactions{}
	playback := &fakePlayback{}
	searcher := &fakeSearcher{}
	finder := &fakeFinder{}
	resolver := &fakeResolver{}
	soundsOut := &fakeSoundPublisher{}

	sounds, err := soundboard.Open(filepath.Join(t.TempDir(), "sounds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sounds.Close() })

	events := make(chan core.ChangeEvent)
	syncer := core.NewSyncer(queue, events, nil, i18n.NewLocalizer("en"), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if settings.runSyncer {
		go func() { _ = syncer.Run(ctx) }()
		time.Sleep(20 * time.Millisecond)
	}

	tokens := store.NewTokenStore(nil)
	broker := auth.NewBroker(cfg.Spotify, tokens, zap.NewNop())

	s := NewServer(Deps{
		Config:     cfg,
		Logger:     zap.NewNop(),
		Localizer:  i18n.NewLocalizer("en"),
		Registry:   prometheus.NewRegistry(),
		Queue:      queue,
		Reactions:  reactions,
		History:    fakeHistory{},
		Playback:   playback,
		Syncer:     syncer,
		Searcher:   searcher,
		Finder:     finder,
		Resolver:   resolver,
		Sounds:     sounds,
		SoundsOut:  soundsOut,
		AuthBroker: broker,
	})

	return &serverFixture{
		server:    s,
		queue:     queue,
		reactions: reactions,
		playback:  playback,
		searcher:  searcher,
		finder:    finder,
		resolver:  resolver,
		soundsOut: soundsOut,
		sounds:    sounds,
		syncerRun: cancel,
	}
}

func signTestToken(t *testing.T, userID, name string) string {
	t.Helper()
	claims := &auth.TokenClaims{
		UserID:      userID,
		DisplayName: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

func (f *serverFixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "u1", "Alice"))
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)
	return w
}

var errBoom = errors.New("boom")
