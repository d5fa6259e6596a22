package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"officedj/internal/i18n"
)

type fakeQueueStore struct {
	mutex   sync.Mutex
	queue   []QueueEntry
	listErr error

	history   []QueueEntry
	deleted   []string
	playing   map[string]bool
	updateErr error

	// appendHook runs at the top of AppendHistory; tests use it to hold an
	// archive mid-flight. Set it before starting any goroutines.
	appendHook func()
}

func newFakeQueueStore(entries ...QueueEntry) *fakeQueueStore {
	return &fakeQueueStore{queue: entries, playing: make(map[string]bool)}
}

func (f *fakeQueueStore) ListQueue(context.Context) ([]QueueEntry, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]QueueEntry, len(f.queue))
	copy(out, f.queue)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeQueueStore) Insert(context.Context, NewQueueEntry) (*QueueEntry, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeQueueStore) UpdatePosition(context.Context, string, int) error {
	return f.updateErr
}

func (f *fakeQueueStore) SetPlaying(_ context.Context, id string, playing bool) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.playing[id] = playing
	return nil
}

func (f *fakeQueueStore) Delete(_ context.Context, id string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeQueueStore) SetYouTubeVideoID(context.Context, string, string) error {
	return nil
}

func (f *fakeQueueStore) AppendHistory(_ context.Context, entry QueueEntry) error {
	if f.appendHook != nil {
		f.appendHook()
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.history = append(f.history, entry)
	return nil
}

type fakeNotifier struct {
	mutex   sync.Mutex
	notices []string
}

func (f *fakeNotifier) Notify(_ context.Context, title, _ string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.notices = append(f.notices, title)
}

func (f *fakeNotifier) all() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	out := make([]string, len(f.notices))
	copy(out, f.notices)
	return out
}

func testEntry(id string, position int, playing bool) QueueEntry {
	return QueueEntry{
		ID:            id,
		SpotifySongID: "sp-" + id,
		Title:         "Title " + id,
		Artist:        "Artist " + id,
		DurationMs:    200000,
		AddedByUserID: "u1",
		AddedByName:   "Alice",
		Position:      position,
		IsPlaying:     playing,
	}
}

func waitForSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for wakeup signal")
	}
}

func TestSyncerInitialSync(t *testing.T) {
	store := newFakeQueueStore(testEntry("a", 1, true), testEntry("b", 2, false))
	events := make(chan ChangeEvent)
	syncer := NewSyncer(store, events, nil, i18n.NewLocalizer("en"), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = syncer.Run(ctx) }()

	waitForSignal(t, syncer.Wakeup())

	if syncer.State() != SyncStateSynced {
		t.Errorf("expected synced state, got %s", syncer.State())
	}
	snapshot := syncer.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snapshot))
	}
	playing := syncer.Playing()
	if playing == nil || playing.ID != "a" {
		t.Errorf("expected entry a to be playing, got %+v", playing)
	}
}

func TestSyncerResyncsOnQueueEvent(t *testing.T) {
	store := newFakeQueueStore(testEntry("a", 1, true))
	events := make(chan ChangeEvent)
	syncer := NewSyncer(store, events, nil, i18n.NewLocalizer("en"), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = syncer.Run(ctx) }()
	waitForSignal(t, syncer.Wakeup())

	store.mutex.Lock()
	store.queue = append(store.queue, testEntry("b", 2, false))
	store.mutex.Unlock()

	events <- ChangeEvent{EventType: EventUpdate, Table: TableQueueSongs}
	waitForSignal(t, syncer.Wakeup())

	if len(syncer.Snapshot()) != 2 {
		t.Errorf("expected mirror to pick up new entry")
	}
}

func TestSyncerIgnoresOtherTables(t *testing.T) {
	store := newFakeQueueStore(testEntry("a", 1, true))
	events := make(chan ChangeEvent)
	syncer := NewSyncer(store, events, nil, i18n.NewLocalizer("en"), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = syncer.Run(ctx) }()
	waitForSignal(t, syncer.Wakeup())

	events <- ChangeEvent{EventType: EventInsert, Table: TableSongReactions}

	select {
	case <-syncer.Wakeup():
		t.Error("reaction event should not trigger a queue resync")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSyncerAnnouncesInserts(t *testing.T) {
	store := newFakeQueueStore()
	events := make(chan ChangeEvent)
	notifier := &fakeNotifier{}
	syncer := NewSyncer(store, events, notifier, i18n.NewLocalizer("en"), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = syncer.Run(ctx) }()
	waitForSignal(t, syncer.Wakeup())

	inserted := testEntry("a", 1, true)
	events <- ChangeEvent{EventType: EventInsert, Table: TableQueueSongs, New: inserted}
	waitForSignal(t, syncer.Wakeup())

	deadline := time.Now().Add(time.Second)
	for {
		notices := notifier.all()
		if len(notices) == 1 {
			if want := "🎵 Alice added Title a - Artist a to the queue"; notices[0] != want {
				t.Errorf("expected %q, got %q", want, notices[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for insert notice")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSyncerSurvivesListErrors(t *testing.T) {
	store := newFakeQueueStore(testEntry("a", 1, true))
	events := make(chan ChangeEvent)
	syncer := NewSyncer(store, events, nil, i18n.NewLocalizer("en"), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = syncer.Run(ctx) }()
	waitForSignal(t, syncer.Wakeup())

	store.mutex.Lock()
	store.listErr = errors.New("connection reset")
	store.mutex.Unlock()

	events <- ChangeEvent{EventType: EventUpdate, Table: TableQueueSongs}
	time.Sleep(50 * time.Millisecond)

	// The previous mirror remains usable.
	if len(syncer.Snapshot()) != 1 {
		t.Error("mirror should keep last good snapshot on resync failure")
	}

	store.mutex.Lock()
	store.listErr = nil
	store.mutex.Unlock()

	events <- ChangeEvent{EventType: EventUpdate, Table: TableQueueSongs}
	waitForSignal(t, syncer.Wakeup())

	if syncer.State() != SyncStateSynced {
		t.Errorf("expected recovery to synced state, got %s", syncer.State())
	}
}
