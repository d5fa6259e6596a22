package core

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"officedj/internal/i18n"
)

// SyncState reports whether the in-memory mirror matches the store.
type SyncState string

const (
	SyncStateSyncing SyncState = "syncing"
	SyncStateSynced  SyncState = "synced"
)

// Syncer keeps an in-memory mirror of the shared queue. Every push event
// triggers a full re-read rather than an incremental patch: events arrive
// at-least-once and unordered, so the store is the only safe source of truth.
type Syncer struct {
	store     QueueStore
	events    <-chan ChangeEvent
	notifier  Notifier
	localizer *i18n.Localizer
	logger    *zap.Logger

	mutex sync.RWMutex
	queue []QueueEntry
	state SyncState

	// wakeup carries at most one pending signal; coalescing is fine because
	// consumers read the latest snapshot, not the event itself.
	wakeup chan struct{}
}

func NewSyncer(store QueueStore, events <-chan ChangeEvent, notifier Notifier, localizer *i18n.Localizer, logger *zap.Logger) *Syncer {
	return &Syncer{
		store:     store,
		events:    events,
		notifier:  notifier,
		localizer: localizer,
		logger:    logger,
		state:     SyncStateSyncing,
		wakeup:    make(chan struct{}, 1),
	}
}

// Run performs the initial sync and then reconciles on every queue event
// until ctx is canceled.
func (s *Syncer) Run(ctx context.Context) error {
	if err := s.resync(ctx); err != nil {
		s.logger.Error("Initial queue sync failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-s.events:
			if !ok {
				return nil
			}
			if event.Table != TableQueueSongs {
				continue
			}
			if err := s.resync(ctx); err != nil {
				s.logger.Error("Queue resync failed", zap.Error(err))
				continue
			}
			if event.EventType == EventInsert {
				s.announceInsert(ctx, event)
			}
		}
	}
}

// Snapshot returns a copy of the mirrored queue ordered by position.
func (s *Syncer) Snapshot() []QueueEntry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]QueueEntry, len(s.queue))
	copy(out, s.queue)
	return out
}

// Playing returns the entry currently marked as playing, if any.
func (s *Syncer) Playing() *QueueEntry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for i := range s.queue {
		if s.queue[i].IsPlaying {
			e := s.queue[i]
			return &e
		}
	}
	return nil
}

// State reports the current synchronization state.
func (s *Syncer) State() SyncState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.state
}

// Wakeup delivers a signal after each successful resync. At most one signal
// is buffered.
func (s *Syncer) Wakeup() <-chan struct{} {
	return s.wakeup
}

func (s *Syncer) resync(ctx context.Context) error {
	s.mutex.Lock()
	s.state = SyncStateSyncing
	s.mutex.Unlock()

	entries, err := s.store.ListQueue(ctx)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	s.queue = entries
	s.state = SyncStateSynced
	s.mutex.Unlock()

	select {
	case s.wakeup <- struct{}{}:
	default:
	}
	return nil
}

// announceInsert surfaces a "track added" notice. The event payload is the
// inserted row as loosely-typed JSON; a payload that does not decode into a
// queue entry is logged and skipped, since the resync already delivered the
// row itself.
func (s *Syncer) announceInsert(ctx context.Context, event ChangeEvent) {
	if s.notifier == nil {
		return
	}

	var entry QueueEntry
	raw, err := json.Marshal(event.New)
	if err == nil {
		err = json.Unmarshal(raw, &entry)
	}
	if err != nil || entry.Title == "" {
		s.logger.Debug("Insert event without decodable entry", zap.Error(err))
		return
	}

	s.notifier.Notify(ctx,
		s.localizer.T("queue.track_added", entry.AddedByName, entry.Title, entry.Artist),
		entry.Title,
	)
}
