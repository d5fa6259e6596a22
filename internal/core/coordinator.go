package core

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"officedj/internal/i18n"
)

// PlaybackState is the coordinator's lifecycle state.
type PlaybackState string

const (
	StateIdle    PlaybackState = "idle"
	StateLoading PlaybackState = "loading"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

// Coordinator drives playback from the queue mirror: it starts whichever
// entry the store marks as playing, and advances the queue when a track
// ends or is skipped. It holds no queue state of its own; the syncer's
// snapshot is re-read on every decision.
type Coordinator struct {
	store     QueueStore
	syncer    *Syncer
	player    PlayerAdapter
	notifier  Notifier
	localizer *i18n.Localizer
	logger    *zap.Logger

	mutex sync.Mutex
	state PlaybackState

	// handledTrackID is the queue entry id whose playback was already
	// started; it makes repeated evaluations of the same snapshot idempotent.
	handledTrackID string

	// failedTrackID/failCount track consecutive Play failures per entry so a
	// persistently broken track gets advanced past instead of stalling the
	// queue.
	failedTrackID string
	failCount     int

	// advancing guards against overlapping advances (end-detector firing
	// while a manual skip is in flight).
	advancing atomic.Bool
}

func NewCoordinator(store QueueStore, syncer *Syncer, player PlayerAdapter, notifier Notifier, localizer *i18n.Localizer, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		syncer:    syncer,
		player:    player,
		notifier:  notifier,
		localizer: localizer,
		logger:    logger,
		state:     StateIdle,
	}
}

// Run wires the end-of-track callback and re-evaluates playback after every
// queue resync until ctx is canceled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.player.OnTrackEnd(func() {
		if err := c.Advance(ctx); err != nil {
			c.logger.Error("Advance after track end failed", zap.Error(err))
		}
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.syncer.Wakeup():
			c.evaluate(ctx)
		}
	}
}

// State returns the current playback state.
func (c *Coordinator) State() PlaybackState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Start promotes the head of the queue when nothing is playing. It is a
// no-op when a track already carries the playing marker.
func (c *Coordinator) Start(ctx context.Context) error {
	if playing := c.syncer.Playing(); playing != nil {
		return nil
	}
	queue := c.syncer.Snapshot()
	if len(queue) == 0 {
		if c.notifier != nil {
			c.notifier.Notify(ctx, c.localizer.T("queue.empty"), "")
		}
		return nil
	}
	return c.store.SetPlaying(ctx, queue[0].ID, true)
}

// Skip archives the current track and promotes the next one.
func (c *Coordinator) Skip(ctx context.Context) error {
	current := c.syncer.Playing()
	if current == nil {
		return nil
	}
	if err := c.Advance(ctx); err != nil {
		return err
	}
	if c.notifier != nil {
		c.notifier.Notify(ctx,
			c.localizer.T("queue.track_skipped", current.Title, current.Artist), "")
	}
	return nil
}

// Pause suspends playback without touching the queue.
func (c *Coordinator) Pause(ctx context.Context) error {
	if err := c.player.Pause(ctx); err != nil {
		return err
	}
	c.mutex.Lock()
	if c.state == StatePlaying {
		c.state = StatePaused
	}
	c.mutex.Unlock()
	return nil
}

// Resume continues a paused track.
func (c *Coordinator) Resume(ctx context.Context) error {
	if err := c.player.Resume(ctx); err != nil {
		return err
	}
	c.mutex.Lock()
	if c.state == StatePaused {
		c.state = StatePlaying
	}
	c.mutex.Unlock()
	return nil
}

// Toggle pauses when playing and resumes when paused.
func (c *Coordinator) Toggle(ctx context.Context) error {
	if c.State() == StatePaused {
		return c.Resume(ctx)
	}
	return c.Pause(ctx)
}

// SetVolume passes the volume straight to the player backend.
func (c *Coordinator) SetVolume(ctx context.Context, volume float64) error {
	return c.player.SetVolume(ctx, volume)
}

// Advance archives the playing entry, removes it, and promotes the next
// entry by position. Overlapping calls collapse into one: the second caller
// returns immediately and the store-level history key absorbs any replay.
func (c *Coordinator) Advance(ctx context.Context) error {
	if !c.advancing.CompareAndSwap(false, true) {
		c.logger.Debug("Advance already in flight")
		return nil
	}
	defer c.advancing.Store(false)

	// The mirror can lag behind skips and reorders; the store decides what
	// is playing and what comes after it.
	queue, err := c.store.ListQueue(ctx)
	if err != nil {
		return err
	}
	var current *QueueEntry
	for i := range queue {
		if queue[i].IsPlaying {
			current = &queue[i]
			break
		}
	}
	if current == nil {
		return nil
	}

	if err := c.store.AppendHistory(ctx, *current); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, current.ID); err != nil {
		return err
	}

	c.mutex.Lock()
	if c.handledTrackID == current.ID {
		c.handledTrackID = ""
	}
	c.state = StateIdle
	c.mutex.Unlock()

	// Promote the entry with the smallest position strictly greater than
	// the finished one. Entries reordered in front of the playing track
	// wait for their next turn through the queue head.
	var next *QueueEntry
	for i := range queue {
		if queue[i].Position <= current.Position {
			continue
		}
		if next == nil || queue[i].Position < next.Position {
			next = &queue[i]
		}
	}
	if next == nil {
		return nil
	}
	return c.store.SetPlaying(ctx, next.ID, true)
}

// evaluate reconciles playback with the latest snapshot.
func (c *Coordinator) evaluate(ctx context.Context) {
	playing := c.syncer.Playing()

	c.mutex.Lock()
	if playing == nil {
		wasPlaying := c.state == StatePlaying
		c.handledTrackID = ""
		c.state = StateIdle
		c.mutex.Unlock()
		if wasPlaying {
			if err := c.player.Pause(ctx); err != nil {
				c.logger.Debug("Pause after track removal failed", zap.Error(err))
			}
		}
		return
	}
	if c.handledTrackID == playing.ID {
		c.mutex.Unlock()
		return
	}
	c.state = StateLoading
	c.mutex.Unlock()

	if !c.player.IsConnected() {
		c.logger.Warn("Player backend not connected", zap.String("track", playing.Title))
		if c.notifier != nil {
			c.notifier.Notify(ctx, c.localizer.T("player.not_connected"), "")
		}
		return
	}

	if err := c.player.Play(ctx, *playing); err != nil {
		c.logger.Error("Failed to start playback",
			zap.String("track", playing.Title), zap.Error(err))
		if c.notifier != nil {
			c.notifier.Notify(ctx, c.localizer.T("player.start_failed"), "")
		}
		c.recordPlayFailure(ctx, playing)
		return
	}

	c.mutex.Lock()
	c.failedTrackID = ""
	c.failCount = 0
	c.handledTrackID = playing.ID
	c.state = StatePlaying
	c.mutex.Unlock()

	if c.notifier != nil {
		c.notifier.Notify(ctx,
			c.localizer.T("queue.now_playing", playing.Title, playing.Artist), "")
	}
}

// recordPlayFailure counts consecutive start failures for one entry. The first
// failure leaves the track in Loading so the next wakeup retries it; a repeat
// failure advances past it so the queue does not stall on a broken track.
func (c *Coordinator) recordPlayFailure(ctx context.Context, playing *QueueEntry) {
	c.mutex.Lock()
	if c.failedTrackID == playing.ID {
		c.failCount++
	} else {
		c.failedTrackID = playing.ID
		c.failCount = 1
	}
	giveUp := c.failCount >= 2
	c.mutex.Unlock()

	if !giveUp {
		return
	}
	c.logger.Warn("Giving up on track after repeated start failures",
		zap.String("track", playing.Title))
	if err := c.Advance(ctx); err != nil {
		c.logger.Error("Advance past broken track failed", zap.Error(err))
	}
}
