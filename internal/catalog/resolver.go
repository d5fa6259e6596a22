package catalog

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"officedj/internal/core"
)

// Resolver backfills the fallback video id onto freshly queued entries. The
// lookup runs detached from the add request: a slow mirror must never delay
// queueing, and a failed lookup just leaves the entry without a fallback.
type Resolver struct {
	lookup *YouTubeLookup
	store  core.QueueStore
	logger *zap.Logger
}

func NewResolver(lookup *YouTubeLookup, store core.QueueStore, logger *zap.Logger) *Resolver {
	return &Resolver{lookup: lookup, store: store, logger: logger}
}

// ResolveAsync kicks off the lookup in the background. The patch is a
// fire-and-forget single-row update; if the entry already advanced out of
// the queue the update lands on nothing.
func (r *Resolver) ResolveAsync(entry core.QueueEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		videoID, err := r.lookup.Find(ctx, entry.Artist, entry.Title)
		if errors.Is(err, ErrNoVideo) {
			r.logger.Info("No fallback video found",
				zap.String("track", entry.Title), zap.String("artist", entry.Artist))
			return
		}
		if err != nil {
			r.logger.Warn("Fallback lookup failed",
				zap.String("track", entry.Title), zap.Error(err))
			return
		}

		if err := r.store.SetYouTubeVideoID(ctx, entry.ID, videoID); err != nil {
			r.logger.Warn("Failed to patch fallback video id",
				zap.String("entryID", entry.ID), zap.Error(err))
		}
	}()
}
