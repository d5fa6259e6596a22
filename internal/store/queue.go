package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"officedj/internal/core"
)

const queueColumns = `id, spotify_song_id, title, artist, album_cover_url, duration_ms,
       added_by_user_id, added_by_name, added_at, position, is_playing, youtube_video_id`

// QueueStore owns the queue_songs and song_history tables.
type QueueStore struct {
	db     DB
	events Publisher
	logger *zap.Logger
}

func NewQueueStore(db DB, events Publisher, logger *zap.Logger) *QueueStore {
	return &QueueStore{
		db:     db,
		events: events,
		logger: logger,
	}
}

// ListQueue returns all queued entries ascending by position.
func (s *QueueStore) ListQueue(ctx context.Context) ([]core.QueueEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+queueColumns+`
		FROM queue_songs
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var entries []core.QueueEntry
	for rows.Next() {
		var e core.QueueEntry
		if err := rows.Scan(
			&e.ID, &e.SpotifySongID, &e.Title, &e.Artist, &e.AlbumCoverURL,
			&e.DurationMs, &e.AddedByUserID, &e.AddedByName, &e.AddedAt,
			&e.Position, &e.IsPlaying, &e.YouTubeVideoID,
		); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Insert appends a track to the end of the queue. Position and the
// is-playing marker are computed store-side in one statement: position is
// max+1 (1 for an empty queue) and the entry starts playing iff the queue
// was empty at insert time.
func (s *QueueStore) Insert(ctx context.Context, entry core.NewQueueEntry) (*core.QueueEntry, error) {
	var e core.QueueEntry
	err := s.db.QueryRow(ctx, `
		INSERT INTO queue_songs (
			spotify_song_id, title, artist, album_cover_url, duration_ms,
			added_by_user_id, added_by_name, position, is_playing
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			COALESCE((SELECT MAX(position)+1 FROM queue_songs), 1),
			NOT EXISTS (SELECT 1 FROM queue_songs)
		)
		RETURNING `+queueColumns,
		entry.SpotifySongID, entry.Title, entry.Artist, entry.AlbumCoverURL,
		entry.DurationMs, entry.AddedByUserID, entry.AddedByName,
	).Scan(
		&e.ID, &e.SpotifySongID, &e.Title, &e.Artist, &e.AlbumCoverURL,
		&e.DurationMs, &e.AddedByUserID, &e.AddedByName, &e.AddedAt,
		&e.Position, &e.IsPlaying, &e.YouTubeVideoID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert queue entry: %w", err)
	}

	s.publish(ctx, core.ChangeEvent{
		EventType: core.EventInsert,
		Table:     core.TableQueueSongs,
		New:       e,
	})
	return &e, nil
}

// UpdatePosition moves a single entry to a new position. Reorder is two
// independent UpdatePosition calls with no version check; concurrent
// reorders can interleave.
func (s *QueueStore) UpdatePosition(ctx context.Context, id string, newPosition int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE queue_songs SET position = $2 WHERE id = $1
	`, id, newPosition)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update position: entry %s not found", id)
	}

	s.publish(ctx, core.ChangeEvent{
		EventType: core.EventUpdate,
		Table:     core.TableQueueSongs,
		New:       map[string]any{"id": id, "position": newPosition},
	})
	return nil
}

// SetPlaying flips the now-playing marker on one entry.
func (s *QueueStore) SetPlaying(ctx context.Context, id string, playing bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE queue_songs SET is_playing = $2 WHERE id = $1
	`, id, playing)
	if err != nil {
		return fmt.Errorf("set playing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set playing: entry %s not found", id)
	}

	s.publish(ctx, core.ChangeEvent{
		EventType: core.EventUpdate,
		Table:     core.TableQueueSongs,
		New:       map[string]any{"id": id, "is_playing": playing},
	})
	return nil
}

// Delete removes an entry from the queue along with its reactions, which
// have no life of their own once the entry is gone. Deleting an
// already-deleted entry is not an error; advance() retries rely on that.
func (s *QueueStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `
		DELETE FROM song_reactions WHERE song_id = $1
	`, id); err != nil {
		return fmt.Errorf("delete queue entry reactions: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM queue_songs WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("Delete of missing queue entry", zap.String("id", id))
		return nil
	}

	s.publish(ctx, core.ChangeEvent{
		EventType: core.EventDelete,
		Table:     core.TableQueueSongs,
		Old:       map[string]any{"id": id},
	})
	return nil
}

// SetYouTubeVideoID patches the asynchronously resolved fallback video id
// onto an existing entry. The entry may already be gone; that is fine.
func (s *QueueStore) SetYouTubeVideoID(ctx context.Context, id, videoID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE queue_songs SET youtube_video_id = $2 WHERE id = $1
	`, id, videoID)
	if err != nil {
		return fmt.Errorf("set youtube video id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	s.publish(ctx, core.ChangeEvent{
		EventType: core.EventUpdate,
		Table:     core.TableQueueSongs,
		New:       map[string]any{"id": id, "youtube_video_id": videoID},
	})
	return nil
}

// AppendHistory archives a finished or skipped track. The insert is keyed by
// the queue entry id, so a retried advance() that already archived the entry
// is a no-op.
func (s *QueueStore) AppendHistory(ctx context.Context, entry core.QueueEntry) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO song_history (
			queue_entry_id, spotify_song_id, title, artist, album_cover_url,
			added_by_user_id, added_by_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (queue_entry_id) DO NOTHING
	`, entry.ID, entry.SpotifySongID, entry.Title, entry.Artist,
		entry.AlbumCoverURL, entry.AddedByUserID, entry.AddedByName)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("History entry already archived", zap.String("queueEntryID", entry.ID))
		return nil
	}

	s.publish(ctx, core.ChangeEvent{
		EventType: core.EventInsert,
		Table:     core.TableSongHistory,
		New:       map[string]any{"queue_entry_id": entry.ID, "title": entry.Title},
	})
	return nil
}

func (s *QueueStore) publish(ctx context.Context, event core.ChangeEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, event)
}
