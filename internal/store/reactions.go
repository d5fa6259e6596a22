package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"officedj/internal/core"
)

// ReactionStore keeps at most one live reaction per (song, user).
type ReactionStore struct {
	db     DB
	events Publisher
	logger *zap.Logger
}

func NewReactionStore(db DB, events Publisher, logger *zap.Logger) *ReactionStore {
	return &ReactionStore{
		db:     db,
		events: events,
		logger: logger,
	}
}

// ListReactions returns all reactions for the given queue entries, grouped by
// the caller. An empty songIDs slice returns nothing.
func (s *ReactionStore) ListReactions(ctx context.Context, songIDs []string) ([]core.Reaction, error) {
	if len(songIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, song_id, user_id, user_name, emoji, created_at
		FROM song_reactions
		WHERE song_id = ANY($1)
		ORDER BY created_at ASC
	`, songIDs)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	var reactions []core.Reaction
	for rows.Next() {
		var r core.Reaction
		if err := rows.Scan(&r.ID, &r.SongID, &r.UserID, &r.UserName, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}

// SetReaction applies the toggle semantics: a repeat of the user's current
// emoji removes the reaction, any other emoji replaces it, and no existing
// row inserts a fresh one. Returns the resulting reaction, or nil when the
// toggle removed it.
func (s *ReactionStore) SetReaction(ctx context.Context, songID, userID, userName, emoji string) (*core.Reaction, error) {
	var existingID, existingEmoji string
	err := s.db.QueryRow(ctx, `
		SELECT id, emoji FROM song_reactions WHERE song_id = $1 AND user_id = $2
	`, songID, userID).Scan(&existingID, &existingEmoji)

	switch {
	case err == nil && existingEmoji == emoji:
		if _, err := s.db.Exec(ctx, `
			DELETE FROM song_reactions WHERE id = $1
		`, existingID); err != nil {
			return nil, fmt.Errorf("remove reaction: %w", err)
		}
		s.publish(ctx, core.ChangeEvent{
			EventType: core.EventDelete,
			Table:     core.TableSongReactions,
			Old:       map[string]any{"id": existingID, "song_id": songID},
		})
		return nil, nil

	case err == nil:
		var r core.Reaction
		if err := s.db.QueryRow(ctx, `
			UPDATE song_reactions SET emoji = $2, created_at = now()
			WHERE id = $1
			RETURNING id, song_id, user_id, user_name, emoji, created_at
		`, existingID, emoji).Scan(&r.ID, &r.SongID, &r.UserID, &r.UserName, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("replace reaction: %w", err)
		}
		s.publish(ctx, core.ChangeEvent{
			EventType: core.EventUpdate,
			Table:     core.TableSongReactions,
			New:       r,
		})
		return &r, nil

	case errors.Is(err, pgx.ErrNoRows):
		var r core.Reaction
		if err := s.db.QueryRow(ctx, `
			INSERT INTO song_reactions (song_id, user_id, user_name, emoji)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (song_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji
			RETURNING id, song_id, user_id, user_name, emoji, created_at
		`, songID, userID, userName, emoji).Scan(&r.ID, &r.SongID, &r.UserID, &r.UserName, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert reaction: %w", err)
		}
		s.publish(ctx, core.ChangeEvent{
			EventType: core.EventInsert,
			Table:     core.TableSongReactions,
			New:       r,
		})
		return &r, nil

	default:
		return nil, fmt.Errorf("lookup reaction: %w", err)
	}
}

func (s *ReactionStore) publish(ctx context.Context, event core.ChangeEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, event)
}
