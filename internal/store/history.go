package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"officedj/internal/core"
)

// HistoryStore reads the append-only archive. Writes go through
// QueueStore.AppendHistory so the advance path stays in one place.
type HistoryStore struct {
	db    DB
	limit int
}

func NewHistoryStore(db DB, limit int) *HistoryStore {
	return &HistoryStore{db: db, limit: limit}
}

// Leaderboard is computed over the latest window of history entries, not the
// full archive.
type Leaderboard struct {
	TopAdder      *LeaderboardUser  `json:"top_adder"`
	MostPlayed    *LeaderboardTrack `json:"most_played"`
	WindowEntries int               `json:"window_entries"`
}

type LeaderboardUser struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Count    int    `json:"count"`
}

type LeaderboardTrack struct {
	SpotifySongID string `json:"spotify_song_id"`
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	Count         int    `json:"count"`
}

// ListHistory returns the latest entries, newest first.
func (s *HistoryStore) ListHistory(ctx context.Context) ([]core.HistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, queue_entry_id, spotify_song_id, title, artist, album_cover_url,
		       added_by_user_id, added_by_name, played_at
		FROM song_history
		ORDER BY played_at DESC
		LIMIT $1
	`, s.limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []core.HistoryEntry
	for rows.Next() {
		var e core.HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.QueueEntryID, &e.SpotifySongID, &e.Title, &e.Artist,
			&e.AlbumCoverURL, &e.AddedByUserID, &e.AddedByName, &e.PlayedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Leaderboard aggregates the latest window: the user who queued the most
// tracks and the track that played most often.
func (s *HistoryStore) Leaderboard(ctx context.Context) (*Leaderboard, error) {
	lb := &Leaderboard{}

	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM song_history ORDER BY played_at DESC LIMIT $1
		) latest
	`, s.limit).Scan(&lb.WindowEntries); err != nil {
		return nil, fmt.Errorf("leaderboard window: %w", err)
	}

	var adder LeaderboardUser
	err := s.db.QueryRow(ctx, `
		SELECT added_by_user_id, added_by_name, COUNT(*) AS n
		FROM (
			SELECT added_by_user_id, added_by_name
			FROM song_history
			ORDER BY played_at DESC
			LIMIT $1
		) latest
		GROUP BY added_by_user_id, added_by_name
		ORDER BY n DESC, added_by_name ASC
		LIMIT 1
	`, s.limit).Scan(&adder.UserID, &adder.UserName, &adder.Count)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("leaderboard top adder: %w", err)
	default:
		lb.TopAdder = &adder
	}

	var track LeaderboardTrack
	err = s.db.QueryRow(ctx, `
		SELECT spotify_song_id, title, artist, COUNT(*) AS n
		FROM (
			SELECT spotify_song_id, title, artist
			FROM song_history
			ORDER BY played_at DESC
			LIMIT $1
		) latest
		GROUP BY spotify_song_id, title, artist
		ORDER BY n DESC, title ASC
		LIMIT 1
	`, s.limit).Scan(&track.SpotifySongID, &track.Title, &track.Artist, &track.Count)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("leaderboard most played: %w", err)
	default:
		lb.MostPlayed = &track
	}

	return lb, nil
}
