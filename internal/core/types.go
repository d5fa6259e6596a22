package core

import (
	"context"
	"time"
)

// QueueEntry is one track waiting for or currently in playback.
type QueueEntry struct {
	ID             string     `json:"id"`
	SpotifySongID  string     `json:"spotify_song_id"`
	Title          string     `json:"title"`
	Artist         string     `json:"artist"`
	AlbumCoverURL  *string    `json:"album_cover_url"`
	DurationMs     int        `json:"duration_ms"`
	AddedByUserID  string     `json:"added_by_user_id"`
	AddedByName    string     `json:"added_by_name"`
	AddedAt        time.Time  `json:"added_at"`
	Position       int        `json:"position"`
	IsPlaying      bool       `json:"is_playing"`
	YouTubeVideoID *string    `json:"youtube_video_id"`
}

// HistoryEntry is the append-only archival record written once per track
// that finishes or is skipped.
type HistoryEntry struct {
	ID            string    `json:"id"`
	QueueEntryID  string    `json:"queue_entry_id"`
	SpotifySongID string    `json:"spotify_song_id"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist"`
	AlbumCoverURL *string   `json:"album_cover_url"`
	AddedByUserID string    `json:"added_by_user_id"`
	AddedByName   string    `json:"added_by_name"`
	PlayedAt      time.Time `json:"played_at"`
}

// Reaction is one emoji reaction; at most one live row per (song, user).
type Reaction struct {
	ID        string    `json:"id"`
	SongID    string    `json:"song_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// Track is a catalog search result before it becomes a queue entry.
type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artists    string `json:"artists"`
	AlbumCover string `json:"album_cover"`
	DurationMs int    `json:"duration_ms"`
}

// NewQueueEntry carries the caller-supplied fields of an insert; the store
// assigns id, position, added_at and the is-playing marker.
type NewQueueEntry struct {
	SpotifySongID string
	Title         string
	Artist        string
	AlbumCoverURL *string
	DurationMs    int
	AddedByUserID string
	AddedByName   string
}

// ChangeEventType mirrors the row-change feed of the queue store.
type ChangeEventType string

const (
	EventInsert ChangeEventType = "INSERT"
	EventUpdate ChangeEventType = "UPDATE"
	EventDelete ChangeEventType = "DELETE"
)

// ChangeEvent is one push notification from the shared store. Delivery is
// at-least-once and not ordered relative to other clients' concurrent writes.
type ChangeEvent struct {
	EventType ChangeEventType `json:"eventType"`
	Table     string          `json:"table"`
	New       any             `json:"new,omitempty"`
	Old       any             `json:"old,omitempty"`
}

const (
	TableQueueSongs    = "queue_songs"
	TableSongHistory   = "song_history"
	TableSongReactions = "song_reactions"
)

// QueueStore is the authoritative shared queue table. All mutations are
// single-row statements; there is no multi-row transactional guarantee.
type QueueStore interface {
	ListQueue(ctx context.Context) ([]QueueEntry, error)
	Insert(ctx context.Context, entry NewQueueEntry) (*QueueEntry, error)
	UpdatePosition(ctx context.Context, id string, newPosition int) error
	SetPlaying(ctx context.Context, id string, playing bool) error
	Delete(ctx context.Context, id string) error
	SetYouTubeVideoID(ctx context.Context, id, videoID string) error
	AppendHistory(ctx context.Context, entry QueueEntry) error
}

// PlayerAdapter abstracts the two playback backends behind one capability
// interface. Play must be idempotent against repeated calls for the same
// entry, and end-of-track must be signaled exactly once per track.
type PlayerAdapter interface {
	Play(ctx context.Context, entry QueueEntry) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	SetVolume(ctx context.Context, volume float64) error
	IsReady() bool
	IsConnected() bool
	OnTrackEnd(fn func())
	Close()
}

// Notifier surfaces transient user-visible notices (the toast channel of the
// original UI). Implementations must never block or fail the caller.
type Notifier interface {
	Notify(ctx context.Context, title, body string)
}
