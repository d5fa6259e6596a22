// Package soundboard stores the office sound buttons and broadcasts trigger
// events. Buttons live in a local sqlite file; the clip itself is a short
// video played client-side by id.
package soundboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a sound id does not exist.
var ErrNotFound = errors.New("sound not found")

// Sound is one button on the board.
type Sound struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	VideoID   string    `json:"video_id"`
	Color     string    `json:"color"`
	Category  string    `json:"category"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"created_at"`
}

// PlayEvent is broadcast when someone triggers a sound; every connected
// client plays the clip.
type PlayEvent struct {
	SoundID  string `json:"sound_id"`
	Title    string `json:"title"`
	VideoID  string `json:"video_id"`
	PlayedBy string `json:"played_by"`
}

// Store persists the sound catalog in sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open soundboard db: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sounds (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			video_id   TEXT NOT NULL,
			color      TEXT NOT NULL DEFAULT '',
			category   TEXT NOT NULL DEFAULT '',
			favorite   BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sounds table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const soundColumns = `id, title, video_id, color, category, favorite, created_at`

// List returns all sounds, favorites first, then by title.
func (s *Store) List(ctx context.Context) ([]Sound, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+soundColumns+` FROM sounds ORDER BY favorite DESC, title ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sounds: %w", err)
	}
	defer rows.Close()

	var sounds []Sound
	for rows.Next() {
		var snd Sound
		if err := rows.Scan(&snd.ID, &snd.Title, &snd.VideoID, &snd.Color,
			&snd.Category, &snd.Favorite, &snd.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sound: %w", err)
		}
		sounds = append(sounds, snd)
	}
	return sounds, rows.Err()
}

// Get returns one sound by id.
func (s *Store) Get(ctx context.Context, id string) (*Sound, error) {
	var snd Sound
	err := s.db.QueryRowContext(ctx, `
		SELECT `+soundColumns+` FROM sounds WHERE id = ?
	`, id).Scan(&snd.ID, &snd.Title, &snd.VideoID, &snd.Color,
		&snd.Category, &snd.Favorite, &snd.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sound: %w", err)
	}
	return &snd, nil
}

// Add registers a new sound button.
func (s *Store) Add(ctx context.Context, title, videoID, color, category string) (*Sound, error) {
	snd := Sound{
		ID:        uuid.NewString(),
		Title:     title,
		VideoID:   videoID,
		Color:     color,
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sounds (id, title, video_id, color, category, favorite, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, snd.ID, snd.Title, snd.VideoID, snd.Color, snd.Category, snd.CreatedAt); err != nil {
		return nil, fmt.Errorf("add sound: %w", err)
	}
	return &snd, nil
}

// ToggleFavorite flips the favorite flag and returns the updated sound.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (*Sound, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sounds SET favorite = NOT favorite WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("toggle favorite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes a sound from the board.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sounds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sound: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
