package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AutoMigrate creates the queue tables if they do not exist yet.
func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS queue_songs (
          id                uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          spotify_song_id   TEXT NOT NULL,
          title             TEXT NOT NULL,
          artist            TEXT NOT NULL,
          album_cover_url   TEXT,
          duration_ms       INT NOT NULL DEFAULT 0,
          added_by_user_id  TEXT NOT NULL,
          added_by_name     TEXT NOT NULL,
          added_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
          position          INT NOT NULL,
          is_playing        BOOLEAN NOT NULL DEFAULT FALSE,
          youtube_video_id  TEXT
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS song_history (
          id                uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          queue_entry_id    uuid NOT NULL,
          spotify_song_id   TEXT NOT NULL,
          title             TEXT NOT NULL,
          artist            TEXT NOT NULL,
          album_cover_url   TEXT,
          added_by_user_id  TEXT NOT NULL,
          added_by_name     TEXT NOT NULL,
          played_at         TIMESTAMPTZ NOT NULL DEFAULT now()
      );
      CREATE UNIQUE INDEX IF NOT EXISTS song_history_queue_entry_idx
          ON song_history (queue_entry_id)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS song_reactions (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          song_id     uuid NOT NULL,
          user_id     TEXT NOT NULL,
          user_name   TEXT NOT NULL,
          emoji       TEXT NOT NULL,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      );
      CREATE UNIQUE INDEX IF NOT EXISTS song_reactions_song_user_idx
          ON song_reactions (song_id, user_id)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS profiles (
          user_id                  TEXT PRIMARY KEY,
          display_name             TEXT NOT NULL DEFAULT '',
          spotify_access_token     TEXT,
          spotify_refresh_token    TEXT,
          spotify_token_expires_at TIMESTAMPTZ
      )
    `); err != nil {
		return err
	}

	return nil
}
