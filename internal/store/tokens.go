package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNoToken is returned when a user has never linked a Spotify account.
var ErrNoToken = errors.New("no spotify token on file")

// SpotifyToken is the persisted per-user token set.
type SpotifyToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenStore persists per-user Spotify OAuth tokens in the profiles table.
type TokenStore struct {
	db DB
}

func NewTokenStore(db DB) *TokenStore {
	return &TokenStore{db: db}
}

// Get returns the stored token set for a user, or ErrNoToken.
func (s *TokenStore) Get(ctx context.Context, userID string) (*SpotifyToken, error) {
	var (
		t         SpotifyToken
		access    *string
		refresh   *string
		expiresAt *time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT spotify_access_token, spotify_refresh_token, spotify_token_expires_at
		FROM profiles WHERE user_id = $1
	`, userID).Scan(&access, &refresh, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if access == nil || refresh == nil || expiresAt == nil {
		return nil, ErrNoToken
	}
	t.AccessToken = *access
	t.RefreshToken = *refresh
	t.ExpiresAt = *expiresAt
	return &t, nil
}

// Save upserts the token set onto the user's profile row.
func (s *TokenStore) Save(ctx context.Context, userID, displayName string, token SpotifyToken) error {
	if _, err := s.db.Exec(ctx, `
		INSERT INTO profiles (user_id, display_name, spotify_access_token,
		                      spotify_refresh_token, spotify_token_expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			spotify_access_token     = EXCLUDED.spotify_access_token,
			spotify_refresh_token    = EXCLUDED.spotify_refresh_token,
			spotify_token_expires_at = EXCLUDED.spotify_token_expires_at
	`, userID, displayName, token.AccessToken, token.RefreshToken, token.ExpiresAt); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// UpdateAccess refreshes only the short-lived part of the token set. Spotify
// does not always rotate refresh tokens; an empty refreshToken keeps the old
// one.
func (s *TokenStore) UpdateAccess(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE profiles SET
			spotify_access_token     = $2,
			spotify_refresh_token    = COALESCE(NULLIF($3, ''), spotify_refresh_token),
			spotify_token_expires_at = $4
		WHERE user_id = $1
	`, userID, accessToken, refreshToken, expiresAt); err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	return nil
}
