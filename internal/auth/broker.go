package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"officedj/internal/core"
	"officedj/internal/store"
)

// refreshThreshold is how much remaining validity still counts as "fresh".
// Tokens below it are refreshed before being handed out.
const refreshThreshold = 5 * time.Minute

// callbackPage notifies the opener window and closes the popup the OAuth
// flow ran in.
const callbackPage = `<!DOCTYPE html>
<html>
<body>
<script>
  if (window.opener) {
    window.opener.postMessage({ type: "spotify-auth", status: "%s" }, "*");
  }
  window.close();
</script>
<p>You can close this window.</p>
</body>
</html>`

// Broker runs the per-user Spotify OAuth flow and keeps access tokens fresh.
type Broker struct {
	conf   *oauth2.Config
	tokens *store.TokenStore
	logger *zap.Logger
}

func NewBroker(cfg core.SpotifyConfig, tokens *store.TokenStore, logger *zap.Logger) *Broker {
	return &Broker{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				spotifyauth.ScopeUserReadPlaybackState,
				spotifyauth.ScopeUserModifyPlaybackState,
				spotifyauth.ScopeUserReadCurrentlyPlaying,
				spotifyauth.ScopeStreaming,
			},
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		tokens: tokens,
		logger: logger,
	}
}

// HandleAuthorize redirects the caller to the Spotify consent page. The
// OAuth state parameter carries the user id so the callback knows whose
// profile to attach the tokens to.
func (b *Broker) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	identity, ok := FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	url := b.conf.AuthCodeURL(identity.UserID, oauth2.AccessTypeOffline)
	http.Redirect(w, r, url, http.StatusFound)
}

// HandleCallback exchanges the authorization code and stores the token set.
// It always renders the self-closing page; the opener learns the outcome
// from the posted status.
func (b *Broker) HandleCallback(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := r.URL.Query().Get("code")
	userID := r.URL.Query().Get("state")

	if code == "" || userID == "" {
		status = "error"
	} else if err := b.exchange(r.Context(), userID, code); err != nil {
		b.logger.Error("OAuth code exchange failed", zap.Error(err))
		status = "error"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, callbackPage, status)
}

// HandleToken returns the caller's current access token, refreshing it first
// when it is close to expiry.
func (b *Broker) HandleToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	b.serveToken(w, r, identity.UserID, false)
}

// HandleRefresh forces a refresh regardless of remaining validity.
func (b *Broker) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	identity, ok := FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	b.serveToken(w, r, identity.UserID, true)
}

func (b *Broker) serveToken(w http.ResponseWriter, r *http.Request, userID string, force bool) {
	token, err := b.AccessToken(r.Context(), userID, force)
	if errors.Is(err, store.ErrNoToken) {
		http.Error(w, "no spotify account linked", http.StatusNotFound)
		return
	}
	if err != nil {
		b.logger.Error("Token retrieval failed", zap.String("userID", userID), zap.Error(err))
		http.Error(w, "token refresh failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token.AccessToken,
		"expires_at":   token.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// AccessToken returns a valid token for the user, refreshing when forced or
// when less than the threshold of validity remains.
func (b *Broker) AccessToken(ctx context.Context, userID string, force bool) (*store.SpotifyToken, error) {
	token, err := b.tokens.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !force && time.Until(token.ExpiresAt) > refreshThreshold {
		return token, nil
	}
	return b.refresh(ctx, userID, token)
}

// TokenSource adapts a user's stored tokens to the oauth2 interface so the
// playback client refreshes transparently.
func (b *Broker) TokenSource(userID string) oauth2.TokenSource {
	return &storeTokenSource{broker: b, userID: userID}
}

func (b *Broker) exchange(ctx context.Context, userID, code string) error {
	token, err := b.conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	return b.tokens.Save(ctx, userID, "", store.SpotifyToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	})
}

func (b *Broker) refresh(ctx context.Context, userID string, current *store.SpotifyToken) (*store.SpotifyToken, error) {
	src := b.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	if err := b.tokens.UpdateAccess(ctx, userID, fresh.AccessToken, fresh.RefreshToken, fresh.Expiry); err != nil {
		return nil, err
	}

	rotated := current.RefreshToken
	if fresh.RefreshToken != "" {
		rotated = fresh.RefreshToken
	}
	return &store.SpotifyToken{
		AccessToken:  fresh.AccessToken,
		RefreshToken: rotated,
		ExpiresAt:    fresh.Expiry,
	}, nil
}

type storeTokenSource struct {
	broker *Broker
	userID string
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	token, err := s.broker.AccessToken(ctx, s.userID, false)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.ExpiresAt,
	}, nil
}
