package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"officedj/internal/core"
	"officedj/internal/store"
)

// fakeAccounts stands in for the Spotify accounts service token endpoint.
func fakeAccounts(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"token_type":    "Bearer",
			"refresh_token": "rotated-refresh",
			"expires_in":    3600,
		})
	}))
}

func newBrokerForTest(t *testing.T, accountsURL string) (*Broker, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	b := NewBroker(core.SpotifyConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/api/spotify/auth/callback",
	}, store.NewTokenStore(mock), zap.NewNop())
	if accountsURL != "" {
		b.conf.Endpoint = oauth2.Endpoint{
			AuthURL:  accountsURL + "/authorize",
			TokenURL: accountsURL + "/api/token",
		}
	}
	return b, mock
}

func requestWithIdentity(method, url, userID string) *http.Request {
	req := httptest.NewRequest(method, url, nil)
	claims := &TokenClaims{UserID: userID, DisplayName: "Alice"}
	return req.WithContext(context.WithValue(req.Context(), ctxClaimsKey{}, claims))
}

func TestHandleAuthorizeRedirectsWithUserState(t *testing.T) {
	b, mock := newBrokerForTest(t, "")
	defer mock.Close()

	req := requestWithIdentity("GET", "/api/spotify/auth/authorize", "u1")
	w := httptest.NewRecorder()
	b.HandleAuthorize(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.Contains(t, location, "state=u1")
	assert.Contains(t, location, "client_id=client-id")
}

func TestHandleAuthorizeWithoutIdentity(t *testing.T) {
	b, mock := newBrokerForTest(t, "")
	defer mock.Close()

	w := httptest.NewRecorder()
	b.HandleAuthorize(w, httptest.NewRequest("GET", "/api/spotify/auth/authorize", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleCallbackStoresTokensAndClosesPopup(t *testing.T) {
	accounts := fakeAccounts(t, "fresh-access")
	defer accounts.Close()
	b, mock := newBrokerForTest(t, accounts.URL)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("u1", "", "fresh-access", "rotated-refresh", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	req := httptest.NewRequest("GET", "/api/spotify/auth/callback?code=abc&state=u1", nil)
	w := httptest.NewRecorder()
	b.HandleCallback(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `postMessage`)
	assert.Contains(t, w.Body.String(), `"ok"`)
	assert.Contains(t, w.Body.String(), "window.close()")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleCallbackMissingCode(t *testing.T) {
	b, mock := newBrokerForTest(t, "")
	defer mock.Close()

	req := httptest.NewRequest("GET", "/api/spotify/auth/callback?state=u1", nil)
	w := httptest.NewRecorder()
	b.HandleCallback(w, req)

	// Still renders the page so the popup closes, but reports the failure.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestHandleTokenFreshTokenPassesThrough(t *testing.T) {
	b, mock := newBrokerForTest(t, "")
	defer mock.Close()

	expiry := time.Now().Add(time.Hour)
	mock.ExpectQuery("SELECT spotify_access_token").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"spotify_access_token", "spotify_refresh_token", "spotify_token_expires_at"}).
			AddRow(ptr("current-access"), ptr("refresh"), &expiry))

	req := requestWithIdentity("GET", "/api/spotify/token", "u1")
	w := httptest.NewRecorder()
	b.HandleToken(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "current-access", resp["access_token"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleTokenRefreshesNearExpiry(t *testing.T) {
	accounts := fakeAccounts(t, "refreshed-access")
	defer accounts.Close()
	b, mock := newBrokerForTest(t, accounts.URL)
	defer mock.Close()

	expiry := time.Now().Add(time.Minute)
	mock.ExpectQuery("SELECT spotify_access_token").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"spotify_access_token", "spotify_refresh_token", "spotify_token_expires_at"}).
			AddRow(ptr("stale-access"), ptr("refresh"), &expiry))
	mock.ExpectExec("UPDATE profiles").
		WithArgs("u1", "refreshed-access", "rotated-refresh", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	req := requestWithIdentity("GET", "/api/spotify/token", "u1")
	w := httptest.NewRecorder()
	b.HandleToken(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "refreshed-access", resp["access_token"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleTokenNoLinkedAccount(t *testing.T) {
	b, mock := newBrokerForTest(t, "")
	defer mock.Close()

	mock.ExpectQuery("SELECT spotify_access_token").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"spotify_access_token", "spotify_refresh_token", "spotify_token_expires_at"}).
			AddRow((*string)(nil), (*string)(nil), (*time.Time)(nil)))

	req := requestWithIdentity("GET", "/api/spotify/token", "u1")
	w := httptest.NewRecorder()
	b.HandleToken(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func ptr(s string) *string { return &s }
