package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/fabfab/quizrag/apperr"
	"github.com/fabfab/quizrag/config"
)

func newFakeGoogle(t *testing.T, userinfo string) (*GoogleProvider, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "good-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(userinfo))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p, err := NewGoogleProvider(config.GoogleOAuthConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:5000/login/callback",
	}, nil)
	require.NoError(t, err)
	p.oauth.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	p.userInfoURL = srv.URL + "/userinfo"
	return p, srv
}

func TestNewGoogleProviderRequiresCredentials(t *testing.T) {
	_, err := NewGoogleProvider(config.GoogleOAuthConfig{ClientID: "id"}, nil)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestAuthCodeURL(t *testing.T) {
	p, _ := newFakeGoogle(t, `{}`)

	raw := p.AuthCodeURL("state-1")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
}

func TestExchangeVerifiedUser(t *testing.T) {
	p, _ := newFakeGoogle(t, `{"sub":"1234567890","email":"ada@example.com","email_verified":true,"given_name":"Ada","name":"Ada Lovelace"}`)

	id, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "1234567890", Email: "ada@example.com", Name: "Ada"}, id)
}

func TestExchangeRejectsUnverifiedEmail(t *testing.T) {
	p, _ := newFakeGoogle(t, `{"sub":"1234567890","email":"ada@example.com","email_verified":false}`)

	_, err := p.Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrUnverifiedEmail)
}

func TestExchangeRejectsEmptyCode(t *testing.T) {
	p, _ := newFakeGoogle(t, `{}`)

	_, err := p.Exchange(context.Background(), "  ")
	assert.Error(t, err)
}

func TestNewState(t *testing.T) {
	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestParseCallback(t *testing.T) {
	const state = "0123456789abcdef0123456789abcdef"

	code, err := ParseCallback("http://localhost:5000/login/callback?state="+state+"&code=4%2F0Ab&scope=openid", state)
	require.NoError(t, err)
	assert.Equal(t, "4/0Ab", code)

	_, err = ParseCallback("http://localhost:5000/login/callback?state=forged&code=4%2F0Ab", state)
	assert.ErrorIs(t, err, ErrStateMismatch)

	_, err = ParseCallback("4/0Ab", state)
	assert.ErrorIs(t, err, ErrStateMismatch)

	_, err = ParseCallback("http://localhost:5000/login/callback?state="+state+"&error=access_denied", state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")

	_, err = ParseCallback("http://localhost:5000/login/callback?state="+state, state)
	assert.Error(t, err)
}
