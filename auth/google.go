// Package auth resolves a verified user identity through Google's OAuth2
// authorization-code flow.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/fabfab/quizrag/apperr"
	"github.com/fabfab/quizrag/config"
	"github.com/fabfab/quizrag/logger"
)

const userInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// ErrUnverifiedEmail is returned when the provider has not verified the
// account's email address.
var ErrUnverifiedEmail = errors.New("user email not available or not verified")

// ErrStateMismatch is returned when a callback carries a state other than
// the one issued with the consent URL.
var ErrStateMismatch = errors.New("oauth state does not match")

// Identity is the verified user handed to the rest of the system. ID is the
// provider's stable subject and namespaces all per-user storage.
type Identity struct {
	ID    string
	Email string
	Name  string
}

type userInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	Name          string `json:"name"`
}

type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	logger      *logger.Logger
}

func NewGoogleProvider(cfg config.GoogleOAuthConfig, log *logger.Logger) (*GoogleProvider, error) {
	const op = "new google provider"
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
		logger:      logger.OrNop(log),
	}, nil
}

// NewState returns a random value for the OAuth state parameter.
func NewState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ParseCallback extracts the authorization code from the address Google
// redirected the browser to, after checking its state against want.
func ParseCallback(redirected, want string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(redirected))
	if err != nil {
		return "", fmt.Errorf("parse callback url: %w", err)
	}
	q := u.Query()
	if reason := q.Get("error"); reason != "" {
		return "", fmt.Errorf("authorization denied: %s", reason)
	}
	if want == "" || q.Get("state") != want {
		return "", ErrStateMismatch
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("callback url has no code parameter")
	}
	return code, nil
}

// AuthCodeURL is the consent page the user must visit.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the user's identity. Accounts
// without a verified email are rejected.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (Identity, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Identity{}, errors.New("authorization code is empty")
	}

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	info, err := p.fetchUserInfo(ctx, p.oauth.Client(ctx, token))
	if err != nil {
		return Identity{}, err
	}
	if !info.EmailVerified || info.Email == "" || info.Subject == "" {
		p.logger.Warn("login rejected", "user_id", info.Subject, "reason", "unverified email")
		return Identity{}, ErrUnverifiedEmail
	}

	name := info.GivenName
	if name == "" {
		name = info.Name
	}
	p.logger.Info("login succeeded", "user_id", info.Subject)
	return Identity{ID: info.Subject, Email: info.Email, Name: name}, nil
}

func (p *GoogleProvider) fetchUserInfo(ctx context.Context, client *http.Client) (userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, http.NoBody)
	if err != nil {
		return userInfo{}, fmt.Errorf("create userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return userInfo{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return userInfo{}, fmt.Errorf("user info request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return userInfo{}, fmt.Errorf("decode user info: %w", err)
	}
	return info, nil
}
