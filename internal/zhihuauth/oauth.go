// Package zhihuauth implements the OAuth authorization flow for the zhihu
// platform account used to send replies.
package zhihuauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"scholar-watch/contenthub/internal/database"
	"scholar-watch/contenthub/internal/models"
)

const (
	authURL  = "https://www.zhihu.com/oauth/authorize"
	tokenURL = "https://www.zhihu.com/oauth/token"

	// PlatformSlug is the platform whose auth rows this package manages.
	PlatformSlug = "zhihu"
)

// ErrNotConfigured is returned when client credentials are missing. This is
// a configuration failure and must surface before any exchange attempt.
var ErrNotConfigured = errors.New("zhihu oauth client credentials not configured")

// Config holds the zhihu OAuth application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether both credentials are present.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func (c Config) oauth(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"read:user"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL returns the zhihu authorization page URL for the given
// callback and state.
func (c Config) AuthCodeURL(redirectURI, state string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	return c.oauth(redirectURI).AuthCodeURL(state), nil
}

// Exchange trades an authorization code for a token.
func (c Config) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	token, err := c.oauth(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("zhihu token exchange failed: %w", err)
	}
	return token, nil
}

// EncodeState builds the OAuth state as nonce.base64url(redirectURI), so the
// callback can recover the redirect URI it was issued for.
func EncodeState(redirectURI string) (string, error) {
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(redirectURI))
	return hex.EncodeToString(nonce) + "." + encoded, nil
}

// DecodeState recovers the redirect URI from a state value.
func DecodeState(state string) (string, bool) {
	_, encoded, found := strings.Cut(state, ".")
	if !found {
		return "", false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

// SaveToken upserts the PlatformAuth row for the platform, marking it
// authorized as of now.
func SaveToken(ctx context.Context, db *database.DB, platformID int64, token *oauth2.Token) error {
	now := time.Now().UTC()
	var expiresAt any
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry.UTC()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO platform_auth (
			platform_id, status, access_token, refresh_token,
			expires_at, authorized_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform_id) DO UPDATE SET
			status = excluded.status,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			authorized_at = excluded.authorized_at,
			updated_at = excluded.updated_at`,
		platformID, models.AuthStatusAuthed, token.AccessToken, token.RefreshToken,
		expiresAt, now, now, now)
	if err != nil {
		return fmt.Errorf("failed to save platform auth: %w", err)
	}
	return nil
}
