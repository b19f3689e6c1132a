package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/klokku/yearview/internal/config"
	"github.com/klokku/yearview/internal/utils"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// DefaultTokenLifetime is assumed when the token endpoint omits expires_in.
const DefaultTokenLifetime = time.Hour

// OAuthConfig carries the process-wide client credentials used for the refresh grant.
type OAuthConfig struct {
	ClientId     string
	ClientSecret string
	TokenUrl     string
}

func OAuthConfigFrom(cfg config.Google) OAuthConfig {
	return OAuthConfig{
		ClientId:     cfg.ClientId,
		ClientSecret: cfg.ClientSecret,
		TokenUrl:     cfg.TokenUrl,
	}
}

type RefreshedToken struct {
	AccessToken string
	// RefreshToken is the refresh token of record after the exchange. It differs from
	// the one sent when the provider rotated it.
	RefreshToken string
	ExpiresAt    time.Time
	rotated      bool
}

func (t RefreshedToken) Rotated() bool {
	return t.rotated
}

type TokenRefreshError struct {
	StatusCode int
	ErrorCode  string
	Payload    []byte
	Err        error
}

func (e *TokenRefreshError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("token refresh failed (status %d): %s", e.StatusCode, e.ErrorCode)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("token refresh failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *TokenRefreshError) Unwrap() error {
	return e.Err
}

type TokenRefresher struct {
	oauthConfig *oauth2.Config
	httpClient  *http.Client
	clock       utils.Clock
}

// NewTokenRefresher builds a refresher for the given client credentials. A nil httpClient
// means http.DefaultClient.
func NewTokenRefresher(cfg OAuthConfig, httpClient *http.Client, clock utils.Clock) *TokenRefresher {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientId,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenUrl,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return &TokenRefresher{oauthConfig: oauthConfig, httpClient: httpClient, clock: clock}
}

// Refresh performs a single refresh_token grant. It never retries.
func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (RefreshedToken, error) {
	if refreshToken == "" {
		return RefreshedToken{}, &TokenRefreshError{Err: errors.New("refresh token is empty")}
	}
	ctx = withHTTPClient(ctx, r.httpClient)

	token, err := r.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		refreshErr := &TokenRefreshError{Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			refreshErr.ErrorCode = retrieveErr.ErrorCode
			refreshErr.Payload = retrieveErr.Body
			if retrieveErr.Response != nil {
				refreshErr.StatusCode = retrieveErr.Response.StatusCode
			}
		}
		return RefreshedToken{}, refreshErr
	}

	now := r.clock.Now()
	expiresAt := now.Add(DefaultTokenLifetime)
	if token.ExpiresIn > 0 {
		expiresAt = now.Add(time.Duration(token.ExpiresIn) * time.Second)
	} else if !token.Expiry.IsZero() {
		expiresAt = token.Expiry
	}

	newRefreshToken := refreshToken
	if token.RefreshToken != "" {
		newRefreshToken = token.RefreshToken
	}
	rotated := newRefreshToken != refreshToken
	if rotated {
		log.Debug("provider rotated the refresh token")
	}

	return RefreshedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: newRefreshToken,
		ExpiresAt:    expiresAt,
		rotated:      rotated,
	}, nil
}

func withHTTPClient(ctx context.Context, httpClient *http.Client) context.Context {
	if httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, httpClient)
}

// bearerClient returns an HTTP client that sends accessToken as a bearer credential
// and never tries to renew it.
func bearerClient(ctx context.Context, base *http.Client, accessToken string) *http.Client {
	return oauth2.NewClient(withHTTPClient(ctx, base), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}
