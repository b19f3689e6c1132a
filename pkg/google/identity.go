package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/klokku/yearview/internal/config"
	"github.com/klokku/yearview/internal/metrics"
	log "github.com/sirupsen/logrus"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	identitySourceOpenId = "openid"
	identitySourceOAuth2 = "oauth2_v2"
)

// ErrIdentityUnavailable is returned when no identity endpoint yielded an email.
var ErrIdentityUnavailable = errors.New("account identity unavailable")

type openIdUserInfo struct {
	Email string `json:"email"`
}

// IdentityResolver looks up the email behind an access token. The OpenID Connect
// userinfo endpoint is tried first, then the oauth2/v2 userinfo API.
type IdentityResolver struct {
	openIdUserInfoUrl string
	apiBaseUrl        string
	httpClient        *http.Client
	metrics           *metrics.Metrics
}

func NewIdentityResolver(cfg config.Google, httpClient *http.Client, m *metrics.Metrics) *IdentityResolver {
	return &IdentityResolver{
		openIdUserInfoUrl: cfg.OpenIdUserInfoUrl,
		apiBaseUrl:        apiBase(cfg.ApiBaseUrl),
		httpClient:        httpClient,
		metrics:           m,
	}
}

func (r *IdentityResolver) ResolveEmail(ctx context.Context, accessToken string) (string, error) {
	client := bearerClient(ctx, r.httpClient, accessToken)

	email, err := r.openIdEmail(ctx, client)
	if err == nil {
		r.metrics.IdentityResolution(identitySourceOpenId, metrics.ResultSuccess)
		return email, nil
	}
	r.metrics.IdentityResolution(identitySourceOpenId, metrics.ResultFailure)
	log.Debugf("OpenID userinfo lookup failed, falling back to oauth2 userinfo: %v", err)

	email, err = r.oauth2Email(ctx, client)
	if err == nil {
		r.metrics.IdentityResolution(identitySourceOAuth2, metrics.ResultSuccess)
		return email, nil
	}
	r.metrics.IdentityResolution(identitySourceOAuth2, metrics.ResultFailure)
	log.Debugf("oauth2 userinfo lookup failed: %v", err)

	return "", ErrIdentityUnavailable
}

func (r *IdentityResolver) openIdEmail(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.openIdUserInfoUrl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo endpoint returned non-OK status: %d", resp.StatusCode)
	}

	var info openIdUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	if info.Email == "" {
		return "", errors.New("userinfo response has no email")
	}
	return info.Email, nil
}

func (r *IdentityResolver) oauth2Email(ctx context.Context, client *http.Client) (string, error) {
	service, err := goauth2.NewService(ctx, option.WithHTTPClient(client), option.WithEndpoint(r.apiBaseUrl))
	if err != nil {
		return "", fmt.Errorf("unable to create oauth2 client: %w", err)
	}
	info, err := service.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve userinfo: %w", err)
	}
	if info.Email == "" {
		return "", errors.New("userinfo response has no email")
	}
	return info.Email, nil
}
