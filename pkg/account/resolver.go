package account

import (
	"context"
	"errors"

	"github.com/klokku/yearview/internal/metrics"
	"github.com/klokku/yearview/internal/utils"
	"github.com/klokku/yearview/pkg/google"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (google.RefreshedToken, error)
}

type IdentityResolver interface {
	ResolveEmail(ctx context.Context, accessToken string) (string, error)
}

// Resolver turns a user's stored credentials into ready-to-use accounts. Every account
// is resolved independently: refresh, persistence and identity failures degrade that
// one account and never fail the call.
type Resolver struct {
	repo      Repository
	refresher TokenRefresher
	identity  IdentityResolver
	clock     utils.Clock
	metrics   *metrics.Metrics
}

func NewResolver(repo Repository, refresher TokenRefresher, identity IdentityResolver, clock utils.Clock, m *metrics.Metrics) *Resolver {
	return &Resolver{
		repo:      repo,
		refresher: refresher,
		identity:  identity,
		clock:     clock,
		metrics:   m,
	}
}

func (r *Resolver) ResolveAccounts(ctx context.Context, userId int) []ExternalAccount {
	credentials, err := r.repo.FindByUser(ctx, userId, ProviderGoogle)
	if err != nil {
		log.Errorf("unable to load linked accounts for user %d: %v", userId, err)
		return []ExternalAccount{}
	}

	resolved := make([]*ExternalAccount, len(credentials))
	var group errgroup.Group
	for i, credential := range credentials {
		group.Go(func() error {
			if acc, ok := r.resolve(ctx, credential); ok {
				resolved[i] = &acc
			}
			return nil
		})
	}
	_ = group.Wait()

	accounts := make([]ExternalAccount, 0, len(resolved))
	for _, acc := range resolved {
		if acc != nil {
			accounts = append(accounts, *acc)
		}
	}
	log.Debugf("resolved %d of %d linked accounts for user %d", len(accounts), len(credentials), userId)
	return accounts
}

func (r *Resolver) resolve(ctx context.Context, credential StoredCredential) (ExternalAccount, bool) {
	acc := credential.toAccount()

	if acc.NeedsRefresh(r.clock.Now()) {
		if acc.RefreshToken == "" {
			r.metrics.TokenRefresh(metrics.ResultSkipped)
			log.Debugf("account %s has a stale token and no refresh token", acc.AccountId)
		} else {
			acc = r.refresh(ctx, credential, acc)
		}
	}

	if acc.AccessToken == "" {
		log.Debugf("account %s has no usable access token, skipping", acc.AccountId)
		return ExternalAccount{}, false
	}

	email, err := r.identity.ResolveEmail(ctx, acc.AccessToken)
	if err != nil {
		log.Debugf("identity of account %s is unknown: %v", acc.AccountId, err)
	} else {
		acc.Email = email
	}
	return acc, true
}

// refresh returns acc with renewed tokens, or acc unchanged when the exchange fails.
func (r *Resolver) refresh(ctx context.Context, credential StoredCredential, acc ExternalAccount) ExternalAccount {
	refreshed, err := r.refresher.Refresh(ctx, acc.RefreshToken)
	if err != nil {
		r.metrics.TokenRefresh(metrics.ResultFailure)
		var refreshErr *google.TokenRefreshError
		if errors.As(err, &refreshErr) && len(refreshErr.Payload) > 0 {
			log.Warnf("token refresh for account %s failed, keeping stale token: %v (%s)", acc.AccountId, err, refreshErr.Payload)
		} else {
			log.Warnf("token refresh for account %s failed, keeping stale token: %v", acc.AccountId, err)
		}
		return acc
	}
	r.metrics.TokenRefresh(metrics.ResultSuccess)

	expiresAt := refreshed.ExpiresAt
	acc.AccessToken = refreshed.AccessToken
	acc.RefreshToken = refreshed.RefreshToken
	acc.AccessTokenExpiresAt = &expiresAt

	expiresAtSeconds := expiresAt.Unix()
	credential.AccessToken = refreshed.AccessToken
	credential.RefreshToken = refreshed.RefreshToken
	credential.ExpiresAt = &expiresAtSeconds

	// A rotated refresh token has already invalidated the old one, so the write must
	// not be abandoned when the request goes away.
	if err := r.repo.StoreTokens(context.WithoutCancel(ctx), credential); err != nil {
		if refreshed.Rotated() {
			log.Errorf("rotated refresh token for account %s could not be persisted: %v", acc.AccountId, err)
		} else {
			log.Errorf("refreshed token for account %s could not be persisted: %v", acc.AccountId, err)
		}
	}
	return acc
}
