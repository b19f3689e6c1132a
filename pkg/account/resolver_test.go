package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/klokku/yearview/internal/metrics"
	"github.com/klokku/yearview/internal/utils"
	"github.com/klokku/yearview/pkg/google"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserId = 42

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type refresherStub struct {
	mu      sync.Mutex
	results map[string]google.RefreshedToken
	err     error
	calls   []string
}

func (s *refresherStub) Refresh(_ context.Context, refreshToken string) (google.RefreshedToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, refreshToken)
	if s.err != nil {
		return google.RefreshedToken{}, s.err
	}
	result, ok := s.results[refreshToken]
	if !ok {
		return google.RefreshedToken{}, &google.TokenRefreshError{StatusCode: 400, ErrorCode: "invalid_grant"}
	}
	return result, nil
}

func (s *refresherStub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type identityStub struct {
	emails map[string]string
}

func (s *identityStub) ResolveEmail(_ context.Context, accessToken string) (string, error) {
	email, ok := s.emails[accessToken]
	if !ok {
		return "", google.ErrIdentityUnavailable
	}
	return email, nil
}

func setupResolver(t *testing.T) (*Resolver, *RepositoryStub, *refresherStub, *identityStub) {
	repo := NewRepositoryStub()
	refresher := &refresherStub{results: map[string]google.RefreshedToken{}}
	identity := &identityStub{emails: map[string]string{}}
	resolver := NewResolver(repo, refresher, identity, utils.NewMockClock(testNow), metrics.New())
	return resolver, repo, refresher, identity
}

func unixAt(t time.Time) *int64 {
	s := t.Unix()
	return &s
}

func linked(accountId, accessToken, refreshToken string, expiresAt *int64) StoredCredential {
	return StoredCredential{
		UserId:            testUserId,
		Provider:          ProviderGoogle,
		ProviderAccountId: accountId,
		AccessToken:       accessToken,
		RefreshToken:      refreshToken,
		ExpiresAt:         expiresAt,
	}
}

func TestResolver_ResolveAccounts(t *testing.T) {
	t.Run("should return empty list for user without linked accounts", func(t *testing.T) {
		// given
		resolver, _, refresher, _ := setupResolver(t)

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		assert.NotNil(t, accounts)
		assert.Empty(t, accounts)
		assert.Empty(t, refresher.Calls())
	})

	t.Run("should refresh expired token once and persist it once", func(t *testing.T) {
		// given
		resolver, repo, refresher, identity := setupResolver(t)
		repo.Link(linked("acc1", "old-access", "refresh-1", unixAt(testNow.Add(-time.Hour))))
		newExpiry := testNow.Add(3599*time.Second + 500*time.Millisecond)
		refresher.results["refresh-1"] = google.RefreshedToken{AccessToken: "new-access", RefreshToken: "refresh-1", ExpiresAt: newExpiry}
		identity.emails["new-access"] = "one@example.com"

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		require.Len(t, accounts, 1)
		assert.Equal(t, "new-access", accounts[0].AccessToken)
		assert.Equal(t, "one@example.com", accounts[0].Email)
		assert.Equal(t, newExpiry.UnixMilli(), accounts[0].ExpiresAtMs())
		assert.Equal(t, []string{"refresh-1"}, refresher.Calls())
		writes := repo.Writes()
		require.Len(t, writes, 1)
		assert.Equal(t, "new-access", writes[0].AccessToken)
		assert.Equal(t, "refresh-1", writes[0].RefreshToken)
		assert.Equal(t, newExpiry.Unix(), *writes[0].ExpiresAt)
		assert.Equal(t, ProviderGoogle, writes[0].Provider)
		assert.Equal(t, "acc1", writes[0].ProviderAccountId)
	})

	t.Run("should refresh token expiring within the safety margin", func(t *testing.T) {
		// given
		resolver, repo, refresher, _ := setupResolver(t)
		repo.Link(linked("acc1", "old-access", "refresh-1", unixAt(testNow.Add(30*time.Second))))
		refresher.results["refresh-1"] = google.RefreshedToken{AccessToken: "new-access", RefreshToken: "refresh-1", ExpiresAt: testNow.Add(time.Hour)}

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		require.Len(t, accounts, 1)
		assert.Equal(t, "new-access", accounts[0].AccessToken)
		assert.Len(t, refresher.Calls(), 1)
	})

	t.Run("should refresh token with unknown expiry", func(t *testing.T) {
		// given
		resolver, repo, refresher, _ := setupResolver(t)
		repo.Link(linked("acc1", "old-access", "refresh-1", nil))
		refresher.results["refresh-1"] = google.RefreshedToken{AccessToken: "new-access", RefreshToken: "refresh-1", ExpiresAt: testNow.Add(time.Hour)}

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		require.Len(t, accounts, 1)
		assert.Equal(t, "new-access", accounts[0].AccessToken)
		assert.Len(t, repo.Writes(), 1)
	})

	t.Run("should not refresh fresh token", func(t *testing.T) {
		// given
		resolver, repo, refresher, _ := setupResolver(t)
		repo.Link(linked("acc1", "access-1", "refresh-1", unixAt(testNow.Add(10*time.Minute))))

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		require.Len(t, accounts, 1)
		assert.Equal(t, "access-1", accounts[0].AccessToken)
		assert.Empty(t, refresher.Calls())
		assert.Empty(t, repo.Writes())
	})

	t.Run("should pass stale token through when there is no refresh token", func(t *testing.T) {
		// given
		resolver, repo, refresher, _ := setupResolver(t)
		repo.Link(linked("acc1", "stale-access", "", unixAt(testNow.Add(-time.Hour))))

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		require.Len(t, accounts, 1)
		assert.Equal(t, "stale-access", accounts[0].AccessToken)
		assert.Empty(t, refresher.Calls())
		assert.Empty(t, repo.Writes())
	})

	t.Run("should keep stale token when refresh fails", func(t *testing.T) {
		// given
		resolver, repo, refresher, _ := setupResolver(t)
		stored := linked("acc1", "stale-access", "revoked", unixAt(testNow.Add(-time.Hour)))
		repo.Link(stored)

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		require.Len(t, accounts, 1)
		assert.Equal(t, "stale-access", accounts[0].AccessToken)
		assert.Equal(t, []string{"revoked"}, refresher.Calls())
		assert.Empty(t, repo.Writes())
		persisted, _ := repo.Get(ProviderGoogle, "acc1")
		assert.Equal(t, stored, persisted)
	})

	t.Run("should persist rotated refresh token", func(t *testing.T) {
		// given
		resolver, repo, refresher, _ := setupResolver(t)
		repo.Link(linked("acc1", "old-access", "refresh-1", unixAt(testNow.Add(-time.Minute))))
		refresher.results["refresh-1"] = google.RefreshedToken{AccessToken: "new-access", RefreshToken: "refresh-2", ExpiresAt: testNow.Add(time.Hour)}

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		require.Len(t, accounts, 1)
		assert.Equal(t, "refresh-2", accounts[0].RefreshToken)
		persisted, ok := repo.Get(ProviderGoogle, "acc1")
		require.True(t, ok)
		assert.Equal(t, "refresh-2", persisted.RefreshToken)
	})

	t.Run("should use refreshed token even when persisting it fails", func(t *testing.T) {
		// given
		resolver, repo, refresher, _ := setupResolver(t)
		repo.Link(linked("acc1", "old-access", "refresh-1", unixAt(testNow.Add(-time.Minute))))
		refresher.results["refresh-1"] = google.RefreshedToken{AccessToken: "new-access", RefreshToken: "refresh-1", ExpiresAt: testNow.Add(time.Hour)}
		repo.SetStoreError(ErrRepositoryTestError)

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		require.Len(t, accounts, 1)
		assert.Equal(t, "new-access", accounts[0].AccessToken)
		assert.Len(t, repo.Writes(), 1)
	})

	t.Run("should keep account with unknown identity", func(t *testing.T) {
		// given
		resolver, repo, _, _ := setupResolver(t)
		repo.Link(linked("acc1", "access-1", "", unixAt(testNow.Add(time.Hour))))

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		require.Len(t, accounts, 1)
		assert.Empty(t, accounts[0].Email)
	})

	t.Run("should drop accounts without any access token", func(t *testing.T) {
		// given
		resolver, repo, _, _ := setupResolver(t)
		repo.Link(linked("acc1", "", "", nil))
		repo.Link(linked("acc2", "", "revoked", nil))
		repo.Link(linked("acc3", "access-3", "", unixAt(testNow.Add(time.Hour))))

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		require.Len(t, accounts, 1)
		assert.Equal(t, "acc3", accounts[0].AccountId)
	})

	t.Run("should resolve accounts independently", func(t *testing.T) {
		// given
		resolver, repo, refresher, identity := setupResolver(t)
		repo.Link(linked("acc1", "stale-1", "revoked", unixAt(testNow.Add(-time.Hour))))
		repo.Link(linked("acc2", "old-2", "refresh-2", unixAt(testNow.Add(-time.Hour))))
		repo.Link(linked("acc3", "fresh-3", "refresh-3", unixAt(testNow.Add(time.Hour))))
		repo.Link(StoredCredential{UserId: 7, Provider: ProviderGoogle, ProviderAccountId: "other-user", AccessToken: "x"})
		refresher.results["refresh-2"] = google.RefreshedToken{AccessToken: "new-2", RefreshToken: "refresh-2", ExpiresAt: testNow.Add(time.Hour)}
		identity.emails["new-2"] = "two@example.com"
		identity.emails["fresh-3"] = "three@example.com"

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		require.Len(t, accounts, 3)
		assert.Equal(t, ExternalAccount{AccountId: "acc1", AccessToken: "stale-1", RefreshToken: "revoked", AccessTokenExpiresAt: accounts[0].AccessTokenExpiresAt}, accounts[0])
		assert.Equal(t, "new-2", accounts[1].AccessToken)
		assert.Equal(t, "two@example.com", accounts[1].Email)
		assert.Equal(t, "fresh-3", accounts[2].AccessToken)
		assert.Equal(t, "three@example.com", accounts[2].Email)
		assert.ElementsMatch(t, []string{"revoked", "refresh-2"}, refresher.Calls())
		assert.Len(t, repo.Writes(), 1)
	})

	t.Run("should return empty list when accounts cannot be loaded", func(t *testing.T) {
		// given
		resolver, repo, _, _ := setupResolver(t)
		repo.SetFindError(errors.New("connection refused"))

		// when
		accounts := resolver.ResolveAccounts(context.Background(), testUserId)

		// then
		assert.NotNil(t, accounts)
		assert.Empty(t, accounts)
	})
}

func TestExternalAccount_NeedsRefresh(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		v := testNow.Add(d)
		return &v
	}
	assert.True(t, ExternalAccount{}.NeedsRefresh(testNow))
	assert.True(t, ExternalAccount{AccessTokenExpiresAt: at(-time.Second)}.NeedsRefresh(testNow))
	assert.True(t, ExternalAccount{AccessTokenExpiresAt: at(59 * time.Second)}.NeedsRefresh(testNow))
	assert.False(t, ExternalAccount{AccessTokenExpiresAt: at(60 * time.Second)}.NeedsRefresh(testNow))
	assert.False(t, ExternalAccount{AccessTokenExpiresAt: at(time.Hour)}.NeedsRefresh(testNow))
}
