package account

import "time"

const ProviderGoogle = "google"

// RefreshMargin is how long before its expiry an access token is already treated as stale.
const RefreshMargin = 60 * time.Second

// ExternalAccount is a request-scoped snapshot of a linked account's credentials.
type ExternalAccount struct {
	AccountId            string
	Email                string
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt *time.Time
}

// NeedsRefresh reports whether the access token is expired, about to expire within
// RefreshMargin, or has no known expiry.
func (a ExternalAccount) NeedsRefresh(now time.Time) bool {
	if a.AccessTokenExpiresAt == nil {
		return true
	}
	return a.AccessTokenExpiresAt.Before(now.Add(RefreshMargin))
}

// ExpiresAtMs returns the expiry as epoch milliseconds, or 0 when unknown.
func (a ExternalAccount) ExpiresAtMs() int64 {
	if a.AccessTokenExpiresAt == nil {
		return 0
	}
	return a.AccessTokenExpiresAt.UnixMilli()
}

// StoredCredential is the persisted token row of one linked account.
type StoredCredential struct {
	UserId            int
	Provider          string
	ProviderAccountId string
	AccessToken       string
	RefreshToken      string
	// ExpiresAt is in epoch seconds; nil when unknown.
	ExpiresAt *int64
}

func (c StoredCredential) toAccount() ExternalAccount {
	acc := ExternalAccount{
		AccountId:    c.ProviderAccountId,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
	}
	if c.ExpiresAt != nil {
		expiresAt := time.Unix(*c.ExpiresAt, 0)
		acc.AccessTokenExpiresAt = &expiresAt
	}
	return acc
}
