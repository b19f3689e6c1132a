package account

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type credentialKey struct {
	provider          string
	providerAccountId string
}

type RepositoryStub struct {
	mu          sync.RWMutex
	credentials map[credentialKey]StoredCredential
	writes      []StoredCredential
	findErr     error
	storeErr    error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{credentials: make(map[credentialKey]StoredCredential)}
}

func (r *RepositoryStub) FindByUser(_ context.Context, userId int, provider string) ([]StoredCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.findErr != nil {
		return nil, r.findErr
	}
	result := make([]StoredCredential, 0)
	for _, c := range r.credentials {
		if c.UserId == userId && c.Provider == provider {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ProviderAccountId < result[j].ProviderAccountId
	})
	return result, nil
}

func (r *RepositoryStub) StoreTokens(_ context.Context, credential StoredCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.writes = append(r.writes, credential)
	if r.storeErr != nil {
		return r.storeErr
	}
	r.credentials[credentialKey{credential.Provider, credential.ProviderAccountId}] = credential
	return nil
}

// Helper methods for test setup

// Link stores a credential without recording it as a write.
func (r *RepositoryStub) Link(credential StoredCredential) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credentials[credentialKey{credential.Provider, credential.ProviderAccountId}] = credential
}

func (r *RepositoryStub) Get(provider, providerAccountId string) (StoredCredential, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.credentials[credentialKey{provider, providerAccountId}]
	return c, ok
}

func (r *RepositoryStub) Writes() []StoredCredential {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]StoredCredential, len(r.writes))
	copy(result, r.writes)
	return result
}

func (r *RepositoryStub) SetFindError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findErr = err
}

func (r *RepositoryStub) SetStoreError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeErr = err
}

var ErrRepositoryTestError = errors.New("repository test error")
