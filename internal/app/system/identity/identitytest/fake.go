// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"sync"

	"github.com/dalemusser/grouphub/internal/app/system/identity"
	"github.com/dalemusser/grouphub/internal/domain/models"
)

// Fake is a concurrency-safe in-memory Provider. Tokens map directly to
// claims; unknown tokens fail verification.
type Fake struct {
	mu       sync.Mutex
	Sessions map[string]identity.Claims
	Users    map[string]identity.UserProfile
	Orgs     map[string]identity.OrgProfile
	Members  map[string][]models.OrgMember

	// Err, when set, is returned by every backend call (not VerifySession).
	Err error

	calls map[string]int
}

func New() *Fake {
	return &Fake{
		Sessions: map[string]identity.Claims{},
		Users:    map[string]identity.UserProfile{},
		Orgs:     map[string]identity.OrgProfile{},
		Members:  map[string][]models.OrgMember{},
		calls:    map[string]int{},
	}
}

// Calls returns how many times method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Fake) count(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *Fake) VerifySession(_ context.Context, token string) (identity.Claims, error) {
	f.count("VerifySession")
	if token == "" {
		return identity.Claims{}, identity.ErrNoSession
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Sessions[token]
	if !ok {
		return identity.Claims{}, identity.ErrInvalidToken
	}
	return c, nil
}

func (f *Fake) GetUser(_ context.Context, id string) (identity.UserProfile, error) {
	f.count("GetUser")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return identity.UserProfile{}, f.Err
	}
	u, ok := f.Users[id]
	if !ok {
		return identity.UserProfile{}, identity.ErrNotFound
	}
	return u, nil
}

func (f *Fake) GetOrganization(_ context.Context, id string) (identity.OrgProfile, error) {
	f.count("GetOrganization")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return identity.OrgProfile{}, f.Err
	}
	o, ok := f.Orgs[id]
	if !ok {
		return identity.OrgProfile{}, identity.ErrNotFound
	}
	return o, nil
}

func (f *Fake) ListOrganizationMembers(_ context.Context, orgID string) ([]models.OrgMember, error) {
	f.count("ListOrganizationMembers")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]models.OrgMember{}, f.Members[orgID]...), nil
}
