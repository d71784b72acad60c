package auth

import (
	"sync"

	"github.com/goliatone/go-isogeo/core"
)

// TokenStore holds the active token of one client. Readers always get a copy.
type TokenStore struct {
	mu       sync.RWMutex
	token    core.Token
	replaced int
}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

func (s *TokenStore) Get() core.Token {
	if s == nil {
		return core.Token{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Replace stores token unless the current one was issued later, so a slow
// exchange finishing last cannot overwrite a fresher token.
func (s *TokenStore) Replace(token core.Token) bool {
	if s == nil || token.IsZero() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.token.IsZero() && s.token.IssuedAt.After(token.IssuedAt) {
		return false
	}
	s.token = token
	s.replaced++
	return true
}

func (s *TokenStore) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = core.Token{}
}

// Snapshot returns the current token with the number of replacements so far.
func (s *TokenStore) Snapshot() (core.Token, int) {
	if s == nil {
		return core.Token{}, 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.replaced
}
