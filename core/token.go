package core

import (
	"strings"
	"time"
)

const (
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
)

// Token is a bearer token issued by the identity endpoint. Tokens are
// replaced on refresh, never mutated.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	IssuedAt     time.Time
	ExpiresIn    int64
	ExpiresAt    time.Time
	GrantType    string
}

func (t Token) IsZero() bool {
	return strings.TrimSpace(t.AccessToken) == ""
}

// Valid reports whether the token stays usable for at least margin after now.
func (t Token) Valid(now time.Time, margin time.Duration) bool {
	if t.IsZero() || t.ExpiresAt.IsZero() {
		return false
	}
	if margin < 0 {
		margin = 0
	}
	return now.UTC().Before(t.ExpiresAt.UTC().Add(-margin))
}

func (t Token) HasRefreshToken() bool {
	return strings.TrimSpace(t.RefreshToken) != ""
}

func (t Token) AuthorizationHeader() string {
	tokenType := strings.TrimSpace(t.TokenType)
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	return tokenType + " " + strings.TrimSpace(t.AccessToken)
}
