package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/goliatone/go-isogeo/core"
)

const defaultTokenLifetime = time.Hour

// toCoreToken converts an exchange result. Expiry comes from expires_in, then
// from the absolute expiry, then from the access token exp claim, then from
// the default lifetime.
func toCoreToken(tok *oauth2.Token, grantType string, issuedAt time.Time, fallback time.Duration) core.Token {
	issuedAt = issuedAt.UTC()
	var expiresAt time.Time
	switch {
	case tok.ExpiresIn > 0:
		expiresAt = issuedAt.Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		expiresAt = tok.Expiry.UTC()
	default:
		if exp, ok := jwtExpiry(tok.AccessToken); ok {
			expiresAt = exp
		} else {
			if fallback <= 0 {
				fallback = defaultTokenLifetime
			}
			expiresAt = issuedAt.Add(fallback)
		}
	}
	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int64(expiresAt.Sub(issuedAt) / time.Second)
	}
	return core.Token{
		AccessToken:  strings.TrimSpace(tok.AccessToken),
		TokenType:    firstNonEmpty(tok.TokenType, "Bearer"),
		RefreshToken: strings.TrimSpace(tok.RefreshToken),
		IssuedAt:     issuedAt,
		ExpiresIn:    expiresIn,
		ExpiresAt:    expiresAt,
		GrantType:    grantType,
	}
}

// jwtExpiry reads the exp claim without verifying the signature. The token is
// only inspected, never trusted.
func jwtExpiry(raw string) (time.Time, bool) {
	if strings.Count(raw, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time.UTC(), true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
