package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-isogeo/core"
)

const (
	testClientID     = "go-isogeo-test-1a2b3c4d5e6f47a8b9c0d1e2f3a4b5c6"
	testClientSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type tokenServer struct {
	*httptest.Server
	mu       sync.Mutex
	grants   map[string]int
	calls    atomic.Int32
	respond  func(grantType string, w http.ResponseWriter, r *http.Request) bool
	issued   atomic.Int32
	lifetime int
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{grants: map[string]int{}, lifetime: 3600}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		grantType := r.PostForm.Get("grant_type")
		ts.mu.Lock()
		ts.grants[grantType]++
		ts.mu.Unlock()

		if ts.respond != nil && ts.respond(grantType, w, r) {
			return
		}
		clientID, secret, ok := r.BasicAuth()
		if !ok || clientID != testClientID || secret != testClientSecret {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"client authentication failed"}`))
			return
		}
		n := ts.issued.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-" + grantType + "-" + string(rune('0'+n)),
			"token_type":    "bearer",
			"expires_in":    ts.lifetime,
			"refresh_token": "refresh-" + string(rune('0'+n)),
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) grantCount(grantType string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.grants[grantType]
}

func testCredentials(tokenURL string, mode core.AuthMode) core.Credentials {
	return core.Credentials{
		AuthMode:     mode,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Platform:     core.PlatformCustom,
		URLs:         core.PlatformURLs{API: "https://api.example.test", Token: tokenURL},
		Lang:         "fr",
		VerifyTLS:    true,
	}
}

func TestAuthenticate_ClientCredentialsGrant(t *testing.T) {
	server := newTokenServer(t)
	clock := newTestClock()
	authenticator := NewAuthenticator(AuthenticatorConfig{
		Credentials: testCredentials(server.URL, core.AuthModeGroup),
		HTTPClient:  server.Client(),
		Now:         clock.Now,
	})

	token, err := authenticator.Authenticate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-client_credentials-1", token.AccessToken)
	require.Equal(t, core.GrantClientCredentials, token.GrantType)
	require.Equal(t, 1, server.grantCount("client_credentials"))
	require.True(t, token.ExpiresAt.After(clock.Now().Add(DefaultSafetyMargin)))
	require.Equal(t, token, authenticator.Store().Get())
}

func TestEnsureValid_ReturnsStoredTokenWithoutNetwork(t *testing.T) {
	server := newTokenServer(t)
	authenticator := NewAuthenticator(AuthenticatorConfig{
		Credentials: testCredentials(server.URL, core.AuthModeGroup),
		HTTPClient:  server.Client(),
	})

	first, err := authenticator.EnsureValid(context.Background())
	require.NoError(t, err)
	second, err := authenticator.EnsureValid(context.Background())
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, int32(1), server.calls.Load())
}

func TestAuthenticate_RejectsBadSecretBeforeNetwork(t *testing.T) {
	server := newTokenServer(t)
	creds := testCredentials(server.URL, core.AuthModeGroup)
	creds.ClientSecret = "short"
	authenticator := NewAuthenticator(AuthenticatorConfig{Credentials: creds, HTTPClient: server.Client()})

	_, err := authenticator.Authenticate(context.Background())
	require.Error(t, err)
	require.True(t, core.IsConfigurationError(err))
	require.Equal(t, int32(0), server.calls.Load())
}

func TestAuthenticate_UserLegacyUsesPasswordGrant(t *testing.T) {
	server := newTokenServer(t)
	var username, password string
	server.respond = func(grantType string, _ http.ResponseWriter, r *http.Request) bool {
		if grantType == "password" {
			username = r.PostForm.Get("username")
			password = r.PostForm.Get("password")
		}
		return false
	}
	authenticator := NewAuthenticator(AuthenticatorConfig{
		Credentials: testCredentials(server.URL, core.AuthModeUserLegacy),
		HTTPClient:  server.Client(),
	})

	_, err := authenticator.Authenticate(context.Background())
	require.True(t, core.IsConfigurationError(err))
	require.Equal(t, int32(0), server.calls.Load())

	token, err := authenticator.Connect(context.Background(), "jane@example.test", "s3cret")
	require.NoError(t, err)
	require.Equal(t, core.GrantPassword, token.GrantType)
	require.Equal(t, 1, server.grantCount("password"))
	require.Equal(t, "jane@example.test", username)
	require.Equal(t, "s3cret", password)
}

func TestEnsureValid_PrefersRefreshTokenNearExpiry(t *testing.T) {
	server := newTokenServer(t)
	server.lifetime = 60
	clock := newTestClock()
	authenticator := NewAuthenticator(AuthenticatorConfig{
		Credentials: testCredentials(server.URL, core.AuthModeGroup),
		HTTPClient:  server.Client(),
		Now:         clock.Now,
	})

	first, err := authenticator.Authenticate(context.Background())
	require.NoError(t, err)
	require.True(t, first.HasRefreshToken())

	clock.Advance(45 * time.Second)
	server.lifetime = 3600
	refreshed, err := authenticator.EnsureValid(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, server.grantCount("client_credentials"))
	require.Equal(t, 1, server.grantCount("refresh_token"))
	require.Equal(t, core.GrantRefreshToken, refreshed.GrantType)
	require.NotEqual(t, first.AccessToken, refreshed.AccessToken)
	require.True(t, refreshed.Valid(clock.Now(), DefaultSafetyMargin))
}

func TestEnsureValid_FallsBackToFullGrantWhenRefreshRejected(t *testing.T) {
	server := newTokenServer(t)
	server.lifetime = 10
	server.respond = func(grantType string, w http.ResponseWriter, _ *http.Request) bool {
		if grantType != "refresh_token" {
			return false
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))
		return true
	}
	clock := newTestClock()
	authenticator := NewAuthenticator(AuthenticatorConfig{
		Credentials: testCredentials(server.URL, core.AuthModeGroup),
		HTTPClient:  server.Client(),
		Now:         clock.Now,
	})

	_, err := authenticator.Authenticate(context.Background())
	require.NoError(t, err)
	server.lifetime = 3600
	clock.Advance(6 * time.Second)

	token, err := authenticator.EnsureValid(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, server.grantCount("refresh_token"))
	require.Equal(t, 2, server.grantCount("client_credentials"))
	require.Equal(t, core.GrantClientCredentials, token.GrantType)
}

func TestEnsureValid_ShortLivedTokenUsesHalfLifetimeMargin(t *testing.T) {
	server := newTokenServer(t)
	server.lifetime = 20
	clock := newTestClock()
	authenticator := NewAuthenticator(AuthenticatorConfig{
		Credentials: testCredentials(server.URL, core.AuthModeGroup),
		HTTPClient:  server.Client(),
		Now:         clock.Now,
	})

	first, err := authenticator.EnsureValid(context.Background())
	require.NoError(t, err)
	clock.Advance(9 * time.Second)
	second, err := authenticator.EnsureValid(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.AccessToken, second.AccessToken)
	require.Equal(t, int32(1), server.calls.Load())

	clock.Advance(2 * time.Second)
	third, err := authenticator.EnsureValid(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, third.AccessToken)
	require.Equal(t, 1, server.grantCount("refresh_token"))
}

func TestAuthenticate_MissingAccessTokenIsAuthError(t *testing.T) {
	server := newTokenServer(t)
	server.respond = func(_ string, w http.ResponseWriter, _ *http.Request) bool {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"bearer","expires_in":3600}`))
		return true
	}
	authenticator := NewAuthenticator(AuthenticatorConfig{
		Credentials: testCredentials(server.URL, core.AuthModeGroup),
		HTTPClient:  server.Client(),
	})

	_, err := authenticator.Authenticate(context.Background())
	require.Error(t, err)
	require.True(t, core.IsAuthError(err))
	detail, ok := core.TokenExchangeDetails(err)
	require.True(t, ok)
	require.Equal(t, "missing_access_token", detail.Code)
	require.True(t, authenticator.Store().Get().IsZero())
}

func TestAuthenticate_RejectedCredentialsReturnAuthError(t *testing.T) {
	server := newTokenServer(t)
	creds := testCredentials(server.URL, core.AuthModeGroup)
	creds.ClientSecret = strings.Repeat("z", core.ClientSecretLength)
	authenticator := NewAuthenticator(AuthenticatorConfig{Credentials: creds, HTTPClient: server.Client()})

	_, err := authenticator.Authenticate(context.Background())
	require.Error(t, err)
	require.True(t, core.IsAuthError(err))

	detail, ok := core.TokenExchangeDetails(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, detail.StatusCode)
	require.Equal(t, "invalid_client", detail.Code)
	require.Equal(t, "client authentication failed", detail.Description)
}

func TestAuthenticate_UnreachableEndpointReturnsTransportError(t *testing.T) {
	server := newTokenServer(t)
	url := server.URL
	server.Close()

	authenticator := NewAuthenticator(AuthenticatorConfig{Credentials: testCredentials(url, core.AuthModeGroup)})
	_, err := authenticator.Authenticate(context.Background())
	require.Error(t, err)
	require.True(t, core.IsTransportError(err))
}

func TestEnsureValid_ConcurrentCallersShareOneExchange(t *testing.T) {
	server := newTokenServer(t)
	authenticator := NewAuthenticator(AuthenticatorConfig{
		Credentials: testCredentials(server.URL, core.AuthModeGroup),
		HTTPClient:  server.Client(),
	})

	var wg sync.WaitGroup
	tokens := make([]core.Token, 16)
	errs := make([]error, len(tokens))
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = authenticator.EnsureValid(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range tokens {
		require.NoError(t, errs[i])
		require.Equal(t, tokens[0].AccessToken, tokens[i].AccessToken)
	}
	require.Equal(t, int32(1), server.calls.Load())
}

func TestAuthenticate_ExpiryFromJWTClaimWhenExpiresInMissing(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second).UTC()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": testClientID,
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	server := newTokenServer(t)
	server.respond = func(_ string, w http.ResponseWriter, _ *http.Request) bool {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": signed,
			"token_type":   "bearer",
		})
		return true
	}
	authenticator := NewAuthenticator(AuthenticatorConfig{
		Credentials: testCredentials(server.URL, core.AuthModeGroup),
		HTTPClient:  server.Client(),
	})

	token, err := authenticator.Authenticate(context.Background())
	require.NoError(t, err)
	require.True(t, exp.Equal(token.ExpiresAt), "expected %s, got %s", exp, token.ExpiresAt)
}

func TestTokenStore_KeepsFresherToken(t *testing.T) {
	store := NewTokenStore()
	now := time.Now().UTC()
	fresh := core.Token{AccessToken: "fresh", IssuedAt: now}
	stale := core.Token{AccessToken: "stale", IssuedAt: now.Add(-time.Minute)}

	require.True(t, store.Replace(fresh))
	require.False(t, store.Replace(stale))
	require.Equal(t, "fresh", store.Get().AccessToken)

	_, replaced := store.Snapshot()
	require.Equal(t, 1, replaced)

	store.Clear()
	require.True(t, store.Get().IsZero())
}
