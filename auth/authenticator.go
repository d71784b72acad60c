package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/goliatone/go-isogeo/core"
)

const DefaultSafetyMargin = 30 * time.Second

type AuthenticatorConfig struct {
	Credentials core.Credentials
	// HTTPClient carries the transport used for grant exchanges, normally the
	// gateway client so the TLS fallback also covers the identity endpoint.
	HTTPClient      *http.Client
	SafetyMargin    time.Duration
	DefaultLifetime time.Duration
	Store           *TokenStore
	Now             func() time.Time
	Logger          core.Logger
	LoggerProvider  core.LoggerProvider
}

// Authenticator owns the token lifecycle of one client instance.
type Authenticator struct {
	creds    core.Credentials
	client   *http.Client
	margin   time.Duration
	lifetime time.Duration
	store    *TokenStore
	now      func() time.Time
	logger   core.Logger

	mu       sync.Mutex
	username string
	password string
}

func NewAuthenticator(cfg AuthenticatorConfig) *Authenticator {
	margin := cfg.SafetyMargin
	if margin <= 0 {
		margin = DefaultSafetyMargin
	}
	lifetime := cfg.DefaultLifetime
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	store := cfg.Store
	if store == nil {
		store = NewTokenStore()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Authenticator{
		creds:    cfg.Credentials,
		client:   cfg.HTTPClient,
		margin:   margin,
		lifetime: lifetime,
		store:    store,
		now:      now,
		logger:   core.ResolveLogger("isogeo.auth", cfg.LoggerProvider, cfg.Logger),
		username: cfg.Credentials.Username,
		password: cfg.Credentials.Password,
	}
}

func (a *Authenticator) Store() *TokenStore {
	return a.store
}

// Authenticate performs a full grant exchange and replaces the stored token.
func (a *Authenticator) Authenticate(ctx context.Context) (core.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authenticateLocked(ctx)
}

// Connect authenticates explicitly. For the user_legacy mode, non-empty
// username and password replace the configured ones for later exchanges.
func (a *Authenticator) Connect(ctx context.Context, username, password string) (core.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.creds.AuthMode == core.AuthModeUserLegacy {
		if strings.TrimSpace(username) != "" {
			a.username = strings.TrimSpace(username)
		}
		if password != "" {
			a.password = password
		}
	} else if username != "" || password != "" {
		a.logger.Debug("username and password ignored for group authentication")
	}
	return a.authenticateLocked(ctx)
}

// EnsureValid returns the stored token while it outlives the safety margin,
// or half its lifetime for tokens issued shorter than the margin.
// Otherwise it refreshes, preferring the refresh token over a full grant.
// The whole check and replace sequence runs under the authenticator lock.
func (a *Authenticator) EnsureValid(ctx context.Context) (core.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current := a.store.Get()
	if current.Valid(a.now(), a.marginFor(current)) {
		return current, nil
	}
	if !current.HasRefreshToken() {
		return a.authenticateLocked(ctx)
	}

	refreshed, err := a.refreshLocked(ctx, current)
	if err == nil {
		return refreshed, nil
	}
	if !core.IsAuthError(err) {
		return core.Token{}, err
	}
	a.logger.Warn("refresh token rejected, falling back to a full grant", "error", err)
	return a.authenticateLocked(ctx)
}

func (a *Authenticator) Invalidate() {
	a.store.Clear()
}

func (a *Authenticator) authenticateLocked(ctx context.Context) (core.Token, error) {
	if err := core.ValidateClientSecret(a.creds.ClientSecret); err != nil {
		return core.Token{}, err
	}

	var (
		tok       *oauth2.Token
		err       error
		grantType string
	)
	issuedAt := a.now()
	exchangeCtx := a.exchangeContext(ctx)

	switch a.creds.AuthMode {
	case core.AuthModeGroup, "":
		grantType = core.GrantClientCredentials
		cfg := clientcredentials.Config{
			ClientID:     a.creds.ClientID,
			ClientSecret: a.creds.ClientSecret,
			TokenURL:     a.creds.URLs.Token,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		tok, err = cfg.Token(exchangeCtx)
	case core.AuthModeUserLegacy:
		grantType = core.GrantPassword
		if a.username == "" || a.password == "" {
			return core.Token{}, core.NewConfigurationError(
				"auth: username and password are required for user_legacy authentication",
				map[string]any{"auth_mode": string(a.creds.AuthMode)},
			)
		}
		tok, err = a.oauthConfig().PasswordCredentialsToken(exchangeCtx, a.username, a.password)
	default:
		return core.Token{}, core.NewConfigurationError(
			"auth: unsupported authentication mode",
			map[string]any{"auth_mode": string(a.creds.AuthMode)},
		)
	}
	if err != nil {
		return core.Token{}, exchangeError(err, grantType, a.creds.URLs.Token)
	}
	if tok == nil || strings.TrimSpace(tok.AccessToken) == "" {
		return core.Token{}, missingAccessTokenError(grantType)
	}
	return a.storeLocked(tok, grantType, issuedAt), nil
}

func (a *Authenticator) refreshLocked(ctx context.Context, current core.Token) (core.Token, error) {
	if err := core.ValidateClientSecret(a.creds.ClientSecret); err != nil {
		return core.Token{}, err
	}
	issuedAt := a.now()
	source := a.oauthConfig().TokenSource(a.exchangeContext(ctx), &oauth2.Token{
		RefreshToken: current.RefreshToken,
	})
	tok, err := source.Token()
	if err != nil {
		return core.Token{}, exchangeError(err, core.GrantRefreshToken, a.creds.URLs.Token)
	}
	if tok == nil || strings.TrimSpace(tok.AccessToken) == "" {
		return core.Token{}, missingAccessTokenError(core.GrantRefreshToken)
	}
	return a.storeLocked(tok, core.GrantRefreshToken, issuedAt), nil
}

func (a *Authenticator) storeLocked(tok *oauth2.Token, grantType string, issuedAt time.Time) core.Token {
	token := toCoreToken(tok, grantType, issuedAt, a.lifetime)
	if !a.store.Replace(token) {
		a.logger.Debug("exchange result older than stored token, keeping stored token", "grant_type", grantType)
		return a.store.Get()
	}
	if margin := a.marginFor(token); margin != a.margin {
		a.logger.Warn("issued token lifetime is shorter than the safety margin, using half its lifetime",
			"expires_in", token.ExpiresIn,
			"safety_margin_s", int64(a.margin/time.Second),
			"effective_margin_ms", margin.Milliseconds(),
		)
	}
	a.logger.Info("token issued",
		"grant_type", grantType,
		"expires_at", token.ExpiresAt.Format(time.RFC3339),
		"refreshable", token.HasRefreshToken(),
	)
	return token
}

// marginFor returns the refresh margin of token: the configured margin, or
// half the token lifetime when the backend issues tokens that do not outlive
// the margin.
func (a *Authenticator) marginFor(token core.Token) time.Duration {
	lifetime := token.ExpiresAt.Sub(token.IssuedAt)
	if lifetime > 0 && lifetime <= a.margin {
		return lifetime / 2
	}
	return a.margin
}

func (a *Authenticator) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.creds.ClientID,
		ClientSecret: a.creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  a.creds.URLs.Token,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (a *Authenticator) exchangeContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.client)
}

var _ core.TokenSource = (*Authenticator)(nil)
