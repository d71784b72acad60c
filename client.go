package isogeo

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-isogeo/auth"
	"github.com/goliatone/go-isogeo/cache"
	"github.com/goliatone/go-isogeo/core"
	"github.com/goliatone/go-isogeo/ratelimit"
	"github.com/goliatone/go-isogeo/response"
	"github.com/goliatone/go-isogeo/tags"
	"github.com/goliatone/go-isogeo/transport"
)

// Client is the authenticated request pipeline of one application. It is
// safe for concurrent use.
type Client struct {
	config    core.Config
	creds     core.Credentials
	gateway   *transport.Gateway
	validator *response.Validator
	auth      *auth.Authenticator
	cache     *cache.ResponseCache
	tags      *tags.Resolver
	limits    *ratelimit.Tracker
	workers   int
	logger    core.Logger

	rcMu sync.Mutex
	rc   *core.RequestContext

	sharesMu sync.Mutex
	shares   map[string]string

	closeOnce sync.Once
	closed    chan struct{}
}

// New resolves cfg over the configured provider layer, validates the
// credentials and builds the pipeline. No network call is made.
func New(cfg core.Config, opts ...Option) (*Client, error) {
	builder := clientBuilder{runtimeConfig: cfg}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	logger := core.ResolveLogger("isogeo", builder.loggerProvider, builder.logger)

	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = core.GoOptionsResolver{}
	}

	defaults := core.DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, err
	}
	resolved, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, err
	}
	creds, err := resolved.Credentials()
	if err != nil {
		return nil, err
	}
	if err := core.ValidateClientSecret(creds.ClientSecret); err != nil {
		return nil, err
	}
	if _, known := core.NormalizeLang(resolved.Lang); !known {
		logger.Warn("unsupported language, falling back to english", "lang", resolved.Lang)
	}

	gateway := transport.NewGateway(transport.GatewayConfig{
		Timeouts:       creds.Timeouts,
		Proxies:        creds.Proxies,
		Logger:         builder.logger,
		LoggerProvider: builder.loggerProvider,
		Now:            builder.now,
		Secure:         builder.secure,
		Insecure:       builder.insecure,
	})
	authenticator := auth.NewAuthenticator(auth.AuthenticatorConfig{
		Credentials:    creds,
		HTTPClient:     gateway.HTTPClient(),
		SafetyMargin:   time.Duration(resolved.SafetyMarginSeconds) * time.Second,
		Now:            builder.now,
		Logger:         builder.logger,
		LoggerProvider: builder.loggerProvider,
	})

	var responses *cache.ResponseCache
	if !resolved.Cache.Disabled {
		responses, err = cache.New(cache.Config{
			TTL:     time.Duration(resolved.Cache.TTLSeconds) * time.Second,
			Service: builder.cacheService,
			Logger:  logger,
		})
		if err != nil {
			return nil, core.WrapConfigurationError(err, "isogeo: build response cache")
		}
	}

	logger.Debug("client ready",
		"platform", string(creds.Platform),
		"auth_mode", string(creds.AuthMode),
		"api_url", creds.URLs.API,
	)
	return &Client{
		config:    resolved,
		creds:     creds,
		gateway:   gateway,
		validator: response.NewValidator(logger),
		auth:      authenticator,
		cache:     responses,
		tags:      tags.NewResolver(logger),
		limits:    ratelimit.NewTracker(logger, builder.now),
		workers:   resolved.SearchWorkers,
		logger:    logger,
		closed:    make(chan struct{}),
	}, nil
}

func (c *Client) Credentials() core.Credentials {
	return c.creds
}

func (c *Client) Config() core.Config {
	return c.config
}

// Connect authenticates now. For user_legacy applications username and
// password override the configured user.
func (c *Client) Connect(ctx context.Context, username, password string) (core.Token, error) {
	if err := c.ensureOpen(); err != nil {
		return core.Token{}, err
	}
	if username != "" || password != "" {
		return c.auth.Connect(ctx, username, password)
	}
	return c.auth.Authenticate(ctx)
}

// Token returns the current token without contacting the identity endpoint.
func (c *Client) Token() core.Token {
	return c.auth.Store().Get()
}

// Request sends req with a valid token and classifies the response. Cached
// GET responses are served when req.Caching is set; any write drops the cache.
func (c *Client) Request(ctx context.Context, req core.Request) (response.Payload, error) {
	if err := c.ensureOpen(); err != nil {
		return response.Payload{}, err
	}
	token, err := c.auth.EnsureValid(ctx)
	if err != nil {
		return response.Payload{}, err
	}
	rc := c.requestContext(token)

	if req.Caching && c.cache != nil && !req.IsWrite() {
		return c.cachedRequest(ctx, req, rc)
	}

	raw, err := c.send(ctx, req, rc)
	if req.IsWrite() {
		c.invalidate(ctx)
	}
	if err != nil {
		return response.Payload{}, err
	}
	return c.validator.Check(raw)
}

func (c *Client) cachedRequest(ctx context.Context, req core.Request, rc core.RequestContext) (response.Payload, error) {
	target, err := rc.ResolveURL(req.Path, req.Query)
	if err != nil {
		return response.Payload{}, core.WrapConfigurationError(err, "isogeo: invalid request url")
	}
	raw, err := c.cache.GetOrFetch(ctx, cache.Key(req.NormalizedMethod(), target), func(ctx context.Context) (core.RawResponse, error) {
		raw, err := c.send(ctx, req, rc)
		if err != nil {
			return core.RawResponse{}, err
		}
		if _, err := c.validator.Check(raw); err != nil {
			return core.RawResponse{}, err
		}
		return raw, nil
	})
	if err != nil {
		return response.Payload{}, err
	}
	return c.validator.Check(raw)
}

func (c *Client) send(ctx context.Context, req core.Request, rc core.RequestContext) (core.RawResponse, error) {
	raw, err := c.gateway.Send(ctx, req, rc)
	if err != nil {
		return raw, err
	}
	c.limits.Observe(raw)
	return raw, nil
}

// RateLimit returns the rate limit state advertised by the latest response
// that carried one.
func (c *Client) RateLimit() (ratelimit.Hint, bool) {
	return c.limits.Last()
}

// Create sends a creation request. A 409 is reported as an AlreadyExists
// outcome instead of an error.
func (c *Client) Create(ctx context.Context, req core.Request) (core.Outcome, error) {
	if strings.TrimSpace(req.Method) == "" {
		req.Method = http.MethodPost
	}
	payload, err := c.Request(ctx, req)
	if err != nil {
		if detail, ok := core.APIErrorDetails(err); ok && detail.StatusCode == http.StatusConflict {
			c.logger.Info("entity already exists",
				"method", detail.Method,
				"url", detail.URL,
				"reason", detail.Reason,
			)
			return core.Outcome{Kind: core.OutcomeAlreadyExists, Status: detail.StatusCode}, nil
		}
		return core.Outcome{}, err
	}
	record, _ := payload.Record()
	return core.Outcome{Kind: core.OutcomeCreated, Payload: record, Status: payload.StatusCode()}, nil
}

// Close drops the token and the cache and releases idle connections. It is
// safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.auth.Invalidate()
		err = c.cache.Invalidate(context.Background())
		c.resetShares()
		c.limits.Reset()
		c.rcMu.Lock()
		c.rc = nil
		c.rcMu.Unlock()
		c.gateway.Close()
		c.logger.Debug("client closed")
	})
	return err
}

func (c *Client) ensureOpen() error {
	select {
	case <-c.closed:
		return core.NewConfigurationError("isogeo: client is closed", nil)
	default:
		return nil
	}
}

// requestContext is rebuilt only when the token changes.
func (c *Client) requestContext(token core.Token) core.RequestContext {
	c.rcMu.Lock()
	defer c.rcMu.Unlock()
	if c.rc != nil &&
		c.rc.TokenIssuedAt.Equal(token.IssuedAt) &&
		c.rc.Headers["Authorization"] == token.AuthorizationHeader() {
		return *c.rc
	}
	rc := core.BuildRequestContext(c.creds, token)
	c.rc = &rc
	return rc
}

func (c *Client) invalidate(ctx context.Context) {
	if err := c.cache.Invalidate(ctx); err != nil {
		c.logger.Warn("response cache invalidation failed", "error", err)
	}
	c.resetShares()
}
