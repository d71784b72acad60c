package isogeo

import (
	"net/http"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-isogeo/core"
)

type Option func(*clientBuilder)

type clientBuilder struct {
	runtimeConfig   core.Config
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
	secure          http.RoundTripper
	insecure        http.RoundTripper
	cacheService    repositorycache.CacheService
	now             func() time.Time
}

func WithLogger(logger core.Logger) Option {
	return func(b *clientBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *clientBuilder) {
		b.loggerProvider = provider
	}
}

// WithConfigProvider loads a configuration layer below the runtime config,
// typically credentials.Loader through core.NewCfgxConfigProvider.
func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *clientBuilder) {
		b.configProvider = provider
	}
}

func WithConfigLoader(loader core.RawConfigLoader) Option {
	return func(b *clientBuilder) {
		b.configProvider = core.NewCfgxConfigProvider(loader)
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *clientBuilder) {
		b.optionsResolver = resolver
	}
}

// WithTransports replaces the verifying and non-verifying round trippers.
func WithTransports(secure, insecure http.RoundTripper) Option {
	return func(b *clientBuilder) {
		b.secure = secure
		b.insecure = insecure
	}
}

func WithCacheService(service repositorycache.CacheService) Option {
	return func(b *clientBuilder) {
		b.cacheService = service
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *clientBuilder) {
		b.now = now
	}
}
