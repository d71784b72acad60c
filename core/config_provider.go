package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticConfigLoader serves a fixed raw map, mostly useful in tests.
func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load decodes the raw values over defaults. Validation is deferred to the
// resolver because a file or env layer alone is usually incomplete.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return Config{}, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	if len(raw) == 0 {
		return Config{}, nil
	}
	cfg, err := cfgx.Build[Config](raw)
	if err != nil {
		return Config{}, WrapConfigurationError(err, "core: decode client configuration")
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("credentials", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("credentials"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		if IsConfigurationError(err) {
			return Config{}, err
		}
		return Config{}, WrapConfigurationError(err, "core: resolve client configuration")
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(key, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			layer[key] = value
		}
	}
	setInt := func(key string, value int) {
		if includeZero || value != 0 {
			layer[key] = value
		}
	}

	setString("auth_mode", cfg.AuthMode)
	setString("client_id", cfg.ClientID)
	setString("client_secret", cfg.ClientSecret)
	setString("username", cfg.Username)
	setString("password", cfg.Password)
	setString("platform", cfg.Platform)
	setString("lang", cfg.Lang)
	setString("app_name", cfg.AppName)
	setInt("safety_margin_seconds", cfg.SafetyMarginSeconds)
	setInt("search_workers", cfg.SearchWorkers)
	if includeZero || cfg.InsecureSkipVerify {
		layer["insecure_skip_verify"] = cfg.InsecureSkipVerify
	}

	urls := map[string]any{}
	for key, value := range map[string]string{
		"api_url":   cfg.URLs.API,
		"token_url": cfg.URLs.Token,
		"app_url":   cfg.URLs.App,
		"csw_url":   cfg.URLs.CSW,
		"mng_url":   cfg.URLs.Manager,
		"oc_url":    cfg.URLs.OpenCatalog,
	} {
		if includeZero || strings.TrimSpace(value) != "" {
			urls[key] = value
		}
	}
	if len(urls) > 0 {
		layer["urls"] = urls
	}

	if includeZero || len(cfg.Proxies) > 0 {
		proxies := make(map[string]any, len(cfg.Proxies))
		for scheme, value := range cfg.Proxies {
			proxies[scheme] = value
		}
		layer["proxies"] = proxies
	}

	timeouts := map[string]any{}
	if includeZero || cfg.Timeouts.Connect != 0 {
		timeouts["connect"] = cfg.Timeouts.Connect
	}
	if includeZero || cfg.Timeouts.Read != 0 {
		timeouts["read"] = cfg.Timeouts.Read
	}
	if len(timeouts) > 0 {
		layer["timeouts"] = timeouts
	}

	cache := map[string]any{}
	if includeZero || cfg.Cache.Disabled {
		cache["disabled"] = cfg.Cache.Disabled
	}
	if includeZero || cfg.Cache.TTLSeconds != 0 {
		cache["ttl_seconds"] = cfg.Cache.TTLSeconds
	}
	if len(cache) > 0 {
		layer["cache"] = cache
	}
	return layer
}
