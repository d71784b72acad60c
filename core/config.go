package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

const Version = "0.4.0"

const (
	ClientSecretLength = 64

	DefaultConnectTimeout = 15 * time.Second
	DefaultReadTimeout    = 45 * time.Second
)

type AuthMode string

const (
	AuthModeGroup      AuthMode = "group"
	AuthModeUserLegacy AuthMode = "user_legacy"
)

type TimeoutConfig struct {
	Connect int `koanf:"connect" mapstructure:"connect" validate:"gte=0"`
	Read    int `koanf:"read" mapstructure:"read" validate:"gte=0"`
}

type CacheConfig struct {
	Disabled   bool `koanf:"disabled" mapstructure:"disabled"`
	TTLSeconds int  `koanf:"ttl_seconds" mapstructure:"ttl_seconds" validate:"gte=0"`
}

// Config is the client configuration surface as read from runtime values,
// credentials files and environment variables.
type Config struct {
	AuthMode            string            `koanf:"auth_mode" mapstructure:"auth_mode" validate:"required,oneof=group user_legacy"`
	ClientID            string            `koanf:"client_id" mapstructure:"client_id" validate:"required"`
	ClientSecret        string            `koanf:"client_secret" mapstructure:"client_secret" validate:"required,len=64"`
	Username            string            `koanf:"username" mapstructure:"username"`
	Password            string            `koanf:"password" mapstructure:"password"`
	Platform            string            `koanf:"platform" mapstructure:"platform" validate:"required,oneof=prod qa custom"`
	URLs                PlatformURLs      `koanf:"urls" mapstructure:"urls"`
	Lang                string            `koanf:"lang" mapstructure:"lang"`
	Proxies             map[string]string `koanf:"proxies" mapstructure:"proxies"`
	Timeouts            TimeoutConfig     `koanf:"timeouts" mapstructure:"timeouts"`
	AppName             string            `koanf:"app_name" mapstructure:"app_name"`
	InsecureSkipVerify  bool              `koanf:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	SafetyMarginSeconds int               `koanf:"safety_margin_seconds" mapstructure:"safety_margin_seconds" validate:"gte=0"`
	SearchWorkers       int               `koanf:"search_workers" mapstructure:"search_workers" validate:"gte=0"`
	Cache               CacheConfig       `koanf:"cache" mapstructure:"cache"`
}

func DefaultConfig() Config {
	return Config{
		AuthMode: string(AuthModeGroup),
		Platform: string(PlatformQA),
		Lang:     "fr",
		Timeouts: TimeoutConfig{
			Connect: int(DefaultConnectTimeout / time.Second),
			Read:    int(DefaultReadTimeout / time.Second),
		},
		AppName:             "go-isogeo/" + Version,
		SafetyMarginSeconds: 30,
		SearchWorkers:       10,
		Cache: CacheConfig{
			TTLSeconds: 600,
		},
	}
}

var configValidator = validator.New()

func (c Config) Validate() error {
	var result *multierror.Error
	if err := configValidator.Struct(c); err != nil {
		result = multierror.Append(result, err)
	}
	if err := validateClientID(c.ClientID); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := ParseProxies(c.Proxies); err != nil {
		result = multierror.Append(result, err)
	}
	if strings.EqualFold(strings.TrimSpace(c.Platform), string(PlatformCustom)) && strings.TrimSpace(c.URLs.API) == "" {
		result = multierror.Append(result, fmt.Errorf("core: urls.api_url is required when platform is custom"))
	}
	if AuthMode(c.AuthMode) == AuthModeUserLegacy && strings.TrimSpace(c.URLs.Token) == "" && strings.EqualFold(c.Platform, string(PlatformCustom)) {
		result = multierror.Append(result, fmt.Errorf("core: urls.token_url is required for user_legacy on a custom platform"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return WrapConfigurationError(err, "core: invalid client configuration")
	}
	return nil
}

func validateClientID(clientID string) error {
	trimmed := strings.TrimSpace(clientID)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "-")
	if _, err := uuid.Parse(parts[len(parts)-1]); err != nil {
		return fmt.Errorf("core: client_id suffix after the application name must be a valid uuid")
	}
	return nil
}

// ValidateClientSecret enforces the fixed-length secret contract.
func ValidateClientSecret(secret string) error {
	if len(secret) != ClientSecretLength {
		return NewConfigurationError(
			fmt.Sprintf("core: client_secret must be %d chars, got %d", ClientSecretLength, len(secret)),
			map[string]any{"length": len(secret)},
		)
	}
	return nil
}

// ParseProxies validates a scheme to proxy URL map.
func ParseProxies(raw map[string]string) (map[string]*url.URL, error) {
	out := make(map[string]*url.URL, len(raw))
	for scheme, value := range raw {
		key := strings.ToLower(strings.TrimSpace(scheme))
		if key != "http" && key != "https" {
			return nil, NewConfigurationError(
				fmt.Sprintf("core: proxy scheme must be http or https, got %q", scheme),
				map[string]any{"scheme": scheme},
			)
		}
		parsed, err := url.Parse(strings.TrimSpace(value))
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, NewConfigurationError(
				fmt.Sprintf("core: malformed %s proxy url", key),
				map[string]any{"scheme": key},
			)
		}
		out[key] = parsed
	}
	return out, nil
}

// NormalizeLang returns fr or en; anything else falls back to en.
func NormalizeLang(value string) (string, bool) {
	switch lowered := strings.ToLower(strings.TrimSpace(value)); lowered {
	case "fr", "en":
		return lowered, true
	default:
		return "en", false
	}
}

// Credentials is the immutable, validated view of a Config.
type Credentials struct {
	AuthMode     AuthMode
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Platform     Platform
	URLs         PlatformURLs
	Lang         string
	Proxies      map[string]*url.URL
	Timeouts     Timeouts
	AppName      string
	VerifyTLS    bool
}

type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
}

func (c Config) Credentials() (Credentials, error) {
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	platform, err := ParsePlatform(c.Platform)
	if err != nil {
		return Credentials{}, err
	}
	urls, err := ResolvePlatformURLs(platform, c.URLs)
	if err != nil {
		return Credentials{}, err
	}
	if platform != PlatformCustom && strings.TrimSpace(c.URLs.Token) != "" {
		urls.Token = strings.TrimSpace(c.URLs.Token)
	}
	proxies, err := ParseProxies(c.Proxies)
	if err != nil {
		return Credentials{}, err
	}
	lang, _ := NormalizeLang(c.Lang)

	timeouts := Timeouts{
		Connect: time.Duration(c.Timeouts.Connect) * time.Second,
		Read:    time.Duration(c.Timeouts.Read) * time.Second,
	}
	if timeouts.Connect <= 0 {
		timeouts.Connect = DefaultConnectTimeout
	}
	if timeouts.Read <= 0 {
		timeouts.Read = DefaultReadTimeout
	}

	return Credentials{
		AuthMode:     AuthMode(c.AuthMode),
		ClientID:     strings.TrimSpace(c.ClientID),
		ClientSecret: c.ClientSecret,
		Username:     strings.TrimSpace(c.Username),
		Password:     c.Password,
		Platform:     platform,
		URLs:         urls,
		Lang:         lang,
		Proxies:      proxies,
		Timeouts:     timeouts,
		AppName:      firstNonEmpty(c.AppName, "go-isogeo/"+Version),
		VerifyTLS:    !c.InsecureSkipVerify,
	}, nil
}

// Proxy returns a copy of the proxy url configured for a scheme.
func (c Credentials) Proxy(scheme string) *url.URL {
	proxy, ok := c.Proxies[strings.ToLower(scheme)]
	if !ok || proxy == nil {
		return nil
	}
	copied := *proxy
	return &copied
}
