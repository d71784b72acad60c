package credentials

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goliatone/go-isogeo/core"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	EnvPrefix   = "ISOGEO"
	DefaultPath = "client_secrets.json"
)

// Loader reads client credentials from a file and the ISOGEO_* environment
// and hands them to core.CfgxConfigProvider as a raw map.
type Loader struct {
	Path string
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// SkipEnv disables the environment overlay.
	SkipEnv bool
	// Env looks up environment variables; defaults to viper's AutomaticEnv.
	Env func(key string) string
}

func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// FromEnv builds a loader that reads the environment only.
func FromEnv() *Loader {
	return &Loader{}
}

func (l *Loader) LoadRaw(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := map[string]any{}
	if l == nil {
		return out, nil
	}

	if strings.TrimSpace(l.Path) != "" {
		fromFile, err := l.loadFile(strings.TrimSpace(l.Path))
		if err != nil {
			return nil, err
		}
		merge(out, fromFile)
	}
	if !l.SkipEnv {
		fromEnv, err := l.loadEnv()
		if err != nil {
			return nil, err
		}
		merge(out, fromEnv)
	}
	return out, nil
}

func (l *Loader) fs() afero.Fs {
	if l.Fs != nil {
		return l.Fs
	}
	return afero.NewOsFs()
}

func (l *Loader) loadFile(path string) (map[string]any, error) {
	fs := l.fs()
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, core.WrapConfigurationError(err, "credentials: stat credentials file")
	}
	if !exists {
		return nil, core.NewConfigurationError(
			fmt.Sprintf("credentials: file does not exist: %s", path),
			map[string]any{"path": path},
		)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return loadJSON(fs, path)
	case ".ini":
		return loadINI(fs, path)
	case ".yaml", ".yml":
		return loadYAML(fs, path)
	default:
		return nil, core.NewConfigurationError(
			fmt.Sprintf("credentials: extension must be one of .json, .ini, .yaml, got %q", ext),
			map[string]any{"path": path},
		)
	}
}

func readViper(fs afero.Fs, path, kind string) (*viper.Viper, error) {
	vip := viper.New()
	vip.SetFs(fs)
	vip.SetConfigFile(path)
	vip.SetConfigType(kind)
	if err := vip.ReadInConfig(); err != nil {
		return nil, core.WrapConfigurationError(err, "credentials: read "+kind+" credentials")
	}
	return vip, nil
}

// loadJSON reads the file downloaded from the Isogeo manager: a "web" section
// for group applications or an "installed" section for user applications.
func loadJSON(fs afero.Fs, path string) (map[string]any, error) {
	vip, err := readViper(fs, path, "json")
	if err != nil {
		return nil, err
	}

	var (
		section string
		mode    core.AuthMode
	)
	switch {
	case vip.IsSet("web"):
		section, mode = "web", core.AuthModeGroup
	case vip.IsSet("installed"):
		section, mode = "installed", core.AuthModeUserLegacy
	default:
		return nil, core.NewConfigurationError(
			"credentials: json structure is not as expected, first key must be one of installed | web",
			map[string]any{"path": path},
		)
	}

	return fileLayer(
		mode,
		vip.GetString(section+".client_id"),
		vip.GetString(section+".client_secret"),
		vip.GetString(section+".token_uri"),
	), nil
}

func loadINI(fs afero.Fs, path string) (map[string]any, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, core.WrapConfigurationError(err, "credentials: read ini credentials")
	}
	file, err := ini.Load(data)
	if err != nil {
		return nil, core.WrapConfigurationError(err, "credentials: parse ini credentials")
	}
	section, err := file.GetSection("auth")
	if err != nil {
		return nil, core.NewConfigurationError(
			"credentials: ini structure is not as expected, section must be named auth",
			map[string]any{"path": path},
		)
	}

	mode := core.AuthMode(strings.TrimSpace(section.Key("CLIENT_TYPE").String()))
	if mode == "user" {
		mode = core.AuthModeUserLegacy
	}
	return fileLayer(
		mode,
		section.Key("CLIENT_ID").String(),
		section.Key("CLIENT_SECRET").String(),
		section.Key("URI_TOKEN").String(),
	), nil
}

// loadYAML expects the configuration keys as they appear on core.Config.
func loadYAML(fs afero.Fs, path string) (map[string]any, error) {
	vip, err := readViper(fs, path, "yaml")
	if err != nil {
		return nil, err
	}
	return vip.AllSettings(), nil
}

func fileLayer(mode core.AuthMode, clientID, clientSecret, tokenURL string) map[string]any {
	out := map[string]any{}
	setIf(out, "auth_mode", string(mode))
	setIf(out, "client_id", clientID)
	setIf(out, "client_secret", clientSecret)

	tokenURL = strings.TrimSpace(tokenURL)
	if tokenURL == "" {
		return out
	}
	platform := core.GuessPlatform(tokenURL)
	out["platform"] = string(platform)
	urls := map[string]any{"token_url": tokenURL}
	if platform == core.PlatformCustom {
		if apiURL := APIURLFromTokenURL(tokenURL); apiURL != "" {
			urls["api_url"] = apiURL
		}
	}
	out["urls"] = urls
	return out
}

// APIURLFromTokenURL derives the API root from the token endpoint, which is
// the only URL credentials files carry.
func APIURLFromTokenURL(tokenURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(tokenURL))
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := parsed.Host
	switch {
	case strings.HasPrefix(host, "id.api."):
		host = "v1.api." + strings.TrimPrefix(host, "id.api.")
	case strings.HasPrefix(host, "id."):
		host = strings.TrimPrefix(host, "id.")
	}
	return parsed.Scheme + "://" + host
}

func (l *Loader) lookup() func(string) string {
	if l.Env != nil {
		return func(key string) string {
			return strings.TrimSpace(l.Env(EnvPrefix + "_" + strings.ToUpper(key)))
		}
	}
	vip := viper.New()
	vip.SetEnvPrefix(EnvPrefix)
	vip.AutomaticEnv()
	return func(key string) string {
		return strings.TrimSpace(vip.GetString(key))
	}
}

func (l *Loader) loadEnv() (map[string]any, error) {
	env := l.lookup()
	out := map[string]any{}

	setIf(out, "platform", strings.ToLower(env("platform")))
	setIf(out, "client_id", env("client_id"))
	setIf(out, "client_secret", env("client_secret"))
	setIf(out, "auth_mode", env("auth_mode"))

	if id := env("api_group_client_id"); id != "" {
		out["client_id"] = id
		out["auth_mode"] = string(core.AuthModeGroup)
		setIf(out, "client_secret", env("api_group_client_secret"))
	}
	if id := env("api_user_legacy_client_id"); id != "" {
		out["client_id"] = id
		out["auth_mode"] = string(core.AuthModeUserLegacy)
		setIf(out, "client_secret", env("api_user_legacy_client_secret"))
	}
	setIf(out, "username", env("user_name"))
	setIf(out, "password", env("user_password"))
	setIf(out, "lang", env("lang"))
	setIf(out, "app_name", env("app_name"))

	urls := map[string]any{}
	setIf(urls, "api_url", env("api_url"))
	if idURL := env("id_url"); idURL != "" {
		urls["token_url"] = strings.TrimRight(idURL, "/") + "/oauth/token"
	}
	if len(urls) > 0 {
		out["urls"] = urls
	}

	proxies := map[string]any{}
	setIf(proxies, "http", env("proxy_http"))
	setIf(proxies, "https", env("proxy_https"))
	if len(proxies) > 0 {
		out["proxies"] = proxies
	}

	timeouts := map[string]any{}
	for key, name := range map[string]string{"connect": "timeout_connect", "read": "timeout_read"} {
		raw := env(name)
		if raw == "" {
			continue
		}
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return nil, core.NewConfigurationError(
				fmt.Sprintf("credentials: %s_%s must be a positive number of seconds", EnvPrefix, strings.ToUpper(name)),
				map[string]any{"value": raw},
			)
		}
		timeouts[key] = seconds
	}
	if len(timeouts) > 0 {
		out["timeouts"] = timeouts
	}
	return out, nil
}

func setIf(target map[string]any, key, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		target[key] = trimmed
	}
}

// merge overlays src onto dst, descending into nested maps.
func merge(dst, src map[string]any) {
	for key, value := range src {
		nested, ok := value.(map[string]any)
		if !ok {
			dst[key] = value
			continue
		}
		existing, ok := dst[key].(map[string]any)
		if !ok {
			existing = map[string]any{}
			dst[key] = existing
		}
		merge(existing, nested)
	}
}

var _ core.RawConfigLoader = (*Loader)(nil)
