package core

import (
	"fmt"
	"net/url"
	"strings"
)

type Platform string

const (
	PlatformProd   Platform = "prod"
	PlatformQA     Platform = "qa"
	PlatformCustom Platform = "custom"
)

// PlatformURLs is the set of Isogeo endpoints for one platform.
type PlatformURLs struct {
	API         string `koanf:"api_url" mapstructure:"api_url"`
	Token       string `koanf:"token_url" mapstructure:"token_url"`
	App         string `koanf:"app_url" mapstructure:"app_url"`
	CSW         string `koanf:"csw_url" mapstructure:"csw_url"`
	Manager     string `koanf:"mng_url" mapstructure:"mng_url"`
	OpenCatalog string `koanf:"oc_url" mapstructure:"oc_url"`
}

var platformURLs = map[Platform]PlatformURLs{
	PlatformProd: {
		API:         "https://v1.api.isogeo.com",
		Token:       "https://id.api.isogeo.com/oauth/token",
		App:         "https://app.isogeo.com",
		CSW:         "https://services.api.isogeo.com",
		Manager:     "https://manage.isogeo.com",
		OpenCatalog: "https://open.isogeo.com",
	},
	PlatformQA: {
		API:         "https://v1.api.qa.isogeo.com",
		Token:       "https://id.api.qa.isogeo.com/oauth/token",
		App:         "https://qa-isogeo-app.azurewebsites.net",
		CSW:         "http://services.api.qa.isogeo.com",
		Manager:     "https://qa-isogeo-manage.azurewebsites.net",
		OpenCatalog: "https://qa-isogeo-open.azurewebsites.net",
	},
}

func ParsePlatform(value string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(value))) {
	case PlatformProd:
		return PlatformProd, nil
	case PlatformQA, "":
		return PlatformQA, nil
	case PlatformCustom:
		return PlatformCustom, nil
	default:
		return "", NewConfigurationError(
			fmt.Sprintf("core: platform must be one of prod | qa | custom, got %q", value),
			map[string]any{"platform": value},
		)
	}
}

// ResolvePlatformURLs returns the endpoint set of a platform. Custom platforms
// take their URLs from overrides and fall back to QA for everything but the API.
func ResolvePlatformURLs(platform Platform, overrides PlatformURLs) (PlatformURLs, error) {
	if platform != PlatformCustom {
		known, ok := platformURLs[platform]
		if !ok {
			return PlatformURLs{}, NewConfigurationError(
				fmt.Sprintf("core: unknown platform %q", platform),
				map[string]any{"platform": string(platform)},
			)
		}
		return known, nil
	}

	apiURL := strings.TrimSpace(overrides.API)
	if apiURL == "" {
		return PlatformURLs{}, NewConfigurationError("core: api_url is required when platform is custom", nil)
	}
	qa := platformURLs[PlatformQA]
	resolved := PlatformURLs{
		API:         normalizeBaseURL(apiURL),
		Token:       strings.TrimSpace(overrides.Token),
		App:         firstNonEmpty(overrides.App, qa.App),
		CSW:         firstNonEmpty(overrides.CSW, qa.CSW),
		Manager:     firstNonEmpty(overrides.Manager, qa.Manager),
		OpenCatalog: firstNonEmpty(overrides.OpenCatalog, qa.OpenCatalog),
	}
	if _, err := url.Parse(resolved.API); err != nil {
		return PlatformURLs{}, WrapConfigurationError(err, "core: invalid api_url")
	}
	if resolved.Token == "" {
		resolved.Token = guessTokenURL(resolved.API)
	}
	return resolved, nil
}

// GuessPlatform maps an API or token URL back to its platform.
func GuessPlatform(rawURL string) Platform {
	lowered := strings.ToLower(strings.TrimSpace(rawURL))
	switch {
	case strings.Contains(lowered, ".qa.isogeo.com"), strings.Contains(lowered, "qa-isogeo"):
		return PlatformQA
	case strings.Contains(lowered, ".isogeo.com"):
		return PlatformProd
	default:
		return PlatformCustom
	}
}

func normalizeBaseURL(raw string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}
	return trimmed
}

func guessTokenURL(apiURL string) string {
	parsed, err := url.Parse(apiURL)
	if err != nil || parsed.Host == "" {
		return strings.TrimRight(apiURL, "/") + "/oauth/token"
	}
	host := parsed.Host
	if strings.HasPrefix(host, "v1.api.") {
		host = "id.api." + strings.TrimPrefix(host, "v1.api.")
	}
	return parsed.Scheme + "://" + host + "/oauth/token"
}
