package core

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildRequestContext_SetsStandardHeaders(t *testing.T) {
	creds := Credentials{
		URLs:      PlatformURLs{API: "https://v1.api.qa.isogeo.com/"},
		Lang:      "fr",
		AppName:   "go-isogeo/test",
		VerifyTLS: true,
		Timeouts:  Timeouts{Connect: time.Second, Read: 2 * time.Second},
	}
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rc := BuildRequestContext(creds, Token{AccessToken: "abc", IssuedAt: issued})

	require.Equal(t, "https://v1.api.qa.isogeo.com", rc.BaseURL)
	require.Equal(t, "Bearer abc", rc.Headers["Authorization"])
	require.Equal(t, "go-isogeo/test", rc.Headers["User-Agent"])
	require.Equal(t, "fr", rc.Headers["Accept-Language"])
	require.Equal(t, issued, rc.TokenIssuedAt)
	require.True(t, rc.VerifyTLS)
}

func TestRequestContextResolveURL_AddsLangOnce(t *testing.T) {
	rc := RequestContext{BaseURL: "https://v1.api.qa.isogeo.com", Lang: "fr"}

	target, err := rc.ResolveURL("/resources/search", url.Values{"_limit": {"20"}})
	require.NoError(t, err)
	parsed, err := url.Parse(target)
	require.NoError(t, err)
	require.Equal(t, "/resources/search", parsed.Path)
	require.Equal(t, "20", parsed.Query().Get("_limit"))
	require.Equal(t, "fr", parsed.Query().Get("_lang"))

	target, err = rc.ResolveURL("https://other.example.test/thing?_lang=en", nil)
	require.NoError(t, err)
	parsed, err = url.Parse(target)
	require.NoError(t, err)
	require.Equal(t, "other.example.test", parsed.Host)
	require.Equal(t, "en", parsed.Query().Get("_lang"))
}

func TestRequestIsWrite(t *testing.T) {
	require.False(t, Request{}.IsWrite())
	require.False(t, Request{Method: "head"}.IsWrite())
	require.True(t, Request{Method: "post"}.IsWrite())
	require.True(t, Request{Method: "DELETE"}.IsWrite())
}

func TestRecordTime_ParsesBackendFormats(t *testing.T) {
	record := Record{
		"_created":  "2019-08-09T14:01:50.8713394+00:00",
		"_modified": "2020-01-20T10:11:12",
		"published": "2018-06-04",
		"broken":    "not a date",
	}

	created, ok := record.Time("_created")
	require.True(t, ok)
	require.Equal(t, 2019, created.Year())
	require.Equal(t, time.August, created.Month())

	modified, ok := record.Time("_modified")
	require.True(t, ok)
	require.Equal(t, 10, modified.Hour())

	published, ok := record.Time("published")
	require.True(t, ok)
	require.Equal(t, 4, published.Day())

	_, ok = record.Time("broken")
	require.False(t, ok)
	_, ok = record.Time("missing")
	require.False(t, ok)
}

func TestPlatformHelpers(t *testing.T) {
	platform, err := ParsePlatform(" PROD ")
	require.NoError(t, err)
	require.Equal(t, PlatformProd, platform)

	_, err = ParsePlatform("staging")
	require.True(t, IsConfigurationError(err))

	require.Equal(t, PlatformQA, GuessPlatform("https://v1.api.qa.isogeo.com"))
	require.Equal(t, PlatformProd, GuessPlatform("https://id.api.isogeo.com/oauth/token"))
	require.Equal(t, PlatformCustom, GuessPlatform("https://api.example.test"))
}
