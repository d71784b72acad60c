package core

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request is what a resource route hands to the pipeline.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	JSONBody any
	Form     url.Values
	Body     []byte
	// ContentType applies to Body only; JSONBody and Form set their own.
	ContentType string
	Headers     map[string]string
	Caching     bool
	Timeout     time.Duration
}

func (r Request) NormalizedMethod() string {
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		return http.MethodGet
	}
	return method
}

// IsWrite reports whether the request mutates backend state.
func (r Request) IsWrite() bool {
	switch r.NormalizedMethod() {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

type RawResponse struct {
	StatusCode    int
	Status        string
	Headers       http.Header
	Body          []byte
	Method        string
	URL           string
	TLSDowngraded bool
	Duration      time.Duration
}

// RequestContext is derived from credentials and the current token.
type RequestContext struct {
	BaseURL   string
	VerifyTLS bool
	Proxies   map[string]*url.URL
	Timeouts  Timeouts
	Lang      string
	Headers   map[string]string
	// TokenIssuedAt identifies the token the context was built from.
	TokenIssuedAt time.Time
}

func BuildRequestContext(creds Credentials, token Token) RequestContext {
	proxies := make(map[string]*url.URL, len(creds.Proxies))
	for scheme := range creds.Proxies {
		proxies[scheme] = creds.Proxy(scheme)
	}
	headers := map[string]string{
		"User-Agent":      creds.AppName,
		"Accept":          "application/json",
		"Accept-Language": creds.Lang,
	}
	if !token.IsZero() {
		headers["Authorization"] = token.AuthorizationHeader()
	}
	return RequestContext{
		BaseURL:       strings.TrimRight(creds.URLs.API, "/"),
		VerifyTLS:     creds.VerifyTLS,
		Proxies:       proxies,
		Timeouts:      creds.Timeouts,
		Lang:          creds.Lang,
		Headers:       headers,
		TokenIssuedAt: token.IssuedAt,
	}
}

// ResolveURL joins a route path to the base url and adds the _lang parameter.
func (rc RequestContext) ResolveURL(path string, query url.Values) (string, error) {
	trimmed := strings.TrimSpace(path)
	var target *url.URL
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", err
		}
		target = parsed
	} else {
		parsed, err := url.Parse(rc.BaseURL + "/" + strings.TrimLeft(trimmed, "/"))
		if err != nil {
			return "", err
		}
		target = parsed
	}

	values := target.Query()
	for key, items := range query {
		if strings.TrimSpace(key) == "" {
			continue
		}
		values.Del(key)
		for _, item := range items {
			values.Add(key, item)
		}
	}
	if values.Get("_lang") == "" && rc.Lang != "" {
		values.Set("_lang", rc.Lang)
	}
	target.RawQuery = values.Encode()
	return target.String(), nil
}
