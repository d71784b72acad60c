package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-isogeo/core"
)

const defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB

type GatewayConfig struct {
	Timeouts             core.Timeouts
	Proxies              map[string]*url.URL
	MaxResponseBodyBytes int64
	Logger               core.Logger
	LoggerProvider       core.LoggerProvider
	Now                  func() time.Time

	// Secure and Insecure replace the verifying and non-verifying round
	// trippers built from Timeouts and Proxies.
	Secure   http.RoundTripper
	Insecure http.RoundTripper
}

// Gateway executes one HTTP request per call. The only retry it performs is
// the single replay without certificate verification after a TLS trust failure.
type Gateway struct {
	fallback *fallbackTransport
	verified *http.Client
	skipping *http.Client
	maxBody  int64
	logger   core.Logger
	now      func() time.Time
}

func NewGateway(cfg GatewayConfig) *Gateway {
	logger := core.ResolveLogger("isogeo.transport", cfg.LoggerProvider, cfg.Logger)
	timeouts := cfg.Timeouts
	if timeouts.Connect <= 0 {
		timeouts.Connect = core.DefaultConnectTimeout
	}
	if timeouts.Read <= 0 {
		timeouts.Read = core.DefaultReadTimeout
	}

	secure := cfg.Secure
	if secure == nil {
		secure = newHTTPTransport(timeouts, cfg.Proxies, false)
	}
	insecure := cfg.Insecure
	if insecure == nil {
		insecure = newHTTPTransport(timeouts, cfg.Proxies, true)
	}
	fallback := &fallbackTransport{secure: secure, insecure: insecure, logger: logger}

	maxBody := cfg.MaxResponseBodyBytes
	if maxBody <= 0 {
		maxBody = defaultResponseBodyLimit
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Gateway{
		fallback: fallback,
		verified: &http.Client{Transport: fallback},
		skipping: &http.Client{Transport: insecure},
		maxBody:  maxBody,
		logger:   logger,
		now:      now,
	}
}

func newHTTPTransport(timeouts core.Timeouts, proxies map[string]*url.URL, skipVerify bool) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   timeouts.Connect,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 proxyFunc(proxies),
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   timeouts.Connect,
		ResponseHeaderTimeout: timeouts.Read,
		ExpectContinueTimeout: time.Second,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: skipVerify, //nolint:gosec
		},
	}
}

// proxyFunc selects the proxy configured for the request scheme and defers to
// the environment when none is set.
func proxyFunc(proxies map[string]*url.URL) func(*http.Request) (*url.URL, error) {
	if len(proxies) == 0 {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		if proxy, ok := proxies[strings.ToLower(req.URL.Scheme)]; ok && proxy != nil {
			return proxy, nil
		}
		return http.ProxyFromEnvironment(req)
	}
}

// HTTPClient returns a client sharing the gateway transports, TLS fallback
// included. The authenticator uses it for grant exchanges.
func (g *Gateway) HTTPClient() *http.Client {
	if g == nil {
		return http.DefaultClient
	}
	return g.verified
}

func (g *Gateway) Send(ctx context.Context, req core.Request, rc core.RequestContext) (core.RawResponse, error) {
	if g == nil {
		return core.RawResponse{}, core.WrapTransportError(nil, "transport: gateway is not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := req.NormalizedMethod()
	target, err := rc.ResolveURL(req.Path, req.Query)
	if err != nil {
		return core.RawResponse{}, requestError(err, "transport: invalid request url", map[string]any{"path": req.Path})
	}
	body, contentType, err := encodeBody(req)
	if err != nil {
		return core.RawResponse{}, requestError(err, "transport: encode request body", map[string]any{"method": method, "url": target})
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()
	requestCtx, marker := withDowngradeMarker(requestCtx)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(requestCtx, method, target, reader)
	if err != nil {
		return core.RawResponse{}, requestError(err, "transport: create http request", map[string]any{"method": method, "url": target})
	}
	for key, value := range rc.Headers {
		if strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
			continue
		}
		httpReq.Header.Set(key, value)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	client := g.verified
	if !rc.VerifyTLS {
		client = g.skipping
	}

	startedAt := g.now()
	httpRes, err := client.Do(httpReq)
	if err != nil {
		g.logger.Debug("request failed", "method", method, "url", target, "error", err)
		return core.RawResponse{}, core.WrapTransportError(err, "transport: execute http request", map[string]any{
			"method":        method,
			"url":           target,
			"tls_fallback":  marker.downgraded.Load(),
			"tls_verifying": rc.VerifyTLS,
		})
	}
	defer httpRes.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(httpRes.Body, g.maxBody+1))
	if err != nil {
		return core.RawResponse{}, core.WrapTransportError(err, "transport: read response body", map[string]any{
			"method":      method,
			"url":         target,
			"status_code": httpRes.StatusCode,
		})
	}
	if int64(len(payload)) > g.maxBody {
		return core.RawResponse{}, bodyLimitError(g.maxBody, httpRes.StatusCode, target)
	}

	elapsed := g.now().Sub(startedAt)
	g.logger.Debug("request completed",
		"method", method,
		"url", target,
		"status", httpRes.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
	)
	return core.RawResponse{
		StatusCode:    httpRes.StatusCode,
		Status:        httpRes.Status,
		Headers:       httpRes.Header.Clone(),
		Body:          payload,
		Method:        method,
		URL:           target,
		TLSDowngraded: marker.downgraded.Load(),
		Duration:      elapsed,
	}, nil
}

// Close releases idle connections. The gateway stays usable afterwards.
func (g *Gateway) Close() {
	if g == nil {
		return
	}
	g.fallback.CloseIdleConnections()
}

func encodeBody(req core.Request) ([]byte, string, error) {
	switch {
	case req.JSONBody != nil:
		payload, err := json.Marshal(req.JSONBody)
		if err != nil {
			return nil, "", err
		}
		return payload, "application/json", nil
	case len(req.Form) > 0:
		return []byte(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	case req.Body != nil:
		return req.Body, strings.TrimSpace(req.ContentType), nil
	default:
		return nil, "", nil
	}
}

var _ core.Sender = (*Gateway)(nil)
