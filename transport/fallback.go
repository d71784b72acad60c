package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/goliatone/go-isogeo/core"
)

// IsTLSVerificationError reports whether err is a certificate trust failure,
// as opposed to any other network error.
func IsTLSVerificationError(err error) bool {
	if err == nil {
		return false
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return true
	}
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		return true
	}
	var verification *tls.CertificateVerificationError
	return errors.As(err, &verification)
}

type downgradeMarkerKey struct{}

type downgradeMarker struct {
	downgraded atomic.Bool
}

func withDowngradeMarker(ctx context.Context) (context.Context, *downgradeMarker) {
	marker := &downgradeMarker{}
	return context.WithValue(ctx, downgradeMarkerKey{}, marker), marker
}

// fallbackTransport sends through secure first and replays the request once
// through insecure when, and only when, certificate verification failed.
type fallbackTransport struct {
	secure   http.RoundTripper
	insecure http.RoundTripper
	logger   core.Logger
}

func (t *fallbackTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.secure.RoundTrip(req)
	if err == nil || !IsTLSVerificationError(err) {
		return res, err
	}

	retry := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, err
		}
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, err
		}
		retry.Body = body
	}

	t.logger.Warn("tls verification failed, retrying once without verification",
		"method", req.Method,
		"host", req.URL.Host,
		"error", err,
	)
	if marker, ok := req.Context().Value(downgradeMarkerKey{}).(*downgradeMarker); ok && marker != nil {
		marker.downgraded.Store(true)
	}
	return t.insecure.RoundTrip(retry)
}

func (t *fallbackTransport) CloseIdleConnections() {
	for _, rt := range []http.RoundTripper{t.secure, t.insecure} {
		if closer, ok := rt.(interface{ CloseIdleConnections() }); ok {
			closer.CloseIdleConnections()
		}
	}
}
