package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration = "ISOGEO_CONFIGURATION"
	ErrorAuth          = "ISOGEO_AUTH"
	ErrorTransport     = "ISOGEO_TRANSPORT"
	ErrorAPI           = "ISOGEO_API"
)

// APIError carries the backend response details of a failed API call.
type APIError struct {
	StatusCode int
	Reason     string
	Body       []byte
	Method     string
	URL        string
	// RetryAfter is the delay the backend asked for, zero when it gave none.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e == nil {
		return "core: api error"
	}
	reason := strings.TrimSpace(e.Reason)
	if reason == "" {
		reason = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("core: api responded %d: %s", e.StatusCode, reason)
}

// TokenExchangeError carries the identity endpoint rejection details.
type TokenExchangeError struct {
	StatusCode  int
	Code        string
	Description string
	GrantType   string
}

func (e *TokenExchangeError) Error() string {
	if e == nil {
		return "core: token exchange rejected"
	}
	reason := firstNonEmpty(e.Description, e.Code, http.StatusText(e.StatusCode), "unknown error")
	return fmt.Sprintf("core: %s grant rejected (%d): %s", e.GrantType, e.StatusCode, reason)
}

func NewConfigurationError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorConfiguration)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func WrapConfigurationError(source error, message string) *goerrors.Error {
	if source == nil {
		return NewConfigurationError(message, nil)
	}
	return goerrors.Wrap(source, goerrors.CategoryBadInput, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorConfiguration)
}

func NewAuthError(detail *TokenExchangeError) *goerrors.Error {
	if detail == nil {
		detail = &TokenExchangeError{StatusCode: http.StatusUnauthorized}
	}
	code := detail.StatusCode
	if code == 0 {
		code = http.StatusUnauthorized
	}
	return goerrors.Wrap(detail, goerrors.CategoryAuth, detail.Error()).
		WithCode(code).
		WithTextCode(ErrorAuth).
		WithMetadata(map[string]any{
			"status_code":    detail.StatusCode,
			"backend_code":   detail.Code,
			"backend_reason": detail.Description,
			"grant_type":     detail.GrantType,
		})
}

func WrapTransportError(source error, message string, metadata map[string]any) *goerrors.Error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, goerrors.CategoryExternal)
	} else {
		err = goerrors.Wrap(source, goerrors.CategoryExternal, message)
	}
	err = err.WithCode(http.StatusBadGateway).WithTextCode(ErrorTransport)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func NewAPIError(detail *APIError) *goerrors.Error {
	if detail == nil {
		detail = &APIError{StatusCode: http.StatusInternalServerError}
	}
	metadata := map[string]any{
		"status_code":    detail.StatusCode,
		"backend_reason": detail.Reason,
		"backend_body":   string(detail.Body),
		"method":         detail.Method,
		"url":            detail.URL,
	}
	if detail.RetryAfter > 0 {
		metadata["retry_after_ms"] = detail.RetryAfter.Milliseconds()
	}
	return goerrors.Wrap(detail, apiErrorCategory(detail.StatusCode), detail.Error()).
		WithCode(detail.StatusCode).
		WithTextCode(ErrorAPI).
		WithMetadata(metadata)
}

func apiErrorCategory(status int) goerrors.Category {
	switch {
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case status == http.StatusForbidden:
		return goerrors.CategoryAuthz
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status == http.StatusConflict:
		return goerrors.CategoryConflict
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case status >= 400 && status < 500:
		return goerrors.CategoryBadInput
	default:
		return goerrors.CategoryExternal
	}
}

func IsConfigurationError(err error) bool {
	return hasTextCode(err, ErrorConfiguration)
}

func IsAuthError(err error) bool {
	return hasTextCode(err, ErrorAuth)
}

func IsTransportError(err error) bool {
	return hasTextCode(err, ErrorTransport)
}

func IsAPIError(err error) bool {
	return hasTextCode(err, ErrorAPI)
}

// APIErrorDetails extracts the backend response details from an api error.
func APIErrorDetails(err error) (APIError, bool) {
	var detail *APIError
	if errors.As(err, &detail) && detail != nil {
		return *detail, true
	}
	return APIError{}, false
}

// TokenExchangeDetails extracts the identity endpoint rejection from an auth error.
func TokenExchangeDetails(err error) (TokenExchangeError, bool) {
	var detail *TokenExchangeError
	if errors.As(err, &detail) && detail != nil {
		return *detail, true
	}
	return TokenExchangeError{}, false
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		return rich.TextCode == textCode
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
