package response

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-isogeo/core"
	"github.com/goliatone/go-isogeo/ratelimit"
)

const maxReasonLength = 512

// Validator classifies raw responses. It never retries.
type Validator struct {
	logger core.Logger
	// Now dates Retry-After headers given as http dates.
	Now func() time.Time
}

func NewValidator(logger core.Logger) *Validator {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Validator{logger: logger, Now: time.Now}
}

// Check returns the decoded payload of a 2xx response. 1xx and 3xx responses
// are accepted with a warning; anything from 400 up becomes an api error.
func (v *Validator) Check(raw core.RawResponse) (Payload, error) {
	if v == nil {
		v = NewValidator(nil)
	}
	switch {
	case raw.StatusCode >= http.StatusBadRequest:
		detail := &core.APIError{
			StatusCode: raw.StatusCode,
			Reason:     backendReason(raw),
			Body:       raw.Body,
			Method:     raw.Method,
			URL:        raw.URL,
		}
		if hint, ok := ratelimit.Parse(raw, v.now()); ok && hint.Throttled() {
			detail.RetryAfter = hint.Wait(v.now())
		}
		v.logger.Error("api request failed",
			"method", raw.Method,
			"url", raw.URL,
			"status", raw.StatusCode,
			"reason", detail.Reason,
		)
		return Payload{}, core.NewAPIError(detail)
	case raw.StatusCode < http.StatusOK || raw.StatusCode >= http.StatusMultipleChoices:
		v.logger.Warn("api responded outside the success range, accepting payload",
			"method", raw.Method,
			"url", raw.URL,
			"status", raw.StatusCode,
		)
	}
	return decodePayload(raw)
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func decodePayload(raw core.RawResponse) (Payload, error) {
	body := bytes.TrimSpace(raw.Body)
	payload := Payload{status: raw.StatusCode, raw: raw.Body}
	if raw.StatusCode == http.StatusNoContent || len(body) == 0 {
		return payload, nil
	}
	if !looksLikeJSON(raw.Headers.Get("Content-Type"), body) {
		payload.value = string(raw.Body)
		return payload, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return Payload{}, core.WrapTransportError(err, "response: decode json payload", map[string]any{
			"method":      raw.Method,
			"url":         raw.URL,
			"status_code": raw.StatusCode,
		})
	}
	payload.value = value
	return payload, nil
}

func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	return body[0] == '{' || body[0] == '['
}

// backendReason extracts the structured error message of the backend,
// falling back to the status line.
func backendReason(raw core.RawResponse) string {
	body := bytes.TrimSpace(raw.Body)
	if len(body) > 0 && body[0] == '{' {
		var envelope map[string]any
		if err := json.Unmarshal(body, &envelope); err == nil {
			for _, key := range []string{"error", "message", "error_description"} {
				if reason := reasonValue(envelope[key]); reason != "" {
					return truncate(reason, maxReasonLength)
				}
			}
		}
	}
	if status := strings.TrimSpace(raw.Status); status != "" {
		return status
	}
	return http.StatusText(raw.StatusCode)
}

func reasonValue(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case map[string]any:
		return reasonValue(typed["message"])
	default:
		return ""
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
