package auth

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/goliatone/go-isogeo/core"
)

const maxReasonLength = 512

// missingAccessTokenText is the message of the unexported error x/oauth2
// returns for a 2xx token response without access_token
// ("oauth2: server response missing access_token").
const missingAccessTokenText = "server response missing access_token"

// exchangeError maps an oauth2 exchange failure onto the error taxonomy: an
// identity endpoint rejection is an auth error, anything else is transport.
func exchangeError(err error, grantType string, tokenURL string) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) && retrieve != nil {
		detail := &core.TokenExchangeError{
			Code:        strings.TrimSpace(retrieve.ErrorCode),
			Description: strings.TrimSpace(retrieve.ErrorDescription),
			GrantType:   grantType,
		}
		if retrieve.Response != nil {
			detail.StatusCode = retrieve.Response.StatusCode
		}
		if detail.Code == "" && detail.Description == "" {
			detail.Description = truncate(strings.TrimSpace(string(retrieve.Body)), maxReasonLength)
		}
		return core.NewAuthError(detail)
	}
	if err != nil && strings.Contains(err.Error(), missingAccessTokenText) {
		return missingAccessTokenError(grantType)
	}
	return core.WrapTransportError(err, "auth: token exchange request failed", map[string]any{
		"grant_type": grantType,
		"token_url":  tokenURL,
	})
}

func missingAccessTokenError(grantType string) error {
	return core.NewAuthError(&core.TokenExchangeError{
		StatusCode:  http.StatusOK,
		Code:        "missing_access_token",
		Description: "identity endpoint response has no access_token",
		GrantType:   grantType,
	})
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
