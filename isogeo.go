// Package isogeo is a client for the Isogeo metadata catalog API: token
// lifecycle, TLS fallback, response classification, paginated search and
// tag dictionaries. Resource handlers build on Client.Request.
package isogeo

import (
	"github.com/goliatone/go-isogeo/core"
	"github.com/goliatone/go-isogeo/response"
	"github.com/goliatone/go-isogeo/search"
	"github.com/goliatone/go-isogeo/tags"
)

const Version = core.Version

type Config = core.Config

type Credentials = core.Credentials

type Token = core.Token

type Request = core.Request

type Outcome = core.Outcome

type Record = core.Record

type Payload = response.Payload

type Query = search.Query

type Result = search.Result

type TagPolicy = tags.Policy

const (
	AuthModeGroup      = core.AuthModeGroup
	AuthModeUserLegacy = core.AuthModeUserLegacy

	PlatformProd   = core.PlatformProd
	PlatformQA     = core.PlatformQA
	PlatformCustom = core.PlatformCustom
)

var (
	IsConfigurationError = core.IsConfigurationError
	IsAuthError          = core.IsAuthError
	IsTransportError     = core.IsTransportError
	IsAPIError           = core.IsAPIError
	APIErrorDetails      = core.APIErrorDetails
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewQuery(text string) Query {
	return search.NewQuery(text)
}
