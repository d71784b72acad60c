// Package core contains the canonical client contracts: credentials, platform
// URL sets, tokens, request/response envelopes, error taxonomy and config
// resolution. Transport, auth, search and tag packages depend on core; core
// must not depend on any of them.
package core
