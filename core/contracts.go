package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// Sender executes one prepared request against the backend.
type Sender interface {
	Send(ctx context.Context, req Request, rc RequestContext) (RawResponse, error)
}

// TokenSource hands out a token valid for the duration of a call.
type TokenSource interface {
	EnsureValid(ctx context.Context) (Token, error)
}

// ResolveLogger uses deterministic precedence provider > logger > nop and
// names the result after the component.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) Logger {
	resolvedProvider, resolved := glog.Resolve(name, provider, logger)
	resolved = glog.Ensure(resolved)
	if resolvedProvider != nil {
		if named := resolvedProvider.GetLogger(name); named != nil {
			resolved = glog.Ensure(named)
		}
	}
	return resolved
}

func NopLogger() Logger {
	return glog.Nop()
}
