package transport

import (
	"fmt"

	"github.com/goliatone/go-isogeo/core"
)

func requestError(source error, message string, metadata map[string]any) error {
	if source == nil {
		return core.NewConfigurationError(message, metadata)
	}
	err := core.WrapConfigurationError(source, message)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func bodyLimitError(limit int64, status int, target string) error {
	return core.WrapTransportError(nil,
		fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit),
		map[string]any{
			"status_code":      status,
			"url":              target,
			"response_limit_b": limit,
		},
	)
}
