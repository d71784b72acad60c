package tags

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-isogeo/core"
)

// Policy decides what happens when two tags of a facet share a label.
type Policy string

const (
	// PolicyRename keeps both, suffixing the later label with its workgroup
	// name or a short id.
	PolicyRename Policy = "rename"
	// PolicyIgnore keeps the first-seen tag only.
	PolicyIgnore Policy = "ignore"
	// PolicyMerge joins the tag values with Separator under one label.
	PolicyMerge Policy = "merge"
)

const Separator = "||"

func ParsePolicy(name string) (Policy, error) {
	policy := Policy(strings.ToLower(strings.TrimSpace(name)))
	if err := policy.Validate(); err != nil {
		return "", err
	}
	return policy, nil
}

func (p Policy) Validate() error {
	switch p {
	case PolicyRename, PolicyIgnore, PolicyMerge:
		return nil
	default:
		return core.NewConfigurationError(
			fmt.Sprintf("tags: duplicated label policy must be one of rename | ignore | merge, got %q", string(p)),
			map[string]any{"policy": string(p)},
		)
	}
}
