package tags

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-isogeo/core"
)

const shortIDLength = 5

type Resolver struct {
	logger core.Logger
}

func NewResolver(logger core.Logger) *Resolver {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Resolver{logger: logger}
}

// Resolve builds the facet dictionary in input order. Owner entries found in
// the input supply workgroup names for the rename policy.
func (r *Resolver) Resolve(entries []Entry, policy Policy) (Dictionary, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		r = NewResolver(nil)
	}

	owners := map[string]string{}
	for _, entry := range entries {
		if entry.Category == "owner" && entry.ID != "" {
			owners[entry.ID] = entry.Label
		}
	}

	dict := newDictionary()
	for _, entry := range entries {
		name := entry.Facet()
		if name == "" {
			r.logger.Debug("tag ignored, no matching facet", "tag", entry.Raw)
			continue
		}
		facet := dict[name]
		existing, collides := facet.Get(entry.Label)
		if !collides {
			facet.set(entry.Label, entry.Raw)
			continue
		}
		switch policy {
		case PolicyIgnore:
			r.logger.Debug("duplicated tag label, keeping first", "facet", name, "label", entry.Label, "dropped", entry.Raw)
		case PolicyMerge:
			facet.set(entry.Label, existing+Separator+entry.Raw)
		case PolicyRename:
			facet.set(renamedLabel(facet, entry, owners), entry.Raw)
		}
	}
	return dict, nil
}

func renamedLabel(facet *Facet, entry Entry, owners map[string]string) string {
	suffix := ""
	for _, candidate := range []string{entry.Owner, entry.ID} {
		if name, ok := owners[candidate]; ok && strings.TrimSpace(name) != "" {
			suffix = name
			break
		}
	}
	if suffix == "" {
		suffix = ownerlessSuffix(entry)
	}
	label := fmt.Sprintf("%s (%s)", entry.Label, suffix)
	if !facet.Has(label) {
		return label
	}
	return fmt.Sprintf("%s (%s)", entry.Label, entry.Raw)
}

// ownerlessSuffix uses the first characters of the uuid segment of the tag.
func ownerlessSuffix(entry Entry) string {
	id := entry.ID
	if _, err := uuid.Parse(entry.Owner); err == nil {
		id = entry.Owner
	}
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

// FromSearchTags resolves the tag map of a search response. Tags are
// processed in lexical order so the result does not depend on map iteration.
func (r *Resolver) FromSearchTags(tags map[string]string, policy Policy) (Dictionary, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, Parse(key, tags[key]))
	}
	return r.Resolve(entries, policy)
}

// FromQuery resolves the query echo of a search response. Labels come from
// the response tag map; a share filter is added to the tag list.
func (r *Resolver) FromQuery(query map[string]any, tags map[string]string, policy Policy) (QueryDictionary, error) {
	if err := policy.Validate(); err != nil {
		return QueryDictionary{}, err
	}
	queryTags := stringList(query["_tags"])
	shares := stringList(query["_shares"])
	if len(shares) > 0 {
		queryTags = append(queryTags, "share:"+shares[0])
	}

	entries := make([]Entry, 0, len(queryTags))
	for _, raw := range queryTags {
		entries = append(entries, Parse(raw, tags[raw]))
	}
	dict, err := r.Resolve(entries, policy)
	if err != nil {
		return QueryDictionary{}, err
	}
	return QueryDictionary{
		Tags:   dict,
		Shares: shares,
		Terms:  stringList(query["_terms"]),
	}, nil
}

func stringList(value any) []string {
	switch typed := value.(type) {
	case []string:
		return append([]string(nil), typed...)
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if text, ok := item.(string); ok && strings.TrimSpace(text) != "" {
				out = append(out, strings.TrimSpace(text))
			}
		}
		return out
	case string:
		if strings.TrimSpace(typed) == "" {
			return []string{}
		}
		return []string{strings.TrimSpace(typed)}
	default:
		return []string{}
	}
}
