package tags

import "strings"

// Entry is one backend tag string with its display label.
type Entry struct {
	Raw      string
	Category string
	Owner    string
	ID       string
	Label    string
}

// Parse splits a tag of the form category:id or category:owner:id. The label
// falls back to the id when the backend sends none, as it does for providers.
func Parse(raw string, label string) Entry {
	trimmed := strings.TrimSpace(raw)
	segments := strings.SplitN(trimmed, ":", 3)
	entry := Entry{Raw: trimmed, Category: segments[0], Label: strings.TrimSpace(label)}
	switch len(segments) {
	case 2:
		entry.ID = segments[1]
	case 3:
		entry.Owner = segments[1]
		entry.ID = segments[2]
	}
	if entry.Label == "" {
		entry.Label = entry.ID
	}
	return entry
}

// Facet returns the dictionary section an entry belongs to, or "" for tags
// that are not exposed as facets.
func (e Entry) Facet() string {
	switch e.Category {
	case "action":
		return FacetActions
	case "catalog":
		return FacetCatalogs
	case "contact":
		return FacetContacts
	case "coordinate-system":
		return FacetSRS
	case "data-source":
		return FacetDataSources
	case "format":
		return FacetFormats
	case "keyword":
		switch {
		case strings.HasPrefix(e.Owner, "in"):
			return FacetInspires
		case strings.HasPrefix(e.Owner, "is"):
			return FacetKeywords
		}
		return ""
	case "license":
		return FacetLicenses
	case "owner":
		return FacetOwners
	case "provider":
		return FacetProviders
	case "share":
		return FacetShares
	case "type":
		return FacetTypes
	default:
		return ""
	}
}
