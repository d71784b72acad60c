package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/goliatone/go-isogeo/core"
	"github.com/goliatone/go-isogeo/tags"
)

const (
	MaxPageSize     = 100
	DefaultPageSize = 20
)

var (
	uniqueFilters = []string{"coordinate-system", "format", "owner", "type"}
	typeValues    = []string{"dataset", "raster-dataset", "vector-dataset", "no-geo-dataset", "resource", "service"}
	actionValues  = []string{"download", "other", "view"}
	providers     = []string{"manual", "auto"}
	geoRelations  = []string{"contains", "disjoint", "equal", "intersects", "overlaps", "within"}
	orderByValues = []string{"_created", "_modified", "title", "created", "modified", "relevance"}
	orderDirs     = []string{"asc", "desc"}

	// Subresources accepted by _include on metadata.
	Subresources = []string{
		"_creator",
		"conditions",
		"contacts",
		"coordinate-system",
		"events",
		"feature-attributes",
		"keywords",
		"layers",
		"limitations",
		"links",
		"operations",
		"serviceLayers",
		"specifications",
		"tags",
	}
)

// Query holds the metadata search parameters and the client-side options of
// one search call.
type Query struct {
	// Group scopes the search to a workgroup. Empty searches as application.
	Group      string
	Text       string
	Share      string
	SpecificMD []string
	Include    []string
	BBox       []float64
	Poly       string
	GeoRel     string
	OrderBy    string
	OrderDir   string
	PageSize   int
	Offset     int
	Lang       string

	// SkipCheck disables Validate in the client.
	SkipCheck bool
	// WholeResults fetches every page instead of one.
	WholeResults bool
	// ExpectedTotal spares the first sizing call when the total is known.
	ExpectedTotal *int
	// MaxResults bounds an aggregated search. Zero means no bound.
	MaxResults int
	// Augment adds share tags and the share query echo.
	Augment bool
	// TagsAsDicts resolves facet dictionaries with DuplicatedTags.
	TagsAsDicts    bool
	DuplicatedTags tags.Policy
}

// Path returns the search route relative to the API base url.
func (q Query) Path() string {
	if group := strings.TrimSpace(q.Group); group != "" {
		return "groups/" + group + "/resources/search"
	}
	return "resources/search"
}

// WithPage returns a copy targeting one page.
func (q Query) WithPage(offset, limit int) Query {
	q.Offset = offset
	q.PageSize = limit
	return q
}

// Params renders the backend query string. Page size zero is sent as is: it
// asks for the search context only.
func (q Query) Params() url.Values {
	values := url.Values{}
	values.Set("_limit", strconv.Itoa(q.pageSize()))
	values.Set("_offset", strconv.Itoa(max(q.Offset, 0)))
	values.Set("ob", firstNonEmpty(q.OrderBy, "_created"))
	values.Set("od", firstNonEmpty(q.OrderDir, "desc"))
	setIf(values, "q", strings.TrimSpace(q.Text))
	setIf(values, "s", strings.TrimSpace(q.Share))
	setIf(values, "_id", strings.Join(trimAll(q.SpecificMD), ","))
	setIf(values, "_include", strings.Join(q.includes(), ","))
	setIf(values, "geo", strings.TrimSpace(q.Poly))
	setIf(values, "rel", strings.TrimSpace(q.GeoRel))
	setIf(values, "_lang", strings.TrimSpace(q.Lang))
	if len(q.BBox) > 0 {
		parts := make([]string, 0, len(q.BBox))
		for _, coord := range q.BBox {
			parts = append(parts, strconv.FormatFloat(coord, 'f', -1, 64))
		}
		values.Set("box", strings.Join(parts, ","))
	}
	return values
}

func (q Query) pageSize() int {
	switch {
	case q.PageSize < 0:
		return DefaultPageSize
	case q.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return q.PageSize
	}
}

func (q Query) includes() []string {
	for _, item := range q.Include {
		if strings.EqualFold(strings.TrimSpace(item), "all") {
			return append([]string(nil), Subresources...)
		}
	}
	return trimAll(q.Include)
}

// NewQuery returns a query with the backend defaults.
func NewQuery(text string) Query {
	return Query{
		Text:           text,
		OrderBy:        "_created",
		OrderDir:       "desc",
		PageSize:       DefaultPageSize,
		DuplicatedTags: tags.PolicyRename,
	}
}

// Validate checks the parameters before any request is sent.
func (q Query) Validate() error {
	var result *multierror.Error

	filters := map[string][]string{}
	for _, term := range strings.Fields(q.Text) {
		segments := strings.Split(term, ":")
		if len(segments) < 2 {
			continue
		}
		filters[segments[0]] = append(filters[segments[0]], strings.Join(segments[1:], ":"))
	}
	for _, name := range uniqueFilters {
		if count := len(filters[name]); count > 1 {
			result = multierror.Append(result, fmt.Errorf("filter %s must be unique, found %d times", name, count))
		}
	}
	checkFilterValue(&result, filters, "type", typeValues)
	checkFilterValue(&result, filters, "action", actionValues)
	checkFilterValue(&result, filters, "provider", providers)

	if rel := strings.TrimSpace(q.GeoRel); rel != "" {
		if len(q.BBox) == 0 && strings.TrimSpace(q.Poly) == "" {
			result = multierror.Append(result, fmt.Errorf("georel requires a bbox or a polygon"))
		}
		if !contains(geoRelations, rel) {
			result = multierror.Append(result, fmt.Errorf("georel must be one of %s, got %q", strings.Join(geoRelations, " | "), rel))
		}
	}
	if len(q.BBox) > 0 && len(q.BBox) != 4 {
		result = multierror.Append(result, fmt.Errorf("bbox must have 4 coordinates, got %d", len(q.BBox)))
	}
	if q.OrderBy != "" && !contains(orderByValues, q.OrderBy) {
		result = multierror.Append(result, fmt.Errorf("order_by must be one of %s, got %q", strings.Join(orderByValues, " | "), q.OrderBy))
	}
	if q.OrderDir != "" && !contains(orderDirs, q.OrderDir) {
		result = multierror.Append(result, fmt.Errorf("order_dir must be asc or desc, got %q", q.OrderDir))
	}
	if q.PageSize > MaxPageSize {
		result = multierror.Append(result, fmt.Errorf("page size must not exceed %d, got %d", MaxPageSize, q.PageSize))
	}
	if q.Offset < 0 || q.MaxResults < 0 {
		result = multierror.Append(result, fmt.Errorf("offset and max results must not be negative"))
	}
	for _, item := range q.includes() {
		if !contains(Subresources, item) {
			result = multierror.Append(result, fmt.Errorf("%q is not a metadata subresource", item))
		}
	}
	checkUUID(&result, "group", q.Group)
	checkUUID(&result, "share", q.Share)
	for _, id := range q.SpecificMD {
		checkUUID(&result, "specific_md", id)
	}
	if q.TagsAsDicts && q.DuplicatedTags != "" {
		if err := q.DuplicatedTags.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return core.WrapConfigurationError(err, "search: invalid search parameters")
	}
	return nil
}

func checkFilterValue(result **multierror.Error, filters map[string][]string, name string, allowed []string) {
	for _, value := range filters[name] {
		head := strings.ToLower(strings.SplitN(value, ":", 2)[0])
		if !contains(allowed, head) {
			*result = multierror.Append(*result, fmt.Errorf("%s value must be one of %s, got %q", name, strings.Join(allowed, " | "), value))
		}
	}
}

func checkUUID(result **multierror.Error, field, value string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return
	}
	if _, err := uuid.Parse(trimmed); err != nil {
		*result = multierror.Append(*result, fmt.Errorf("%s must be a uuid, got %q", field, trimmed))
	}
}

func setIf(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func contains(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
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
