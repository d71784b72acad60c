package tags

const (
	FacetActions     = "actions"
	FacetCatalogs    = "catalogs"
	FacetContacts    = "contacts"
	FacetDataSources = "data-sources"
	FacetFormats     = "formats"
	FacetInspires    = "inspires"
	FacetKeywords    = "keywords"
	FacetLicenses    = "licenses"
	FacetOwners      = "owners"
	FacetProviders   = "providers"
	FacetShares      = "shares"
	FacetSRS         = "srs"
	FacetTypes       = "types"
)

// Facets lists every dictionary section in display order.
var Facets = []string{
	FacetActions,
	FacetCatalogs,
	FacetContacts,
	FacetDataSources,
	FacetFormats,
	FacetInspires,
	FacetKeywords,
	FacetLicenses,
	FacetOwners,
	FacetProviders,
	FacetShares,
	FacetSRS,
	FacetTypes,
}

// Facet maps display labels to tag values and remembers insertion order.
type Facet struct {
	labels []string
	values map[string]string
}

func newFacet() *Facet {
	return &Facet{values: map[string]string{}}
}

func (f *Facet) Get(label string) (string, bool) {
	if f == nil {
		return "", false
	}
	value, ok := f.values[label]
	return value, ok
}

func (f *Facet) Has(label string) bool {
	_, ok := f.Get(label)
	return ok
}

func (f *Facet) Labels() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.labels...)
}

func (f *Facet) Len() int {
	if f == nil {
		return 0
	}
	return len(f.labels)
}

// Map returns a copy of the label to value mapping.
func (f *Facet) Map() map[string]string {
	out := map[string]string{}
	if f == nil {
		return out
	}
	for label, value := range f.values {
		out[label] = value
	}
	return out
}

func (f *Facet) set(label, value string) {
	if _, ok := f.values[label]; !ok {
		f.labels = append(f.labels, label)
	}
	f.values[label] = value
}

// Dictionary is keyed by facet name. Every facet is present, possibly empty.
type Dictionary map[string]*Facet

func newDictionary() Dictionary {
	dict := make(Dictionary, len(Facets))
	for _, name := range Facets {
		dict[name] = newFacet()
	}
	return dict
}

// Plain flattens the dictionary into nested maps.
func (d Dictionary) Plain() map[string]map[string]string {
	out := make(map[string]map[string]string, len(d))
	for name, facet := range d {
		out[name] = facet.Map()
	}
	return out
}

// QueryDictionary mirrors the query echo of a search response.
type QueryDictionary struct {
	Tags   Dictionary
	Shares []string
	Terms  []string
}
