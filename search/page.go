package search

import (
	"github.com/goliatone/go-isogeo/core"
	"github.com/goliatone/go-isogeo/response"
	"github.com/goliatone/go-isogeo/tags"
)

// Page is one search response.
type Page struct {
	Envelope map[string]any    `mapstructure:"envelope"`
	Limit    int               `mapstructure:"limit"`
	Offset   int               `mapstructure:"offset"`
	Query    map[string]any    `mapstructure:"query"`
	Results  []core.Record     `mapstructure:"results"`
	Tags     map[string]string `mapstructure:"tags"`
	Total    int               `mapstructure:"total"`
}

func DecodePage(payload response.Payload) (Page, error) {
	var page Page
	if payload.IsEmpty() {
		return page, nil
	}
	if err := payload.Decode(&page); err != nil {
		return Page{}, err
	}
	if page.Results == nil {
		page.Results = []core.Record{}
	}
	return page, nil
}

// Result is the concatenation of one or more pages, in offset order. Total,
// tags, query echo and envelope come from the first page.
type Result struct {
	Total    int
	Results  []core.Record
	Tags     map[string]string
	Query    map[string]any
	Envelope map[string]any
	Pages    int
	// Expected is the number of results the aggregation aimed at: the total,
	// or the caller bound when lower.
	Expected int

	Facets      tags.Dictionary
	QueryFacets tags.QueryDictionary
}

// Complete reports whether every expected result was collected. It can be
// false when the backend total drifted between page calls.
func (r Result) Complete() bool {
	return len(r.Results) == r.Expected
}

// FromPage wraps a single page as a result.
func FromPage(page Page) Result {
	results := page.Results
	if results == nil {
		results = []core.Record{}
	}
	return Result{
		Total:    page.Total,
		Results:  results,
		Tags:     cloneTags(page.Tags),
		Query:    page.Query,
		Envelope: page.Envelope,
		Pages:    1,
		Expected: len(results),
	}
}

func cloneTags(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
