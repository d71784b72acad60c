package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-isogeo/core"
	"github.com/goliatone/go-isogeo/tags"
)

func TestQueryParams(t *testing.T) {
	q := NewQuery("type:vector-dataset format:shp route")
	q.Include = []string{"links", "contacts"}
	q.BBox = []float64{-4.97, 41.33, 9.56, 51.09}
	q.GeoRel = "intersects"
	q.SpecificMD = []string{"633216a375ab48ca8ca72e4a1af7a266"}
	q.Lang = "en"

	params := q.WithPage(200, 100).Params()
	require.Equal(t, "100", params.Get("_limit"))
	require.Equal(t, "200", params.Get("_offset"))
	require.Equal(t, "type:vector-dataset format:shp route", params.Get("q"))
	require.Equal(t, "links,contacts", params.Get("_include"))
	require.Equal(t, "-4.97,41.33,9.56,51.09", params.Get("box"))
	require.Equal(t, "intersects", params.Get("rel"))
	require.Equal(t, "_created", params.Get("ob"))
	require.Equal(t, "desc", params.Get("od"))
	require.Equal(t, "en", params.Get("_lang"))
	require.Equal(t, "633216a375ab48ca8ca72e4a1af7a266", params.Get("_id"))
	require.False(t, params.Has("s"))
}

func TestQueryParams_IncludeAllExpands(t *testing.T) {
	q := NewQuery("")
	q.Include = []string{"all"}
	require.Contains(t, q.Params().Get("_include"), "serviceLayers")
	require.NoError(t, q.Validate())
}

func TestQueryPath(t *testing.T) {
	require.Equal(t, "resources/search", NewQuery("").Path())
	q := NewQuery("")
	q.Group = "32f7e95ec4e94ca3bc1afda960003882"
	require.Equal(t, "groups/32f7e95ec4e94ca3bc1afda960003882/resources/search", q.Path())
}

func TestQueryValidate(t *testing.T) {
	cases := map[string]func(*Query){
		"duplicated unique filter": func(q *Query) { q.Text = "format:shp format:dxf" },
		"unknown type":             func(q *Query) { q.Text = "type:table" },
		"unknown action":           func(q *Query) { q.Text = "action:print" },
		"unknown provider":         func(q *Query) { q.Text = "provider:robot" },
		"georel without geometry":  func(q *Query) { q.GeoRel = "within" },
		"unknown georel":           func(q *Query) { q.GeoRel = "touches"; q.Poly = "POINT(1 1)" },
		"bbox arity":               func(q *Query) { q.BBox = []float64{1, 2, 3} },
		"order by":                 func(q *Query) { q.OrderBy = "size" },
		"order dir":                func(q *Query) { q.OrderDir = "up" },
		"page size":                func(q *Query) { q.PageSize = 101 },
		"group uuid":               func(q *Query) { q.Group = "not-a-uuid" },
		"share uuid":               func(q *Query) { q.Share = "share-1" },
		"include":                  func(q *Query) { q.Include = []string{"everything"} },
		"tag policy":               func(q *Query) { q.TagsAsDicts = true; q.DuplicatedTags = tags.Policy("renam") },
	}
	for name, mutate := range cases {
		q := NewQuery("")
		mutate(&q)
		err := q.Validate()
		require.Error(t, err, name)
		require.True(t, core.IsConfigurationError(err), name)
	}

	valid := NewQuery("type:dataset action:download provider:auto keyword:isogeo:routes")
	valid.BBox = []float64{1, 2, 3, 4}
	valid.GeoRel = "contains"
	require.NoError(t, valid.Validate())
}
