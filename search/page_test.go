package search

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-isogeo/core"
	"github.com/goliatone/go-isogeo/response"
)

func TestDecodePage(t *testing.T) {
	payload, err := response.NewValidator(nil).Check(core.RawResponse{
		StatusCode: http.StatusOK,
		Body: []byte(`{
			"envelope": null,
			"limit": 2,
			"offset": 0,
			"query": {"_tags": ["format:shp"], "_terms": ["route"]},
			"results": [{"_id": "a", "title": "Routes"}, {"_id": "b", "title": "Rails"}],
			"tags": {"format:shp": "ESRI Shapefile", "provider:manual": null},
			"total": 12
		}`),
	})
	require.NoError(t, err)

	page, err := DecodePage(payload)
	require.NoError(t, err)
	require.Equal(t, 12, page.Total)
	require.Equal(t, 2, page.Limit)
	require.Len(t, page.Results, 2)
	require.Equal(t, "Rails", page.Results[1].String("title"))
	require.Equal(t, "ESRI Shapefile", page.Tags["format:shp"])
	require.Equal(t, "", page.Tags["provider:manual"])
	require.NotNil(t, page.Query["_tags"])

	result := FromPage(page)
	require.Equal(t, 2, result.Expected)
	require.True(t, result.Complete())
}
