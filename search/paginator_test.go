package search

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-isogeo/core"
)

type fakeBackend struct {
	mu      sync.Mutex
	total   int
	offsets []int
	limits  []int
	fail    map[int]error
	drift   map[int]int
}

func (b *fakeBackend) fetch(_ context.Context, offset, limit int) (Page, error) {
	b.mu.Lock()
	b.offsets = append(b.offsets, offset)
	b.limits = append(b.limits, limit)
	b.mu.Unlock()

	if err := b.fail[offset]; err != nil {
		return Page{}, err
	}
	total := b.total
	if drifted, ok := b.drift[offset]; ok {
		total = drifted
	}
	results := []core.Record{}
	for i := offset; i < offset+limit && i < total; i++ {
		results = append(results, core.Record{"_id": fmt.Sprintf("md-%03d", i)})
	}
	return Page{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		Results: results,
		Tags:    map[string]string{"format:shp": "ESRI Shapefile"},
		Query:   map[string]any{"_terms": []any{}},
	}, nil
}

func (b *fakeBackend) sortedOffsets() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]int(nil), b.offsets...)
	sort.Ints(out)
	return out
}

func TestPaginate_CollectsEveryPageInOffsetOrder(t *testing.T) {
	backend := &fakeBackend{total: 237}
	result, err := Paginator{PageSize: 100}.Paginate(context.Background(), backend.fetch, nil)
	require.NoError(t, err)

	require.Equal(t, []int{0, 100, 200}, backend.sortedOffsets())
	require.Len(t, result.Results, 237)
	for i, record := range result.Results {
		require.Equal(t, fmt.Sprintf("md-%03d", i), record.String("_id"))
	}
	require.Equal(t, 237, result.Total)
	require.Equal(t, 3, result.Pages)
	require.True(t, result.Complete())
	require.Equal(t, "ESRI Shapefile", result.Tags["format:shp"])
}

func TestPaginate_ZeroTotalIssuesOneCall(t *testing.T) {
	backend := &fakeBackend{total: 0}
	result, err := Paginator{PageSize: 100}.Paginate(context.Background(), backend.fetch, nil)
	require.NoError(t, err)

	require.Equal(t, []int{0}, backend.sortedOffsets())
	require.NotNil(t, result.Results)
	require.Empty(t, result.Results)
	require.True(t, result.Complete())
}

func TestPaginate_AbortsOnMidSequenceFailure(t *testing.T) {
	apiErr := core.NewAPIError(&core.APIError{StatusCode: http.StatusInternalServerError, Reason: "boom"})
	backend := &fakeBackend{total: 237, fail: map[int]error{100: apiErr}}

	result, err := Paginator{PageSize: 100, MaxWorkers: 1}.Paginate(context.Background(), backend.fetch, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, apiErr)
	require.True(t, core.IsAPIError(err))
	require.Nil(t, result.Results)
}

func TestPaginate_TotalHintSkipsSizingCall(t *testing.T) {
	backend := &fakeBackend{total: 250}
	hint := 250
	result, err := Paginator{PageSize: 100}.Paginate(context.Background(), backend.fetch, &hint)
	require.NoError(t, err)

	require.Equal(t, []int{0, 100, 200}, backend.sortedOffsets())
	require.Len(t, result.Results, 250)
	require.Equal(t, "md-000", result.Results[0].String("_id"))
	require.Equal(t, "md-249", result.Results[249].String("_id"))
}

func TestPaginate_MaxResultsBoundsAggregation(t *testing.T) {
	backend := &fakeBackend{total: 500}
	result, err := Paginator{PageSize: 100, MaxResults: 150}.Paginate(context.Background(), backend.fetch, nil)
	require.NoError(t, err)

	require.Equal(t, []int{0, 100}, backend.sortedOffsets())
	require.Len(t, result.Results, 150)
	require.Equal(t, 500, result.Total)
	require.Equal(t, 150, result.Expected)
	require.True(t, result.Complete())
}

func TestPaginate_TotalDriftIsBestEffort(t *testing.T) {
	backend := &fakeBackend{total: 237, drift: map[int]int{200: 210}}
	result, err := Paginator{PageSize: 100}.Paginate(context.Background(), backend.fetch, nil)
	require.NoError(t, err)

	require.Len(t, result.Results, 210)
	require.Equal(t, 237, result.Total)
	require.False(t, result.Complete())
}

func TestPagesCount(t *testing.T) {
	cases := []struct{ total, size, want int }{
		{0, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{237, 100, 3},
		{300, 100, 3},
		{45, 20, 3},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, PagesCount(tc.total, tc.size), "total=%d size=%d", tc.total, tc.size)
	}
}
