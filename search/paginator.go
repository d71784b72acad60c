package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-isogeo/core"
)

const DefaultMaxWorkers = 10

// PageFunc fetches the page starting at offset with at most limit results.
type PageFunc func(ctx context.Context, offset, limit int) (Page, error)

// Paginator assembles a result set larger than one page. Pages are fetched
// with bounded concurrency and stored by index, so the merge always follows
// ascending offsets.
type Paginator struct {
	PageSize   int
	MaxWorkers int
	// MaxResults bounds the aggregation. Zero means the declared total.
	MaxResults int
	Logger     core.Logger
}

// PagesCount returns how many pages of pageSize cover total. A total that fits
// in one page, zero included, takes one page.
func PagesCount(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = MaxPageSize
	}
	if total <= pageSize {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// Paginate calls fetch once to learn the total, then fetches the remaining
// pages. With totalHint the sizing call is skipped and the first page is
// fetched along with the others. Any page failure aborts the whole call.
func (p Paginator) Paginate(ctx context.Context, fetch PageFunc, totalHint *int) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := p.Logger
	if logger == nil {
		logger = core.NopLogger()
	}
	pageSize := p.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	var (
		first    Page
		haveHead bool
		total    int
	)
	if totalHint != nil && *totalHint > 0 {
		total = *totalHint
	} else {
		page, err := fetch(ctx, 0, pageSize)
		if err != nil {
			return Result{}, err
		}
		first, haveHead, total = page, true, page.Total
		if total <= 0 {
			result := FromPage(page)
			result.Results = []core.Record{}
			result.Expected = 0
			return result, nil
		}
	}

	expected := total
	if p.MaxResults > 0 && p.MaxResults < expected {
		expected = p.MaxResults
	}
	pages := PagesCount(expected, pageSize)
	slots := make([]Page, pages)
	start := 0
	if haveHead {
		slots[0] = first
		start = 1
	}

	workers := p.MaxWorkers
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for index := start; index < pages; index++ {
		offset := index * pageSize
		limit := min(pageSize, expected-offset)
		group.Go(func() error {
			page, err := fetch(groupCtx, offset, limit)
			if err != nil {
				return err
			}
			slots[index] = page
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		logger.Debug("search pagination aborted", "pages", pages, "error", err)
		return Result{}, err
	}

	head := slots[0]
	results := make([]core.Record, 0, expected)
	for index, page := range slots {
		if page.Total != head.Total {
			logger.Warn("search total changed between pages",
				"page", index,
				"declared_total", head.Total,
				"page_total", page.Total,
			)
		}
		results = append(results, page.Results...)
	}
	if len(results) > expected {
		results = results[:expected]
	}
	if len(results) != expected {
		logger.Warn("aggregated search is shorter than expected",
			"expected", expected,
			"collected", len(results),
		)
	}

	return Result{
		Total:    head.Total,
		Results:  results,
		Tags:     cloneTags(head.Tags),
		Query:    head.Query,
		Envelope: head.Envelope,
		Pages:    pages,
		Expected: expected,
	}, nil
}
