package isogeo

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-isogeo/core"
	"github.com/goliatone/go-isogeo/search"
	"github.com/goliatone/go-isogeo/tags"
)

const sharesPath = "shares"

// Search runs a metadata search. With WholeResults every page is fetched and
// concatenated in offset order; otherwise one page is returned.
func (c *Client) Search(ctx context.Context, query search.Query) (search.Result, error) {
	if err := c.ensureOpen(); err != nil {
		return search.Result{}, err
	}
	if !query.SkipCheck {
		if err := query.Validate(); err != nil {
			return search.Result{}, err
		}
	}
	policy := query.DuplicatedTags
	if policy == "" {
		policy = tags.PolicyRename
	}
	if query.TagsAsDicts {
		if err := policy.Validate(); err != nil {
			return search.Result{}, err
		}
	}

	var (
		result search.Result
		err    error
	)
	if query.WholeResults {
		paginator := search.Paginator{
			PageSize:   search.MaxPageSize,
			MaxWorkers: c.workers,
			MaxResults: query.MaxResults,
			Logger:     c.logger,
		}
		result, err = paginator.Paginate(ctx, func(ctx context.Context, offset, limit int) (search.Page, error) {
			return c.searchPage(ctx, query.WithPage(offset, limit))
		}, query.ExpectedTotal)
	} else {
		var page search.Page
		page, err = c.searchPage(ctx, query)
		result = search.FromPage(page)
	}
	if err != nil {
		return search.Result{}, err
	}

	if query.Augment {
		if err := c.augment(ctx, &result, query.Share); err != nil {
			return search.Result{}, err
		}
	}
	if query.TagsAsDicts {
		facets, err := c.tags.FromSearchTags(result.Tags, policy)
		if err != nil {
			return search.Result{}, err
		}
		queryFacets, err := c.tags.FromQuery(result.Query, result.Tags, policy)
		if err != nil {
			return search.Result{}, err
		}
		result.Facets = facets
		result.QueryFacets = queryFacets
	}
	return result, nil
}

func (c *Client) searchPage(ctx context.Context, query search.Query) (search.Page, error) {
	payload, err := c.Request(ctx, core.Request{
		Method: http.MethodGet,
		Path:   query.Path(),
		Query:  query.Params(),
	})
	if err != nil {
		return search.Page{}, err
	}
	page, err := search.DecodePage(payload)
	if err != nil {
		return search.Page{}, core.WrapTransportError(err, "isogeo: malformed search page", map[string]any{
			"path":   query.Path(),
			"offset": query.Offset,
		})
	}
	return page, nil
}

// augment adds the application shares to the tags and echoes the share
// filter in the query.
func (c *Client) augment(ctx context.Context, result *search.Result, share string) error {
	shares, err := c.shareTags(ctx)
	if err != nil {
		return err
	}
	if result.Tags == nil {
		result.Tags = map[string]string{}
	}
	for tag, name := range shares {
		result.Tags[tag] = name
	}
	if result.Query == nil {
		result.Query = map[string]any{}
	}
	if share = strings.TrimSpace(share); share != "" {
		result.Query["_shares"] = []any{share}
	} else {
		result.Query["_shares"] = []any{}
	}
	return nil
}

// shareTags lists the application shares once per client; writes reset it.
func (c *Client) shareTags(ctx context.Context) (map[string]string, error) {
	c.sharesMu.Lock()
	cached := c.shares
	c.sharesMu.Unlock()
	if cached != nil {
		return cached, nil
	}

	payload, err := c.Request(ctx, core.Request{Method: http.MethodGet, Path: sharesPath})
	if err != nil {
		return nil, err
	}
	records, _ := payload.Records()
	shares := make(map[string]string, len(records))
	for _, record := range records {
		id := record.String("_id")
		if id == "" {
			continue
		}
		shares["share:"+id] = record.String("name")
	}

	c.sharesMu.Lock()
	c.shares = shares
	c.sharesMu.Unlock()
	return shares, nil
}

func (c *Client) resetShares() {
	c.sharesMu.Lock()
	c.shares = nil
	c.sharesMu.Unlock()
}
