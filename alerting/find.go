package alerting

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ruleguard/core"
)

// Page selects one page of results. Index is zero-based.
type Page struct {
	Index int `validate:"gte=0"`
	Size  int `validate:"gte=1,lte=10000"`
}

// ListOptions narrows a List request
type ListOptions struct {
	Page        Page
	SearchText  string
	TagsFilter  []string `validate:"dive,required"`
	TypesFilter []string `validate:"dive,required"`
}

// List finds alerts matching opts
func (c *Client) List(ctx context.Context, opts ListOptions) (*core.AlertPage, error) {
	if err := c.validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid list options: %w", err)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(opts.Page.Index+1))
	query.Set("per_page", strconv.Itoa(opts.Page.Size))
	if opts.SearchText != "" {
		query.Set("search_fields", "name")
		query.Set("search", opts.SearchText)
	}
	if filter := BuildFilter(opts.TagsFilter, opts.TypesFilter); filter != "" {
		query.Set("filter", filter)
	}

	var page core.AlertPage
	if err := c.do(ctx, "list", http.MethodGet, c.path("_find"), query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// BuildFilter builds the KQL filter for a find request: alerts carrying all
// of tags and having any of types. It returns "" when both are empty.
func BuildFilter(tags, types []string) string {
	var clauses []string
	if len(tags) > 0 {
		clauses = append(clauses, fmt.Sprintf("alert.attributes.tags:(%s)", strings.Join(tags, " and ")))
	}
	if len(types) > 0 {
		clauses = append(clauses, fmt.Sprintf("alert.attributes.alertTypeId:(%s)", strings.Join(types, " or ")))
	}
	return strings.Join(clauses, " and ")
}
