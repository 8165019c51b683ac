// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package openalex issues single queries against the OpenAlex works
// endpoint and decodes the response into a types.RawPage.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/research-gap/internal/httputil"
	"github.com/pdiddy/research-gap/pkg/types"
)

// DefaultEndpoint is the OpenAlex Works search endpoint.
const DefaultEndpoint = "https://api.openalex.org/works"

// StartCursor begins a cursor-paginated traversal.
const StartCursor = "*"

// Query is the parameter set of one works request. Zero-valued fields are
// omitted from the URL.
type Query struct {
	Search  string
	GroupBy string
	Filter  string
	PerPage int
	Select  []string
	Cursor  string
}

// Values encodes q plus the courtesy mailto identifier.
func (q Query) Values(mailto string) url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.GroupBy != "" {
		v.Set("group-by", q.GroupBy)
	}
	if q.Filter != "" {
		v.Set("filter", q.Filter)
	}
	if q.PerPage > 0 {
		v.Set("per-page", strconv.Itoa(q.PerPage))
	}
	if len(q.Select) > 0 {
		v.Set("select", strings.Join(q.Select, ","))
	}
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}
	if mailto != "" {
		v.Set("mailto", mailto)
	}
	return v
}

// YearFilter returns the filter expression for a single publication year.
func YearFilter(year int) string {
	return fmt.Sprintf("publication_year:%d", year)
}

// YearRangeFilter returns the filter expression for an inclusive year range.
func YearRangeFilter(from, to int) string {
	if from == to {
		return YearFilter(from)
	}
	return fmt.Sprintf("publication_year:%d-%d", from, to)
}

// Client executes works queries with the shared retry policy.
type Client struct {
	HTTP      *http.Client
	Endpoint  string
	Email     string
	UserAgent string
	Policy    httputil.Policy
	Sleeper   httputil.Sleeper

	// Log receives retry notices. Nil discards them.
	Log io.Writer
}

// NewClient builds a Client from crawl configuration.
func NewClient(cfg types.CrawlConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		HTTP:      &http.Client{Timeout: cfg.Timeout},
		Endpoint:  endpoint,
		Email:     cfg.Email,
		UserAgent: cfg.UserAgent,
		Policy:    httputil.PolicyFromConfig(cfg.RetryConfig),
		Sleeper:   httputil.RealSleeper{},
	}
}

// URL returns the full request URL for q.
func (c *Client) URL(q Query) string {
	return c.Endpoint + "?" + q.Values(c.Email).Encode()
}

// ExecuteQuery issues one GET for q, retrying per c.Policy. A body that is
// not JSON comes back as a malformed *httputil.FatalError; a JSON body with
// missing top-level keys is returned as-is for the caller to judge.
func (c *Client) ExecuteQuery(ctx context.Context, q Query) (*types.RawPage, error) {
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	var header http.Header
	if c.UserAgent != "" {
		header = http.Header{"User-Agent": {c.UserAgent}}
	}

	body, err := httputil.Get(ctx, client, c.URL(q), header, c.Policy, c.Sleeper, c.Log)
	if err != nil {
		return nil, err
	}

	var page types.RawPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &httputil.FatalError{
			Class: httputil.ClassMalformed,
			Err:   fmt.Errorf("parsing OpenAlex response: %w", err),
		}
	}
	return &page, nil
}
