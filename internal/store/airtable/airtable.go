// Package airtable implements store.Store on the Airtable REST API.
//
// Rate limit: 5 requests/second per base. Create accepts at most 10 records
// per request; larger batches are split.
// Docs: https://airtable.com/developers/web/api/introduction
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/coinsync/internal/infra"
	"github.com/seenimoa/coinsync/internal/store"
)

const (
	DefaultBaseURL = "https://api.airtable.com/v0"
	maxBatch       = 10
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	BaseID  string
	Timeout time.Duration
}

// Client is a store.Store backed by one Airtable base.
type Client struct {
	baseURL string
	baseID  string
	headers map[string]string
	http    *http.Client
	limiter *infra.RateLimiter
}

// New creates a client. Token and BaseID are required.
func New(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("airtable: token is required")
	}
	if opts.BaseID == "" {
		return nil, fmt.Errorf("airtable: base id is required")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	return &Client{
		baseURL: base,
		baseID:  opts.BaseID,
		headers: map[string]string{
			"Authorization": "Bearer " + opts.Token,
			"Content-Type":  "application/json",
		},
		http:    infra.NewHTTPClient(opts.Timeout),
		limiter: infra.NewRateLimiter(5, 200*time.Millisecond),
	}, nil
}

// --- Wire types ---

type listResponse struct {
	Records []store.Record `json:"records"`
	Offset  string         `json:"offset,omitempty"`
}

type createRequest struct {
	Records []createRecord `json:"records"`
}

type createRecord struct {
	Fields map[string]any `json:"fields"`
}

// Create inserts records in batches of at most ten.
func (c *Client) Create(ctx context.Context, table string, fields []map[string]any) ([]store.Record, error) {
	created := make([]store.Record, 0, len(fields))
	for start := 0; start < len(fields); start += maxBatch {
		end := start + maxBatch
		if end > len(fields) {
			end = len(fields)
		}

		req := createRequest{Records: make([]createRecord, 0, end-start)}
		for _, f := range fields[start:end] {
			req.Records = append(req.Records, createRecord{Fields: f})
		}
		body, err := json.Marshal(req)
		if err != nil {
			return created, fmt.Errorf("airtable create %s: encode: %w", table, err)
		}

		var resp listResponse
		if err := c.do(ctx, http.MethodPost, c.tableURL(table, nil), body, &resp); err != nil {
			return created, fmt.Errorf("airtable create %s: %w", table, err)
		}
		created = append(created, resp.Records...)
	}
	return created, nil
}

// FirstPage fetches a single page.
func (c *Client) FirstPage(ctx context.Context, table string, q store.Query) ([]store.Record, error) {
	page, err := c.list(ctx, table, q, "")
	if err != nil {
		return nil, err
	}
	return page.Records, nil
}

// All follows offsets until the API stops returning one. MaxRecords is
// enforced server-side across pages.
func (c *Client) All(ctx context.Context, table string, q store.Query) ([]store.Record, error) {
	var all []store.Record
	offset := ""
	for {
		page, err := c.list(ctx, table, q, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.Offset == "" {
			break
		}
		offset = page.Offset
	}
	if all == nil {
		all = []store.Record{}
	}
	return all, nil
}

func (c *Client) list(ctx context.Context, table string, q store.Query, offset string) (*listResponse, error) {
	params := url.Values{}
	if q.MaxRecords > 0 {
		params.Set("maxRecords", strconv.Itoa(q.MaxRecords))
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.View != "" {
		params.Set("view", q.View)
	}
	if q.Filter != nil {
		params.Set("filterByFormula", q.Filter.Formula())
	}
	if offset != "" {
		params.Set("offset", offset)
	}

	var resp listResponse
	if err := c.do(ctx, http.MethodGet, c.tableURL(table, params), nil, &resp); err != nil {
		return nil, fmt.Errorf("airtable list %s: %w", table, err)
	}
	if resp.Records == nil {
		resp.Records = []store.Record{}
	}
	return &resp, nil
}

func (c *Client) tableURL(table string, params url.Values) string {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(table))
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	if reader == nil {
		return infra.DoJSON(ctx, c.http, method, u, c.headers, nil, out)
	}
	return infra.DoJSON(ctx, c.http, method, u, c.headers, reader, out)
}
