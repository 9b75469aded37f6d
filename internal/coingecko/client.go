// Package coingecko implements the price API collaborator: batched USD spot
// prices and the top-by-market-cap listing.
//
// Docs: https://docs.coingecko.com/reference/introduction
package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/coinsync/internal/infra"
	"github.com/seenimoa/coinsync/pkg/models"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	vsCurrency     = "usd"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	APIKey    string
	Pro       bool
	Timeout   time.Duration
	RateLimit int // requests per minute; 0 disables limiting
}

// Client talks to the CoinGecko REST API.
type Client struct {
	baseURL string
	headers map[string]string
	http    *http.Client
	limiter *infra.RateLimiter
}

// New creates a client.
func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	headers := map[string]string{}
	if opts.APIKey != "" {
		if opts.Pro {
			headers["x-cg-pro-api-key"] = opts.APIKey
		} else {
			headers["x-cg-demo-api-key"] = opts.APIKey
		}
	}

	c := &Client{
		baseURL: base,
		headers: headers,
		http:    infra.NewHTTPClient(opts.Timeout),
	}
	if opts.RateLimit > 0 {
		c.limiter = infra.PerMinute(opts.RateLimit)
	}
	return c
}

// SimplePrice returns the USD price of every requested identifier the API
// knows about. Unknown identifiers are simply absent from the result.
func (c *Client) SimplePrice(ctx context.Context, ids []string) (map[string]float64, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", vsCurrency)

	var resp map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", q, &resp); err != nil {
		return nil, fmt.Errorf("coingecko simple price: %w", err)
	}

	prices := make(map[string]float64, len(resp))
	for id, quotes := range resp {
		if p, ok := quotes[vsCurrency]; ok {
			prices[id] = p
		}
	}
	return prices, nil
}

// TopByMarketCap returns one page of coins ordered by descending market cap.
func (c *Client) TopByMarketCap(ctx context.Context, perPage, page int) ([]models.MarketCoin, error) {
	q := url.Values{}
	q.Set("vs_currency", vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))

	var coins []models.MarketCoin
	if err := c.get(ctx, "/coins/markets", q, &coins); err != nil {
		return nil, fmt.Errorf("coingecko markets: %w", err)
	}
	return coins, nil
}

// Ping checks connectivity to the API.
func (c *Client) Ping(ctx context.Context) error {
	var resp map[string]any
	if err := c.get(ctx, "/ping", nil, &resp); err != nil {
		return fmt.Errorf("coingecko ping: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return infra.DoJSON(ctx, c.http, http.MethodGet, u, c.headers, nil, out)
}
