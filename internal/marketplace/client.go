// Package marketplace is a small client for the seller marketplace APIs the
// jobs read from: documents (acceptance acts), marketplace orders and
// supplies, and the internal stock service. Requests are paced per account
// and API group with token-bucket limiters, and 429/5xx responses are
// retried with backoff by the underlying resty client.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/vuvuzela92/waregouse-project/internal/metrics"
)

// Account is a seller account and its API token.
type Account struct {
	Name  string
	Token string
}

// Group identifies an API rate-limit bucket. Limits apply per account.
type Group string

const (
	GroupDocuments   Group = "documents"
	GroupDownloads   Group = "downloads"
	GroupMarketplace Group = "marketplace"
	GroupStock       Group = "stock"
)

// Limit is a token bucket: one request per Every, with Burst requests
// allowed back to back. A zero Every disables pacing.
type Limit struct {
	Every time.Duration
	Burst int
}

// DefaultLimits mirror the published per-account quotas.
var DefaultLimits = map[Group]Limit{
	GroupDocuments:   {Every: 10 * time.Second, Burst: 5},
	GroupDownloads:   {Every: 5 * time.Minute, Burst: 1},
	GroupMarketplace: {Every: 200 * time.Millisecond, Burst: 10},
	GroupStock:       {},
}

// Options configures a Client.
type Options struct {
	DocumentsURL   string
	MarketplaceURL string
	StockURL       string

	Timeout      time.Duration
	MaxRetries   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration

	// Limits overrides DefaultLimits per group.
	Limits map[Group]Limit
	Logger *slog.Logger
}

// Client talks to the marketplace APIs. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hc := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && isRetryableStatus(r.StatusCode())
		})

	return &Client{
		http:     hc,
		opts:     opts,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// isRetryableStatus reports whether a response status is worth retrying.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// wait blocks until the account's bucket for group admits a request.
func (c *Client) wait(ctx context.Context, account string, group Group) error {
	lim, ok := c.opts.Limits[group]
	if !ok {
		lim = DefaultLimits[group]
	}
	if lim.Every <= 0 {
		return nil
	}

	key := string(group) + "|" + account
	c.mu.Lock()
	l, ok := c.limiters[key]
	if !ok {
		burst := lim.Burst
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Every(lim.Every), burst)
		c.limiters[key] = l
	}
	c.mu.Unlock()
	return l.Wait(ctx)
}

// call describes one API request.
type call struct {
	group    Group
	endpoint string // metric label, e.g. "orders"
	account  Account
	method   string
	url      string
	query    map[string]string
	body     any
}

// do paces, sends and decodes one request into out. Non-2xx responses
// become *APIError after resty's retries are exhausted.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	if err := c.wait(ctx, cl.account.Name, cl.group); err != nil {
		return err
	}

	req := c.http.R().SetContext(ctx)
	if cl.account.Token != "" {
		req.SetHeader("Authorization", cl.account.Token)
	}
	if len(cl.query) > 0 {
		req.SetQueryParams(cl.query)
	}
	if cl.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(cl.body)
	}

	start := time.Now()
	resp, err := req.Execute(cl.method, cl.url)
	if err != nil {
		metrics.RecordRequest(cl.endpoint, "error")
		return fmt.Errorf("marketplace: %s for %s: %w", cl.endpoint, cl.account.Name, err)
	}
	metrics.RecordRequest(cl.endpoint, statusClass(resp.StatusCode()))
	c.logger.DebugContext(ctx, "marketplace: request",
		slog.String("endpoint", cl.endpoint),
		slog.String("account", cl.account.Name),
		slog.Int("status", resp.StatusCode()),
		slog.Duration("elapsed", time.Since(start)))

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return &APIError{
			Endpoint: cl.endpoint,
			Account:  cl.account.Name,
			Status:   resp.StatusCode(),
			Body:     truncate(strings.TrimSpace(resp.String()), 512),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("marketplace: %s for %s: decode: %w", cl.endpoint, cl.account.Name, err)
	}
	return nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func join(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
