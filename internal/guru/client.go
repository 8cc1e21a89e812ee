// Package guru fetches subscriptions and transactions from the Digital
// Manager Guru billing API.
package guru

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/smallbiznis/kpireport/internal/config"
	"github.com/smallbiznis/kpireport/internal/observability/metrics"
	"github.com/smallbiznis/kpireport/internal/record"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrUpstream = errors.New("upstream_error")

const userAgent = "kpireport"

// Resource describes a date-filtered collection endpoint.
type Resource struct {
	Name      string
	Path      string
	FromParam string
	ToParam   string
}

var (
	Subscriptions = Resource{
		Name:      metrics.ResourceSubscriptions,
		Path:      "/subscriptions",
		FromParam: "created_at_ini",
		ToParam:   "created_at_end",
	}
	Transactions = Resource{
		Name:      metrics.ResourceTransactions,
		Path:      "/transactions",
		FromParam: "confirmed_at_ini",
		ToParam:   "confirmed_at_end",
	}
)

type page struct {
	Data         []record.Record `json:"data"`
	HasMorePages any             `json:"has_more_pages"`
	NextCursor   any             `json:"next_cursor"`
}

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.RunMetrics `optional:"true"`
}

// Client is a bearer-token client with retry and page pacing.
type Client struct {
	baseURL      string
	token        string
	pageSize     int
	maxRangeDays int

	http    *retryablehttp.Client
	limiter *rate.Limiter
	log     *zap.Logger
	metrics *metrics.RunMetrics
}

type Option func(*Client)

// WithRetryWait overrides the retry backoff bounds.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = minWait
		c.http.RetryWaitMax = maxWait
	}
}

// WithPageRate overrides how many page requests may start per second.
func WithPageRate(perSecond float64) Option {
	return func(c *Client) {
		c.limiter = newLimiter(perSecond)
	}
}

func NewClient(p Params) (*Client, error) {
	return New(p.Config.Guru, p.Log, p.Metrics)
}

// New builds a client. A missing token fails fast so no request is made.
func New(cfg config.GuruConfig, log *zap.Logger, m *metrics.RunMetrics, opts ...Option) (*Client, error) {
	token, err := cfg.RequireToken()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("guru.client")

	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient.Timeout = cfg.RequestTimeout
	httpClient.RetryMax = cfg.RetryMax
	httpClient.RetryWaitMin = 800 * time.Millisecond
	httpClient.RetryWaitMax = 30 * time.Second
	httpClient.Logger = leveledLogger{log: log.Sugar()}
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	httpClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			m.IncFetchRetries(path.Base(req.URL.Path))
		}
	}

	c := &Client{
		baseURL:      cfg.BaseURL,
		token:        token,
		pageSize:     cfg.PageSize,
		maxRangeDays: cfg.MaxRangeDays,
		http:         httpClient,
		limiter:      newLimiter(cfg.PagesPerSecond),
		log:          log,
		metrics:      m,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Paginate walks every page of resourcePath, following next_cursor until
// the API reports no more pages or returns an empty page.
func (c *Client) Paginate(ctx context.Context, resourcePath string, params url.Values, fn func([]record.Record) error) error {
	query := url.Values{}
	for key, values := range params {
		query[key] = append([]string(nil), values...)
	}
	if query.Get("per_page") == "" {
		query.Set("per_page", fmt.Sprint(c.pageSize))
	}
	resource := path.Base(resourcePath)

	for pageNum := 1; ; pageNum++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		p, err := c.getPage(ctx, resourcePath, query)
		if err != nil {
			return fmt.Errorf("fetch %s page %d: %w", resourcePath, pageNum, err)
		}
		c.metrics.IncPagesFetched(resource)
		c.log.Debug("page fetched",
			zap.String("resource", resource),
			zap.Int("page", pageNum),
			zap.Int("items", len(p.Data)),
		)
		if len(p.Data) == 0 {
			return nil
		}
		if err := fn(p.Data); err != nil {
			return err
		}

		cursor := record.String(p.NextCursor)
		if !record.Truthy(p.HasMorePages) || cursor == "" {
			return nil
		}
		query.Set("cursor", cursor)
	}
}

func (c *Client) getPage(ctx context.Context, resourcePath string, query url.Values) (page, error) {
	endpoint := c.baseURL + resourcePath + "?" + query.Encode()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return page{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return page{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(body, 400))
	}

	var p page
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&p); err != nil {
		// Anything but an object ends the walk like an empty page.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "" {
			return page{}, nil
		}
		return page{}, fmt.Errorf("decode %s: %w", resourcePath, err)
	}
	return p, nil
}

func truncate(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return string(body)
}

type leveledLogger struct {
	log *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Infow(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warnw(msg, keysAndValues...)
}
