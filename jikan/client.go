// Package jikan is a paced, retrying client for the Jikan anime catalog API.
package jikan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/anime-corsair/config"
	"github.com/aluiziolira/anime-corsair/models"
	"github.com/benbjohnson/clock"
	"resty.dev/v3"
)

type operation string

const (
	opSearch operation = "search"
	opTop    operation = "top"
	opByID   operation = "by_id"
)

// Client issues catalog requests with global pacing, retry with exponential
// backoff, and single-flight cancellation of superseded text searches.
type Client struct {
	cfg     *config.Config
	http    *resty.Client
	limiter *Limiter
	clock   clock.Clock
	sleep   sleepFunc
	logger  *slog.Logger
	Metrics *Metrics

	mu      sync.Mutex
	seq     uint64
	flights map[operation]flight
}

type flight struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// Option customises a Client.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	clock     clock.Clock
	limiter   *Limiter
	logger    *slog.Logger
	metrics   *Metrics
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithClock sets the clock used for pacing and backoff.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithLimiter shares a pacing limiter between clients.
func WithLimiter(l *Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics bundle; a fresh registry is used otherwise.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New builds a client configured from cfg.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.limiter == nil {
		o.limiter = NewLimiter(cfg.MinRequestSpacing, o.clock)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}

	var httpClient *resty.Client
	if o.transport != nil {
		httpClient = resty.NewWithClient(&http.Client{Transport: o.transport})
	} else {
		httpClient = resty.New()
	}
	httpClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: o.limiter,
		clock:   o.clock,
		sleep:   clockSleep(o.clock),
		logger:  o.logger,
		Metrics: o.metrics,
		flights: make(map[operation]flight),
	}, nil
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

// Limiter returns the pacing limiter so it can be shared.
func (c *Client) Limiter() *Limiter {
	return c.limiter
}

// SearchAnime runs a text search. Starting a search cancels any search still
// in flight; the superseded caller receives ErrCancelled.
func (c *Client) SearchAnime(ctx context.Context, query string, page int) (*models.SearchResultPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, c.fail(ErrInvalidArgument{Field: "query", Err: errors.New("must not be empty")})
	}
	page, err := normalizePage(page)
	if err != nil {
		return nil, c.fail(err)
	}

	ctx, done := c.beginFlight(ctx, opSearch)
	defer done()

	var body models.ListResponse
	params := map[string]string{
		"q":     query,
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(c.cfg.PageSize),
	}
	if err := c.get(ctx, opSearch, "/anime", params, nil, &body); err != nil {
		return nil, err
	}
	return body.Page(), nil
}

// TopAnime fetches one page of the top-ranked listing.
func (c *Client) TopAnime(ctx context.Context, page int) (*models.SearchResultPage, error) {
	page, err := normalizePage(page)
	if err != nil {
		return nil, c.fail(err)
	}

	var body models.ListResponse
	params := map[string]string{
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(c.cfg.PageSize),
	}
	if err := c.get(ctx, opTop, "/top/anime", params, nil, &body); err != nil {
		return nil, err
	}
	return body.Page(), nil
}

// AnimeByID fetches the full record of a single entry.
func (c *Client) AnimeByID(ctx context.Context, id int) (*models.Anime, error) {
	if id <= 0 {
		return nil, c.fail(ErrInvalidArgument{Field: "id", Err: fmt.Errorf("must be positive, got %d", id)})
	}

	var body models.DetailResponse
	pathParams := map[string]string{"id": strconv.Itoa(id)}
	if err := c.get(ctx, opByID, "/anime/{id}/full", nil, pathParams, &body); err != nil {
		return nil, err
	}
	return &body.Data, nil
}

func normalizePage(page int) (int, error) {
	if page == 0 {
		return 1, nil
	}
	if page < 0 {
		return 0, ErrInvalidArgument{Field: "page", Err: fmt.Errorf("must be positive, got %d", page)}
	}
	return page, nil
}

// beginFlight registers ctx as the single in-flight request of op,
// cancelling the previous holder of the slot.
func (c *Client) beginFlight(ctx context.Context, op operation) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	c.mu.Lock()
	c.seq++
	id := c.seq
	if prev, ok := c.flights[op]; ok {
		prev.cancel(errSuperseded)
	}
	c.flights[op] = flight{id: id, cancel: cancel}
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		if cur, ok := c.flights[op]; ok && cur.id == id {
			delete(c.flights, op)
		}
		c.mu.Unlock()
		cancel(nil)
	}
}

func (c *Client) get(ctx context.Context, op operation, path string, query, pathParams map[string]string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				return c.fail(cancelledErr(ctx))
			}
			delay := c.backoff(attempt)
			c.Metrics.IncRetries(string(op))
			c.logger.Warn("upstream request failed, retrying",
				slog.String("operation", string(op)),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return c.fail(cancelledErr(ctx))
			}
		}

		waited, err := c.limiter.Wait(ctx, c.sleep)
		if err != nil {
			return c.fail(cancelledErr(ctx))
		}
		c.Metrics.ObservePacing(waited)

		status, body, err := c.do(ctx, path, query, pathParams)
		if ctx.Err() != nil {
			c.Metrics.IncRequest(string(op), "cancelled")
			return c.fail(cancelledErr(ctx))
		}
		if err != nil {
			c.Metrics.IncRequest(string(op), "error")
			lastErr = ErrTransport{Err: err}
			continue
		}

		switch {
		case status == http.StatusTooManyRequests:
			c.Metrics.IncRequest(string(op), "throttled")
			lastErr = ErrRateLimited{Attempts: attempt + 1, Err: fmt.Errorf("http status %d", status)}
			continue
		case status >= http.StatusInternalServerError:
			c.Metrics.IncRequest(string(op), "server_error")
			lastErr = ErrTransport{StatusCode: status}
			continue
		case status >= http.StatusBadRequest:
			c.Metrics.IncRequest(string(op), "client_error")
			return c.fail(ErrTransport{StatusCode: status})
		}

		c.Metrics.IncRequest(string(op), "ok")
		if err := json.Unmarshal(body, out); err != nil {
			return c.fail(fmt.Errorf("decode %s response: %w", op, err))
		}
		c.logger.Debug("upstream request settled",
			slog.String("operation", string(op)),
			slog.Int("attempts", attempt+1),
		)
		return nil
	}
	return c.fail(lastErr)
}

func (c *Client) do(ctx context.Context, path string, query, pathParams map[string]string) (int, []byte, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetPathParams(pathParams).
		Get(path)
	c.Metrics.ObserveDuration(time.Since(start))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), []byte(resp.String()), nil
}

// backoff returns the delay before retry number attempt (1-based).
func (c *Client) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	delay := c.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
	if max := c.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (c *Client) fail(err error) error {
	label := ErrorLabel(err)
	c.Metrics.IncError(label)
	if label != "cancelled" {
		c.logger.Debug("upstream request failed", slog.String("category", label), slog.Any("error", err))
	}
	return err
}

func cancelledErr(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	return ErrCancelled{Err: cause}
}
