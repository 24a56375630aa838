package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"newsingest/internal/config"
	"newsingest/internal/logger"
	"newsingest/internal/models"
)

// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// Client queries the search API's "everything" endpoint with per-request
// retry and backoff.
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	sleep      func(context.Context, time.Duration)
	apiKey     string
	cfg        config.SourceConfig
	retry      config.RetryPolicy
}

// NewClient creates a search API client.
func NewClient(cfg config.SourceConfig, retry config.RetryPolicy, apiKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     log,
		sleep:      sleepCtx,
		apiKey:     apiKey,
		cfg:        cfg,
		retry:      retry,
	}
}

// Fetch starts a fresh paginated fetch for the window. The returned Pages
// is single-use; calling Fetch again restarts from the first page.
func (c *Client) Fetch(window models.PollWindow) *Pages {
	return &Pages{client: c, window: window, page: 1, totalPages: -1}
}

// Pages lazily walks the paginated search results for one window.
type Pages struct {
	client     *Client
	window     models.PollWindow
	page       int
	totalPages int
	done       bool
}

// Next returns the next page of raw articles, or nil when the source is
// exhausted. Pagination stops at the source's own page count or at the
// configured max_pages ceiling, whichever comes first; the ceiling guards
// against a source that keeps promising more results.
func (p *Pages) Next(ctx context.Context) ([]models.RawArticle, error) {
	if p.done {
		return nil, nil
	}

	if p.page > 1 && p.client.cfg.PageDelay() > 0 {
		p.client.sleep(ctx, p.client.cfg.PageDelay())
	}

	resp, err := p.client.fetchPage(ctx, p.window, p.page)
	if err != nil {
		p.done = true
		return nil, err
	}

	if p.totalPages < 0 {
		total := (resp.TotalResults + p.client.cfg.PageSize - 1) / p.client.cfg.PageSize
		if total > p.client.cfg.MaxPages {
			total = p.client.cfg.MaxPages
		}

		p.totalPages = total
	}

	if len(resp.Articles) == 0 {
		p.done = true
		return nil, nil
	}

	if p.page >= p.totalPages {
		p.done = true
	}

	p.page++

	return resp.Articles, nil
}

// fetchPage issues one page request, retrying transient failures with
// jittered exponential backoff up to the configured attempt ceiling.
func (c *Client) fetchPage(ctx context.Context, window models.PollWindow, page int) (*models.SearchResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.retry.JitteredDelay(attempt)

			var transient *TransientError
			if errors.As(lastErr, &transient) && transient.RetryAfter > delay {
				delay = transient.RetryAfter
			}

			c.logger.Debug("retrying source fetch", "page", page, "attempt", attempt, "delay", delay)
			c.sleep(ctx, delay)
		}

		if err := ctx.Err(); err != nil {
			return nil, &FatalError{Err: err}
		}

		resp, err := c.doRequest(ctx, window, page)
		if err == nil {
			return resp, nil
		}

		if !IsTransient(err) {
			return nil, err
		}

		lastErr = err
	}

	return nil, fmt.Errorf("fetch page %d failed after %d attempts: %w", page, c.retry.MaxAttempts, lastErr)
}

func (c *Client) doRequest(ctx context.Context, window models.PollWindow, page int) (*models.SearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, http.NoBody)
	if err != nil {
		return nil, &FatalError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	q := req.URL.Query()
	q.Set("q", c.cfg.Query)
	q.Set("from", window.From.UTC().Format(time.RFC3339))
	q.Set("to", window.To.UTC().Format(time.RFC3339))
	q.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	q.Set("sortBy", c.cfg.SortBy)
	q.Set("language", c.cfg.Language)
	q.Set("page", strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection resets surface here.
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
		if !isRetryableStatus(resp.StatusCode) {
			return nil, &FatalError{Err: statusErr}
		}

		return nil, &TransientError{Err: statusErr, RetryAfter: retryAfterHint(resp)}
	}

	var body models.SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&body); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if body.Status == "error" {
		apiErr := fmt.Errorf("source API error %s: %s", body.Code, body.Message)
		if body.Code == "rateLimited" {
			return nil, &TransientError{Err: apiErr}
		}

		return nil, &FatalError{Err: apiErr}
	}

	return &body, nil
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // 429
		http.StatusRequestTimeout: // 408
		return true
	}

	return statusCode >= 500
}

// retryAfterHint reads the Retry-After header as whole seconds, 0 when
// absent or unparseable.
func retryAfterHint(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}

	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}

	return time.Duration(secs) * time.Second
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
