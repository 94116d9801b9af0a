package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"usher-schedule/model"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultRetryBase   = 200 * time.Millisecond
	defaultRetryCap    = 1200 * time.Millisecond
	errorSnippetLimit  = 8 << 10
)

// Fetcher produces a full replacement snapshot of showtimes.
type Fetcher interface {
	FetchShowtimes(ctx context.Context) ([]model.Showtime, error)
}

// Client wraps HTTP access to the schedule API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	timeout     time.Duration
	maxAttempts int
	retryBase   time.Duration
	retryCap    time.Duration
	logger      *slog.Logger
}

// NewClient creates a new API client. If httpClient is nil, a default client is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
		retryBase:   defaultRetryBase,
		retryCap:    defaultRetryCap,
		logger:      slog.New(slog.DiscardHandler),
	}
}

// FetchShowtimes downloads today's schedule. The whole call, retries
// included, is bounded by the client timeout.
func (c *Client) FetchShowtimes(ctx context.Context) ([]model.Showtime, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.baseURL + "/showtimes"
	var payloads []model.ShowtimePayload
	if err := c.getJSON(ctx, endpoint, &payloads); err != nil {
		c.logger.Error("fetch showtimes", "endpoint", endpoint, "kind", KindOf(err).String(), "err", err)
		return nil, err
	}
	// A literal null is not an empty schedule; only [] clears the day.
	if payloads == nil {
		err := &APIError{Kind: ProblemBadData, Endpoint: endpoint, Err: errors.New("schedule is null")}
		c.logger.Error("fetch showtimes", "endpoint", endpoint, "kind", KindOf(err).String(), "err", err)
		return nil, err
	}

	showtimes := make([]model.Showtime, 0, len(payloads))
	var errs []error
	for i, p := range payloads {
		s, err := p.ToShowtime()
		if err != nil {
			errs = append(errs, fmt.Errorf("showtime %d: %w", i, err))
			continue
		}
		showtimes = append(showtimes, s)
	}
	if len(errs) > 0 {
		return nil, &APIError{Kind: ProblemBadData, Endpoint: endpoint, Err: errors.Join(errs...)}
	}

	c.logger.Debug("fetched showtimes", "endpoint", endpoint, "count", len(showtimes))
	return showtimes, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	maxAttempts := c.maxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return &APIError{Kind: ProblemUnknown, Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			if c.shouldRetryNetworkError(err) && attempt < maxAttempts {
				if waitErr := c.waitRetry(ctx, attempt); waitErr != nil {
					return networkError(endpoint, waitErr)
				}
				continue
			}
			return networkError(endpoint, err)
		}

		if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
			snippet, _ := io.ReadAll(io.LimitReader(res.Body, errorSnippetLimit))
			_ = res.Body.Close()

			apiErr := &APIError{
				Kind:       ProblemFromStatus(res.StatusCode),
				StatusCode: res.StatusCode,
				Endpoint:   endpoint,
				Body:       strings.TrimSpace(string(snippet)),
			}
			if c.shouldRetryStatus(res.StatusCode) && attempt < maxAttempts {
				if waitErr := c.waitRetry(ctx, attempt); waitErr != nil {
					return networkError(endpoint, waitErr)
				}
				continue
			}
			return apiErr
		}

		dec := json.NewDecoder(res.Body)
		err = dec.Decode(out)
		_ = res.Body.Close()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return &APIError{Kind: ProblemBadData, StatusCode: res.StatusCode, Endpoint: endpoint, Err: errors.New("empty response body")}
			}
			if ctx.Err() != nil {
				return networkError(endpoint, ctx.Err())
			}
			return &APIError{Kind: ProblemBadData, StatusCode: res.StatusCode, Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	return &APIError{Kind: ProblemUnknown, Endpoint: endpoint, Err: errors.New("request failed after retries")}
}

func networkError(endpoint string, err error) error {
	kind := ProblemUnknown
	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ProblemTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = ProblemTimeout
	case errors.As(err, &dnsErr), errors.As(err, &opErr):
		kind = ProblemCannotConnect
	}
	return &APIError{Kind: kind, Endpoint: endpoint, Err: err}
}

func (c *Client) shouldRetryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (c *Client) shouldRetryNetworkError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) waitRetry(ctx context.Context, attempt int) error {
	delay := c.retryDelay(attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := c.retryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	cap := c.retryCap
	if cap <= 0 {
		cap = defaultRetryCap
	}

	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= cap/2 {
			return cap
		}
		delay *= 2
	}
	if delay > cap {
		return cap
	}
	return delay
}
