package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/okian/scoutspr/internal/domain/model"
	"github.com/okian/scoutspr/internal/domain/types"
)

const (
	defaultClientTimeout = 10 * time.Second
	maxBackpressureRetry = 8
	backpressureBackoff  = 50 * time.Millisecond
	ingestPollInterval   = 50 * time.Millisecond
)

// Client talks to a running rating service.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit caps requests per second. Zero or less disables the limit.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, burst))
		}
	}
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultClientTimeout},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostObservation submits one observation, retrying with backoff while the
// service reports backpressure.
func (c *Client) PostObservation(ctx context.Context, o model.Observation) (types.Ack, error) { //nolint:gocritic // hugeParam: observations are values
	var ack types.Ack
	for attempt := 1; ; attempt++ {
		err := c.do(ctx, http.MethodPost, "/observations", o, &ack)
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusTooManyRequests && attempt < maxBackpressureRetry {
			select {
			case <-ctx.Done():
				return ack, ctx.Err()
			case <-time.After(time.Duration(attempt) * backpressureBackoff):
			}
			continue
		}
		return ack, err
	}
}

// PostResult uploads the official result of a match.
func (c *Client) PostResult(ctx context.Context, match int, r model.OfficialResult) error {
	return c.do(ctx, http.MethodPost, "/results", types.ResultRequest{MatchNumber: match, Red: r.Red, Blue: r.Blue}, nil)
}

// Solve triggers a solve and returns the published report.
func (c *Client) Solve(ctx context.Context, verbose bool) (types.Report, error) {
	var rep types.Report
	path := "/solve"
	if verbose {
		path += "?verbose=true"
	}
	err := c.do(ctx, http.MethodPost, path, nil, &rep)
	return rep, err
}

// Leaderboard reads up to n ratings of the latest report.
func (c *Client) Leaderboard(ctx context.Context, n int) (types.Leaderboard, error) {
	var lb types.Leaderboard
	q := url.Values{"limit": []string{strconv.Itoa(n)}}
	err := c.do(ctx, http.MethodGet, "/leaderboard?"+q.Encode(), nil, &lb)
	return lb, err
}

// Stats reads the service counters.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var stats map[string]any
	err := c.do(ctx, http.MethodGet, "/stats", nil, &stats)
	return stats, err
}

// Health checks that the service answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// WaitIngested polls the service until at least n observations are stored.
func (c *Client) WaitIngested(ctx context.Context, n int) error {
	ticker := time.NewTicker(ingestPollInterval)
	defer ticker.Stop()
	for {
		stats, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		if got, ok := stats["observations"].(float64); ok && int(got) >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotIngested, ctx.Err())
		case <-ticker.C:
		}
	}
}

// requestIDHeader lets server logs be matched to simulator requests.
const requestIDHeader = "X-Request-ID"

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		se := &StatusError{Status: resp.StatusCode, RequestID: resp.Header.Get(requestIDHeader)}
		var er types.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&er) == nil {
			se.Code, se.Message = er.Code, er.Message
		}
		return se
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func httpStatus(code int) string {
	return strconv.Itoa(code) + " " + http.StatusText(code)
}
