package venue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uhyunpark/hypergrid/pkg/util"
)

const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"

	// maxRateLimitRetries bounds how often a 429 response is retried before
	// the call is surfaced to the caller.
	maxRateLimitRetries = 5
	rateLimitBackoff    = 1500 * time.Millisecond
)

// ErrRateLimited is returned once every 429 retry is exhausted. The engine
// treats it like any other transport failure.
var ErrRateLimited = errors.New("rate limited")

// DefaultLimiter returns the process-wide request limiter: 3 requests per
// second with a burst of the same size. Every endpoint wrapper shares one
// instance so the budget is global, not per-caller.
func DefaultLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(3), 3)
}

// Client is the rate-limited HTTP transport under both venue endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	clock   util.Clock
	log     *zap.SugaredLogger
}

func NewClient(baseURL string, limiter *rate.Limiter, clock util.Clock, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		clock:   clock,
		log:     logger,
	}
}

// post sends a JSON body and returns the raw response. 429s are retried with
// exponential backoff; any other non-200 fails immediately.
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("post %s: %w", path, err)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("read response %s: %w", path, readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt >= maxRateLimitRetries {
				return nil, fmt.Errorf("%w: %s after %d retries", ErrRateLimited, path, attempt)
			}
			backoff := rateLimitBackoff * (1 << attempt)
			c.log.Warnw("rate_limited_backing_off", "path", path, "attempt", attempt+1, "backoff", backoff)
			if err := util.Sleep(ctx, c.clock, backoff); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, truncate(respBody, 256))
		}
		return respBody, nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
