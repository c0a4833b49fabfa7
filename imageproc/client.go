// Package imageproc is the client for the image processing service cosmos
// renders profile cards and other images with.
package imageproc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/intrntsrfr/cosmos/config"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var ErrUnavailable = errors.New("image processor unavailable")

type Client struct {
	ctx     context.Context
	baseURL *url.URL
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// New binds the client to ctx: once ctx is done every request fails.
func New(ctx context.Context, c config.ImageProcessor) (*Client, error) {
	if ctx == nil {
		return nil, errors.New("imageproc: context is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing image processor url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("image processor url %q must be http or https", c.BaseURL)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if c.RateLimit > 0 {
		limit = rate.Limit(c.RateLimit)
	}
	burst := c.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		ctx:     ctx,
		baseURL: u,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "image-processor",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// Render posts params to endpoint and returns the rendered image.
func (c *Client) Render(ctx context.Context, endpoint string, params any) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, endpoint, body)
}

// Ping checks that the service answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "health", nil)
	return err
}

// State reports the circuit breaker state, eg. "closed" or "open".
func (c *Client) State() string {
	return c.breaker.State().String()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL.JoinPath(strings.TrimPrefix(endpoint, "/"))
	res, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			var e errorResponse
			if json.Unmarshal(data, &e) == nil && e.Error != "" {
				return nil, fmt.Errorf("image processor %s: %s", resp.Status, e.Error)
			}
			return nil, fmt.Errorf("image processor %s", resp.Status)
		}
		return data, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}
