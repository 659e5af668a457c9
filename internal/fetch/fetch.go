// Package fetch wraps an http.Client with per-attempt timeouts and
// exponential-backoff retries on server errors.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// Options controls timeouts and retries.
type Options struct {
	Timeout       time.Duration // per attempt
	Retries       int           // extra attempts after the first
	RetryDelay    time.Duration // delay before the first retry
	BackoffFactor float64       // delay multiplier per retry
}

// DefaultOptions returns 8s per attempt, 2 retries, 500ms doubling backoff.
func DefaultOptions() Options {
	return Options{
		Timeout:       8 * time.Second,
		Retries:       2,
		RetryDelay:    500 * time.Millisecond,
		BackoffFactor: 2,
	}
}

// Delay returns the wait before retry number attempt (0-based).
func (o Options) Delay(attempt int) time.Duration {
	return time.Duration(float64(o.RetryDelay) * math.Pow(o.BackoffFactor, float64(attempt)))
}

// Doer is the transport a Client retries over.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client executes requests with retries.
type Client struct {
	doer Doer
	opts Options
}

// New creates a Client. A nil doer uses http.DefaultClient.
func New(doer Doer, opts Options) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if opts.BackoffFactor <= 0 {
		opts.BackoffFactor = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Client{doer: doer, opts: opts}
}

// Options returns the client's settings.
func (c *Client) Options() Options { return c.opts }

var errServerStatus = errors.New("server error status")

// Do sends req, retrying when an attempt fails or returns a status >= 500.
// 4xx responses are returned immediately. When retries run out the last 5xx
// response is returned, or the last error if the final attempt failed.
// Requests with a body must have GetBody set so the body can be replayed.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var (
		attempt int
		last    *http.Response
	)

	b := retry.WithMaxRetries(uint64(c.opts.Retries), retry.BackoffFunc(func() (time.Duration, bool) {
		d := c.opts.Delay(attempt - 1)
		return d, false
	}))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if last != nil {
			drain(last)
			last = nil
		}

		resp, err := c.attempt(ctx, req)
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			last = resp
			return retry.RetryableError(fmt.Errorf("%w: %d", errServerStatus, resp.StatusCode))
		}
		last = resp
		return nil
	})

	if err == nil {
		return last, nil
	}
	if errors.Is(err, errServerStatus) && last != nil {
		return last, nil
	}
	if last != nil {
		drain(last)
	}
	return nil, err
}

// attempt performs one try with its own timeout window. The timeout context
// lives until the response body is closed.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	actx, cancel := context.WithTimeout(ctx, c.opts.Timeout)

	r := req.Clone(actx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		r.Body = body
	}

	resp, err := c.doer.Do(r)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
