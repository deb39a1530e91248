// Package fetcher issues upstream HTTP calls with bounded retry on rate limiting
// and transport failure. A call never fails: once the attempt budget is spent the
// caller receives a synthetic empty 200 response so dependent pages keep rendering.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"clinic-bff/internal/metrics"
	"clinic-bff/pkg/logger"
)

// Request describes one upstream call. Header keys are unique; Body is resent verbatim on every attempt.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
}

// Sleeper pauses for d and reports false if ctx ended first.
type Sleeper func(ctx context.Context, d time.Duration) bool

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithPolicy overrides the retry budget and initial delay.
func WithPolicy(p Policy) Option {
	return func(f *Fetcher) {
		f.policy = p.normalize()
	}
}

// WithHTTPClient sets the client used for every attempt.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithSleeper replaces the wall-clock sleep used for jitter and backoff.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

// WithJitter replaces the random pre-retry pause generator.
func WithJitter(j func() time.Duration) Option {
	return func(f *Fetcher) {
		if j != nil {
			f.jitter = j
		}
	}
}

// Fetcher is safe for concurrent use; calls share no mutable state.
type Fetcher struct {
	client *http.Client
	policy Policy
	sleep  Sleeper
	jitter func() time.Duration
}

// New creates a Fetcher with DefaultPolicy unless overridden.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: NewHTTPClient(0, false),
		policy: DefaultPolicy(),
		sleep:  sleepContext,
		jitter: randomJitter,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Policy returns the effective retry policy.
func (f *Fetcher) Policy() Policy {
	return f.policy
}

// Get is shorthand for a GET Do.
func (f *Fetcher) Get(ctx context.Context, url string, header map[string]string) *http.Response {
	return f.Do(ctx, &Request{Method: http.MethodGet, URL: url, Header: header})
}

// Do performs req, retrying on HTTP 429 and transport errors.
//
// Any other status, including 4xx and 5xx, is returned on first sight. The
// returned response is never nil and its Body must be closed by the caller.
// If every attempt is spent, or ctx ends while waiting, the synthetic
// fallback is returned instead (see IsFallback).
func (f *Fetcher) Do(ctx context.Context, req *Request) *http.Response {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		req = &Request{}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	delay := f.policy.InitialDelay
	budget := f.policy.MaxRetries
	var last *http.Request

	for attempt := 0; attempt < budget; attempt++ {
		if attempt > 0 && !f.sleep(ctx, f.jitter()) {
			return f.giveUp(method, req.URL, attempt, last)
		}

		httpReq, resp, err := f.attempt(ctx, method, req)
		if httpReq != nil {
			last = httpReq
		}

		switch {
		case err != nil:
			metrics.FetchAttemptsCounter.WithLabelValues(metrics.OutcomeTransportError).Inc()
			logger.Warn("fetch %s %s: attempt %d/%d failed: %v, waiting %v", method, req.URL, attempt+1, budget, err, delay)
			if !f.backoff(ctx, delay) {
				return f.giveUp(method, req.URL, attempt+1, last)
			}

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := delay
			if hint, ok := retryAfter(resp.Header); ok {
				wait = hint
			}
			drain(resp)
			metrics.FetchAttemptsCounter.WithLabelValues(metrics.OutcomeRateLimited).Inc()
			logger.Warn("fetch %s %s: rate limited (attempt %d/%d), waiting %v", method, req.URL, attempt+1, budget, wait)
			if !f.backoff(ctx, wait) {
				return f.giveUp(method, req.URL, attempt+1, last)
			}

		default:
			metrics.FetchAttemptsCounter.WithLabelValues(metrics.OutcomeOK).Inc()
			if attempt > 0 {
				logger.Info("fetch %s %s: status %d after %d attempts", method, req.URL, resp.StatusCode, attempt+1)
			}
			return resp
		}

		delay = grow(delay)
	}

	return f.giveUp(method, req.URL, budget, last)
}

func (f *Fetcher) attempt(ctx context.Context, method string, req *Request) (*http.Request, *http.Response, error) {
	httpReq, err := build(ctx, method, req)
	if err != nil {
		return nil, nil, err
	}
	resp, err := f.client.Do(httpReq)
	return httpReq, resp, err
}

func (f *Fetcher) giveUp(method, url string, attempts int, last *http.Request) *http.Response {
	metrics.FetchFallbacksCounter.Inc()
	logger.Error("fetch %s %s: giving up after %d attempts, returning empty fallback", method, url, attempts)
	return fallbackResponse(last)
}

func (f *Fetcher) backoff(ctx context.Context, d time.Duration) bool {
	metrics.FetchBackoffHistogram.Observe(d.Seconds())
	return f.sleep(ctx, d)
}

var errEmptyURL = errors.New("empty request url")

func build(ctx context.Context, method string, req *Request) (*http.Request, error) {
	if req.URL == "" {
		return nil, errEmptyURL
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// drain releases a response we are about to discard so its connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func randomJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(MaxJitter)))
}
