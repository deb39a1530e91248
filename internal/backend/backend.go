// Package backend is the typed client for the clinic backend API. Every call
// goes through the retrying fetcher, so it never fails at the transport level.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"clinic-bff/internal/fetcher"
)

// ErrDecode is returned by FetchJSON when the backend body is not the expected JSON.
var ErrDecode = errors.New("decode backend response")

// Client forwards calls to the backend base URL.
type Client struct {
	baseURL      string
	serviceToken string
	fetcher      *fetcher.Fetcher
}

// New validates baseURL and creates a Client. A nil fetcher gets the default policy.
func New(baseURL, serviceToken string, f *fetcher.Fetcher) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("backend url %q: missing host", baseURL)
	}
	if f == nil {
		f = fetcher.New()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceToken: serviceToken,
		fetcher:      f,
	}, nil
}

// URL resolves path and query against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Forward issues call and returns the backend response, or the fetcher's
// fallback when the backend stayed unreachable. The caller closes the body.
func (c *Client) Forward(ctx context.Context, call Call) *http.Response {
	return c.fetcher.Do(ctx, &fetcher.Request{
		Method: call.Method,
		URL:    c.URL(call.Path, call.Query),
		Header: c.headers(call),
		Body:   call.Body,
	})
}

// FetchJSON forwards call and decodes a 2xx body into out. Non-2xx statuses
// are reported in Result without decoding.
func (c *Client) FetchJSON(ctx context.Context, call Call, out interface{}) (Result, error) {
	if call.Header == nil {
		call.Header = make(http.Header)
	}
	if call.Header.Get("Accept") == "" {
		call.Header.Set("Accept", defaultContentType)
	}

	resp := c.Forward(ctx, call)
	defer resp.Body.Close()

	res := Result{Status: resp.StatusCode, Fallback: fetcher.IsFallback(resp)}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxJSONBody))
		return res, nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBody)).Decode(out); err != nil {
		return res, fmt.Errorf("%w: %s %s: %v", ErrDecode, call.Method, call.Path, err)
	}
	return res, nil
}

func (c *Client) headers(call Call) map[string]string {
	h := make(map[string]string, len(forwardedHeaders)+1)
	for _, k := range forwardedHeaders {
		if v := call.Header.Get(k); v != "" {
			h[k] = v
		}
	}
	if _, ok := h["Authorization"]; !ok && c.serviceToken != "" {
		h["Authorization"] = "Bearer " + c.serviceToken
	}
	if _, ok := h["Content-Type"]; !ok && len(call.Body) > 0 {
		h["Content-Type"] = defaultContentType
	}
	return h
}
