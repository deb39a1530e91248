package fetcher

import (
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
)

// NewHTTPClient builds the shared upstream client.
// With cache enabled, GET responses are kept in memory and revalidated per their
// Cache-Control/ETag headers; 429 and other non-cacheable statuses pass straight through.
// The cache is keyed on the URL alone, so credentialed requests bypass it.
func NewHTTPClient(timeout time.Duration, cache bool) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	var rt http.RoundTripper = base
	if cache {
		ct := httpcache.NewMemoryCacheTransport()
		ct.Transport = base
		rt = &sharedOnlyCache{cached: ct, direct: base}
	}

	return &http.Client{Transport: rt, Timeout: timeout}
}

// sharedOnlyCache sends requests carrying credentials around the cache so one
// caller's response is never served to another.
type sharedOnlyCache struct {
	cached http.RoundTripper
	direct http.RoundTripper
}

func (t *sharedOnlyCache) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" || req.Header.Get("Cookie") != "" {
		return t.direct.RoundTrip(req)
	}
	return t.cached.RoundTrip(req)
}
