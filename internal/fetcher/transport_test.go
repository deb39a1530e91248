package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheableBackend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.Header.Get("Authorization") {
		case "", "Bearer alice":
			w.Header().Set("Cache-Control", "max-age=60")
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"data":[{"patient":"alice"}]}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func get(t *testing.T, client *http.Client, url, auth string) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

// TestNewHTTPClient_CacheServesAnonymousRepeats verifies cacheable anonymous GETs are answered from memory
func TestNewHTTPClient_CacheServesAnonymousRepeats(t *testing.T) {
	srv, hits := cacheableBackend(t)
	client := NewHTTPClient(time.Second, true)

	status, _ := get(t, client, srv.URL+"/api/users", "")
	require.Equal(t, http.StatusOK, status)
	status, body := get(t, client, srv.URL+"/api/users", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "alice")
	assert.Equal(t, int32(1), hits.Load())
}

// TestNewHTTPClient_CacheNotSharedAcrossCredentials verifies a response fetched with one token is never replayed for another
func TestNewHTTPClient_CacheNotSharedAcrossCredentials(t *testing.T) {
	srv, hits := cacheableBackend(t)
	client := NewHTTPClient(time.Second, true)

	status, _ := get(t, client, srv.URL+"/api/appointments/a1", "Bearer alice")
	require.Equal(t, http.StatusOK, status)

	status, body := get(t, client, srv.URL+"/api/appointments/a1", "Bearer mallory")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotContains(t, body, "alice")

	status, _ = get(t, client, srv.URL+"/api/appointments/a1", "Bearer alice")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int32(3), hits.Load(), "credentialed requests always reach the backend")
}

// TestNewHTTPClient_NoCache verifies every request reaches the backend when caching is off
func TestNewHTTPClient_NoCache(t *testing.T) {
	srv, hits := cacheableBackend(t)
	client := NewHTTPClient(time.Second, false)

	get(t, client, srv.URL+"/api/users", "")
	get(t, client, srv.URL+"/api/users", "")
	assert.Equal(t, int32(2), hits.Load())
}
