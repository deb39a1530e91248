package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"clinic-bff/internal/fetcher"
)

type options struct {
	url         string
	method      string
	requests    int
	concurrency int
	timeout     time.Duration
	payload     string
	payloadFile string
	contentType string
	headers     []string
}

type result struct {
	statusCode       int
	latency          time.Duration
	err              error
	errorBodySnippet string
}

type summary struct {
	url          string
	method       string
	requests     int
	concurrency  int
	success      int
	errors       int
	fallbacks    int64
	elapsed      time.Duration
	statusCounts map[int]int
	errorKinds   map[string]int
	latencies    []time.Duration // sorted
}

func parseHeaders(hs []string) (map[string]string, error) {
	headers := make(map[string]string)
	for _, line := range hs {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid header: %q (expected 'Key: Value')", line)
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers, nil
}

func (o *options) body() ([]byte, error) {
	if o.payloadFile != "" {
		b, err := os.ReadFile(o.payloadFile)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		return b, nil
	}
	if o.payload != "" {
		return []byte(o.payload), nil
	}
	return nil, nil
}

func newClient(concurrency int, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          concurrency,
		MaxIdleConnsPerHost:   concurrency,
		MaxConnsPerHost:       concurrency,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func run(ctx context.Context, o options) (*summary, error) {
	if o.requests <= 0 || o.concurrency <= 0 {
		return nil, errors.New("requests and concurrency must be > 0")
	}
	if o.concurrency > o.requests {
		o.concurrency = o.requests
	}
	headers, err := parseHeaders(o.headers)
	if err != nil {
		return nil, err
	}
	payload, err := o.body()
	if err != nil {
		return nil, err
	}

	client := newClient(o.concurrency, o.timeout)
	jobs := make(chan struct{}, o.requests)
	results := make(chan result, o.requests)
	fallbacks := atomic.NewInt64(0)

	worker := func() {
		for range jobs {
			var body io.Reader
			if len(payload) > 0 && !strings.EqualFold(o.method, http.MethodGet) {
				body = bytes.NewReader(payload)
			}
			req, err := http.NewRequestWithContext(ctx, o.method, o.url, body)
			if err != nil {
				results <- result{err: err}
				continue
			}
			if body != nil && o.contentType != "" {
				req.Header.Set("Content-Type", o.contentType)
			}
			for k, v := range headers {
				req.Header.Set(k, v)
			}

			start := time.Now()
			resp, err := client.Do(req)
			lat := time.Since(start)
			if err != nil {
				results <- result{latency: lat, err: err}
				continue
			}
			if resp.Header.Get(fetcher.FallbackHeader) != "" {
				fallbacks.Inc()
			}
			var snippet string
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				snippet = strings.TrimSpace(string(b))
			} else {
				_, _ = io.Copy(io.Discard, resp.Body)
			}
			resp.Body.Close()
			results <- result{statusCode: resp.StatusCode, latency: lat, errorBodySnippet: snippet}
		}
	}

	var wg sync.WaitGroup
	testStart := time.Now()
	wg.Add(o.concurrency)
	for i := 0; i < o.concurrency; i++ {
		go func() {
			defer wg.Done()
			worker()
		}()
	}
	for i := 0; i < o.requests; i++ {
		jobs <- struct{}{}
	}
	close(jobs)
	wg.Wait()
	close(results)

	s := &summary{
		url:          o.url,
		method:       o.method,
		requests:     o.requests,
		concurrency:  o.concurrency,
		elapsed:      time.Since(testStart),
		fallbacks:    fallbacks.Load(),
		statusCounts: make(map[int]int),
		errorKinds:   make(map[string]int),
	}
	for r := range results {
		s.latencies = append(s.latencies, r.latency)
		if r.err != nil {
			s.errors++
			s.errorKinds[r.err.Error()]++
			continue
		}
		s.statusCounts[r.statusCode]++
		if r.statusCode >= 200 && r.statusCode < 400 {
			s.success++
			continue
		}
		s.errors++
		key := fmt.Sprintf("HTTP %d", r.statusCode)
		if r.errorBodySnippet != "" {
			key = fmt.Sprintf("%s: %s", key, truncateForPrint(r.errorBodySnippet, 120))
		}
		s.errorKinds[key]++
	}
	sort.Slice(s.latencies, func(i, j int) bool { return s.latencies[i] < s.latencies[j] })
	return s, nil
}

func (s *summary) percentile(percent float64) time.Duration {
	if len(s.latencies) == 0 {
		return 0
	}
	idx := int(percent*float64(len(s.latencies))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.latencies) {
		idx = len(s.latencies) - 1
	}
	return s.latencies[idx]
}

func (s *summary) print(w io.Writer) {
	fmt.Fprintln(w, "=== Load Test Summary ===")
	fmt.Fprintf(w, "URL:            %s\n", s.url)
	fmt.Fprintf(w, "Method:         %s\n", s.method)
	fmt.Fprintf(w, "Requests:       %d\n", s.requests)
	fmt.Fprintf(w, "Concurrency:    %d\n", s.concurrency)
	fmt.Fprintf(w, "Success:        %d\n", s.success)
	fmt.Fprintf(w, "Errors:         %d\n", s.errors)
	fmt.Fprintf(w, "Fallbacks:      %d\n", s.fallbacks)
	fmt.Fprintf(w, "Total Elapsed:  %v\n", s.elapsed)
	fmt.Fprintf(w, "Status Counts:  %v\n", s.statusCounts)
	if len(s.latencies) > 0 {
		var avg time.Duration
		for _, d := range s.latencies {
			avg += d
		}
		avg /= time.Duration(len(s.latencies))
		fmt.Fprintf(w, "Avg Latency:    %v\n", avg)
		fmt.Fprintf(w, "P50 Latency:    %v\n", s.percentile(0.50))
		fmt.Fprintf(w, "P90 Latency:    %v\n", s.percentile(0.90))
		fmt.Fprintf(w, "P95 Latency:    %v\n", s.percentile(0.95))
		fmt.Fprintf(w, "P99 Latency:    %v\n", s.percentile(0.99))
	}

	if len(s.errorKinds) > 0 {
		type kv struct {
			k string
			v int
		}
		arr := make([]kv, 0, len(s.errorKinds))
		for k, v := range s.errorKinds {
			arr = append(arr, kv{k, v})
		}
		sort.Slice(arr, func(i, j int) bool { return arr[i].v > arr[j].v })
		maxShow := 10
		if len(arr) < maxShow {
			maxShow = len(arr)
		}
		fmt.Fprintln(w, "Top Error Kinds:")
		for i := 0; i < maxShow; i++ {
			fmt.Fprintf(w, "  %d) %s  (count=%d)\n", i+1, arr[i].k, arr[i].v)
		}
	}
}

func truncateForPrint(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
