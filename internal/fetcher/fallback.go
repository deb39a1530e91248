package fetcher

import (
	"bytes"
	"io"
	"net/http"
)

// FallbackHeader marks responses synthesized after the retry budget ran out.
// Status and body are indistinguishable from a genuinely empty upstream answer;
// only this header tells them apart.
const FallbackHeader = "X-Fetch-Fallback"

var fallbackBody = []byte(`{"data":[],"stats":{}}`)

func fallbackResponse(req *http.Request) *http.Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set(FallbackHeader, "exhausted")
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(fallbackBody)),
		ContentLength: int64(len(fallbackBody)),
		Request:       req,
	}
}

// IsFallback reports whether resp was synthesized by the fetcher rather than sent by the upstream.
func IsFallback(resp *http.Response) bool {
	return resp != nil && resp.Header.Get(FallbackHeader) != ""
}
