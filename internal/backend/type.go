package backend

import (
	"net/http"
	"net/url"
)

// Call describes one backend request. Header carries the incoming request's
// headers; only a fixed allow-list of them is forwarded.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Result is the outcome of FetchJSON.
type Result struct {
	Status   int
	Fallback bool
}
