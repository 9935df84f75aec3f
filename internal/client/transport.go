package client

import (
	"net/http"
)

// headerTransport adds a fixed header set to every outgoing request unless the
// request already carries that header.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func newHeaderTransport(base http.RoundTripper, userAgent string) *headerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	headers := make(http.Header, 2)
	headers.Set("Content-Type", "application/json")
	headers.Set("User-Agent", userAgent)
	return &headerTransport{base: base, headers: headers}
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for name, values := range t.headers {
		if req.Header.Get(name) == "" {
			req.Header[name] = append([]string(nil), values...)
		}
	}
	return t.base.RoundTrip(req)
}
