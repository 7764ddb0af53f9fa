package common

import (
	_ "embed"
	"net/http"
	"net/url"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version returns the release version embedded in the binary.
func Version() string {
	return strings.TrimSpace(version)
}

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper by setting the User-Agent header.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original request's headers
	// which might be shared or reused
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

// HTTPClient returns a default http client with a default user-agent set
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &userAgentTransport{
			transport: http.DefaultTransport,
			userAgent: "SolarEdgeSync/" + Version(),
		},
		Timeout: timeout,
	}
}

// RedactURL returns the URL as a string with the given query parameters
// masked so it can be logged.
func RedactURL(u *url.URL, params ...string) string {
	if u == nil {
		return ""
	}
	c := *u
	q := c.Query()
	for _, p := range params {
		if q.Has(p) {
			q.Set(p, "xxxxx")
		}
	}
	c.RawQuery = q.Encode()
	return c.String()
}
