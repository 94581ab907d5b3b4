package httpclient

import (
	"net/http"
	"time"
)

// sharedTransport is reused across all pooled clients so the weather,
// embedding, and generation adapters keep warm connections to their
// upstreams instead of re-handshaking per request.
var sharedTransport = &http.Transport{
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     120 * time.Second,
	DisableKeepAlives:   false,
}

// NewPooledClient creates an http.Client with the shared connection
// pool and a per-client request timeout.
func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
}
