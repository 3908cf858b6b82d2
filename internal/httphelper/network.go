package httphelper

import (
	"net/http"
	"time"
)

const defaultClientTimeout = time.Second * 10

// NewHTTPClient allocates a preconfigured *http.Client used for upstream provider calls. A zero
// timeout uses the default.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	c := &http.Client{
		Timeout: timeout,
	}

	return c
}
