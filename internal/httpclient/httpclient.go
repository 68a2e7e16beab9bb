// Package httpclient builds the shared *http.Client every provider
// adapter is constructed with, so callers (and internal/vcrtest) control
// the transport instead of each provider constructing its own.
package httpclient

import (
	"net/http"
	"time"
)

// DefaultTimeout is the per-request wall-clock timeout applied when a
// caller doesn't supply one, per the module's default resource policy.
const DefaultTimeout = 60 * time.Second

// New returns an *http.Client with the given timeout. A timeout <= 0
// falls back to DefaultTimeout. The returned client leaves Transport nil,
// so it uses the process-wide http.DefaultTransport, whose connection
// pool is safe to share across concurrent requests.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
