package perch

import (
	"time"
)

// ConnectionOptions holds configuration for connecting to a PerchDB server.
// It is consumed by the inhttp backend; inmemory sessions need no configuration.
type ConnectionOptions struct {
	// BaseURL is the server endpoint, e.g. "http://localhost:8080".
	BaseURL string `json:"base_url"`
	// Database is the target database name. Defaults to "data" when empty.
	Database string `json:"database,omitempty"`
	// BearerToken, when set, is sent as the Authorization header on every request.
	BearerToken string `json:"bearer_token,omitempty"`
	// RequestTimeout bounds each HTTP request. Defaults to 30 seconds when zero.
	RequestTimeout time.Duration `json:"request_timeout,omitempty"`
}

// IsEmpty returns true if connection config is considered empty, i.e. - missing BaseURL.
// A client should always have a server endpoint to talk to.
func (co ConnectionOptions) IsEmpty() bool {
	return co.BaseURL == ""
}

// DatabaseOrDefault returns the configured database name, defaulting to "data".
func (co ConnectionOptions) DatabaseOrDefault() string {
	if co.Database == "" {
		return "data"
	}
	return co.Database
}

// TimeoutOrDefault returns the configured request timeout, defaulting to 30s.
// Requests longer than 1 hour are capped.
func (co ConnectionOptions) TimeoutOrDefault() time.Duration {
	if co.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	if co.RequestTimeout > time.Hour {
		return time.Hour
	}
	return co.RequestTimeout
}
