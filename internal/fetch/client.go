// Package fetch provides the upstream client for Deribit market data.
package fetch

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Options configures the upstream client. Production values come from the
// deribit section of the configuration.
type Options struct {
	BaseURL string

	// Deadlines applied to each call, including retries
	PriceTimeout     time.Duration
	ContractsTimeout time.Duration

	// RetryMax is the number of transport retries after the first attempt
	RetryMax int

	// RateLimitRPS of zero disables pacing
	RateLimitRPS   float64
	RateLimitBurst int
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient(retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}
