package vin

import (
	"net/http"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/pkg/mid"
)

// UpstreamError is a non-2xx answer from a provider. Upstream holds the
// provider name.
type UpstreamError = mid.UpstreamError

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 30 * time.Second}
}
