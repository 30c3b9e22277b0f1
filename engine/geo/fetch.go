package geo

import (
	"context"

	"github.com/maiwanamini/unnamed-tms-backend/pkg/fn"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/mid"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/resilience"
)

// call fetches rawURL through the client's breaker, if any. The URL carries
// the access token; mid.GetJSON keeps it out of errors.
func call[T any](ctx context.Context, c *Client, rawURL string) fn.Result[T] {
	get := func(ctx context.Context) fn.Result[T] { return mid.GetJSON[T](ctx, c.http, upstreamName, rawURL) }
	var r fn.Result[T]
	if c.breaker != nil {
		r = resilience.CallResult(c.breaker, ctx, get)
	} else {
		r = get(ctx)
	}
	if r.IsErr() {
		_, err := r.Unwrap()
		c.logger.Warn("mapbox call failed", "err", err)
	}
	return r
}
