package mid

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// UserAgent is sent on every upstream request made through Client.
const UserAgent = "unnamed-tms-backend/1.0 (+fleet vin decoding)"

type userAgentTransport struct {
	next http.RoundTripper
}

func (t userAgentTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("User-Agent") == "" {
		r = r.Clone(r.Context())
		r.Header.Set("User-Agent", UserAgent)
	}
	return t.next.RoundTrip(r)
}

// Client returns an HTTP client for upstream APIs: traced with otelhttp,
// tagged with UserAgent and bounded by timeout.
func Client(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(userAgentTransport{next: http.DefaultTransport}),
	}
}
