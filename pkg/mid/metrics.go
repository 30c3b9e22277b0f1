package mid

import (
	"net/http"
	"strconv"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/pkg/metrics"
)

// Metrics returns middleware that counts requests and observes latency per
// route. route maps a request to a low-cardinality label (typically the mux
// pattern); an empty label is reported as "unmatched".
func Metrics(reg *metrics.Registry, route func(*http.Request) string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			label := route(r)
			if label == "" {
				label = "unmatched"
			}
			reg.Counter(metrics.WithLabels("tms_http_requests_total",
				"route", label, "status", strconv.Itoa(sw.status)), "HTTP requests by route and status").Inc()
			reg.Histogram(metrics.WithLabels("tms_http_request_duration_seconds",
				"route", label), "HTTP request latency", nil).Since(start)
		})
	}
}
