package middleware

import (
	"net/http"
	"time"

	"github.com/solespace/solespace-backend/pkg/metrics"
)

// Metrics records request counts and latency labelled by the chi route
// pattern, so ids in paths do not explode cardinality.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			m.Observe(routePattern(r), r.Method, rec.status, time.Since(start))
		})
	}
}
