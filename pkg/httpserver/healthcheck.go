package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthCheck is a named readiness probe.
type HealthCheck struct {
	Name  string
	Check func(context.Context) error
}

// HealthHandler runs the given checks and reports aggregate status. A single
// failing check turns the response into 503 with per-check detail, which is
// what load balancers and orchestration probes expect.
func HealthHandler(checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[c.Name] = err.Error()
				continue
			}
			results[c.Name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}
