package health

import (
	"encoding/json"
	"net/http"
)

// Handler serves the aggregated service health as JSON. Unhealthy yields
// 503 so load balancers can act on the status code alone; degraded still
// returns 200.
func Handler(monitor *Monitor, serviceName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := monitor.Aggregate(serviceName)

		w.Header().Set("Content-Type", "application/json")
		if status.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}
