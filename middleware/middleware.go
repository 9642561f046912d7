// Package middleware adapts the memory health monitor to net/http:
// a health endpoint that annotates responses with the current status,
// and a shedding middleware that answers 503 while the process is
// refusing new work.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/Borislavv/go-asset-guard/model"
)

// HealthHeader carries the current health status on every
// health-checked response.
const HealthHeader = "X-Memory-Health"

// Health is the slice of the monitor the adapters consult.
type Health interface {
	CurrentStatus() model.Status
	HealthReport() model.HealthReport
	ShouldAcceptNewRequests() bool
}

// HealthCheck writes the health report as JSON with the report's status
// code and the status header set. It never rejects the request itself.
func HealthCheck(monitor Health) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := monitor.HealthReport()
		w.Header().Set(HealthHeader, string(report.Status))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(report.StatusCode)
		_ = json.NewEncoder(w).Encode(report)
	})
}

type shedResponse struct {
	Error  string       `json:"error"`
	Status model.Status `json:"status"`
}

// Shed short-circuits with a 503 JSON body while the monitor stops
// accepting new requests and does not invoke next; otherwise it invokes
// next exactly once, unchanged.
func Shed(monitor Health, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !monitor.ShouldAcceptNewRequests() {
			status := monitor.CurrentStatus()
			w.Header().Set(HealthHeader, string(status))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(shedResponse{
				Error:  "service unavailable due to memory pressure",
				Status: status,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
