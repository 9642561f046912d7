package model

import "time"

// Status classifies the latest memory sample against the configured
// process budget. It is recomputed fresh on every sampling tick, there
// is no hysteresis at this layer.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Rank orders statuses for worsening detection: healthy < degraded < unhealthy.
func (s Status) Rank() int {
	switch s {
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	default:
		return 0
	}
}

type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

// MemorySample is one sampling tick of process memory plus cache and
// registry occupancy. Samples are retained in a bounded, oldest-first
// history.
type MemorySample struct {
	Timestamp      time.Time `json:"timestamp"`
	ResidentBytes  uint64    `json:"resident_bytes"`
	HeapTotalBytes uint64    `json:"heap_total_bytes"`
	HeapUsedBytes  uint64    `json:"heap_used_bytes"`
	ExternalBytes  uint64    `json:"external_bytes"`
	CacheEntries   int64     `json:"cache_entries"`
	CacheBytes     int64     `json:"cache_bytes"`
	RegistryKeys   int64     `json:"registry_keys"`
}

// HealthReport is the externally visible health payload.
// StatusCode is 503 exactly when Status is unhealthy, else 200.
type HealthReport struct {
	Status     Status       `json:"status"`
	StatusCode int          `json:"statusCode"`
	Message    string       `json:"message"`
	Details    MemorySample `json:"details"`
}
