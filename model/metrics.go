package model

// CacheMetrics is a point-in-time snapshot. It carries no identity and
// is safe to retain after the cache mutated.
type CacheMetrics struct {
	Entries  int64 `json:"entries"`
	Bytes    int64 `json:"bytes"`
	Pressure bool  `json:"pressure"`

	// Process memory figures as of the latest sample, zero before the
	// first sampling tick.
	ResidentBytes  uint64 `json:"resident_bytes"`
	HeapUsedBytes  uint64 `json:"heap_used_bytes"`
	HeapTotalBytes uint64 `json:"heap_total_bytes"`
	ExternalBytes  uint64 `json:"external_bytes"`
}
