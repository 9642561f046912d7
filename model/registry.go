package model

// RegistryStats is the occupancy snapshot of an external cache registry.
type RegistryStats struct {
	Keys   int64 `json:"keys"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// ExternalCacheRegistry is the collaborator flushed alongside the asset
// cache during emergency cleanup. Failures from it are logged by the
// caller, never propagated.
type ExternalCacheRegistry interface {
	Stats() RegistryStats
	FlushAll() error
}
