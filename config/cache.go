package config

// CacheCfg bounds the asset cache by total bytes, not item count.
type CacheCfg struct {
	// BudgetBytes is the RAM budget for all payloads combined. This is a
	// per-cache value, independent from the total-process budget used by
	// the monitor and the guard loop.
	BudgetBytes int64 `yaml:"budget_bytes"`

	// MaxEntryBytes rejects any single payload larger than this.
	MaxEntryBytes int64 `yaml:"max_entry_bytes"`
}
