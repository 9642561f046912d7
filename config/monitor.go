package config

import "time"

// MonitorCfg configures memory sampling and health classification.
// If nil, timer-driven sampling is disabled; health predicates still
// work against whatever samples CheckMemory produced on demand.
type MonitorCfg struct {
	// ProcessBudgetBytes is the total-process memory budget the health
	// thresholds are percentages of. It is a separate value from the
	// cache RAM budget and must never be derived from it.
	ProcessBudgetBytes int64 `yaml:"process_budget_bytes"`

	// SampleInterval drives the sampling ticker.
	SampleInterval time.Duration `yaml:"sample_interval"`

	// HistoryLen bounds the retained sample ring, oldest evicted first.
	HistoryLen int `yaml:"history_len"`

	// Ascending fractions of ProcessBudgetBytes. Below ElevatedPct the
	// process is healthy; from ElevatedPct it is healthy but logged;
	// from DegradedPct it is degraded; from UnhealthyPct it is unhealthy.
	ElevatedPct  float64 `yaml:"elevated_pct"`
	DegradedPct  float64 `yaml:"degraded_pct"`
	UnhealthyPct float64 `yaml:"unhealthy_pct"`
}

func (cfg *MonitorCfg) Enabled() bool {
	return cfg != nil
}
