package config

import "time"

// GuardCfg configures the periodic feedback controller that connects
// resident memory readings to the cache's pressure flag.
// If nil, the guard loop is disabled and pressure is only ever toggled
// manually or by emergency cleanup.
type GuardCfg struct {
	// Interval between controller ticks.
	Interval time.Duration `yaml:"interval"`

	// ProcessBudgetBytes the usage fractions below are computed against.
	// Defaults to the monitor's process budget when unset.
	ProcessBudgetBytes int64 `yaml:"process_budget_bytes"`

	// LowWaterPct is the hysteresis band under ElevatedPct: pressure set
	// earlier is cleared only once usage falls below it. Defaults to
	// 0.9*ElevatedPct when unset.
	LowWaterPct float64 `yaml:"low_water_pct"`

	// Ascending response thresholds as fractions of the process budget:
	// ElevatedPct..PressurePct log only; PressurePct..FlushCachePct set
	// cache pressure; FlushCachePct..FlushAllPct clear the asset cache,
	// registry intact; >= FlushAllPct flush cache and registry both.
	ElevatedPct   float64 `yaml:"elevated_pct"`
	PressurePct   float64 `yaml:"pressure_pct"`
	FlushCachePct float64 `yaml:"flush_cache_pct"`
	FlushAllPct   float64 `yaml:"flush_all_pct"`
}

func (cfg *GuardCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *GuardCfg) TickInterval() time.Duration {
	if cfg == nil || cfg.Interval <= 0 {
		return DefaultGuardInterval
	}
	return cfg.Interval
}
