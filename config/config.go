package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Documented defaults. Everything is overridable via yaml or environment.
const (
	DefaultCacheBudgetBytes   = 50 << 20 // 50MB of payloads
	DefaultMaxEntryBytes      = 5 << 20  // 5MB per asset
	DefaultProcessBudgetBytes = 512 << 20
	DefaultSampleInterval     = 30 * time.Second
	DefaultHistoryLen         = 60
	DefaultGuardInterval      = 30 * time.Second
	DefaultMaxInFlight        = 1000
	DefaultWarnPerSec         = 1

	DefaultElevatedPct  = 0.70
	DefaultDegradedPct  = 0.80
	DefaultUnhealthyPct = 0.90
	DefaultFlushAllPct  = 0.95

	DefaultTelemetryInterval = 30 * time.Second
)

// ErrInvalidConfig is the only fatal error kind: it surfaces once at
// construction and is never recoverable at runtime.
var ErrInvalidConfig = errors.New("invalid config")

// Config groups configuration of all subsystems. Monitor, Guard and
// Telemetry can be disabled by setting them to nil; the cache itself is
// always on.
type Config struct {
	Cache CacheCfg `yaml:"cache"`

	// Flight bounds fetch coalescing. If nil, defaults apply.
	Flight *FlightCfg `yaml:"flight"`

	// Monitor configures timer-driven memory sampling and health
	// classification. If nil, sampling must be driven on demand.
	Monitor *MonitorCfg `yaml:"monitor"`

	// Guard configures the feedback loop that drives cache pressure from
	// resident memory. If nil, the loop is disabled.
	Guard *GuardCfg `yaml:"guard"`

	// Telemetry configures the periodic metrics log line and the metrics
	// event. If nil, no telemetry loop runs.
	Telemetry *TelemetryCfg `yaml:"telemetry"`
}

// TelemetryCfg configures the periodic metrics logger.
type TelemetryCfg struct {
	Interval time.Duration `yaml:"interval"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *TelemetryCfg) TickInterval() time.Duration {
	if cfg == nil || cfg.Interval <= 0 {
		return DefaultTelemetryInterval
	}
	return cfg.Interval
}

// Default returns a config with every subsystem enabled on documented defaults.
func Default() *Config {
	cfg := &Config{
		Cache: CacheCfg{
			BudgetBytes:   DefaultCacheBudgetBytes,
			MaxEntryBytes: DefaultMaxEntryBytes,
		},
		Flight: &FlightCfg{
			MaxInFlight: DefaultMaxInFlight,
			WarnPerSec:  DefaultWarnPerSec,
		},
		Monitor: &MonitorCfg{
			ProcessBudgetBytes: DefaultProcessBudgetBytes,
			SampleInterval:     DefaultSampleInterval,
			HistoryLen:         DefaultHistoryLen,
			ElevatedPct:        DefaultElevatedPct,
			DegradedPct:        DefaultDegradedPct,
			UnhealthyPct:       DefaultUnhealthyPct,
		},
		Guard: &GuardCfg{
			Interval:           DefaultGuardInterval,
			ProcessBudgetBytes: DefaultProcessBudgetBytes,
			ElevatedPct:        DefaultElevatedPct,
			PressurePct:        DefaultDegradedPct,
			FlushCachePct:      DefaultUnhealthyPct,
			FlushAllPct:        DefaultFlushAllPct,
		},
		Telemetry: &TelemetryCfg{Interval: DefaultTelemetryInterval},
	}
	cfg.AdjustConfig()
	return cfg
}

// AdjustConfig fills derived and defaulted fields in place.
func (cfg *Config) AdjustConfig() {
	if cfg.Cache.BudgetBytes == 0 {
		cfg.Cache.BudgetBytes = DefaultCacheBudgetBytes
	}
	if cfg.Cache.MaxEntryBytes == 0 {
		cfg.Cache.MaxEntryBytes = DefaultMaxEntryBytes
	}

	if cfg.Monitor.Enabled() {
		m := cfg.Monitor
		if m.ProcessBudgetBytes == 0 {
			m.ProcessBudgetBytes = DefaultProcessBudgetBytes
		}
		if m.SampleInterval <= 0 {
			m.SampleInterval = DefaultSampleInterval
		}
		if m.HistoryLen <= 0 {
			m.HistoryLen = DefaultHistoryLen
		}
		if m.ElevatedPct <= 0 {
			m.ElevatedPct = DefaultElevatedPct
		}
		if m.DegradedPct <= 0 {
			m.DegradedPct = DefaultDegradedPct
		}
		if m.UnhealthyPct <= 0 {
			m.UnhealthyPct = DefaultUnhealthyPct
		}
	}

	if cfg.Guard.Enabled() {
		g := cfg.Guard
		if g.ProcessBudgetBytes == 0 {
			if cfg.Monitor.Enabled() {
				g.ProcessBudgetBytes = cfg.Monitor.ProcessBudgetBytes
			} else {
				g.ProcessBudgetBytes = DefaultProcessBudgetBytes
			}
		}
		if g.Interval <= 0 {
			g.Interval = DefaultGuardInterval
		}
		if g.ElevatedPct <= 0 {
			g.ElevatedPct = DefaultElevatedPct
		}
		if g.PressurePct <= 0 {
			g.PressurePct = DefaultDegradedPct
		}
		if g.FlushCachePct <= 0 {
			g.FlushCachePct = DefaultUnhealthyPct
		}
		if g.FlushAllPct <= 0 {
			g.FlushAllPct = DefaultFlushAllPct
		}
		if g.LowWaterPct <= 0 {
			g.LowWaterPct = g.ElevatedPct * 0.9
		}
	}
}

// Validate checks for fatal misconfiguration. Only construction-time
// errors exist; every runtime condition thereafter degrades gracefully.
func (cfg *Config) Validate() error {
	if cfg.Cache.BudgetBytes <= 0 {
		return fmt.Errorf("%w: cache budget must be positive, got %d", ErrInvalidConfig, cfg.Cache.BudgetBytes)
	}
	if cfg.Cache.MaxEntryBytes <= 0 {
		return fmt.Errorf("%w: max entry size must be positive, got %d", ErrInvalidConfig, cfg.Cache.MaxEntryBytes)
	}
	if cfg.Cache.MaxEntryBytes > cfg.Cache.BudgetBytes {
		return fmt.Errorf("%w: max entry size %d exceeds cache budget %d", ErrInvalidConfig, cfg.Cache.MaxEntryBytes, cfg.Cache.BudgetBytes)
	}
	if cfg.Monitor.Enabled() && cfg.Monitor.ProcessBudgetBytes <= 0 {
		return fmt.Errorf("%w: process budget must be positive, got %d", ErrInvalidConfig, cfg.Monitor.ProcessBudgetBytes)
	}
	if cfg.Guard.Enabled() {
		g := cfg.Guard
		if g.ProcessBudgetBytes <= 0 {
			return fmt.Errorf("%w: guard process budget must be positive, got %d", ErrInvalidConfig, g.ProcessBudgetBytes)
		}
		if !(g.ElevatedPct < g.PressurePct && g.PressurePct < g.FlushCachePct && g.FlushCachePct < g.FlushAllPct) {
			return fmt.Errorf("%w: guard thresholds must be strictly ascending", ErrInvalidConfig)
		}
	}
	return nil
}

// LoadConfig reads a yaml config, applies environment overrides,
// derived fields and validation.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	cfg := &Config{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}

	cfg.ApplyEnv()
	cfg.AdjustConfig()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment override keys.
const (
	EnvCacheBudgetBytes   = "ASSET_GUARD_CACHE_BUDGET_BYTES"
	EnvMaxEntryBytes      = "ASSET_GUARD_MAX_ENTRY_BYTES"
	EnvProcessBudgetBytes = "ASSET_GUARD_PROCESS_BUDGET_BYTES"
	EnvSampleInterval     = "ASSET_GUARD_SAMPLE_INTERVAL"
	EnvHistoryLen         = "ASSET_GUARD_HISTORY_LEN"
	EnvGuardInterval      = "ASSET_GUARD_GUARD_INTERVAL"
	EnvMaxInFlight        = "ASSET_GUARD_MAX_IN_FLIGHT"
)

// ApplyEnv overrides fields from process environment where set.
// Unparsable values are ignored, the config keeps its current value.
func (cfg *Config) ApplyEnv() {
	if v, ok := envInt64(EnvCacheBudgetBytes); ok {
		cfg.Cache.BudgetBytes = v
	}
	if v, ok := envInt64(EnvMaxEntryBytes); ok {
		cfg.Cache.MaxEntryBytes = v
	}
	if v, ok := envInt64(EnvProcessBudgetBytes); ok {
		if cfg.Monitor.Enabled() {
			cfg.Monitor.ProcessBudgetBytes = v
		}
		if cfg.Guard.Enabled() {
			cfg.Guard.ProcessBudgetBytes = v
		}
	}
	if v, ok := envDuration(EnvSampleInterval); ok && cfg.Monitor.Enabled() {
		cfg.Monitor.SampleInterval = v
	}
	if v, ok := envInt64(EnvHistoryLen); ok && cfg.Monitor.Enabled() {
		cfg.Monitor.HistoryLen = int(v)
	}
	if v, ok := envDuration(EnvGuardInterval); ok && cfg.Guard.Enabled() {
		cfg.Guard.Interval = v
	}
	if v, ok := envInt64(EnvMaxInFlight); ok {
		if cfg.Flight == nil {
			cfg.Flight = &FlightCfg{}
		}
		cfg.Flight.MaxInFlight = int(v)
	}
}

func envInt64(key string) (int64, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envDuration(key string) (time.Duration, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}
