package config

// FlightCfg bounds the in-flight fetch table.
type FlightCfg struct {
	// MaxInFlight is a hard cap on concurrent registrations across all
	// keys. Exceeding it rejects the registration, nothing is queued.
	MaxInFlight int `yaml:"max_in_flight"`

	// WarnPerSec rate-limits cap-exceeded warnings to avoid log storms.
	WarnPerSec int `yaml:"warn_per_sec"`
}

func (cfg *FlightCfg) Cap() int {
	if cfg == nil || cfg.MaxInFlight <= 0 {
		return DefaultMaxInFlight
	}
	return cfg.MaxInFlight
}

func (cfg *FlightCfg) WarnRate() int {
	if cfg == nil || cfg.WarnPerSec <= 0 {
		return DefaultWarnPerSec
	}
	return cfg.WarnPerSec
}
