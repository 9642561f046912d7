package guard

import "time"

// NoopGuard is used when the guard loop is disabled by configuration.
type NoopGuard struct{}

// ForceCall does nothing and returns nil immediately.
func (NoopGuard) ForceCall(timeout time.Duration) error {
	return nil
}

// GuardCounters always returns zero values.
func (NoopGuard) GuardCounters() (ticks, pressureSets, pressureClears, cacheFlushes, fullFlushes int64) {
	return 0, 0, 0, 0, 0
}

// Close does nothing and returns nil.
func (NoopGuard) Close() error {
	return nil
}
