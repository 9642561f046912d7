package health

import "github.com/Borislavv/go-asset-guard/model"

// NoopRegistry stands in when no external cache registry is wired.
// It reports zero stats and flushes nothing.
type NoopRegistry struct{}

func (NoopRegistry) Stats() model.RegistryStats {
	return model.RegistryStats{}
}

func (NoopRegistry) FlushAll() error {
	return nil
}
