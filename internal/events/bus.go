// Package events implements the synchronous in-process event feed.
// Delivery happens on the publishing goroutine, in call order, so
// observers see a deterministic sequence relative to the triggering
// operation.
package events

import (
	"sync"

	"github.com/Borislavv/go-asset-guard/model"
)

type Bus struct {
	mu        sync.RWMutex
	observers []model.Observer
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers an observer for all subsequent events.
// There is no unsubscribe: observers live as long as the process-wide
// subsystem they watch.
func (b *Bus) Subscribe(obs model.Observer) {
	if obs == nil {
		return
	}
	b.mu.Lock()
	b.observers = append(b.observers, obs)
	b.mu.Unlock()
}

// Publish delivers the event to every observer synchronously, in
// subscription order. Callers must not hold locks an observer could
// reenter through.
func (b *Bus) Publish(e model.Event) {
	b.mu.RLock()
	observers := b.observers
	b.mu.RUnlock()

	for _, obs := range observers {
		obs(e)
	}
}
