package model

// Reason tags a disposal event with the operation that removed the entry.
type Reason string

const (
	ReasonEvict   Reason = "evict"
	ReasonDelete  Reason = "delete"
	ReasonClear   Reason = "clear"
	ReasonReplace Reason = "replace"
)

type EventType string

const (
	EventDisposed      EventType = "disposed"
	EventPressureStart EventType = "pressure-start"
	EventPressureEnd   EventType = "pressure-end"
	EventMetrics       EventType = "metrics"
)

// Event is delivered to observers synchronously and in call order
// relative to the operation that triggered it.
type Event struct {
	Type EventType

	// Disposed payload.
	Key    string
	Size   int64
	Reason Reason

	// Pressure payload: which component toggled the gate.
	Source string

	// Metrics payload.
	Metrics *CacheMetrics
}

// Observer receives events. It must not block: delivery is synchronous
// on the calling goroutine.
type Observer func(Event)
