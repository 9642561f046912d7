package flight

import (
	"context"
	"sync"
)

// Future is a one-shot settling handle for an outstanding fetch.
// It settles exactly once, with Resolve or Reject; later calls are no-ops.
type Future struct {
	once sync.Once
	done chan struct{}
	data []byte
	err  error
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) Resolve(data []byte) {
	f.once.Do(func() {
		f.data = data
		close(f.done)
	})
}

func (f *Future) Reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done closes when the future settles, success or failure.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports without blocking.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future settles or ctx is done. The coalescer
// itself never bounds fetch duration: bounding belongs to the caller's
// context upstream.
func (f *Future) Await(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.data, f.err
	}
}
