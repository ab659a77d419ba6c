package common

import (
	"context"
	"sync"
)

// Inflight tracks the cancel funcs of running requests so a service can
// abort all of them at once. The zero value is ready to use.
type Inflight struct {
	mu      sync.Mutex
	next    int
	cancels map[int]context.CancelFunc
}

// Begin derives a cancellable context for one request. The returned func
// must be called when the request finishes.
func (f *Inflight) Begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	if f.cancels == nil {
		f.cancels = make(map[int]context.CancelFunc)
	}
	id := f.next
	f.next++
	f.cancels[id] = cancel
	f.mu.Unlock()

	return ctx, func() {
		f.mu.Lock()
		delete(f.cancels, id)
		f.mu.Unlock()
		cancel()
	}
}

// CancelAll cancels every request started with Begin that is still running.
func (f *Inflight) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, cancel := range f.cancels {
		cancel()
		delete(f.cancels, id)
	}
}

// Len returns the number of running requests.
func (f *Inflight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancels)
}
