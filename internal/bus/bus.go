package bus

import (
	"context"
	"sync"
)

// Bus aggregates every subscribed Topic into one dispatch point. One
// forwarder goroutine per Topic copies messages into a shared aggregation
// channel; a single dispatcher goroutine drains that channel into the
// Router, in the order messages arrive on it.
//
// Ordering is preserved per-Topic (a Topic's messages are forwarded in
// publish order) but not across Topics -- two channels reporting events
// on separate upstream topics at the same instant may interleave, which
// matches the platform's own lack of a global event clock.
type Bus struct {
	router *Router
	agg    chan Message

	ctx    context.Context
	cancel context.CancelFunc

	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewBus creates a Bus dispatching through router. buffer sizes the
// aggregation channel; a full aggregation channel backpressures every
// forwarder goroutine, which in turn backpressures every Topic.Publish --
// a slow backend is allowed to back the whole pipeline up rather than
// silently drop events.
func NewBus(router *Router, buffer int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{router: router, agg: make(chan Message, buffer), ctx: ctx, cancel: cancel}
}

// Subscribe starts a forwarder goroutine copying t's messages into the
// aggregation channel. The forwarder exits either when t is closed or
// when Stop is called, whichever comes first, so a producer that never
// closes its Topic cannot hang Stop. Must be called before Start, or the
// race detector will rightly complain -- every collaborator is wired
// before the run loop starts.
func (b *Bus) Subscribe(t *Topic) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case m, ok := <-t.ch:
				if !ok {
					return
				}
				select {
				case b.agg <- m:
				case <-b.ctx.Done():
					return
				}
			case <-b.ctx.Done():
				return
			}
		}
	}()
}

// Start launches the single dispatcher goroutine. Calling Start twice is
// a no-op.
func (b *Bus) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.ctx.Done():
				return
			case m := <-b.agg:
				b.router.Dispatch(m)
			}
		}
	}()
}

// Stop signals the dispatcher and every forwarder goroutine to exit and
// blocks until they have returned, so no translator callback is in
// flight once Stop returns. Safe to call whether or not Topics have been
// closed.
func (b *Bus) Stop() {
	b.cancel()
	b.wg.Wait()
}
