package zmqcore

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Context is a handle to the underlying transport instance shared by every
// Socket derived from it. It is thread-safe: Start is a no-op once
// already started; Stop terminates every child socket's blocking
// operations and blocks until all sockets derived from this context have
// been closed. A Context is restartable after Stop.
type Context struct {
	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewContext constructs a Context. If start is true, the context is
// started immediately (equivalent to calling Start right after
// construction).
func NewContext(start bool) *Context {
	c := &Context{}
	if start {
		c.Start()
	}
	return c
}

// Start begins the context's lifecycle. Calling Start on an
// already-started context is a no-op.
func (c *Context) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.ctx = ctx
	c.cancel = cancel
	c.group, _ = errgroup.WithContext(ctx)
	c.started = true
}

// Stop cancels every child socket's blocking operations and blocks until
// every socket registered via register has reported its close. Stop on an
// already-stopped context idempotently returns nil ("success", per
// spec.md's error propagation policy).
func (c *Context) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	group := c.group
	c.started = false
	c.mu.Unlock()

	cancel()
	return group.Wait()
}

// done returns the context's cancellation channel, closed when Stop is
// called. Sockets select on this to fail blocking operations with
// ErrContextTerminated.
func (c *Context) done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.ctx.Done()
}

func (c *Context) goContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return context.Background()
	}
	return c.ctx
}

// register tracks a child socket's close so Stop can block until it
// completes. closeFn is invoked exactly once, from the context's
// goroutine group, when the context is stopped. A socket that closes
// itself earlier (Socket.Stop) is expected to make closeFn safe to call
// again, since register has no way to retract it once armed.
func (c *Context) register(closeFn func() error) {
	c.mu.Lock()
	group := c.group
	c.mu.Unlock()
	if group == nil {
		return
	}
	group.Go(func() error {
		<-c.done()
		return closeFn()
	})
}
