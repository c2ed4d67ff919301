// Package rpcproxy bridges the blocking legacy RPC transport into a
// non-blocking call interface. All calls issued against one endpoint are
// drained by a single dedicated worker, which guarantees FIFO ordering of
// legacy calls per connection.
package rpcproxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/tonigrzb/hahomematic/types"
)

const (
	// queueSize bounds the number of calls waiting for the worker.
	queueSize = 32
)

type result struct {
	value any
	err   error
}

type call struct {
	method string
	params []any
	done   chan result
}

// Proxy serializes calls to a single remote endpoint through one worker
// goroutine. The caller awaits completion, but two calls issued
// concurrently can never be reordered on the wire.
type Proxy struct {
	transport Transport
	logger    hclog.Logger

	queue chan *call

	// mu guards stopped. Enqueueing holds it so that once Shutdown has
	// set stopped, no further call can slip past the draining worker.
	mu      sync.Mutex
	stopped bool

	stopOnce sync.Once
	stop     chan struct{}
	drained  chan struct{}
}

// New creates a proxy backed by the given transport and starts its worker.
// The proxy must be shut down with Shutdown when the owning connection is
// destroyed.
func New(transport Transport, logger hclog.Logger) *Proxy {
	p := &Proxy{
		transport: transport,
		logger:    logger.Named("rpcproxy"),
		queue:     make(chan *call, queueSize),
		stop:      make(chan struct{}),
		drained:   make(chan struct{}),
	}
	go p.work()
	return p
}

// Call executes the named remote procedure and returns its result. It
// blocks the caller until the worker has completed the call, the context is
// cancelled, or the proxy is shut down.
//
// Cancellation is advisory once the call has been handed to the worker: the
// remote side effect may still occur.
func (p *Proxy) Call(ctx context.Context, method string, params ...any) (any, error) {
	c := &call{
		method: method,
		params: params,
		done:   make(chan result, 1),
	}

	// Enqueueing under the lock makes the stopped state authoritative:
	// either the call is rejected here, or it is in the queue before
	// Shutdown flips stopped and is drained by failPending.
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", method, types.ErrNoConnection)
	}
	select {
	case p.queue <- c:
		p.mu.Unlock()
	case <-ctx.Done():
		p.mu.Unlock()
		return nil, ctx.Err()
	}

	select {
	case res := <-c.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown releases the worker. Outstanding calls fail with
// types.ErrNoConnection. It is safe to call Shutdown more than once.
func (p *Proxy) Shutdown() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.stopOnce.Do(func() {
		close(p.stop)
	})
	<-p.drained
}

func (p *Proxy) work() {
	defer close(p.drained)
	for {
		select {
		case c := <-p.queue:
			p.execute(c)
		case <-p.stop:
			p.failPending()
			return
		}
	}
}

// execute runs a single call on the blocking transport and classifies the
// outcome.
func (p *Proxy) execute(c *call) {
	var reply any
	err := p.transport.Call(c.method, c.params, &reply)
	if err != nil {
		err = classify(c.method, err)
		p.logger.Debug("call failed", "method", c.method, "error", err)
	}
	c.done <- result{value: reply, err: err}
}

// failPending fails every call still queued at shutdown.
func (p *Proxy) failPending() {
	for {
		select {
		case c := <-p.queue:
			c.done <- result{err: fmt.Errorf("%s: %w: %w", c.method, types.ErrNoConnection, types.ErrProxyStopped)}
		default:
			return
		}
	}
}
