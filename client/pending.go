package client

import (
	"context"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc"

	"github.com/ethereum-optimism/infra/op-rpreporter/metrics"
)

// Pending accumulates in-flight remote calls. A failed call is logged with the context
// string it was queued under and never propagated.
type Pending struct {
	log    log.Logger
	wg     conc.WaitGroup
	queued atomic.Int64
	failed atomic.Int64
}

// NewPending creates an empty pending set
func NewPending(logger log.Logger) *Pending {
	if logger == nil {
		logger = log.New()
	}
	return &Pending{log: logger}
}

// Add queues a completion. context describes the call, e.g. "Failed to finish suite."
func (p *Pending) Add(c *Completion, context string) {
	if c == nil {
		return
	}
	p.queued.Add(1)
	p.wg.Go(func() {
		<-c.Done()
		if err := c.Err(); err != nil {
			p.failed.Add(1)
			p.log.Error(context, "err", err)
			metrics.RecordRemoteError(context)
		}
	})
}

// Wait blocks until every queued completion resolved or ctx is done
func (p *Pending) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.log.Warn("Stopped waiting for pending remote calls", "queued", p.queued.Load(), "err", ctx.Err())
		return ctx.Err()
	}
}

// Queued returns how many completions were added
func (p *Pending) Queued() int64 {
	return p.queued.Load()
}

// Failed returns how many queued completions resolved with an error
func (p *Pending) Failed() int64 {
	return p.failed.Load()
}
