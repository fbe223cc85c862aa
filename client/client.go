// Package client defines the contract of the remote reporting service and the
// asynchronous completion handles its calls return.
//
// Every call returns immediately. Item and launch ids are assigned synchronously so that
// callers can build the tree without waiting for the network; the outcome of the call is
// delivered through a Completion that callers hand to a Pending set.
package client

import (
	"context"
	"sync"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// Client is the remote reporting service
type Client interface {
	StartLaunch(rq types.StartLaunchRQ) (string, *Completion)
	FinishLaunch(launchID string, rq types.FinishLaunchRQ) *Completion
	StartItem(rq types.StartItemRQ, launchID string, parentID string) (string, *Completion)
	FinishItem(itemID string, rq types.FinishItemRQ) *Completion
	SendLog(itemID string, entry types.LogEntry, file *types.File) *Completion
}

// Completion is the eventual outcome of a remote call
type Completion struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewCompletion returns an unresolved completion and the function resolving it.
// Only the first resolution counts.
func NewCompletion() (*Completion, func(error)) {
	c := &Completion{done: make(chan struct{})}
	return c, c.resolve
}

// Resolved returns a completion that already finished with err
func Resolved(err error) *Completion {
	c, resolve := NewCompletion()
	resolve(err)
	return c
}

// Go runs fn in its own goroutine and resolves the completion with its result
func Go(fn func() error) *Completion {
	c, resolve := NewCompletion()
	go func() {
		resolve(fn())
	}()
	return c
}

func (c *Completion) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Done is closed once the call finished
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the call error. It is only meaningful after Done is closed.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the call finished or ctx is done
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
