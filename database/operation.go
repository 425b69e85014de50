// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
)

// Operation is a cancellable call running in the background. Every
// client method can be run as one:
//
//	op := database.Start(ctx, func(ctx context.Context) (*database.QueryResult, error) {
//	    return client.Query(ctx, q, database.QueryOptions{})
//	})
//	...
//	result, err := op.Wait()
type Operation[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}
	value  T
	err    error
}

// Start runs fn in a new goroutine with a context derived from ctx.
func Start[T any](ctx context.Context, fn func(context.Context) (T, error)) *Operation[T] {
	ctx, cancel := context.WithCancel(ctx)
	op := &Operation[T]{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(op.done)
		defer cancel()
		op.value, op.err = fn(ctx)
	}()
	return op
}

// Cancel asks the operation to stop. The operation finishes with a
// cancellation error at its next check, between network calls at the
// latest.
func (o *Operation[T]) Cancel() { o.cancel() }

// Done is closed when the operation has finished.
func (o *Operation[T]) Done() <-chan struct{} { return o.done }

// Wait blocks until the operation finishes and returns its outcome.
func (o *Operation[T]) Wait() (T, error) {
	<-o.done
	return o.value, o.err
}
