// Package task runs cancellable fetches whose results are applied only if
// nobody cancelled them in the meantime.
package task

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Scope owns a group of handles. Closing the scope cancels all of them.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	g      errgroup.Group
}

func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

func (s *Scope) Context() context.Context {
	return s.ctx
}

// Wait blocks until every handle finished and returns the first error. A
// fetch cut short by the parent context, such as a deadline, reports the
// context error; work dropped by Cancel or Close reports nothing.
func (s *Scope) Wait() error {
	return s.g.Wait()
}

// Close cancels outstanding work and waits for it to stop.
func (s *Scope) Close() {
	s.closed.Store(true)
	s.cancel()
	_ = s.g.Wait()
}

// Handle tracks one fetch.
type Handle struct {
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
	cancelled bool
	applied   bool
}

// Cancel aborts the fetch. Once Cancel returns the result will not be
// applied, or has already been.
func (h *Handle) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
	h.cancel()
}

// Done is closed when the fetch has finished, applied or not.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Applied reports whether apply ran.
func (h *Handle) Applied() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.applied
}

// Go starts fetch in the scope. apply receives the result unless the handle
// or the scope was cancelled before fetch returned. When the parent context
// ends first the result is not applied and the group fails instead.
func Go[T any](s *Scope, fetch func(context.Context) (T, error), apply func(T, error)) *Handle {
	ctx, cancel := context.WithCancel(s.ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	s.g.Go(func() error {
		defer close(h.done)
		defer cancel()

		v, err := fetch(ctx)

		h.mu.Lock()
		defer h.mu.Unlock()
		if h.cancelled || s.closed.Load() {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return err
		}
		h.applied = true
		if apply != nil {
			apply(v, err)
		}
		return err
	})
	return h
}
