// Package future provides an eager, promise style implementation of
// [effect.Monad]. A Future starts resolving as soon as it is created and
// completes at most once.
package future

import (
	"context"
	"errors"
	"sync"

	"github.com/adamwoolhether/asynchttp/effect"
)

// ErrNilFuture is returned by a flattened future whose outer value resolved
// to a nil inner future.
var ErrNilFuture = errors.New("nil inner future")

// Future is a value that becomes available at some point.
type Future[A any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	val       A
	err       error
	callbacks []effect.Callback[A]
}

func newFuture[A any]() *Future[A] {
	return &Future[A]{done: make(chan struct{})}
}

// Succeeded returns a Future already completed with a.
func Succeeded[A any](a A) *Future[A] {
	f := newFuture[A]()
	f.complete(a, nil)
	return f
}

// Failed returns a Future already completed with err.
func Failed[A any](err error) *Future[A] {
	var zero A
	f := newFuture[A]()
	f.complete(zero, err)
	return f
}

// complete resolves the future, returning false when it was already resolved.
func (f *Future[A]) complete(a A, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.val, f.err = a, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(a, err)
	}

	return true
}

// OnComplete registers cb to run once the future resolves. If it already has,
// cb runs immediately on the calling goroutine.
func (f *Future[A]) OnComplete(cb effect.Callback[A]) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	a, err := f.val, f.err
	f.mu.Unlock()

	cb(a, err)
}

// Done returns a channel closed when the future resolves.
func (f *Future[A]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves or ctx ends.
func (f *Future[A]) Await(ctx context.Context) (A, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.val, f.err
	case <-ctx.Done():
		var zero A
		return zero, ctx.Err()
	}
}

// Monad implements [effect.Monad] for *Future[A].
type Monad[A any] struct{}

var _ effect.Monad[int, *Future[int], *Future[*Future[int]]] = Monad[int]{}

func (Monad[A]) Unit(a A) *Future[A] {
	return Succeeded(a)
}

func (Monad[A]) Error(err error) *Future[A] {
	return Failed[A](err)
}

func (Monad[A]) Map(fa *Future[A], fn func(A) A) *Future[A] {
	p := newFuture[A]()
	fa.OnComplete(func(a A, err error) {
		if err != nil {
			p.complete(a, err)
			return
		}
		p.complete(fn(a), nil)
	})

	return p
}

// Async runs register immediately. Repeated invocations of the callback are
// ignored.
func (Monad[A]) Async(register func(cb effect.Callback[*Future[A]])) *Future[*Future[A]] {
	p := newFuture[*Future[A]]()
	register(func(inner *Future[A], err error) {
		p.complete(inner, err)
	})

	return p
}

func (Monad[A]) Flatten(ffa *Future[*Future[A]]) *Future[A] {
	p := newFuture[A]()
	ffa.OnComplete(func(inner *Future[A], err error) {
		if err != nil {
			var zero A
			p.complete(zero, err)
			return
		}
		if inner == nil {
			var zero A
			p.complete(zero, ErrNilFuture)
			return
		}
		inner.OnComplete(func(a A, err error) {
			p.complete(a, err)
		})
	})

	return p
}
