// Package task provides a lazy, continuation-passing implementation of
// [effect.Monad]. Nothing happens until a Task is run, and every run
// repeats the whole computation.
package task

import (
	"context"
	"sync/atomic"

	"github.com/adamwoolhether/asynchttp/effect"
)

// Task is a deferred computation that reports its result to a continuation.
type Task[A any] struct {
	run func(k effect.Callback[A])
}

// New returns a Task driven by run.
func New[A any](run func(k effect.Callback[A])) Task[A] {
	return Task[A]{run: run}
}

// Run executes the computation, invoking k with the outcome. k may be
// called on any goroutine.
func (t Task[A]) Run(k effect.Callback[A]) {
	if t.run == nil {
		var zero A
		k(zero, nil)
		return
	}
	t.run(k)
}

// Await runs the task and blocks for its outcome or until ctx ends.
func (t Task[A]) Await(ctx context.Context) (A, error) {
	type outcome struct {
		a   A
		err error
	}

	ch := make(chan outcome, 1)
	t.Run(func(a A, err error) {
		select {
		case ch <- outcome{a, err}:
		default:
		}
	})

	select {
	case o := <-ch:
		return o.a, o.err
	case <-ctx.Done():
		var zero A
		return zero, ctx.Err()
	}
}

// Monad implements [effect.Monad] for Task[A].
type Monad[A any] struct{}

var _ effect.Monad[int, Task[int], Task[Task[int]]] = Monad[int]{}

func (Monad[A]) Unit(a A) Task[A] {
	return New(func(k effect.Callback[A]) { k(a, nil) })
}

func (Monad[A]) Error(err error) Task[A] {
	return New(func(k effect.Callback[A]) {
		var zero A
		k(zero, err)
	})
}

func (Monad[A]) Map(fa Task[A], fn func(A) A) Task[A] {
	return New(func(k effect.Callback[A]) {
		fa.Run(func(a A, err error) {
			if err != nil {
				k(a, err)
				return
			}
			k(fn(a), nil)
		})
	})
}

// Async defers register until the task runs. Each run gets its own one-shot
// callback; invocations after the first are dropped.
func (Monad[A]) Async(register func(cb effect.Callback[Task[A]])) Task[Task[A]] {
	return New(func(k effect.Callback[Task[A]]) {
		var fired atomic.Bool
		register(func(inner Task[A], err error) {
			if !fired.CompareAndSwap(false, true) {
				return
			}
			k(inner, err)
		})
	})
}

func (Monad[A]) Flatten(ffa Task[Task[A]]) Task[A] {
	return New(func(k effect.Callback[A]) {
		ffa.Run(func(inner Task[A], err error) {
			if err != nil {
				var zero A
				k(zero, err)
				return
			}
			inner.Run(k)
		})
	})
}
