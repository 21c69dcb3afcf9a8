// Package async provides single-assignment futures and an advisory race
// used to decide whether a loading placeholder is worth showing.
package async

import (
	"context"
	"sync"
	"time"
)

// Future holds a value that becomes available once. Settling is one-shot:
// later attempts are ignored.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) settle(v T, err error) {
	f.once.Do(func() {
		f.val = v
		f.err = err
		close(f.done)
	})
}

// Go runs fn in a new goroutine and returns a future for its result.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		v, err := fn(ctx)
		f.settle(v, err)
	}()
	return f
}

// Pending returns an unsettled future and the function that settles it.
func Pending[T any]() (*Future[T], func(T, error)) {
	f := newFuture[T]()
	return f, f.settle
}

// Resolved returns a future already holding v.
func Resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.settle(v, nil)
	return f
}

// Rejected returns a future already holding err.
func Rejected[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.settle(zero, err)
	return f
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is done. A cancelled ctx
// only stops the wait, never the underlying work.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Peek returns the settled result without blocking. ok is false while the
// future is pending.
func (f *Future[T]) Peek() (v T, ok bool, err error) {
	select {
	case <-f.done:
		return f.val, true, f.err
	default:
		return v, false, nil
	}
}

// Then returns a future settled by fn applied to f's value. A rejection of
// f skips fn and propagates unchanged.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := newFuture[U]()
	go func() {
		<-f.done
		if f.err != nil {
			var zero U
			out.settle(zero, f.err)
			return
		}
		out.settle(fn(f.val))
	}()
	return out
}

// Outcome is the result of Race. SettledEarly reports whether Result had
// already settled when the race ended; Result is always the original,
// uncancelled future.
type Outcome[T any] struct {
	SettledEarly bool
	Result       *Future[T]
}

// Race waits until f settles, d elapses, or ctx is done, whichever comes
// first. It never cancels f.
func Race[T any](ctx context.Context, f *Future[T], d time.Duration) Outcome[T] {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-f.done:
		return Outcome[T]{SettledEarly: true, Result: f}
	case <-timer.C:
	case <-ctx.Done():
	}
	return Outcome[T]{Result: f}
}
