package service

import (
	"context"
	"sync"
	"time"
)

// inFlightRequest tracks a single upstream request that multiple callers may wait for.
type inFlightRequest[T any] struct {
	mu      sync.Mutex
	result  T
	err     error
	done    bool
	waiters []chan struct{}
}

// requestCoalescer collapses concurrent requests for the same key into one
// upstream call. Used for the station directory and for historic pages, so
// two dashboards opened at once hit WeatherLink once.
type requestCoalescer[T any] struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest[T]
	timeout  time.Duration
}

func newRequestCoalescer[T any](timeout time.Duration) *requestCoalescer[T] {
	return &requestCoalescer[T]{
		inFlight: make(map[string]*inFlightRequest[T]),
		timeout:  timeout,
	}
}

// GetOrDo waits for an in-flight call for key or starts fn. The second result
// reports whether this caller joined an existing call.
// fn runs on a context that keeps ctx's values but not its cancellation, bounded
// by the coalescer timeout, so one caller going away does not fail the others.
// Each caller stops waiting when its own ctx is done.
func (rc *requestCoalescer[T]) GetOrDo(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	rc.mu.Lock()
	req, joined := rc.inFlight[key]
	if !joined {
		req = &inFlightRequest[T]{}
		rc.inFlight[key] = req
	}
	notify := make(chan struct{})
	req.mu.Lock()
	if req.done {
		result, err := req.result, req.err
		req.mu.Unlock()
		rc.mu.Unlock()
		return result, joined, err
	}
	req.waiters = append(req.waiters, notify)
	req.mu.Unlock()
	rc.mu.Unlock()

	if !joined {
		fnCtx, cancelFn := context.WithTimeout(context.WithoutCancel(ctx), rc.timeout)
		go func() {
			defer cancelFn()
			result, err := fn(fnCtx)

			req.mu.Lock()
			req.result = result
			req.err = err
			req.done = true
			waiters := req.waiters
			req.waiters = nil
			req.mu.Unlock()

			for _, w := range waiters {
				close(w)
			}
			rc.cleanup(key)
		}()
	}

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	select {
	case <-notify:
		req.mu.Lock()
		result, err := req.result, req.err
		req.mu.Unlock()
		return result, joined, err
	case <-waitCtx.Done():
		var zero T
		return zero, joined, waitCtx.Err()
	}
}

// cleanup removes the in-flight request for key. Called after the request completes.
func (rc *requestCoalescer[T]) cleanup(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.inFlight, key)
}
