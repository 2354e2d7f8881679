// Package rtring implements the fixed-capacity, lock-free single-producer/
// single-consumer queues that bridge a hard-real-time audio callback and
// the worker goroutines that feed and drain it. The callback thread may
// only memcpy into or out of pre-allocated PCM buffers and push/pop on
// these rings; it must never allocate, lock a mutex, or block.
package rtring

import "sync/atomic"

// Ring is a fixed-capacity SPSC circular buffer of handles. Exactly one
// goroutine may call TryPush and exactly one (possibly different) goroutine
// may call TryPop; under that discipline both operations are wait-free and
// allocation-free.
type Ring[T any] struct {
	buf  []T
	mask uint64

	// head is advanced only by the producer, tail only by the consumer.
	// Each is read by the other side, hence atomic; padding is omitted
	// since these rings are sized for whole-buffer handles, not a
	// high-enough frequency to make false sharing a measured concern here.
	head atomic.Uint64
	tail atomic.Uint64
}

// New creates a Ring able to hold capacity handles. capacity is rounded up
// to the next power of two, as required by the index-masking implementation.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &Ring[T]{
		buf:  make([]T, n),
		mask: uint64(n - 1),
	}
}

// Cap returns the ring's fixed capacity (a power of two, >= the value
// passed to New).
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Len returns a point-in-time count of queued handles. Safe to call from
// either side or a third party for diagnostics; the value may be stale by
// the time the caller acts on it.
func (r *Ring[T]) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// TryPush enqueues v. It returns false without blocking if the ring is
// full. Must only be called by the single producer goroutine.
func (r *Ring[T]) TryPush(v T) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		return false
	}
	r.buf[head&r.mask] = v
	r.head.Store(head + 1)
	return true
}

// TryPop dequeues the oldest handle. It returns the zero value and false
// without blocking if the ring is empty. Must only be called by the single
// consumer goroutine.
func (r *Ring[T]) TryPop() (T, bool) {
	var zero T
	tail := r.tail.Load()
	head := r.head.Load()
	if tail == head {
		return zero, false
	}
	v := r.buf[tail&r.mask]
	r.buf[tail&r.mask] = zero
	r.tail.Store(tail + 1)
	return v, true
}
