// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Ring is a bounded FIFO over a power-of-two slot array, indexed by
// monotonically increasing read/write counters.
//
// Producers reserve a position by CAS on the write counter and reject with
// ErrWouldBlock once write − read reaches capacity. Consumers reserve by
// CAS on the read counter and spin until the slot's READY status lands.
// A producer that wraps onto a slot the consumer is still draining waits
// for the slot to return to EMPTY before writing — the only non-wait-free
// step, reachable solely in a near-full wrap race.
//
// Dequeue is safe for multiple consumers (the worker pool drains one ring
// from W goroutines). UnsafeDequeue is the single-consumer fast path and
// must not be mixed with concurrent Dequeue calls.
type Ring[T any] struct {
	_        pad
	read     atomix.Uint64
	_        pad
	write    atomix.Uint64
	_        pad
	buffer   []ringSlot[T]
	mask     uint64
	capacity uint64
}

type ringSlot[T any] struct {
	data   T
	status atomix.Int32
	_      padShort
}

// NewRing creates a ring. Capacity rounds up to the next power of 2.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 2 {
		panic("queue: capacity must be >= 2")
	}
	n := uint64(roundToPow2(capacity))
	return &Ring[T]{
		buffer:   make([]ringSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}
}

// Cap returns the ring capacity.
func (q *Ring[T]) Cap() int {
	return int(q.capacity)
}

// Len returns the current backlog. The value is approximate under
// concurrent access.
func (q *Ring[T]) Len() int {
	return int(q.write.LoadAcquire() - q.read.LoadAcquire())
}

// Enqueue adds an element (multiple producers safe).
// Returns ErrWouldBlock when the ring is full.
func (q *Ring[T]) Enqueue(elem *T) error {
	for {
		w := q.write.LoadAcquire()
		r := q.read.LoadAcquire()
		if w-r >= q.capacity {
			return ErrWouldBlock
		}
		if q.write.CompareAndSwapAcqRel(w, w+1) {
			slot := &q.buffer[w&q.mask]
			sw := spin.Wait{}
			for slot.status.LoadAcquire() != statusEmpty {
				// Wrapped onto a slot still being drained.
				sw.Once()
			}
			slot.data = *elem
			slot.status.StoreRelease(statusReady)
			return nil
		}
	}
}

// Dequeue removes and returns an element (multiple consumers safe).
// Returns (zero-value, ErrWouldBlock) if the ring is empty.
func (q *Ring[T]) Dequeue() (T, error) {
	for {
		r := q.read.LoadAcquire()
		w := q.write.LoadAcquire()
		if r >= w {
			var zero T
			return zero, ErrWouldBlock
		}
		if q.read.CompareAndSwapAcqRel(r, r+1) {
			return q.take(r), nil
		}
	}
}

// UnsafeDequeue removes and returns an element the caller has proven is
// (or is about to be) present. Single consumer only.
func (q *Ring[T]) UnsafeDequeue() T {
	r := q.read.LoadAcquire()
	elem := q.take(r)
	q.read.AddAcqRel(1)
	return elem
}

func (q *Ring[T]) take(r uint64) T {
	slot := &q.buffer[r&q.mask]
	sw := spin.Wait{}
	for slot.status.LoadAcquire() != statusReady {
		// The reserving producer is still writing.
		sw.Once()
	}
	elem := slot.data
	var zero T
	slot.data = zero
	slot.status.StoreRelease(statusEmpty)
	return elem
}
