// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"code.hybscloud.com/ringhttp/hazard"
)

// MPSCChunked is the single-consumer flavour of [Chunked].
//
// The chunk layout is shared, but the consumer side needs no reservation
// CAS: the read index is a plain field only the consumer touches, and the
// head chunk pointer is unsynchronized for the same reason. Producers are
// identical to the MPMC queue. Drained head chunks are retired through
// the two-slot [hazard.Small] manager — the single consumer is the only
// retirer, which is exactly the contract that manager's unsynchronized
// retired list requires.
type MPSCChunked[T any] struct {
	_    pad
	head *mpscChunk[T] // consumer-owned
	_    pad
	tail atomic.Pointer[mpscChunk[T]]
	_    pad
	hp   *hazard.Small
}

type mpscChunk[T any] struct {
	slots [chunkSize]chunkSlot[T]
	read  uint64 // consumer-owned
	write atomix.Uint64
	next  atomic.Pointer[mpscChunk[T]]
}

func mpscChunkDeleter(unsafe.Pointer) {}

// NewMPSCChunked creates an empty queue with one dummy chunk.
func NewMPSCChunked[T any]() *MPSCChunked[T] {
	q := &MPSCChunked[T]{hp: hazard.NewSmall()}
	dummy := &mpscChunk[T]{}
	q.head = dummy
	q.tail.Store(dummy)
	return q
}

func (c *mpscChunk[T]) enqueue(elem *T) bool {
	sw := spin.Wait{}
	for {
		w := c.write.LoadAcquire()
		if w >= chunkSize {
			return false
		}
		if c.write.CompareAndSwapAcqRel(w, w+1) {
			c.slots[w].data = *elem
			c.slots[w].status.StoreRelease(statusReady)
			return true
		}
		sw.Once()
	}
}

func (c *mpscChunk[T]) dequeue() (T, bool) {
	if c.read >= c.write.LoadAcquire() {
		var zero T
		return zero, false
	}
	slot := &c.slots[c.read]
	sw := spin.Wait{}
	for slot.status.LoadAcquire() != statusReady {
		sw.Once()
	}
	elem := slot.data
	var zero T
	slot.data = zero
	slot.status.StoreRelease(statusUsed)
	c.read++
	return elem, true
}

// Enqueue adds an element to the queue (multiple producers safe).
//
// As with [Chunked.Enqueue], the producer's hazard record is released
// before returning because producers are an unbounded goroutine
// population.
func (q *MPSCChunked[T]) Enqueue(elem *T) {
	defer q.hp.Release()
	for {
		oldTail := q.tail.Load()
		q.hp.Protect(hazTail, unsafe.Pointer(oldTail))
		if oldTail != q.tail.Load() {
			continue
		}
		if oldTail.enqueue(elem) {
			q.hp.Clear(hazTail)
			return
		}

		next := oldTail.next.Load()
		if next == nil {
			fresh := &mpscChunk[T]{}
			if oldTail.next.CompareAndSwap(nil, fresh) {
				q.tail.CompareAndSwap(oldTail, fresh)
				q.hp.Clear(hazTail)
				continue
			}
			next = oldTail.next.Load()
		}
		q.tail.CompareAndSwap(oldTail, next)
		q.hp.Clear(hazTail)
	}
}

// Dequeue removes and returns an element (single consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *MPSCChunked[T]) Dequeue() (T, error) {
	for {
		head := q.head
		if elem, ok := head.dequeue(); ok {
			return elem, nil
		}

		// Advance only once every slot has been consumed; a reservation may
		// still be in flight behind a stale write index otherwise.
		if head.read < chunkSize {
			var zero T
			return zero, ErrWouldBlock
		}
		next := head.next.Load()
		if next == nil {
			var zero T
			return zero, ErrWouldBlock
		}
		if tailNow := q.tail.Load(); tailNow == head {
			q.tail.CompareAndSwap(tailNow, next)
		}
		q.head = next
		q.hp.Retire(unsafe.Pointer(head), mpscChunkDeleter)
	}
}

// Detach releases the calling goroutine's hazard record.
func (q *MPSCChunked[T]) Detach() {
	q.hp.Release()
}

// Close releases the closing goroutine's claim and runs the final leak
// check.
func (q *MPSCChunked[T]) Close() {
	q.hp.Release()
	q.hp.Close()
}
