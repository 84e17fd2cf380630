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

// Chunked is an unbounded MPMC FIFO built from linked fixed-size chunks.
//
// Producers reserve a slot inside the tail chunk by CAS on its write
// index and publish the value with a READY status store. The producer
// that observes a full tail allocates a fresh chunk and links it; losers
// of the linking race drop their speculative chunk and help advance the
// shared tail instead. Consumers reserve by CAS on the head chunk's read
// index, spin until the producer's READY store lands, and retire drained
// head chunks through the hazard manager so a racing producer holding the
// old tail pointer never touches freed memory.
//
// Chunk links use [sync/atomic.Pointer] rather than atomix integers:
// the links must stay visible to the garbage collector.
//
// Memory: chunks of 64 slots, allocated on demand, reclaimed by hazard scan.
type Chunked[T any] struct {
	_    pad
	head atomic.Pointer[chunk[T]]
	_    pad
	tail atomic.Pointer[chunk[T]]
	_    pad
	hp   *hazard.Manager
}

type chunk[T any] struct {
	slots [chunkSize]chunkSlot[T]
	read  atomix.Uint64
	write atomix.Uint64
	next  atomic.Pointer[chunk[T]]
}

type chunkSlot[T any] struct {
	data   T
	status atomix.Int32
}

const (
	hazTail = 0
	hazHead = 0
	hazNext = 1
)

// chunkDeleter breaks the manager's reference; the collector reclaims the
// chunk once the scan has dropped it from the retired list.
func chunkDeleter(unsafe.Pointer) {}

// NewChunked creates an empty queue with one dummy chunk.
func NewChunked[T any]() *Chunked[T] {
	q := &Chunked[T]{hp: hazard.New()}
	dummy := &chunk[T]{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

func (c *chunk[T]) enqueue(elem *T) bool {
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

func (c *chunk[T]) dequeue() (T, bool) {
	for {
		r := c.read.LoadAcquire()
		w := c.write.LoadAcquire()
		if r >= w {
			var zero T
			return zero, false
		}
		if c.read.CompareAndSwapAcqRel(r, r+1) {
			slot := &c.slots[r]
			sw := spin.Wait{}
			for slot.status.LoadAcquire() != statusReady {
				// The reserving producer is still writing.
				sw.Once()
			}
			elem := slot.data
			var zero T
			slot.data = zero
			slot.status.StoreRelease(statusUsed)
			return elem, true
		}
	}
}

// Enqueue adds an element to the queue (multiple producers safe).
// The queue is unbounded; Enqueue always succeeds.
//
// The producer's hazard record is released before returning: the producer
// population is the per-task goroutine set, unbounded over the process
// lifetime, while records are a fixed table. Consumers are few and
// long-lived and keep theirs until Detach.
func (q *Chunked[T]) Enqueue(elem *T) {
	defer q.hp.Release()
	for {
		oldTail := q.tail.Load()
		q.hp.Protect(hazTail, unsafe.Pointer(oldTail))
		if oldTail != q.tail.Load() {
			continue // tail moved under us, retry
		}
		if oldTail.enqueue(elem) {
			q.hp.Clear(hazTail)
			return
		}

		// Tail chunk is full: link a fresh chunk, or help whoever won.
		next := oldTail.next.Load()
		if next == nil {
			fresh := &chunk[T]{}
			if oldTail.next.CompareAndSwap(nil, fresh) {
				q.tail.CompareAndSwap(oldTail, fresh)
				q.hp.Clear(hazTail)
				continue
			}
			// Lost the link race; the speculative chunk is dropped.
			next = oldTail.next.Load()
		}
		q.tail.CompareAndSwap(oldTail, next)
		q.hp.Clear(hazTail)
	}
}

// Dequeue removes and returns an element (multiple consumers safe).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *Chunked[T]) Dequeue() (T, error) {
	for {
		head := q.head.Load()
		q.hp.Protect(hazHead, unsafe.Pointer(head))
		if head != q.head.Load() {
			continue
		}
		if elem, ok := head.dequeue(); ok {
			q.hp.Clear(hazHead)
			return elem, nil
		}

		// Head chunk exhausted: advance to next, retiring the old head.
		// Exhausted means every slot consumed, not merely read >= a stale
		// write index — advancing early would strand late reservations.
		if head.read.LoadAcquire() < chunkSize {
			q.hp.ClearAll()
			var zero T
			return zero, ErrWouldBlock
		}
		next := head.next.Load()
		q.hp.Protect(hazNext, unsafe.Pointer(next))
		if next == nil {
			q.hp.ClearAll()
			var zero T
			return zero, ErrWouldBlock
		}
		if tailNow := q.tail.Load(); tailNow == head {
			q.tail.CompareAndSwap(tailNow, next)
			continue
		}
		if q.head.CompareAndSwap(head, next) {
			q.hp.Clear(hazHead)
			q.hp.Clear(hazNext)
			q.hp.Retire(unsafe.Pointer(head), chunkDeleter)
		}
	}
}

// Detach releases the calling goroutine's hazard record. Call before a
// goroutine that used the queue exits while the queue lives on.
func (q *Chunked[T]) Detach() {
	q.hp.Release()
}

// Close releases the closing goroutine's claim and runs the hazard
// manager's final leak check. All other goroutines must have detached.
func (q *Chunked[T]) Close() {
	q.hp.Release()
	q.hp.Close()
}
