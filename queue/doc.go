// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package queue provides the lock-free containers the I/O engine runs on.
//
// Four containers with distinct producer/consumer contracts:
//
//   - [Chunked]: unbounded MPMC FIFO built from linked 64-slot chunks.
//     Producers reserve slots by CAS on a chunk's write index; consumers
//     reserve by CAS on the read index and spin until the slot is READY.
//     Exhausted head chunks are retired through a hazard-pointer manager.
//   - [MPSCChunked]: the same chunk layout with a plain read index —
//     strictly one consumer. The pop path is protected by the two-slot
//     hazard manager variant.
//   - [Ring]: bounded MPSC/MPMC ring with power-of-two capacity. Enqueue
//     rejects with ErrWouldBlock at capacity; this is the worker pool's
//     ready queue.
//   - [Pool]: SPSC object pool — a fixed slab plus a free ring of cell
//     pointers. One goroutine allocates, one frees; Close reports cells
//     that were never returned.
//
// # Error Handling
//
// Operations that cannot proceed return [ErrWouldBlock], sourced from
// [code.hybscloud.com/iox] for ecosystem consistency. It is a control-flow
// signal, not a failure:
//
//	backoff := iox.Backoff{}
//	for {
//	    elem, err := q.Dequeue()
//	    if err == nil {
//	        backoff.Reset()
//	        process(elem)
//	        continue
//	    }
//	    backoff.Wait()
//	}
//
// # Hazard Pointers and Goroutine Exit
//
// The chunked queues claim a hazard record per accessing goroutine.
// Goroutines that stop using a queue before the queue itself is closed
// should call Detach; Close releases the closing goroutine's claim and
// runs the managers' final leak checks.
//
// # Race Detection
//
// Go's race detector cannot observe happens-before edges established
// through atomic acquire/release orderings on separate variables, so the
// lock-free stress tests are excluded via //go:build !race, the same
// policy as [code.hybscloud.com/lfq].
package queue
