// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// Pool is a single-producer single-consumer object pool: a fixed slab of
// cells plus a free ring of cell pointers.
//
// Exactly one goroutine allocates and exactly one frees; the I/O context
// uses it for per-submission user data, where the submitter is the
// allocator and the listener the releaser. Alloc takes the pointer at the
// free ring's tail and nils the ring slot so a cell that never comes back
// is visible at Close; Free zeroes the cell and stores it at the head.
//
// At any moment a cell is either live (handed out by Alloc) or free (its
// pointer sits in the ring) — never both.
type Pool[T any] struct {
	storage []T
	free    []atomic.Pointer[T]
	size    uint64
	_       pad
	head    atomix.Uint64 // free-side index; consumer of returned cells
	_       pad
	tail    atomix.Uint64 // alloc-side index
}

// NewPool creates a pool of n cells, all initially free.
func NewPool[T any](n int) *Pool[T] {
	if n < 1 {
		panic("queue: pool size must be >= 1")
	}
	p := &Pool[T]{
		storage: make([]T, n),
		free:    make([]atomic.Pointer[T], n),
		size:    uint64(n),
	}
	for i := range p.free {
		p.free[i].Store(&p.storage[i])
	}
	p.head.StoreRelaxed(uint64(n))
	return p
}

// Alloc returns a zeroed cell, or nil when no cell is free.
// Producer side only.
func (p *Pool[T]) Alloc() *T {
	idx := p.tail.LoadAcquire()
	if idx >= p.head.LoadAcquire() {
		return nil
	}
	slot := &p.free[idx%p.size]
	obj := slot.Load()
	slot.Store(nil) // catch cells that never come back
	p.tail.AddAcqRel(1)
	return obj
}

// Free returns a cell to the pool. Consumer side only.
func (p *Pool[T]) Free(obj *T) {
	var zero T
	*obj = zero
	head := p.head.LoadAcquire()
	p.free[head%p.size].Store(obj)
	p.head.AddAcqRel(1)
}

// Close reports the number of cells that were allocated but never freed.
// The caller decides whether a leak is fatal.
func (p *Pool[T]) Close() int {
	head := p.head.LoadAcquire()
	tail := p.tail.LoadAcquire()
	return int(p.size - (head - tail))
}
