// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"

	"code.hybscloud.com/ringhttp/queue"
)

// DefaultWorkers is the worker count used when the pool is not explicitly
// initialised.
const DefaultWorkers = 4

// readyCap bounds the ready queue. Far above the default connection
// backlog, so rejection only occurs under sustained overload.
const readyCap = 1024

type pool struct {
	ready   *queue.Ring[*Coroutine]
	sem     chan struct{} // counting semaphore; count mirrors the backlog
	stop    atomix.Int32
	wg      sync.WaitGroup
	workers int
}

var (
	poolMu      sync.Mutex
	currentPool *pool
)

// InitPool starts the worker pool with w long-lived workers. Returns
// false if a pool is already running.
func InitPool(w int) bool {
	if w <= 0 {
		w = DefaultWorkers
	}
	poolMu.Lock()
	defer poolMu.Unlock()
	if currentPool != nil {
		return false
	}
	p := &pool{
		ready:   queue.NewRing[*Coroutine](readyCap),
		workers: w,
	}
	p.sem = make(chan struct{}, p.ready.Cap()+w)
	p.wg.Add(w)
	for range w {
		go p.worker()
	}
	currentPool = p
	return true
}

func getPool() *pool {
	poolMu.Lock()
	p := currentPool
	poolMu.Unlock()
	if p == nil {
		InitPool(DefaultWorkers)
		poolMu.Lock()
		p = currentPool
		poolMu.Unlock()
	}
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for range p.sem {
		if p.stop.LoadAcquire() != 0 {
			return
		}
		// The semaphore token guarantees an element is, or is about to
		// be, visible in the ring.
		for {
			h, err := p.ready.Dequeue()
			if err == nil {
				h.Resume()
				break
			}
		}
	}
}

// Submit places a suspended handle on the ready queue. Wait-free; returns
// false when the bounded ring rejects.
func Submit(c *Coroutine) bool {
	p := getPool()
	if err := p.ready.Enqueue(&c); err != nil {
		return false
	}
	p.sem <- struct{}{}
	return true
}

// Dispatch moves the calling task onto the worker pool: the handle is
// submitted and the task suspends until a worker resumes it. Backs off
// and retries if the ready queue is momentarily full.
func Dispatch(c *Coroutine) {
	backoff := iox.Backoff{}
	for !Submit(c) {
		backoff.Wait()
	}
	c.Suspend()
}

// ShutdownPool signals stop and releases every worker. Call only after
// the I/O context has been drained, so the ready queue is empty and no
// handle is stranded.
func ShutdownPool() {
	poolMu.Lock()
	p := currentPool
	currentPool = nil
	poolMu.Unlock()
	if p == nil {
		return
	}
	p.stop.StoreRelease(1)
	for range p.workers {
		p.sem <- struct{}{}
	}
	p.wg.Wait()
}
