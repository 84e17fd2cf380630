// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Lock-free algorithm tests excluded from race detection.
//
// Go's race detector tracks explicit synchronization primitives (mutex,
// channels, WaitGroup) but cannot observe happens-before relationships
// established through atomic memory orderings on separate variables. The
// chunk and ring slots are protected by acquire/release status sequencing
// that the detector cannot follow, so these stress tests run without it.

//go:build !race

package queue_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/ringhttp/queue"
)

// TestChunkedManyProducersManyConsumers checks exactly-once delivery
// through the unbounded MPMC queue.
func TestChunkedManyProducersManyConsumers(t *testing.T) {
	const (
		producers = 8
		consumers = 4
		perProd   = 4000
	)
	q := queue.NewChunked[[2]int]() // [producer, seq]

	var prodWg sync.WaitGroup
	prodWg.Add(producers)
	for p := range producers {
		go func(p int) {
			defer prodWg.Done()
			for seq := range perProd {
				v := [2]int{p, seq}
				q.Enqueue(&v)
			}
		}(p)
	}

	// With several consumers, arrival order at the check is not pop order;
	// the property here is exactly-once delivery.
	var mu sync.Mutex
	seen := make([][]bool, producers)
	for i := range seen {
		seen[i] = make([]bool, perProd)
	}
	total := 0

	var consWg sync.WaitGroup
	consWg.Add(consumers)
	done := make(chan struct{})
	for range consumers {
		go func() {
			defer consWg.Done()
			defer q.Detach()
			backoff := iox.Backoff{}
			for {
				v, err := q.Dequeue()
				if err != nil {
					select {
					case <-done:
						return
					default:
						backoff.Wait()
						continue
					}
				}
				backoff.Reset()
				mu.Lock()
				if seen[v[0]][v[1]] {
					t.Errorf("producer %d: seq %d delivered twice", v[0], v[1])
				}
				seen[v[0]][v[1]] = true
				total++
				if total == producers*perProd {
					close(done)
				}
				mu.Unlock()
			}
		}()
	}

	prodWg.Wait()
	consWg.Wait()
	if total != producers*perProd {
		t.Fatalf("consumed %d values, want %d", total, producers*perProd)
	}
	q.Close()
}

// TestMPSCChunkedManyProducers checks exactly-once delivery with a single
// draining consumer.
func TestMPSCChunkedManyProducers(t *testing.T) {
	const (
		producers = 8
		perProd   = 4000
	)
	q := queue.NewMPSCChunked[[2]int]()

	var prodWg sync.WaitGroup
	prodWg.Add(producers)
	for p := range producers {
		go func(p int) {
			defer prodWg.Done()
			for seq := range perProd {
				v := [2]int{p, seq}
				q.Enqueue(&v)
			}
		}(p)
	}

	lastSeq := make([]int, producers)
	for i := range lastSeq {
		lastSeq[i] = -1
	}
	backoff := iox.Backoff{}
	for total := 0; total < producers*perProd; {
		v, err := q.Dequeue()
		if err != nil {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if v[1] != lastSeq[v[0]]+1 {
			t.Fatalf("producer %d: seq %d after %d", v[0], v[1], lastSeq[v[0]])
		}
		lastSeq[v[0]] = v[1]
		total++
	}
	prodWg.Wait()
	q.Close()
}

// TestRingManyProducers checks exactly-once delivery and per-producer
// FIFO through the bounded ring with backpressure.
func TestRingManyProducers(t *testing.T) {
	const (
		producers = 8
		perProd   = 4000
	)
	q := queue.NewRing[[2]int](64)

	var prodWg sync.WaitGroup
	prodWg.Add(producers)
	for p := range producers {
		go func(p int) {
			defer prodWg.Done()
			backoff := iox.Backoff{}
			for seq := range perProd {
				v := [2]int{p, seq}
				for q.Enqueue(&v) != nil {
					backoff.Wait()
				}
				backoff.Reset()
			}
		}(p)
	}

	lastSeq := make([]int, producers)
	for i := range lastSeq {
		lastSeq[i] = -1
	}
	backoff := iox.Backoff{}
	for total := 0; total < producers*perProd; {
		v, err := q.Dequeue()
		if err != nil {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if v[1] != lastSeq[v[0]]+1 {
			t.Fatalf("producer %d: seq %d after %d", v[0], v[1], lastSeq[v[0]])
		}
		lastSeq[v[0]] = v[1]
		total++
	}
	prodWg.Wait()
}

// TestPoolConcurrentAllocFree runs the SPSC pool with one allocator and
// one releaser at full tilt.
func TestPoolConcurrentAllocFree(t *testing.T) {
	const rounds = 100000
	p := queue.NewPool[[4]int64](16)
	ch := make(chan *[4]int64, 16)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { // allocator
		defer wg.Done()
		backoff := iox.Backoff{}
		for n := 0; n < rounds; {
			obj := p.Alloc()
			if obj == nil {
				backoff.Wait()
				continue
			}
			backoff.Reset()
			obj[0] = int64(n)
			ch <- obj
			n++
		}
		close(ch)
	}()
	go func() { // releaser
		defer wg.Done()
		for obj := range ch {
			p.Free(obj)
		}
	}()
	wg.Wait()

	if leaked := p.Close(); leaked != 0 {
		t.Fatalf("Close: got %d leaks, want 0", leaked)
	}
}
