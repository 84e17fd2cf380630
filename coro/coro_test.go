// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/ringhttp/coro"
)

// TestGoEagerStart verifies the body runs to its first suspension before
// Go returns, and resumes where it left off.
func TestGoEagerStart(t *testing.T) {
	var trace []string
	var handle *coro.Coroutine

	coro.Go(func(c *coro.Coroutine) {
		trace = append(trace, "start")
		handle = c
		c.Suspend()
		trace = append(trace, "resumed")
	})

	if len(trace) != 1 || trace[0] != "start" {
		t.Fatalf("trace after Go: %v", trace)
	}

	handle.Resume()
	if len(trace) != 2 || trace[1] != "resumed" {
		t.Fatalf("trace after Resume: %v", trace)
	}
	if !handle.Done() {
		t.Fatal("handle not done after body returned")
	}
}

// TestGoRunsToCompletion verifies a body with no suspension completes
// within Go.
func TestGoRunsToCompletion(t *testing.T) {
	ran := false
	coro.Go(func(*coro.Coroutine) {
		ran = true
	})
	if !ran {
		t.Fatal("body did not run")
	}
}

// TestResultSymmetricTransfer verifies the awaitable task starts lazily,
// runs on the awaiter's goroutine, and caches its result.
func TestResultSymmetricTransfer(t *testing.T) {
	runs := 0
	task := coro.NewResult(func(*coro.Coroutine) int {
		runs++
		return 1337
	})
	if task.Done() || runs != 0 {
		t.Fatal("result task must start lazily")
	}

	coro.Go(func(c *coro.Coroutine) {
		if got := task.Await(c); got != 1337 {
			t.Errorf("Await: got %d, want 1337", got)
		}
		if got := task.Await(c); got != 1337 {
			t.Errorf("second Await: got %d, want 1337", got)
		}
	})
	if runs != 1 {
		t.Fatalf("body ran %d times, want 1", runs)
	}
}

// TestSendable verifies message delivery order and Close.
func TestSendable(t *testing.T) {
	var got []int
	task := coro.NewSendable(func(st *coro.Sendable[int], _ *coro.Coroutine) {
		for {
			v, ok := st.WaitMessage()
			if !ok {
				return
			}
			got = append(got, v)
		}
	})

	for i := range 5 {
		task.Send(i * 2)
	}
	if len(got) != 5 {
		t.Fatalf("received %d messages, want 5", len(got))
	}
	for i, v := range got {
		if v != i*2 {
			t.Fatalf("message %d: got %d, want %d", i, v, i*2)
		}
	}

	task.Close()
	if !task.Done() {
		t.Fatal("task not done after Close")
	}
	task.Send(99) // no-op after completion
	if len(got) != 5 {
		t.Fatalf("message delivered after Close: %v", got)
	}
}

// TestDispatchFIFO submits tasks through the worker pool and checks they
// resume in submission order.
func TestDispatchFIFO(t *testing.T) {
	if !coro.InitPool(1) {
		t.Log("pool already running, reusing")
	}

	const n = 32
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(n)

	handles := make([]*coro.Coroutine, n)
	for i := range n {
		coro.Go(func(c *coro.Coroutine) {
			handles[i] = c
			c.Suspend() // park until the test submits every handle
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}

	for i := range n {
		if !coro.Submit(handles[i]) {
			t.Fatalf("Submit(%d) rejected", i)
		}
	}
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("resume order[%d] = %d, want %d", i, v, i)
		}
	}
}

// TestDispatchMovesToWorker verifies Dispatch parks the task and a worker
// resumes it.
func TestDispatchMovesToWorker(t *testing.T) {
	coro.InitPool(0)

	done := make(chan struct{})
	coro.Go(func(c *coro.Coroutine) {
		coro.Dispatch(c)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatched task never resumed")
	}
}
