// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

// Coroutine is the resumable suspension point of a task. The scheduler
// never inspects a task's state; it only moves Coroutine values between
// the ready queue and workers.
//
// Protocol: every Suspend parks the task goroutine and hands a token to
// the current driver, whose Resume call returns. The next Resume attaches
// a new driver. Tokens pair one-to-one, so a wakeup can never be lost and
// a task can never have two drivers.
type Coroutine struct {
	gate   chan struct{} // driver -> task: run
	parked chan struct{} // task -> driver: suspended or completed
	done   bool          // written by the task goroutine before its final park
}

func newCoroutine() *Coroutine {
	return &Coroutine{
		gate:   make(chan struct{}),
		parked: make(chan struct{}),
	}
}

// Suspend parks the task until a driver resumes it.
// Must be called from the task's own goroutine.
func (c *Coroutine) Suspend() {
	c.parked <- struct{}{}
	<-c.gate
}

// Resume unparks the task and drives it until its next suspension or its
// completion. Must not be called from the task's own goroutine.
func (c *Coroutine) Resume() {
	c.gate <- struct{}{}
	<-c.parked
}

// Done reports whether the task body has returned. Only meaningful to a
// driver whose Resume has just returned.
func (c *Coroutine) Done() bool {
	return c.done
}

// Go starts a fire-and-forget task. The body runs eagerly: Go returns
// once fn reaches its first suspension point or returns. The task's frame
// is released when fn returns.
func Go(fn func(*Coroutine)) {
	c := newCoroutine()
	go func() {
		defer func() {
			c.done = true
			c.parked <- struct{}{}
		}()
		fn(c)
	}()
	<-c.parked
}

// Result is a lazy awaitable task producing a value of type T.
//
// The body does not start until the first Await. Await executes the body
// on the awaiting task's goroutine, so when the body returns, control is
// already back at the awaiter — the symmetric-transfer analogue. Further
// Awaits return the stored result.
type Result[T any] struct {
	fn     func(*Coroutine) T
	result T
	done   bool
}

// NewResult creates a lazy awaitable task from fn.
func NewResult[T any](fn func(*Coroutine) T) *Result[T] {
	return &Result[T]{fn: fn}
}

// Await runs the task to completion (first call) and returns its result.
func (t *Result[T]) Await(c *Coroutine) T {
	if !t.done {
		t.result = t.fn(c)
		t.done = true
	}
	return t.result
}

// Done reports whether the task body has completed.
func (t *Result[T]) Done() bool {
	return t.done
}
