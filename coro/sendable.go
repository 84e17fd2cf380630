// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

// Sendable is a message-bearing task: the body pulls values of type M
// with WaitMessage, and Send resumes it with the next value. The sender
// acts as the driver, so the body runs on the sender's time and Send
// returns only when the body is parked at its next WaitMessage (or has
// returned).
//
// The body begins eagerly: NewSendable returns once it reaches its first
// WaitMessage.
type Sendable[M any] struct {
	c      *Coroutine
	msg    M
	closed bool
}

// NewSendable starts the task body and drives it to its first
// WaitMessage.
func NewSendable[M any](fn func(*Sendable[M], *Coroutine)) *Sendable[M] {
	t := &Sendable[M]{c: newCoroutine()}
	go func() {
		defer func() {
			t.c.done = true
			t.c.parked <- struct{}{}
		}()
		fn(t, t.c)
	}()
	<-t.c.parked
	return t
}

// Send resumes the body with msg. No-op once the body has returned.
func (t *Sendable[M]) Send(msg M) {
	if t.c.done {
		return
	}
	t.msg = msg
	t.c.Resume()
}

// WaitMessage suspends until the next Send and returns its value.
// ok is false once the task has been closed; the body should return.
// Must be called from the task body.
func (t *Sendable[M]) WaitMessage() (M, bool) {
	t.c.Suspend()
	var zero M
	if t.closed {
		return zero, false
	}
	msg := t.msg
	t.msg = zero
	return msg, true
}

// Done reports whether the body has returned.
func (t *Sendable[M]) Done() bool {
	return t.c.done
}

// Close resumes the body with ok=false so it can return, releasing its
// goroutine. No-op if the body already returned.
func (t *Sendable[M]) Close() {
	if t.c.done {
		return
	}
	t.closed = true
	t.c.Resume()
}
