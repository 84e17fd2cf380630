// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package coro implements the cooperative task model the server schedules
// request handling with.
//
// A task body runs on its own goroutine, but a goroutine only executes
// while a driver is attached: the driver resumes the task and then blocks
// until the task suspends again or completes. Drivers are the worker
// pool's goroutines (for handles popped from the ready queue), the sender
// of a message-bearing task, or the goroutine that spawned a task (which
// drives it until its first suspension, the eager-start contract). The
// invariant gives the same scheduling shape as a coroutine runtime: at
// most W task bodies make progress at once, handles resume in ready-queue
// FIFO order, and a task runs uninterrupted between its suspension points.
//
// Task flavours:
//
//   - [Go]: fire-and-forget, begins eagerly, used for per-connection
//     handlers. The body's first act is normally [Dispatch], which moves
//     it onto the worker pool.
//   - [Result]: lazy awaitable. Await runs the body directly on the
//     awaiting task's goroutine — the symmetric-transfer analogue: control
//     returns to the awaiter in a single step with no ready-queue round
//     trip.
//   - [Sendable]: message-bearing. Send resumes the body with a value;
//     the body pulls values with WaitMessage. Feeds the HTTP parser.
//
// There is no generalised cancellation; a suspended task is resumed only
// by the completion (or kernel-cancellation) of whatever it awaits.
package coro
