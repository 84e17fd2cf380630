// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package aio mediates between suspended tasks and the kernel's
// submission/completion ring.
//
// An awaiting task describes its operation as a tagged request, queues it
// for the submitter and suspends; the completion resumes it on the worker
// pool with the kernel's result. Two threads own the ring: the submitter
// (submission queue) and the listener (completion queue); they never
// share a cursor.
//
//	n, err := aio.Get().ReadTimeout(c, fd, buf, 0, 200*time.Millisecond)
//	switch {
//	case errors.Is(err, aio.ErrTimeout):  // link-timeout fired
//	case errors.Is(err, aio.ErrClosed):   // context shutting down
//	case err != nil:                      // kernel errno
//	}
//
// Timeouts are kernel-side: a timed op goes in as a chained pair (the op
// flagged LINK plus a LINK_TIMEOUT entry), so expiry cancels the op
// inside the kernel with no userspace timer. CancelFD cancels everything
// in flight on one descriptor.
//
// Buffers handed to the kernel must not move for the lifetime of the op.
// Every pointer an awaiter passes ends up stored in a queued request,
// which forces the pointed-to memory onto the heap — Go's escape
// analysis, not caller discipline, upholds the invariant.
//
// Shutdown: RequestStop flushes the submitter; the listener then drains
// completions until the live-request counter reaches zero, resuming every
// suspended task, and only then tears the ring down. Submissions after
// shutdown resume immediately with ErrClosed.
package aio
