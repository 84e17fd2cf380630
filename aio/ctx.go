// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aio

import (
	"sync"
	"time"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
	"golang.org/x/sys/unix"

	"code.hybscloud.com/ringhttp/coro"
	"code.hybscloud.com/ringhttp/internal/uring"
	"code.hybscloud.com/ringhttp/logx"
	"code.hybscloud.com/ringhttp/queue"
)

const (
	ringEntries = 128
	// submitThreshold batches SQE flushes; together with acquireTimeout it
	// bounds submission latency by max(acquireTimeout, time-to-fill-batch).
	submitThreshold = 64
	acquireTimeout  = 25 * time.Millisecond

	userDataPoolSize = 1024 * 128
)

// FileIndexAlloc asks AcceptDirect to let the kernel pick a free
// registered-file slot.
const FileIndexAlloc = uring.FileIndexAlloc

// User-data variant tags. The tag is atomic because the listener reads it
// concurrently with the resuming task's view of the cell.
const (
	tagNone int32 = iota
	tagIO
	tagTimeout
)

// userData is the per-submission completion routing record: the io
// variant carries the suspended handle and its result slot; the timeout
// variant points back at the io variant it guards.
type userData struct {
	tag    atomix.Int32
	handle *coro.Coroutine
	res    *atomix.Int32
	io     *userData
}

// Context is the broker between task awaits and the kernel ring. One
// instance per process, created lazily by [Get].
//
// Topology: awaiting tasks push ops into an MPSC chunked queue; the
// submitter goroutine drains it, writes submission entries tagged with
// pool-allocated user data, and flushes in batches; the listener (the
// goroutine inside Run, normally main) reaps completions, stores results
// with release ordering and dispatches the suspended handles to the
// worker pool. User-data cells are strictly SPSC: the submitter
// allocates, the listener frees.
type Context struct {
	ring *uring.Ring

	requests *queue.MPSCChunked[op]
	wake     chan struct{}

	udPool  *queue.Pool[userData]
	pending atomix.Int64

	running       atomix.Int32 // submission gate; cleared when the submitter exits
	stop          atomix.Int32
	submitterDone chan struct{}
}

var (
	ctxOnce sync.Once
	ctx     *Context
)

// Get returns the process's I/O context, creating it on first use.
// Ring initialisation failure is fatal.
func Get() *Context {
	ctxOnce.Do(func() {
		r, err := uring.New(ringEntries)
		if err != nil {
			logx.Sync().Fatal().Err(err).Msg("io_uring setup failed")
		}
		ctx = &Context{
			ring:          r,
			requests:      queue.NewMPSCChunked[op](),
			wake:          make(chan struct{}, 1),
			udPool:        queue.NewPool[userData](userDataPoolSize),
			submitterDone: make(chan struct{}),
		}
		ctx.running.StoreRelease(1)
		go ctx.submitter()
	})
	return ctx
}

// RegisterFiles registers a fixed fd table for the *Direct awaiters.
func (x *Context) RegisterFiles(fds []int32) error {
	return x.ring.RegisterFiles(fds)
}

// RegisterFilesSparse reserves count empty registered-file slots.
func (x *Context) RegisterFilesSparse(count uint32) error {
	return x.ring.RegisterFilesSparse(count)
}

// RegisterFileAllocRange confines kernel-allocated file indices to
// [off, off+length).
func (x *Context) RegisterFileAllocRange(off, length uint32) error {
	return x.ring.RegisterFileAllocRange(off, length)
}

// UnregisterFiles drops the fixed fd table.
func (x *Context) UnregisterFiles() error {
	return x.ring.UnregisterFiles()
}

// push hands an op to the submitter. Returns false once the submitter has
// exited; the awaiter then resumes immediately with CTX_CLOSED.
func (x *Context) push(o *op) bool {
	if x.running.LoadAcquire() == 0 {
		return false
	}
	x.requests.Enqueue(o)
	select {
	case x.wake <- struct{}{}:
	default:
	}
	return true
}

// RequestStop begins shutdown. The submitter notices within one acquire
// timeout, flushes, and exits; its final flush carries a nop whose
// completion wakes the listener so it can drain and return from Run.
func (x *Context) RequestStop() {
	x.stop.StoreRelease(1)
	select {
	case x.wake <- struct{}{}:
	default:
	}
}

func (x *Context) allocUD(tag int32, handle *coro.Coroutine, res *atomix.Int32) *userData {
	sw := spin.Wait{}
	for {
		ud := x.udPool.Alloc()
		if ud != nil {
			ud.handle = handle
			ud.res = res
			ud.tag.StoreRelease(tag)
			return ud
		}
		// Pool momentarily exhausted; the listener frees cells as
		// completions drain.
		sw.Once()
	}
}

// prepare writes the submission entries for o and returns the number
// written (1, or 2 for a link-timeout pair).
func (x *Context) prepare(o *op) int {
	sqe := x.ring.GetSQE()
	if sqe == nil {
		logx.Sync().Fatal().Msg("submission queue overflow")
	}
	switch o.code {
	case opNop:
		uring.PrepNop(sqe)
		sqe.UserData = 0 // wakeup sentinel; the listener skips it
		return 1
	case opRead:
		uring.PrepRead(sqe, o.fd, o.buf, o.n, o.off)
	case opWrite:
		uring.PrepWrite(sqe, o.fd, o.buf, o.n, o.off)
	case opReadv:
		uring.PrepReadv(sqe, o.fd, (*unix.Iovec)(o.buf), o.n, o.off)
	case opWritev:
		uring.PrepWritev(sqe, o.fd, (*unix.Iovec)(o.buf), o.n, o.off)
	case opAccept:
		uring.PrepAccept(sqe, o.fd, unsafe.Pointer(o.sa), o.saLen, 0)
	case opAcceptDirect:
		uring.PrepAcceptDirect(sqe, o.fd, unsafe.Pointer(o.sa), o.saLen, 0, o.index)
	case opCancelFD:
		uring.PrepCancelFD(sqe, o.fd)
	case opClose:
		uring.PrepClose(sqe, o.fd)
	case opCloseDirect:
		uring.PrepCloseDirect(sqe, o.index)
	default:
		logx.Sync().Fatal().Int("code", int(o.code)).Msg("unknown op code")
	}
	sqe.Flags |= o.flags
	ud := x.allocUD(tagIO, o.c, o.res)
	sqe.UserData = uint64(uintptr(unsafe.Pointer(ud)))

	if o.ts == nil {
		return 1
	}
	sqe.Flags |= uring.SQEIOLink
	tsqe := x.ring.GetSQE()
	if tsqe == nil {
		logx.Sync().Fatal().Msg("submission queue overflow")
	}
	uring.PrepLinkTimeout(tsqe, o.ts)
	tud := x.allocUD(tagTimeout, nil, nil)
	tud.io = ud
	tsqe.UserData = uint64(uintptr(unsafe.Pointer(tud)))
	return 2
}

// submitter drains the request queue, batching ring submits at
// submitThreshold entries or after acquireTimeout of quiet.
func (x *Context) submitter() {
	defer close(x.submitterDone)
	defer x.requests.Detach()

	batch := 0
	reqs := int64(0)
	timer := time.NewTimer(acquireTimeout)
	defer timer.Stop()

	flush := func() {
		if batch == 0 {
			return
		}
		x.pending.AddAcqRel(reqs)
		reqs = 0
		if _, err := x.ring.Submit(); err != nil {
			logx.Async().Error().Err(err).Msg("io_uring submit failed")
		}
		batch = 0
	}

	for x.stop.LoadAcquire() == 0 {
		o, err := x.requests.Dequeue()
		if err == nil {
			batch += x.prepare(&o)
			if o.code != opNop {
				reqs++
			}
			if batch >= submitThreshold {
				flush()
			}
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(acquireTimeout)
		select {
		case <-x.wake:
		case <-timer.C:
			flush()
		}
	}

	// Flush whatever the stop signal raced with, plus one nop whose
	// completion is guaranteed to reach the listener after the stop flag
	// is visible — that completion is what breaks it out of its wait.
	for {
		o, err := x.requests.Dequeue()
		if err != nil {
			break
		}
		batch += x.prepare(&o)
		if o.code != opNop {
			reqs++
		}
	}
	wakeup := op{code: opNop}
	batch += x.prepare(&wakeup)
	flush()
	x.running.StoreRelease(0)
}

// Run turns the calling goroutine into the listener: it blocks on the
// completion queue, delivers results and dispatches handles until stop is
// requested, then drains. Returns on completed shutdown.
func (x *Context) Run() {
	for x.stop.LoadAcquire() == 0 {
		if err := x.ring.WaitCQEs(); err != nil {
			if err == unix.EINTR {
				continue
			}
			logx.Sync().Error().Err(err).Msg("io_uring wait failed")
			break
		}
		x.handleCQEs()
	}
	x.cleanup()
}

func (x *Context) handleCQEs() {
	n := x.ring.ForEachCQE(func(cqe *uring.CQE) {
		if cqe.UserData == 0 {
			return // wakeup nop
		}
		ud := (*userData)(unsafe.Pointer(uintptr(cqe.UserData)))
		switch ud.tag.LoadAcquire() {
		case tagIO:
			handle := ud.handle
			ud.res.StoreRelease(cqe.Res)
			x.pending.AddAcqRel(-1)
			x.udPool.Free(ud)
			x.dispatch(handle)
		case tagTimeout:
			switch -cqe.Res {
			case int32(unix.ETIME), int32(unix.ECANCELED), int32(unix.ENOENT):
				// Expected: the timer fired, was cancelled by its primary,
				// or found nothing to cancel.
			default:
				logx.Sync().Fatal().
					Int32("res", cqe.Res).
					Msg("broken link-timeout completion")
			}
			x.udPool.Free(ud)
		default:
			logx.Sync().Fatal().Msg("unknown user data tag in completion")
		}
	})
	if n > 0 {
		logx.Async().Debug().Int("count", n).Msg("completions processed")
	}
}

func (x *Context) dispatch(handle *coro.Coroutine) {
	backoff := iox.Backoff{}
	for !coro.Submit(handle) {
		// Bounded ready ring is full; back off rather than drop the handle.
		backoff.Wait()
	}
}

// cleanup runs after the listener leaves its wait loop: wait out the
// submitter, submit any stragglers it left behind, then reap completions
// until the live-request counter hits zero so every suspended task is
// resumed before teardown.
func (x *Context) cleanup() {
	<-x.submitterDone

	batch := 0
	reqs := int64(0)
	for {
		o, err := x.requests.Dequeue()
		if err != nil {
			break
		}
		batch += x.prepare(&o)
		if o.code != opNop {
			reqs++
		}
	}
	if batch > 0 {
		x.pending.AddAcqRel(reqs)
		if _, err := x.ring.Submit(); err != nil {
			logx.Sync().Error().Err(err).Msg("io_uring submit failed")
		}
	}

	for x.pending.LoadAcquire() > 0 {
		logx.Sync().Info().
			Int64("pending", x.pending.LoadAcquire()).
			Msg("waiting for in-flight requests")
		if err := x.ring.WaitCQEs(); err != nil {
			if err == unix.EINTR {
				continue
			}
			logx.Sync().Error().Err(err).Msg("io_uring wait failed")
			break
		}
		x.handleCQEs()
	}

	if leaked := x.udPool.Close(); leaked > 0 {
		logx.Sync().Fatal().Int("leaked", leaked).Msg("user data pool leak")
	}
	x.requests.Close()
	x.ring.Close()
}
