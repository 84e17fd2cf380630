// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aio

import (
	"math"
	"net/netip"
	"time"
	"unsafe"

	"code.hybscloud.com/atomix"
	"golang.org/x/sys/unix"

	"code.hybscloud.com/ringhttp/coro"
	"code.hybscloud.com/ringhttp/internal/uring"
)

type opCode uint8

const (
	opNop opCode = iota
	opRead
	opReadv
	opWrite
	opWritev
	opAccept
	opCancelFD
	opClose
	opAcceptDirect
	opCloseDirect
)

// op is a submission request: one tagged value carrying the operation
// code and its parameters. The submitter dispatches on the code to emit
// the right submission entries. Pointers held here (buffer, iovecs,
// sockaddr, timespec) are heap objects also rooted in the suspended
// awaiter's frame, so they stay valid and immovable for the kernel's
// whole view of the op.
type op struct {
	code  opCode
	flags uint8 // uring.SQEFixedFile for the *Direct variants
	fd    int32
	buf   unsafe.Pointer
	n     uint32
	off   uint64
	sa    *unix.RawSockaddrAny
	saLen *uint32
	index uint32          // registered-file index for the *Direct variants
	ts    *uring.Timespec // non-nil: submit as a link-timeout pair

	c   *coro.Coroutine
	res *atomix.Int32
}

// resClosed is the sentinel await result for a refused submission; it
// cannot collide with a kernel res (negated errnos are small).
const resClosed = math.MinInt32

// await queues o and suspends until the listener delivers the completion.
func (x *Context) await(c *coro.Coroutine, o *op) int32 {
	var res atomix.Int32
	o.c = c
	o.res = &res
	if !x.push(o) {
		return resClosed
	}
	c.Suspend()
	return res.LoadAcquire()
}

// result maps a raw completion to the public (n, error) form.
func result(res int32) (int, error) {
	switch {
	case res >= 0:
		return int(res), nil
	case res == resClosed:
		return 0, ErrClosed
	default:
		return 0, sysError(res)
	}
}

// linkResult additionally translates the kernel's cancel completion into
// the timeout error.
func linkResult(res int32) (int, error) {
	if res == -int32(unix.ECANCELED) {
		return 0, ErrTimeout
	}
	return result(res)
}

func toTimespec(d time.Duration) *uring.Timespec {
	return &uring.Timespec{
		Sec:  int64(d / time.Second),
		Nsec: int64(d % time.Second),
	}
}

// Read awaits a read of buf from fd at offset off.
func (x *Context) Read(c *coro.Coroutine, fd int, buf []byte, off uint64) (int, error) {
	return result(x.await(c, &op{
		code: opRead, fd: int32(fd),
		buf: unsafe.Pointer(&buf[0]), n: uint32(len(buf)), off: off,
	}))
}

// ReadTimeout is Read with a link-timeout: the kernel cancels the read if
// it has not completed within d, and the await resumes with ErrTimeout.
func (x *Context) ReadTimeout(c *coro.Coroutine, fd int, buf []byte, off uint64, d time.Duration) (int, error) {
	return linkResult(x.await(c, &op{
		code: opRead, fd: int32(fd),
		buf: unsafe.Pointer(&buf[0]), n: uint32(len(buf)), off: off,
		ts: toTimespec(d),
	}))
}

// Write awaits a write of buf to fd at offset off.
func (x *Context) Write(c *coro.Coroutine, fd int, buf []byte, off uint64) (int, error) {
	return result(x.await(c, &op{
		code: opWrite, fd: int32(fd),
		buf: unsafe.Pointer(&buf[0]), n: uint32(len(buf)), off: off,
	}))
}

// WriteTimeout is Write with a link-timeout.
func (x *Context) WriteTimeout(c *coro.Coroutine, fd int, buf []byte, off uint64, d time.Duration) (int, error) {
	return linkResult(x.await(c, &op{
		code: opWrite, fd: int32(fd),
		buf: unsafe.Pointer(&buf[0]), n: uint32(len(buf)), off: off,
		ts: toTimespec(d),
	}))
}

// Readv awaits a vectored read into bufs from fd.
func (x *Context) Readv(c *coro.Coroutine, fd int, bufs [][]byte, off uint64) (int, error) {
	iovs := makeIovecs(bufs)
	if len(iovs) == 0 {
		return 0, nil
	}
	return result(x.await(c, &op{
		code: opReadv, fd: int32(fd),
		buf: unsafe.Pointer(&iovs[0]), n: uint32(len(iovs)), off: off,
	}))
}

// Writev awaits a vectored write of bufs to fd.
func (x *Context) Writev(c *coro.Coroutine, fd int, bufs [][]byte, off uint64) (int, error) {
	iovs := makeIovecs(bufs)
	if len(iovs) == 0 {
		return 0, nil
	}
	return result(x.await(c, &op{
		code: opWritev, fd: int32(fd),
		buf: unsafe.Pointer(&iovs[0]), n: uint32(len(iovs)), off: off,
	}))
}

func makeIovecs(bufs [][]byte) []unix.Iovec {
	iovs := make([]unix.Iovec, 0, len(bufs))
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		iovs = append(iovs, unix.Iovec{
			Base: &b[0],
			Len:  uint64(len(b)),
		})
	}
	return iovs
}

// Accept awaits a connection on the listening fd and returns the new fd
// with the peer address.
func (x *Context) Accept(c *coro.Coroutine, fd int) (int, netip.AddrPort, error) {
	sa := new(unix.RawSockaddrAny)
	saLen := new(uint32)
	*saLen = uint32(unsafe.Sizeof(*sa))
	n, err := result(x.await(c, &op{
		code: opAccept, fd: int32(fd), sa: sa, saLen: saLen,
	}))
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return n, decodePeer(sa), nil
}

// AcceptTimeout is Accept with a link-timeout.
func (x *Context) AcceptTimeout(c *coro.Coroutine, fd int, d time.Duration) (int, netip.AddrPort, error) {
	sa := new(unix.RawSockaddrAny)
	saLen := new(uint32)
	*saLen = uint32(unsafe.Sizeof(*sa))
	n, err := linkResult(x.await(c, &op{
		code: opAccept, fd: int32(fd), sa: sa, saLen: saLen,
		ts: toTimespec(d),
	}))
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return n, decodePeer(sa), nil
}

func decodePeer(sa *unix.RawSockaddrAny) netip.AddrPort {
	if sa.Addr.Family != unix.AF_INET {
		return netip.AddrPort{}
	}
	sa4 := (*unix.RawSockaddrInet4)(unsafe.Pointer(sa))
	port := uint16(sa4.Port>>8) | uint16(sa4.Port&0xff)<<8
	return netip.AddrPortFrom(netip.AddrFrom4(sa4.Addr), port)
}

// CancelFD awaits cancellation of every in-flight op referencing fd.
func (x *Context) CancelFD(c *coro.Coroutine, fd int) (int, error) {
	return result(x.await(c, &op{code: opCancelFD, fd: int32(fd)}))
}

// Close awaits an fd close.
func (x *Context) Close(c *coro.Coroutine, fd int) (int, error) {
	return result(x.await(c, &op{code: opClose, fd: int32(fd)}))
}

// ReadDirect is Read against a registered-file index.
func (x *Context) ReadDirect(c *coro.Coroutine, index int, buf []byte, off uint64) (int, error) {
	return result(x.await(c, &op{
		code: opRead, fd: int32(index), flags: uring.SQEFixedFile,
		buf: unsafe.Pointer(&buf[0]), n: uint32(len(buf)), off: off,
	}))
}

// WriteDirect is Write against a registered-file index.
func (x *Context) WriteDirect(c *coro.Coroutine, index int, buf []byte, off uint64) (int, error) {
	return result(x.await(c, &op{
		code: opWrite, fd: int32(index), flags: uring.SQEFixedFile,
		buf: unsafe.Pointer(&buf[0]), n: uint32(len(buf)), off: off,
	}))
}

// WritevDirect is Writev against a registered-file index.
func (x *Context) WritevDirect(c *coro.Coroutine, index int, bufs [][]byte, off uint64) (int, error) {
	iovs := makeIovecs(bufs)
	if len(iovs) == 0 {
		return 0, nil
	}
	return result(x.await(c, &op{
		code: opWritev, fd: int32(index), flags: uring.SQEFixedFile,
		buf: unsafe.Pointer(&iovs[0]), n: uint32(len(iovs)), off: off,
	}))
}

// AcceptDirect is Accept whose new connection lands in the
// registered-file table; index of uring.FileIndexAlloc lets the kernel
// pick the slot, and the completion result is the chosen index.
func (x *Context) AcceptDirect(c *coro.Coroutine, fd int, index uint32) (int, netip.AddrPort, error) {
	sa := new(unix.RawSockaddrAny)
	saLen := new(uint32)
	*saLen = uint32(unsafe.Sizeof(*sa))
	n, err := result(x.await(c, &op{
		code: opAcceptDirect, fd: int32(fd), sa: sa, saLen: saLen, index: index,
	}))
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return n, decodePeer(sa), nil
}

// CloseDirect closes a registered-file slot.
func (x *Context) CloseDirect(c *coro.Coroutine, index uint32) (int, error) {
	return result(x.await(c, &op{code: opCloseDirect, index: index}))
}
