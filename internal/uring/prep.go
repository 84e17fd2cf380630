// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package uring

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func prepRW(sqe *SQE, op uint8, fd int32, addr unsafe.Pointer, n uint32, off uint64) {
	sqe.Opcode = op
	sqe.Fd = fd
	sqe.Addr = uint64(uintptr(addr))
	sqe.Len = n
	sqe.Off = off
}

// PrepNop prepares a no-op submission; its only effect is a completion.
func PrepNop(sqe *SQE) {
	prepRW(sqe, OpNop, -1, nil, 0, 0)
}

// PrepRead prepares a read into buf at file offset off.
func PrepRead(sqe *SQE, fd int32, buf unsafe.Pointer, n uint32, off uint64) {
	prepRW(sqe, OpRead, fd, buf, n, off)
}

// PrepWrite prepares a write from buf at file offset off.
func PrepWrite(sqe *SQE, fd int32, buf unsafe.Pointer, n uint32, off uint64) {
	prepRW(sqe, OpWrite, fd, buf, n, off)
}

// PrepReadv prepares a vectored read.
func PrepReadv(sqe *SQE, fd int32, iovs *unix.Iovec, nr uint32, off uint64) {
	prepRW(sqe, OpReadv, fd, unsafe.Pointer(iovs), nr, off)
}

// PrepWritev prepares a vectored write.
func PrepWritev(sqe *SQE, fd int32, iovs *unix.Iovec, nr uint32, off uint64) {
	prepRW(sqe, OpWritev, fd, unsafe.Pointer(iovs), nr, off)
}

// PrepAccept prepares an accept; sa/saLen receive the peer address.
func PrepAccept(sqe *SQE, fd int32, sa unsafe.Pointer, saLen *uint32, flags uint32) {
	prepRW(sqe, OpAccept, fd, sa, 0, uint64(uintptr(unsafe.Pointer(saLen))))
	sqe.OpFlags = flags
}

// PrepAcceptDirect prepares an accept whose new fd lands in the
// registered-file table. fileIndex of FileIndexAlloc lets the kernel pick
// a slot.
func PrepAcceptDirect(sqe *SQE, fd int32, sa unsafe.Pointer, saLen *uint32, flags, fileIndex uint32) {
	PrepAccept(sqe, fd, sa, saLen, flags)
	if fileIndex == FileIndexAlloc {
		fileIndex--
	}
	sqe.FileIndex = fileIndex + 1
}

// PrepTimeout prepares a standalone timeout.
func PrepTimeout(sqe *SQE, ts *Timespec) {
	prepRW(sqe, OpTimeout, -1, unsafe.Pointer(ts), 1, 0)
}

// PrepLinkTimeout prepares a timeout chained to the previous LINK-flagged
// SQE: whichever completes first cancels the other.
func PrepLinkTimeout(sqe *SQE, ts *Timespec) {
	prepRW(sqe, OpLinkTimeout, -1, unsafe.Pointer(ts), 1, 0)
}

// PrepCancelFD prepares cancellation of every in-flight op on fd.
func PrepCancelFD(sqe *SQE, fd int32) {
	prepRW(sqe, OpAsyncCancel, fd, nil, 0, 0)
	sqe.OpFlags = cancelFD
}

// PrepClose prepares an fd close.
func PrepClose(sqe *SQE, fd int32) {
	prepRW(sqe, OpClose, fd, nil, 0, 0)
}

// PrepCloseDirect prepares a registered-file slot close.
func PrepCloseDirect(sqe *SQE, fileIndex uint32) {
	PrepClose(sqe, 0)
	if fileIndex == FileIndexAlloc {
		fileIndex--
	}
	sqe.FileIndex = fileIndex + 1
}
