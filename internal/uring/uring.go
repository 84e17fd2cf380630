// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package uring is a minimal io_uring binding: ring setup and teardown,
// submission-queue access for a single submitter, completion-queue access
// for a single listener, and the register operations the I/O context
// exposes. It implements exactly the submit-and-wait patterns the server
// uses — it is not a general liburing replacement.
//
// The submission queue is touched only by the submitter goroutine and the
// completion queue only by the listener, so the shared ring indices need
// one release store (tail) and one acquire load (head) per side.
package uring

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mmap offsets, linux/io_uring.h.
const (
	offSQRing = 0
	offCQRing = 0x8000000
	offSQEs   = 0x10000000
)

// Setup features.
const featSingleMmap = 1 << 0

// Enter flags.
const enterGetEvents = 1 << 0

// SQE flags.
const (
	// SQEFixedFile selects a registered-file index instead of an fd.
	SQEFixedFile = 1 << 0
	// SQEIOLink chains this SQE to the next one.
	SQEIOLink = 1 << 2
)

// Opcodes used by the I/O context.
const (
	OpNop         = 0
	OpReadv       = 1
	OpWritev      = 2
	OpTimeout     = 11
	OpAccept      = 13
	OpAsyncCancel = 14
	OpLinkTimeout = 15
	OpClose       = 19
	OpRead        = 22
	OpWrite       = 23
)

// Async-cancel flags.
const (
	cancelAll = 1 << 0
	cancelFD  = 1 << 1
)

// Register opcodes.
const (
	regRegisterFiles      = 2
	regUnregisterFiles    = 3
	regRegisterFiles2     = 13
	regFileAllocRange     = 25
	rsrcRegisterSparse    = 1 << 0
	// FileIndexAlloc asks the kernel to pick a free registered-file slot.
	FileIndexAlloc = ^uint32(0)
)

// Timespec is the 64-bit kernel timespec linked timeouts use.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// SQE is a submission queue entry, 64-byte kernel layout.
type SQE struct {
	Opcode      uint8
	Flags       uint8
	IoPrio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpFlags     uint32
	UserData    uint64
	BufIndex    uint16
	Personality uint16
	FileIndex   uint32
	Addr3       uint64
	_           uint64
}

// CQE is a completion queue entry.
type CQE struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

type sqRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	userAddr    uint64
}

type cqRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	overflow    uint32
	cqes        uint32
	flags       uint32
	resv1       uint32
	userAddr    uint64
}

type params struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        sqRingOffsets
	cqOff        cqRingOffsets
}

// Ring is one initialised io_uring instance.
type Ring struct {
	fd int

	sqMem  []byte
	cqMem  []byte
	sqeMem []byte

	sqHead  *uint32
	sqTail  *uint32
	sqMask  uint32
	sqArray []uint32
	sqes    []SQE

	cqHead *uint32
	cqTail *uint32
	cqMask uint32
	cqes   []CQE

	// Local submission cursor; flushed to *sqTail on Submit.
	sqeTail uint32
}

// New initialises a ring with the given SQ depth.
func New(entries uint32) (*Ring, error) {
	var p params
	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP,
		uintptr(entries), uintptr(unsafe.Pointer(&p)), 0)
	if errno != 0 {
		return nil, errno
	}
	r := &Ring{fd: int(fd)}

	sqSize := int(p.sqOff.array) + int(p.sqEntries)*4
	cqSize := int(p.cqOff.cqes) + int(p.cqEntries)*int(unsafe.Sizeof(CQE{}))
	if p.features&featSingleMmap != 0 {
		if cqSize > sqSize {
			sqSize = cqSize
		}
		cqSize = sqSize
	}

	sqMem, err := unix.Mmap(r.fd, offSQRing, sqSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Close(r.fd)
		return nil, err
	}
	r.sqMem = sqMem

	if p.features&featSingleMmap != 0 {
		r.cqMem = sqMem
	} else {
		cqMem, err := unix.Mmap(r.fd, offCQRing, cqSize,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.cqMem = cqMem
	}

	sqeMem, err := unix.Mmap(r.fd, offSQEs,
		int(p.sqEntries)*int(unsafe.Sizeof(SQE{})),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.sqeMem = sqeMem

	sqBase := unsafe.Pointer(&r.sqMem[0])
	r.sqHead = (*uint32)(unsafe.Add(sqBase, p.sqOff.head))
	r.sqTail = (*uint32)(unsafe.Add(sqBase, p.sqOff.tail))
	r.sqMask = *(*uint32)(unsafe.Add(sqBase, p.sqOff.ringMask))
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Add(sqBase, p.sqOff.array)), p.sqEntries)
	r.sqes = unsafe.Slice((*SQE)(unsafe.Pointer(&r.sqeMem[0])), p.sqEntries)

	cqBase := unsafe.Pointer(&r.cqMem[0])
	r.cqHead = (*uint32)(unsafe.Add(cqBase, p.cqOff.head))
	r.cqTail = (*uint32)(unsafe.Add(cqBase, p.cqOff.tail))
	r.cqMask = *(*uint32)(unsafe.Add(cqBase, p.cqOff.ringMask))
	r.cqes = unsafe.Slice((*CQE)(unsafe.Add(cqBase, p.cqOff.cqes)), p.cqEntries)

	// Identity map: slot i of the SQ array always names SQE i.
	for i := range r.sqArray {
		r.sqArray[i] = uint32(i)
	}

	return r, nil
}

// GetSQE reserves the next submission entry, zeroed. Returns nil when the
// submission queue is full (the caller treats that as fatal: the queue is
// sized far above the flush batch).
func (r *Ring) GetSQE() *SQE {
	head := atomic.LoadUint32(r.sqHead)
	if r.sqeTail-head >= uint32(len(r.sqes)) {
		return nil
	}
	sqe := &r.sqes[r.sqeTail&r.sqMask]
	*sqe = SQE{}
	r.sqeTail++
	return sqe
}

// Submit publishes every reserved SQE and enters the kernel.
// Returns the number of entries consumed.
func (r *Ring) Submit() (int, error) {
	tail := atomic.LoadUint32(r.sqTail)
	toSubmit := r.sqeTail - tail
	if toSubmit == 0 {
		return 0, nil
	}
	atomic.StoreUint32(r.sqTail, r.sqeTail)
	return r.Enter(toSubmit, 0, 0)
}

// Enter wraps io_uring_enter.
func (r *Ring) Enter(toSubmit, minComplete uint32, flags uintptr) (int, error) {
	n, _, errno := unix.Syscall6(unix.SYS_IO_URING_ENTER,
		uintptr(r.fd), uintptr(toSubmit), uintptr(minComplete), flags, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// WaitCQEs blocks until at least one completion is available.
// Returns unix.EINTR unmodified so the listener can re-check its stop
// condition.
func (r *Ring) WaitCQEs() error {
	if r.cqReady() > 0 {
		return nil
	}
	_, err := r.Enter(0, 1, enterGetEvents)
	return err
}

func (r *Ring) cqReady() uint32 {
	return atomic.LoadUint32(r.cqTail) - atomic.LoadUint32(r.cqHead)
}

// ForEachCQE invokes fn for every pending completion, then advances the
// completion head past them. Returns the number seen.
func (r *Ring) ForEachCQE(fn func(*CQE)) int {
	head := atomic.LoadUint32(r.cqHead)
	tail := atomic.LoadUint32(r.cqTail)
	for i := head; i != tail; i++ {
		fn(&r.cqes[i&r.cqMask])
	}
	n := int(tail - head)
	if n > 0 {
		atomic.StoreUint32(r.cqHead, tail)
	}
	return n
}

// RegisterFiles registers a fixed fd table.
func (r *Ring) RegisterFiles(fds []int32) error {
	return r.register(regRegisterFiles, unsafe.Pointer(&fds[0]), uint32(len(fds)))
}

// UnregisterFiles drops the fixed fd table.
func (r *Ring) UnregisterFiles() error {
	return r.register(regUnregisterFiles, nil, 0)
}

type rsrcRegister struct {
	nr    uint32
	flags uint32
	resv2 uint64
	data  uint64
	tags  uint64
}

// RegisterFilesSparse reserves count empty registered-file slots.
func (r *Ring) RegisterFilesSparse(count uint32) error {
	rr := rsrcRegister{nr: count, flags: rsrcRegisterSparse}
	return r.register(regRegisterFiles2, unsafe.Pointer(&rr), uint32(unsafe.Sizeof(rr)))
}

type fileIndexRange struct {
	off  uint32
	len  uint32
	resv uint64
}

// RegisterFileAllocRange confines kernel-allocated file indices to
// [off, off+length).
func (r *Ring) RegisterFileAllocRange(off, length uint32) error {
	fr := fileIndexRange{off: off, len: length}
	return r.register(regFileAllocRange, unsafe.Pointer(&fr), 0)
}

func (r *Ring) register(opcode uint32, arg unsafe.Pointer, nrArgs uint32) error {
	_, _, errno := unix.Syscall6(unix.SYS_IO_URING_REGISTER,
		uintptr(r.fd), uintptr(opcode), uintptr(arg), uintptr(nrArgs), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Close tears the ring down.
func (r *Ring) Close() {
	if r.sqeMem != nil {
		_ = unix.Munmap(r.sqeMem)
		r.sqeMem = nil
	}
	if r.cqMem != nil && &r.cqMem[0] != &r.sqMem[0] {
		_ = unix.Munmap(r.cqMem)
	}
	r.cqMem = nil
	if r.sqMem != nil {
		_ = unix.Munmap(r.sqMem)
		r.sqMem = nil
	}
	if r.fd >= 0 {
		_ = unix.Close(r.fd)
		r.fd = -1
	}
}
