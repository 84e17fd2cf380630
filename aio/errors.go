// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aio

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Error taxonomy as observed by tasks awaiting I/O.
const (
	// CodeSys: the kernel completed the op with a negative result.
	CodeSys int32 = -1
	// CodeCtxClosed: the context refused the submission while shutting down.
	CodeCtxClosed int32 = -2
	// CodeTimeout: the link-timeout fired and the primary op was cancelled.
	CodeTimeout int32 = -3
)

// ErrClosed is returned when the I/O context refuses a submission because
// it is shutting down.
var ErrClosed = errors.New("aio: context closed")

// ErrTimeout is returned when a link-timeout cancels the primary op.
var ErrTimeout = errors.New("aio: timed out")

// SysError wraps the errno a completion delivered.
type SysError struct {
	Errno unix.Errno
}

func (e *SysError) Error() string {
	return fmt.Sprintf("aio: %s", e.Errno.Error())
}

func (e *SysError) Unwrap() error {
	return e.Errno
}

// Code maps err to the awaiter-visible result codes; 0 for nil.
func Code(err error) int32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrClosed):
		return CodeCtxClosed
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	default:
		return CodeSys
	}
}

func sysError(res int32) error {
	return &SysError{Errno: unix.Errno(-res)}
}
