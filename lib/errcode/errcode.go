// Package errcode converts between Go errors and the errno codes carried in
// chunk server replies.
package errcode

import (
	"context"
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

const OK int32 = 0

var (
	EIO    = int32(unix.EIO)
	EINVAL = int32(unix.EINVAL)
	ENOENT = int32(unix.ENOENT)
)

// FromError returns the errno for err. Errors that carry no errno become EIO.
func FromError(err error) int32 {
	if err == nil {
		return OK
	}

	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return int32(errno)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return int32(unix.ECANCELED)
	}

	return EIO
}

// ToError returns nil for OK and the matching syscall.Errno otherwise.
func ToError(code int32) error {
	if code == OK {
		return nil
	}

	return syscall.Errno(code)
}
