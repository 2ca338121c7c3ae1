package sdfat

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is the error type returned by every package in this module.
// Each one descends from one of the sentinels below, so callers can test for
// the kind of failure with [errors.Is] no matter how much detail was added on
// the way up.
type DriverError interface {
	error
	// WithMessage returns a new error that appends `message` to this one's text.
	WithMessage(message string) DriverError
	// Wrap returns a new error that also matches `err`, typically the error a
	// block device returned.
	Wrap(err error) DriverError
}

// errnoText is the bare message of a sentinel. The messages are the strerror(3)
// text of the closest POSIX errno.
type errnoText string

const rootError = errnoText("")

var (
	// ErrArgumentOutOfRange is returned for dates a FAT timestamp can't hold.
	ErrArgumentOutOfRange = rootError.WithMessage("Numerical argument out of domain")
	// ErrBusy is returned by a device that's still finishing an earlier write.
	ErrBusy              = rootError.WithMessage("Device or resource busy")
	ErrDirectoryNotEmpty = rootError.WithMessage("Directory not empty")
	ErrExists            = rootError.WithMessage("File exists")
	// ErrFileSystemCorrupted means the on-disk structures contradict each
	// other: a broken or looping cluster chain, a directory without an end,
	// and so on.
	ErrFileSystemCorrupted   = rootError.WithMessage("Structure needs cleaning")
	ErrFileTooLarge          = rootError.WithMessage("File too large")
	ErrInvalidArgument       = rootError.WithMessage("Invalid argument")
	ErrInvalidFileDescriptor = rootError.WithMessage("Bad file descriptor")
	// ErrInvalidFileSystem is returned by Mount when the boot sector or
	// partition table doesn't describe a usable FAT volume.
	ErrInvalidFileSystem = rootError.WithMessage("Wrong medium type")
	// ErrIOFailed wraps every error coming from the block device.
	ErrIOFailed         = rootError.WithMessage("Input/output error")
	ErrIsADirectory     = rootError.WithMessage("Is a directory")
	ErrNameTooLong      = rootError.WithMessage("File name too long")
	ErrNoSpaceOnDevice  = rootError.WithMessage("No space left on device")
	ErrNotADirectory    = rootError.WithMessage("Not a directory")
	ErrNotFound         = rootError.WithMessage("No such file or directory")
	ErrNotPermitted     = rootError.WithMessage("Operation not permitted")
	ErrNotSupported     = rootError.WithMessage("Operation not supported")
	ErrPermissionDenied = rootError.WithMessage("Permission denied")
	// ErrTooManyLevels is returned when directories nest deeper than a
	// traversal is willing to follow.
	ErrTooManyLevels = rootError.WithMessage("Too many levels of nested directories")
)

func (e errnoText) Error() string {
	return string(e)
}

func (e errnoText) WithMessage(message string) DriverError {
	return detailedError{
		message: message,
		cause:   e,
	}
}

func (e errnoText) Wrap(err error) DriverError {
	return detailedError{
		message: fmt.Sprintf("%s: %s", e, err),
		cause:   multierror.Append(e, err),
	}
}

// detailedError is a sentinel plus context. Its message already includes the
// sentinel's text.
type detailedError struct {
	message string
	cause   error
}

func (e detailedError) Error() string {
	return e.message
}

func (e detailedError) WithMessage(message string) DriverError {
	return detailedError{
		message: e.message + ": " + message,
		cause:   e,
	}
}

// Wrap attaches `err` as a second cause. Both this error and `err` will match
// with [errors.Is].
func (e detailedError) Wrap(err error) DriverError {
	return detailedError{
		message: fmt.Sprintf("%s: %s", e.message, err),
		cause:   multierror.Append(e, err),
	}
}

func (e detailedError) Unwrap() error {
	return e.cause
}
