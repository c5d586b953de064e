//go:build linux

package hardware

import (
	"errors"

	"golang.org/x/sys/unix"
)

var systemIoctl = ioctlOps{
	getUint32: unix.IoctlGetUint32,
	setInt:    unix.IoctlSetInt,
	gone: func(err error) bool {
		return errors.Is(err, unix.ENODEV) || errors.Is(err, unix.EBADF)
	},
}
