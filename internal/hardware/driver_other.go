//go:build !linux

package hardware

import "fmt"

var errNoDriver = fmt.Errorf("pankha driver is only available on linux")

var systemIoctl = ioctlOps{
	getUint32: func(int, uint) (uint32, error) { return 0, errNoDriver },
	setInt:    func(int, uint, int) error { return errNoDriver },
}
