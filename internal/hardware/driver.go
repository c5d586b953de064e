package hardware

import (
	"os"
	"sync"

	"codeberg.org/pankha/pankhactl/internal/logger"
)

type deviceFile interface {
	Fd() uintptr
	Close() error
}

type ioctlOps struct {
	getUint32 func(fd int, req uint) (uint32, error)
	setInt    func(fd int, req uint, value int) error
	// gone reports errors after which the handle must be reopened.
	gone func(err error) bool
}

// DriverBackend talks to the pankha kernel module through device control
// calls. The device node is opened on first use and kept until Close.
type DriverBackend struct {
	path string
	open func(path string) (deviceFile, error)
	ops  ioctlOps
	log  logger.Logger

	mu  sync.Mutex
	dev deviceFile
}

func NewDriverBackend(path string) *DriverBackend {
	if path == "" {
		path = DefaultDevicePath
	}

	return &DriverBackend{
		path: path,
		open: openDeviceFile,
		ops:  systemIoctl,
		log:  logger.New("driver"),
	}
}

func openDeviceFile(path string) (deviceFile, error) {
	return os.Open(path)
}

func (d *DriverBackend) Name() string {
	return "driver"
}

func (d *DriverBackend) ReadSpeed() (FanSpeed, error) {
	var speed uint32
	err := d.transact(OpGetSpeed, func(fd int) error {
		v, err := d.ops.getUint32(fd, ioctlGetFanSpeed)
		speed = v
		return err
	})
	if err != nil {
		return 0, err
	}

	return FanSpeed(speed), nil
}

func (d *DriverBackend) WriteSpeed(speed FanSpeed) error {
	return d.transact(OpSetSpeed, func(fd int) error {
		return d.ops.setInt(fd, ioctlSetFanSpeed, int(speed))
	})
}

// ReadMode maps the raw controller byte: zero is the BIOS controller, any
// other value is a board-specific user controller.
func (d *DriverBackend) ReadMode() (ControllerMode, error) {
	var raw uint32
	err := d.transact(OpGetMode, func(fd int) error {
		v, err := d.ops.getUint32(fd, ioctlGetController)
		raw = v
		return err
	})
	if err != nil {
		return BiosControlled, err
	}

	if raw&0xff == 0 {
		return BiosControlled, nil
	}

	return UserControlled, nil
}

func (d *DriverBackend) WriteMode(mode ControllerMode) error {
	manual := 0
	if mode == UserControlled {
		manual = 1
	}

	return d.transact(OpSetMode, func(fd int) error {
		return d.ops.setInt(fd, ioctlSetController, manual)
	})
}

func (d *DriverBackend) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev == nil {
		return nil
	}
	err := d.dev.Close()
	d.dev = nil
	if err != nil {
		return errFactory.Wrap(ErrDeviceUnavailable, err)
	}

	return nil
}

// transact runs one device control call while holding the handle.
func (d *DriverBackend) transact(op string, call func(fd int) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev == nil {
		dev, err := d.open(d.path)
		if err != nil {
			return errFactory.WithData(ErrDeviceUnavailable, struct {
				Path  string
				Error string
			}{
				Path:  d.path,
				Error: err.Error(),
			})
		}
		d.dev = dev
		d.log.Debug().Str("path", d.path).Msg("Device opened")
	}

	if err := call(int(d.dev.Fd())); err != nil {
		if d.ops.gone != nil && d.ops.gone(err) {
			d.log.Warn().Err(err).Str("operation", op).Msg("Device went away, dropping handle")
			_ = d.dev.Close()
			d.dev = nil
		}
		return newFault(op, err)
	}

	return nil
}
