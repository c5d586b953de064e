package hardware

import "io"

// Backend is the capability set shared by every physical access method.
// Implementations serialize transactions on their device handle; each call
// is one atomic unit of work. Backends never clamp: callers validate speeds
// before writing them.
type Backend interface {
	ReadSpeed() (FanSpeed, error)
	WriteSpeed(speed FanSpeed) error
	ReadMode() (ControllerMode, error)
	WriteMode(mode ControllerMode) error
	Name() string
	io.Closer
}

// Domain types
type (
	// FanSpeed is a fan speed in revolutions per minute.
	FanSpeed uint32

	// ControllerMode records who owns fan speed decisions in firmware.
	ControllerMode int
)

const (
	BiosControlled ControllerMode = iota
	UserControlled
)

const (
	// RPMStep is the granularity of every stored or transmitted speed.
	RPMStep FanSpeed = 500
	// RPMMax is the highest speed the firmware accepts.
	RPMMax FanSpeed = 5500
)

// Valid reports whether s is a multiple of RPMStep no greater than RPMMax.
func (s FanSpeed) Valid() bool {
	return s%RPMStep == 0 && s <= RPMMax
}

func (m ControllerMode) String() string {
	switch m {
	case BiosControlled:
		return "bios"
	case UserControlled:
		return "user"
	default:
		return "unknown"
	}
}

// ParseMode parses "bios" or "user".
func ParseMode(s string) (ControllerMode, error) {
	switch s {
	case "bios":
		return BiosControlled, nil
	case "user":
		return UserControlled, nil
	default:
		return BiosControlled, errFactory.WithData(ErrInvalidMode, s)
	}
}
