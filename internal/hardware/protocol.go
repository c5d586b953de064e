package hardware

// Driver control codes understood by the pankha kernel module (magic 'P').
const (
	ioctlGetFanSpeed   uint = 0x80045001
	ioctlGetController uint = 0x80045002
	ioctlSetController uint = 0x40045003
	ioctlSetFanSpeed   uint = 0x40045004
)

// Operation names carried by hardware faults.
const (
	OpGetSpeed = "get-speed"
	OpGetMode  = "get-mode"
	OpSetMode  = "set-mode"
	OpSetSpeed = "set-speed"
	OpOpen     = "open"
)

// Default layout of the ec_sys io window.
const (
	DefaultECPath     = "/sys/kernel/debug/ec/ec0/io"
	DefaultDevicePath = "/dev/pankha"

	offsetFanStatus = 21
	offsetFanSpeed  = 25
	fanStatusOff    = 0x00
	fanStatusOn     = 0xff

	rpmPerUnit = 100
)

func speedToByte(speed FanSpeed) (byte, bool) {
	v := speed / rpmPerUnit
	if v > 0xff {
		return 0, false
	}

	return byte(v), true
}

func byteToSpeed(b byte) FanSpeed {
	return FanSpeed(b) * rpmPerUnit
}
