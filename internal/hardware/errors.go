package hardware

import (
	"fmt"

	"codeberg.org/pankha/pankhactl/internal/errors"
)

const (
	ErrDeviceUnavailable = errors.ErrDeviceUnavailable
	ErrHardwareFault     = errors.ErrHardwareFault
	ErrInvalidMode       = errors.ErrorCode("hardware_invalid_mode")
	ErrUnencodableSpeed  = errors.ErrorCode("hardware_unencodable_speed")
	ErrUnknownProfile    = errors.ErrorCode("hardware_unknown_profile")
	ErrProfileLoad       = errors.ErrorCode("hardware_profile_load_failed")
	ErrUnknownBackend    = errors.ErrInvalidBackend
)

var errFactory = errors.New()

// Fault describes a failed device transaction.
type Fault struct {
	Operation string
	Err       error
}

func (f Fault) String() string {
	return fmt.Sprintf("%s: %v", f.Operation, f.Err)
}

func newFault(op string, err error) errors.Error {
	return errFactory.WithData(ErrHardwareFault, Fault{Operation: op, Err: err})
}

// FaultOperation returns the device operation carried by a hardware fault.
func FaultOperation(err error) (string, bool) {
	var e errors.Error
	if !errors.As(err, &e) || e.Code() != ErrHardwareFault {
		return "", false
	}
	f, ok := e.GetData().(Fault)
	if !ok {
		return "", false
	}

	return f.Operation, true
}
