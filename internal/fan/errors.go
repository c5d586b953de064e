package fan

import "codeberg.org/pankha/pankhactl/internal/errors"

const (
	ErrInvalidTarget = errors.ErrInvalidTarget
	ErrClosed        = errors.ErrorCode("fan_controller_closed")
	ErrRampAbandoned = errors.ErrorCode("fan_ramp_abandoned")
)

var errFactory = errors.New()
