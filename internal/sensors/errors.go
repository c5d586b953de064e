package sensors

import "codeberg.org/pankha/pankhactl/internal/errors"

const (
	ErrSensorUnavailable = errors.ErrSensorUnavailable
	ErrChipNotFound      = errors.ErrorCode("sensor_chip_not_found")
	ErrFeatureNotFound   = errors.ErrorCode("sensor_feature_not_found")
	ErrSubfeatureMissing = errors.ErrorCode("sensor_subfeature_not_found")
	ErrParseReading      = errors.ErrorCode("sensor_parse_failed")
)

var errFactory = errors.New()
