package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/pankha/pankhactl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	f := errors.New()
	inner := f.Wrap(errors.ErrHardwareFault, fmt.Errorf("ioctl: EIO"))
	outer := f.Wrap(errors.ErrOperationFailed, inner)

	assert.True(t, errors.HasCode(outer, errors.ErrOperationFailed))
	assert.True(t, errors.HasCode(outer, errors.ErrHardwareFault))
	assert.False(t, errors.HasCode(outer, errors.ErrInvalidTarget))
	assert.False(t, errors.HasCode(fmt.Errorf("plain"), errors.ErrInternal))
	assert.False(t, errors.HasCode(nil, errors.ErrInternal))
}

func TestHasCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("context: %w", errors.New().New(errors.ErrDeviceUnavailable))
	assert.True(t, errors.HasCode(err, errors.ErrDeviceUnavailable))
	assert.Equal(t, errors.ErrDeviceUnavailable, errors.CodeOf(err))
}

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Invalid fan speed target", f.New(errors.ErrInvalidTarget).Error())
	assert.Equal(t, "Invalid fan speed target: 750", f.WithData(errors.ErrInvalidTarget, 750).Error())
	assert.Equal(t, "Internal error occurred: boom", f.Wrap(errors.ErrInternal, fmt.Errorf("boom")).Error())
	assert.Equal(t, "unknown_code", f.New(errors.ErrorCode("unknown_code")).Error())
}

func TestFactoryNarrowSurface(t *testing.T) {
	var f errors.Factory = errors.New()
	_, hasMessage := f.(interface {
		WithMessage(errors.ErrorCode, string) errors.Error
	})
	assert.False(t, hasMessage)

	e := f.WithData(errors.ErrHardwareFault, "set-speed")
	assert.Equal(t, "set-speed", e.GetData())
	assert.Nil(t, e.Unwrap())
}
