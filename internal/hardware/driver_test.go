package hardware

import (
	"errors"
	"sync"
	"testing"

	pkgerrors "codeberg.org/pankha/pankhactl/internal/errors"
	"codeberg.org/pankha/pankhactl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	closed bool
}

func (d *fakeDevice) Fd() uintptr  { return 7 }
func (d *fakeDevice) Close() error { d.closed = true; return nil }

type call struct {
	req   uint
	value int
}

type fakeModule struct {
	mu         sync.Mutex
	speed      uint32
	controller uint32
	calls      []call
	fail       map[uint]error
}

func (m *fakeModule) ops() ioctlOps {
	return ioctlOps{
		getUint32: func(fd int, req uint) (uint32, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.calls = append(m.calls, call{req: req})
			if err := m.fail[req]; err != nil {
				return 0, err
			}
			if req == ioctlGetController {
				return m.controller, nil
			}
			return m.speed, nil
		},
		setInt: func(fd int, req uint, value int) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.calls = append(m.calls, call{req: req, value: value})
			if err := m.fail[req]; err != nil {
				return err
			}
			if req == ioctlSetController {
				m.controller = uint32(value)
			} else {
				m.speed = uint32(value)
			}
			return nil
		},
		gone: func(err error) bool { return err.Error() == "ENODEV" },
	}
}

func newTestDriver(m *fakeModule, opens *int, openErr error) *DriverBackend {
	return &DriverBackend{
		path: "/dev/pankha",
		open: func(string) (deviceFile, error) {
			*opens++
			if openErr != nil {
				return nil, openErr
			}
			return &fakeDevice{}, nil
		},
		ops: m.ops(),
		log: logger.New("driver"),
	}
}

func TestDriverSpeedRoundTrip(t *testing.T) {
	m := &fakeModule{speed: 2000}
	opens := 0
	d := newTestDriver(m, &opens, nil)

	speed, err := d.ReadSpeed()
	require.NoError(t, err)
	assert.Equal(t, FanSpeed(2000), speed)

	require.NoError(t, d.WriteSpeed(3500))
	speed, err = d.ReadSpeed()
	require.NoError(t, err)
	assert.Equal(t, FanSpeed(3500), speed)

	assert.Equal(t, 1, opens, "handle opened once and reused")
	assert.Equal(t, []call{
		{req: 0x80045001},
		{req: 0x40045004, value: 3500},
		{req: 0x80045001},
	}, m.calls)
}

func TestDriverMode(t *testing.T) {
	m := &fakeModule{controller: 6}
	opens := 0
	d := newTestDriver(m, &opens, nil)

	mode, err := d.ReadMode()
	require.NoError(t, err)
	assert.Equal(t, UserControlled, mode)

	require.NoError(t, d.WriteMode(BiosControlled))
	mode, err = d.ReadMode()
	require.NoError(t, err)
	assert.Equal(t, BiosControlled, mode)

	require.NoError(t, d.WriteMode(UserControlled))
	assert.Equal(t, call{req: 0x40045003, value: 1}, m.calls[len(m.calls)-1])
}

func TestDriverUnavailable(t *testing.T) {
	m := &fakeModule{}
	opens := 0
	d := newTestDriver(m, &opens, errors.New("no such file or directory"))

	_, err := d.ReadSpeed()
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, ErrDeviceUnavailable))
	assert.Empty(t, m.calls)

	_, err = d.ReadMode()
	assert.True(t, pkgerrors.HasCode(err, ErrDeviceUnavailable))
	assert.Equal(t, 2, opens, "open retried on every call while unavailable")
}

func TestDriverFaultCarriesOperation(t *testing.T) {
	m := &fakeModule{fail: map[uint]error{ioctlSetFanSpeed: errors.New("EIO")}}
	opens := 0
	d := newTestDriver(m, &opens, nil)

	err := d.WriteSpeed(1000)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, ErrHardwareFault))
	op, ok := FaultOperation(err)
	require.True(t, ok)
	assert.Equal(t, OpSetSpeed, op)

	// A plain fault keeps the handle.
	_, err = d.ReadSpeed()
	require.NoError(t, err)
	assert.Equal(t, 1, opens)
}

func TestDriverReopensAfterDeviceGone(t *testing.T) {
	m := &fakeModule{fail: map[uint]error{ioctlGetFanSpeed: errors.New("ENODEV")}}
	opens := 0
	d := newTestDriver(m, &opens, nil)

	_, err := d.ReadSpeed()
	require.Error(t, err)

	delete(m.fail, ioctlGetFanSpeed)
	_, err = d.ReadSpeed()
	require.NoError(t, err)
	assert.Equal(t, 2, opens)
}

func TestDriverClose(t *testing.T) {
	m := &fakeModule{}
	opens := 0
	d := newTestDriver(m, &opens, nil)

	require.NoError(t, d.Close())
	_, err := d.ReadSpeed()
	require.NoError(t, err)
	dev := d.dev.(*fakeDevice)
	require.NoError(t, d.Close())
	assert.True(t, dev.closed)
	assert.Nil(t, d.dev)
}
