package hardware

import (
	"errors"
	"os"
	"sync"
	"testing"

	pkgerrors "codeberg.org/pankha/pankhactl/internal/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type write struct {
	off int64
	val byte
}

// recordingFs logs every WriteAt on files it opens.
type recordingFs struct {
	afero.Fs
	mu     sync.Mutex
	writes []write
	failAt int64
}

func (fs *recordingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := fs.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}

	return &recordingFile{File: f, fs: fs}, nil
}

type recordingFile struct {
	afero.File
	fs *recordingFs
}

func (f *recordingFile) WriteAt(p []byte, off int64) (int, error) {
	if f.fs.failAt != 0 && off == f.fs.failAt {
		return 0, errors.New("EIO")
	}
	f.fs.mu.Lock()
	f.fs.writes = append(f.fs.writes, write{off: off, val: p[0]})
	f.fs.mu.Unlock()

	return f.File.WriteAt(p, off)
}

func newWindow(t *testing.T, init map[int64]byte) *recordingFs {
	t.Helper()
	mem := afero.NewMemMapFs()
	buf := make([]byte, 256)
	for off, v := range init {
		buf[off] = v
	}
	require.NoError(t, afero.WriteFile(mem, DefaultECPath, buf, 0o600))

	return &recordingFs{Fs: mem}
}

func TestRegisterReadSpeed(t *testing.T) {
	fs := newWindow(t, map[int64]byte{21: 0xff, 25: 35})
	r := NewRegisterBackend(fs, "", Profile{})

	speed, err := r.ReadSpeed()
	require.NoError(t, err)
	assert.Equal(t, FanSpeed(3500), speed)
}

func TestRegisterReadSpeedFanOff(t *testing.T) {
	fs := newWindow(t, map[int64]byte{21: 0x00, 25: 35})
	r := NewRegisterBackend(fs, "", Profile{})

	speed, err := r.ReadSpeed()
	require.NoError(t, err)
	assert.Equal(t, FanSpeed(0), speed)
}

func TestRegisterWriteSpeedOrder(t *testing.T) {
	fs := newWindow(t, nil)
	r := NewRegisterBackend(fs, "", Profile{})

	require.NoError(t, r.WriteSpeed(4500))
	assert.Equal(t, []write{{off: 21, val: 0xff}, {off: 25, val: 45}}, fs.writes)

	speed, err := r.ReadSpeed()
	require.NoError(t, err)
	assert.Equal(t, FanSpeed(4500), speed)
}

func TestRegisterWriteSpeedStatusFailureSkipsSpeed(t *testing.T) {
	fs := newWindow(t, nil)
	fs.failAt = 21
	r := NewRegisterBackend(fs, "", Profile{})

	err := r.WriteSpeed(1000)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, ErrHardwareFault))
	op, ok := FaultOperation(err)
	require.True(t, ok)
	assert.Equal(t, OpSetSpeed, op)
	assert.Empty(t, fs.writes)
}

func TestRegisterWriteSpeedUnencodable(t *testing.T) {
	fs := newWindow(t, nil)
	r := NewRegisterBackend(fs, "", Profile{})

	err := r.WriteSpeed(25600)
	assert.True(t, pkgerrors.HasCode(err, ErrUnencodableSpeed))
	assert.Empty(t, fs.writes)
}

func TestRegisterMode(t *testing.T) {
	fs := newWindow(t, map[int64]byte{25: 20})
	r := NewRegisterBackend(fs, "", Profile{})

	mode, err := r.ReadMode()
	require.NoError(t, err)
	assert.Equal(t, BiosControlled, mode)

	require.NoError(t, r.WriteMode(UserControlled))
	assert.Equal(t, []write{{off: 25, val: 20}, {off: 21, val: 0xff}}, fs.writes)

	mode, err = r.ReadMode()
	require.NoError(t, err)
	assert.Equal(t, UserControlled, mode)

	require.NoError(t, r.WriteMode(BiosControlled))
	mode, err = r.ReadMode()
	require.NoError(t, err)
	assert.Equal(t, BiosControlled, mode)
}

func TestRegisterProfileWriteOffsets(t *testing.T) {
	profiles, err := LoadProfiles()
	require.NoError(t, err)
	p, err := SelectProfile(profiles, "omen-type2", "")
	require.NoError(t, err)

	fs := newWindow(t, nil)
	r := NewRegisterBackend(fs, "", p)

	require.NoError(t, r.WriteSpeed(3000))
	assert.Equal(t, []write{{off: 98, val: 6}, {off: 52, val: 30}, {off: 53, val: 30}}, fs.writes)
	assert.Equal(t, "ec:omen-type2", r.Name())
}

func TestRegisterUnavailable(t *testing.T) {
	r := NewRegisterBackend(afero.NewMemMapFs(), "/missing/io", Profile{})

	_, err := r.ReadSpeed()
	assert.True(t, pkgerrors.HasCode(err, ErrDeviceUnavailable))
	assert.NoError(t, r.Close())
}

func TestRegisterClose(t *testing.T) {
	fs := newWindow(t, map[int64]byte{21: 0xff, 25: 10})
	r := NewRegisterBackend(fs, "", Profile{})

	_, err := r.ReadSpeed()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	// The window reopens on the next transaction.
	speed, err := r.ReadSpeed()
	require.NoError(t, err)
	assert.Equal(t, FanSpeed(1000), speed)
}
