package hardware

import (
	"os"
	"sync"

	"codeberg.org/pankha/pankhactl/internal/logger"
	"github.com/spf13/afero"
)

// RegisterBackend reads and writes single bytes of the embedded controller
// register window exposed by ec_sys. The window is opened on first use.
type RegisterBackend struct {
	fs      afero.Fs
	path    string
	profile Profile
	log     logger.Logger

	mu sync.Mutex
	f  afero.File
}

func NewRegisterBackend(fs afero.Fs, path string, profile Profile) *RegisterBackend {
	if path == "" {
		path = DefaultECPath
	}
	if profile.Name == "" {
		profile = DefaultLayout()
	}

	return &RegisterBackend{
		fs:      fs,
		path:    path,
		profile: profile,
		log:     logger.New("ec"),
	}
}

func (r *RegisterBackend) Name() string {
	return "ec:" + r.profile.Name
}

// ReadSpeed reports zero while the status register says the fan is off.
func (r *RegisterBackend) ReadSpeed() (FanSpeed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, err := r.readByte(OpGetSpeed, r.profile.StatusOffset)
	if err != nil {
		return 0, err
	}
	if status == r.profile.StatusOff {
		return 0, nil
	}

	b, err := r.readByte(OpGetSpeed, r.profile.SpeedOffset)
	if err != nil {
		return 0, err
	}

	return byteToSpeed(b), nil
}

// WriteSpeed turns the fan on before writing the speed byte. The firmware
// ignores the speed register while the status byte is off, so the order
// matters and each write is flushed before the next.
func (r *RegisterBackend) WriteSpeed(speed FanSpeed) error {
	b, ok := speedToByte(speed)
	if !ok {
		return errFactory.WithData(ErrUnencodableSpeed, speed)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writeByte(OpSetSpeed, r.profile.StatusOffset, r.profile.StatusOn); err != nil {
		return err
	}
	for _, off := range r.profile.writeOffsets() {
		if err := r.writeByte(OpSetSpeed, off, b); err != nil {
			return err
		}
	}

	return nil
}

func (r *RegisterBackend) ReadMode() (ControllerMode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, err := r.readByte(OpGetMode, r.profile.StatusOffset)
	if err != nil {
		return BiosControlled, err
	}
	if status == r.profile.StatusOff {
		return BiosControlled, nil
	}

	return UserControlled, nil
}

// WriteMode hands control to the user controller or back to the BIOS. The
// current speed is copied into the write registers before taking control so
// the fan does not jump to a stale value.
func (r *RegisterBackend) WriteMode(mode ControllerMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mode == BiosControlled {
		return r.writeByte(OpSetMode, r.profile.StatusOffset, r.profile.StatusOff)
	}

	current, err := r.readByte(OpSetMode, r.profile.SpeedOffset)
	if err != nil {
		return err
	}
	for _, off := range r.profile.writeOffsets() {
		if err := r.writeByte(OpSetMode, off, current); err != nil {
			return err
		}
	}

	return r.writeByte(OpSetMode, r.profile.StatusOffset, r.profile.StatusOn)
}

func (r *RegisterBackend) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	if err != nil {
		return errFactory.Wrap(ErrDeviceUnavailable, err)
	}

	return nil
}

// window returns the open register file. Callers hold r.mu.
func (r *RegisterBackend) window() (afero.File, error) {
	if r.f != nil {
		return r.f, nil
	}

	f, err := r.fs.OpenFile(r.path, os.O_RDWR, 0)
	if err != nil {
		return nil, errFactory.WithData(ErrDeviceUnavailable, struct {
			Path  string
			Error string
		}{
			Path:  r.path,
			Error: err.Error(),
		})
	}

	r.f = f
	r.log.Debug().Str("path", r.path).Str("profile", r.profile.Name).Msg("EC window opened")

	return f, nil
}

func (r *RegisterBackend) readByte(op string, off int64) (byte, error) {
	f, err := r.window()
	if err != nil {
		return 0, err
	}

	var buf [1]byte
	if _, err := f.ReadAt(buf[:], off); err != nil {
		return 0, newFault(op, err)
	}

	return buf[0], nil
}

func (r *RegisterBackend) writeByte(op string, off int64, v byte) error {
	f, err := r.window()
	if err != nil {
		return err
	}

	// WriteAt is a single pwrite with no user-space buffering, so the byte
	// has reached the controller when it returns. debugfs rejects fsync.
	if _, err := f.WriteAt([]byte{v}, off); err != nil {
		return newFault(op, err)
	}

	return nil
}
