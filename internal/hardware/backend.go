package hardware

import (
	"github.com/spf13/afero"
)

const (
	KindDriver = "driver"
	KindEC     = "ec"
)

// Options selects and configures a backend.
type Options struct {
	Kind       string
	DevicePath string
	ECPath     string
	// Profile is a profile name or AutoProfile.
	Profile string
	Fs      afero.Fs
}

// Open builds the backend named by opts.Kind. No device handle is opened
// until the first transaction.
func Open(opts Options) (Backend, error) {
	switch opts.Kind {
	case KindDriver:
		return NewDriverBackend(opts.DevicePath), nil
	case KindEC, "":
		fs := opts.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		profile, err := resolveProfile(fs, opts.Profile)
		if err != nil {
			return nil, err
		}
		return NewRegisterBackend(fs, opts.ECPath, profile), nil
	default:
		return nil, errFactory.WithData(ErrUnknownBackend, opts.Kind)
	}
}

func resolveProfile(fs afero.Fs, name string) (Profile, error) {
	profiles, err := LoadProfiles()
	if err != nil {
		return Profile{}, err
	}

	var board string
	if name == "" || name == AutoProfile {
		// An unreadable DMI table falls through to the default layout.
		board, _ = DetectBoard(fs)
	}

	return SelectProfile(profiles, name, board)
}
