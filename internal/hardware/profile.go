package hardware

import (
	_ "embed"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

//go:embed boards.yaml
var boardsYAML []byte

const (
	DefaultProfile = "ec-io"
	AutoProfile    = "auto"

	dmiBoardNamePath = "/sys/class/dmi/id/board_name"
)

// Profile is the EC register layout of one board family. Speeds are always
// encoded as rpm/100 in a single byte.
type Profile struct {
	Name         string   `yaml:"name"`
	Boards       []string `yaml:"boards"`
	StatusOffset int64    `yaml:"status_offset"`
	// SpeedOffset is read back as the current speed.
	SpeedOffset int64 `yaml:"speed_offset"`
	// SpeedWriteOffsets receive every written speed. Empty means SpeedOffset.
	SpeedWriteOffsets []int64 `yaml:"speed_write_offsets"`
	StatusOff         byte    `yaml:"status_off"`
	StatusOn          byte    `yaml:"status_on"`
}

func (p Profile) writeOffsets() []int64 {
	if len(p.SpeedWriteOffsets) == 0 {
		return []int64{p.SpeedOffset}
	}

	return p.SpeedWriteOffsets
}

// DefaultLayout is the ec_sys io window layout.
func DefaultLayout() Profile {
	return Profile{
		Name:         DefaultProfile,
		StatusOffset: offsetFanStatus,
		SpeedOffset:  offsetFanSpeed,
		StatusOff:    fanStatusOff,
		StatusOn:     fanStatusOn,
	}
}

// LoadProfiles parses the embedded board table.
func LoadProfiles() ([]Profile, error) {
	return parseProfiles(boardsYAML)
}

func parseProfiles(data []byte) ([]Profile, error) {
	var doc struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errFactory.Wrap(ErrProfileLoad, err)
	}

	return doc.Profiles, nil
}

// DetectBoard returns the DMI board name, e.g. "8C78".
func DetectBoard(fs afero.Fs) (string, error) {
	b, err := afero.ReadFile(fs, dmiBoardNamePath)
	if err != nil {
		return "", errFactory.Wrap(ErrDeviceUnavailable, err)
	}

	return strings.TrimSpace(string(b)), nil
}

// SelectProfile picks a profile by name. With AutoProfile the board name is
// matched against each profile's boards and the default layout is returned
// when nothing matches.
func SelectProfile(profiles []Profile, name, board string) (Profile, error) {
	if name == "" {
		name = AutoProfile
	}

	if name != AutoProfile {
		for _, p := range profiles {
			if p.Name == name {
				return p, nil
			}
		}
		return Profile{}, errFactory.WithData(ErrUnknownProfile, name)
	}

	for _, p := range profiles {
		for _, b := range p.Boards {
			if strings.EqualFold(b, board) {
				return p, nil
			}
		}
	}

	return DefaultLayout(), nil
}
