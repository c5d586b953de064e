package sensors

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const DefaultHwmonPath = "/sys/class/hwmon"

// Chip is one hwmon device. ID follows the lm-sensors naming scheme
// "<name>-<bus>-<address>", e.g. "coretemp-isa-0000".
type Chip struct {
	Name string
	ID   string
	Dir  string
}

// Feature is a labelled reading group under a chip, e.g. temp1 labelled
// "Package id 0".
type Feature struct {
	Name  string
	Label string
	chip  Chip
}

// Locator resolves chip, feature and subfeature names against a hwmon tree.
type Locator struct {
	fs   afero.Fs
	root string
}

func NewLocator(fs afero.Fs, root string) *Locator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if root == "" {
		root = DefaultHwmonPath
	}

	return &Locator{fs: fs, root: root}
}

// Chips lists the hwmon devices in directory order.
func (l *Locator) Chips() ([]Chip, error) {
	entries, err := afero.ReadDir(l.fs, l.root)
	if err != nil {
		return nil, errFactory.Wrap(ErrSensorUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool { return hwmonIndex(names[i]) < hwmonIndex(names[j]) })

	chips := make([]Chip, 0, len(names))
	seen := make(map[string]int)
	for _, n := range names {
		dir := filepath.Join(l.root, n)
		name, err := l.readTrimmed(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		bus := l.busType(dir)
		key := name + "-" + bus
		chips = append(chips, Chip{
			Name: name,
			ID:   fmt.Sprintf("%s-%04x", key, seen[key]),
			Dir:  dir,
		})
		seen[key]++
	}

	return chips, nil
}

// Chip finds a chip by its full ID or, failing that, by bare name.
func (l *Locator) Chip(id string) (Chip, error) {
	chips, err := l.Chips()
	if err != nil {
		return Chip{}, err
	}

	for _, c := range chips {
		if c.ID == id {
			return c, nil
		}
	}
	for _, c := range chips {
		if c.Name == id {
			return c, nil
		}
	}

	return Chip{}, errFactory.WithData(ErrChipNotFound, id)
}

// Feature finds a feature by label ("Package id 0") or name ("temp1").
func (l *Locator) Feature(chip Chip, want string) (Feature, error) {
	entries, err := afero.ReadDir(l.fs, chip.Dir)
	if err != nil {
		return Feature{}, errFactory.Wrap(ErrSensorUnavailable, err)
	}

	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), "_label")
		if !ok {
			continue
		}
		label, err := l.readTrimmed(filepath.Join(chip.Dir, e.Name()))
		if err != nil {
			continue
		}
		if label == want || name == want {
			return Feature{Name: name, Label: label, chip: chip}, nil
		}
	}

	// Unlabelled features are addressable by name only.
	if ok, _ := afero.Exists(l.fs, filepath.Join(chip.Dir, want+"_input")); ok {
		return Feature{Name: want, Label: want, chip: chip}, nil
	}

	return Feature{}, errFactory.WithData(ErrFeatureNotFound, want)
}

// Value reads a subfeature of f. sub is either a full attribute name such
// as "temp1_input" or a bare suffix such as "input". Temperatures are
// reported by hwmon in millidegrees and returned here in whole degrees.
func (l *Locator) Value(f Feature, sub string) (int, error) {
	attr := sub
	if !strings.Contains(sub, "_") {
		attr = f.Name + "_" + sub
	}
	if attr == f.Name+"_label" {
		return 0, errFactory.WithData(ErrSubfeatureMissing, attr)
	}

	raw, err := l.readTrimmed(filepath.Join(f.chip.Dir, attr))
	if err != nil {
		return 0, errFactory.WithData(ErrSubfeatureMissing, attr)
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errFactory.Wrap(ErrParseReading, err)
	}
	if strings.HasPrefix(attr, "temp") {
		n /= 1000
	}

	return n, nil
}

func (l *Locator) readTrimmed(path string) (string, error) {
	b, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(b)), nil
}

// busType maps the parent device's modalias to an lm-sensors bus name.
// Platform devices report as isa, as libsensors does.
func (l *Locator) busType(dir string) string {
	alias, err := l.readTrimmed(filepath.Join(dir, "device", "modalias"))
	if err != nil {
		return "virtual"
	}

	prefix, _, _ := strings.Cut(alias, ":")
	switch prefix {
	case "platform":
		return "isa"
	case "pci", "acpi", "i2c", "spi", "hid", "usb", "scsi":
		return prefix
	default:
		return "virtual"
	}
}

func hwmonIndex(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(name, "hwmon"))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}
