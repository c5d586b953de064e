package sensors

import (
	"path/filepath"
	"testing"

	pkgerrors "codeberg.org/pankha/pankhactl/internal/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(DefaultHwmonPath, path), []byte(content+"\n"), 0o644))
	}
}

// laptopTree mimics a typical Intel laptop: an ACPI thermal zone, the
// coretemp platform driver and an NVMe drive.
func laptopTree(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"hwmon0/name":            "acpitz",
		"hwmon0/device/modalias": "acpi:LNXTHERM:",
		"hwmon0/temp1_input":     "45000",

		"hwmon2/name":            "nvme",
		"hwmon2/device/modalias": "pci:v0000144Dd0000A80A",
		"hwmon2/temp1_label":     "Composite",
		"hwmon2/temp1_input":     "38850",

		"hwmon10/name":            "coretemp",
		"hwmon10/device/modalias": "platform:coretemp",
		"hwmon10/temp1_label":     "Package id 0",
		"hwmon10/temp1_input":     "52999",
		"hwmon10/temp2_label":     "Core 0",
		"hwmon10/temp2_input":     "48000",
	})
	return fs
}

func TestChipIDs(t *testing.T) {
	loc := NewLocator(laptopTree(t), "")

	chips, err := loc.Chips()
	require.NoError(t, err)

	ids := make([]string, 0, len(chips))
	for _, c := range chips {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"acpitz-acpi-0000", "nvme-pci-0000", "coretemp-isa-0000"}, ids)
}

func TestChipAddressCountsSameName(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"hwmon0/name":            "coretemp",
		"hwmon0/device/modalias": "platform:coretemp",
		"hwmon1/name":            "coretemp",
		"hwmon1/device/modalias": "platform:coretemp",
		"hwmon2/name":            "fake",
	})
	loc := NewLocator(fs, "")

	chip, err := loc.Chip("coretemp-isa-0001")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(DefaultHwmonPath, "hwmon1"), chip.Dir)

	chip, err = loc.Chip("fake-virtual-0000")
	require.NoError(t, err)
	assert.Equal(t, "fake", chip.Name)
}

func TestLookup(t *testing.T) {
	loc := NewLocator(laptopTree(t), "")

	chip, err := loc.Chip("coretemp-isa-0000")
	require.NoError(t, err)

	f, err := loc.Feature(chip, "Package id 0")
	require.NoError(t, err)
	assert.Equal(t, "temp1", f.Name)

	v, err := loc.Value(f, "temp1_input")
	require.NoError(t, err)
	assert.Equal(t, 52, v)

	core, err := loc.Feature(chip, "Core 0")
	require.NoError(t, err)
	v, err = loc.Value(core, "input")
	require.NoError(t, err)
	assert.Equal(t, 48, v)
}

func TestLookupByBareNames(t *testing.T) {
	loc := NewLocator(laptopTree(t), "")

	chip, err := loc.Chip("acpitz")
	require.NoError(t, err)

	f, err := loc.Feature(chip, "temp1")
	require.NoError(t, err)
	v, err := loc.Value(f, "input")
	require.NoError(t, err)
	assert.Equal(t, 45, v)
}

func TestLookupFailures(t *testing.T) {
	fs := laptopTree(t)
	writeFiles(t, fs, map[string]string{"hwmon10/temp3_label": "Core 1", "hwmon10/temp3_input": "n/a"})
	loc := NewLocator(fs, "")

	_, err := loc.Chip("k10temp-pci-00c3")
	assert.True(t, pkgerrors.HasCode(err, ErrChipNotFound))

	chip, err := loc.Chip("coretemp-isa-0000")
	require.NoError(t, err)

	_, err = loc.Feature(chip, "Package id 1")
	assert.True(t, pkgerrors.HasCode(err, ErrFeatureNotFound))

	f, err := loc.Feature(chip, "Package id 0")
	require.NoError(t, err)
	_, err = loc.Value(f, "temp1_max")
	assert.True(t, pkgerrors.HasCode(err, ErrSubfeatureMissing))

	bad, err := loc.Feature(chip, "Core 1")
	require.NoError(t, err)
	_, err = loc.Value(bad, "input")
	assert.True(t, pkgerrors.HasCode(err, ErrParseReading))

	_, err = NewLocator(afero.NewMemMapFs(), "").Chips()
	assert.True(t, pkgerrors.HasCode(err, ErrSensorUnavailable))
}

func TestThermometer(t *testing.T) {
	fs := laptopTree(t)
	th := NewThermometer(NewLocator(fs, ""), DefaultSource)

	assert.Equal(t, 52, th.Temperature())

	require.NoError(t, fs.Remove(filepath.Join(DefaultHwmonPath, "hwmon10/temp1_input")))
	assert.Equal(t, Unavailable, th.Temperature())

	_, err := th.Read()
	assert.Error(t, err)

	missing := NewThermometer(NewLocator(fs, ""), Source{Chip: "coretemp-isa-0000", Feature: "Package id 3", Subfeature: "temp1_input"})
	assert.Equal(t, Unavailable, missing.Temperature())
}
