// Package system answers privilege and kernel module questions needed
// before the embedded controller can be written.
package system

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"

	"codeberg.org/pankha/pankhactl/internal/errors"
	"codeberg.org/pankha/pankhactl/internal/logger"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

const (
	ModulesPath  = "/proc/modules"
	ECSysModule  = "ec_sys"
	ErrLoadECSys = errors.ErrorCode("system_load_ec_sys_failed")
)

var errFactory = errors.New()

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Host wraps the system facilities. The zero value is not usable; use New.
type Host struct {
	fs   afero.Fs
	run  Runner
	euid func() int
	log  logger.Logger
}

func New() *Host {
	return &Host{
		fs:   afero.NewOsFs(),
		run:  execRunner,
		euid: unix.Geteuid,
		log:  logger.New("system"),
	}
}

// IsRoot reports whether the process runs with effective uid 0.
func (h *Host) IsRoot() bool {
	return h.euid() == 0
}

// IsECSysLoaded reports whether ec_sys appears in the kernel module list.
// An unreadable list counts as not loaded.
func (h *Host) IsECSysLoaded() bool {
	b, err := afero.ReadFile(h.fs, ModulesPath)
	if err != nil {
		h.log.Debug().Err(err).Msg("Failed to read module list")
		return false
	}

	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		name, _, _ := strings.Cut(sc.Text(), " ")
		if name == ECSysModule {
			return true
		}
	}

	return false
}

// LoadECSysWithWriteSupport loads ec_sys with writes to the io file enabled.
func (h *Host) LoadECSysWithWriteSupport(ctx context.Context) error {
	out, err := h.run(ctx, "modprobe", ECSysModule, "write_support=1")
	if err != nil {
		return errFactory.WithData(ErrLoadECSys, struct {
			Output string
			Error  string
		}{
			Output: strings.TrimSpace(string(out)),
			Error:  err.Error(),
		})
	}

	h.log.Info().Msg("Loaded ec_sys with write support")
	return nil
}

// EnsureECSys loads ec_sys unless it is already present.
func (h *Host) EnsureECSys(ctx context.Context) error {
	if h.IsECSysLoaded() {
		return nil
	}
	if !h.IsRoot() {
		h.log.Warn().Msg("Not running as root, ec_sys load will likely fail")
	}

	return h.LoadECSysWithWriteSupport(ctx)
}
