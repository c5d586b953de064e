// Package pid keeps a single daemon instance in charge of the fan device.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/pankha/pankhactl/internal/errors"
	"github.com/spf13/afero"
)

const (
	pidFile = "pankhad.pid"
)

// File is a pid file guarding one running instance.
type File struct {
	fs    afero.Fs
	path  string
	alive func(pid int) bool
}

// New returns a pid file in dir, or the temp dir when dir is empty.
func New(dir string) *File {
	if dir == "" {
		dir = os.TempDir()
	}

	return &File{
		fs:    afero.NewOsFs(),
		path:  filepath.Join(dir, pidFile),
		alive: processAlive,
	}
}

func (f *File) Path() string {
	return f.path
}

// Write writes the current process ID, failing with ErrAlreadyRunning when
// the recorded process is still alive. Stale files are replaced.
func (f *File) Write() error {
	errFactory := errors.New()

	if b, err := afero.ReadFile(f.fs, f.path); err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
		if err == nil && pid != os.Getpid() && f.alive(pid) {
			return errFactory.WithData(errors.ErrAlreadyRunning, pid)
		}
	}

	if err := afero.WriteFile(f.fs, f.path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func (f *File) Remove() error {
	if err := f.fs.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}
