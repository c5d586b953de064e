package telemetry

import (
	"time"

	"codeberg.org/pankha/pankhactl/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/pankha/telemetry.db"
	defaultBackupDir    = "/var/lib/pankha/backups"
	defaultBatchSize    = 32
	defaultBatchTimeout = 10 * time.Second
)

type Config struct {
	DBPath    string
	BackupDir string
	// BatchSize events are buffered before a write; BatchTimeout flushes a
	// partial batch.
	BatchSize    int
	BatchTimeout time.Duration
	Enabled      bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		BackupDir:    defaultBackupDir,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Enabled:      false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate paths if telemetry is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, c)
	}
	return nil
}
