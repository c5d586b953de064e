package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/pankha/pankhactl/internal/errors"
	"codeberg.org/pankha/pankhactl/internal/hardware"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix  = "PANKHA"
	DefaultConfigDir  = "/etc/pankha"
	DefaultConfigName = "pankha"
	DefaultLogLevel   = string(LogLevelInfo)

	// NoTarget leaves the fan speed alone at startup.
	NoTarget = -1
)

var errFactory = errors.New()

type Config struct {
	Backend string `mapstructure:"backend"`
	Device  string `mapstructure:"device"`
	ECPath  string `mapstructure:"ec_path"`
	Board   string `mapstructure:"board"`

	StepDelay     time.Duration `mapstructure:"step_delay"`
	MaxStepFaults int           `mapstructure:"max_step_faults"`

	SampleInterval   time.Duration `mapstructure:"sample_interval"`
	SensorChip       string        `mapstructure:"sensor_chip"`
	SensorFeature    string        `mapstructure:"sensor_feature"`
	SensorSubfeature string        `mapstructure:"sensor_subfeature"`
	HwmonPath        string        `mapstructure:"hwmon_path"`

	TargetRPM int    `mapstructure:"target_rpm"`
	Mode      string `mapstructure:"mode"`
	LoadECSys bool   `mapstructure:"load_ec_sys"`
	Monitor   bool   `mapstructure:"monitor"`

	LogLevel    string `mapstructure:"log_level"`
	Telemetry   bool   `mapstructure:"telemetry"`
	TelemetryDB string `mapstructure:"telemetry_db"`
	EventBuffer int    `mapstructure:"event_buffer"`
}

var defaults = map[string]any{
	"backend":           hardware.KindEC,
	"device":            hardware.DefaultDevicePath,
	"ec_path":           hardware.DefaultECPath,
	"board":             hardware.AutoProfile,
	"step_delay":        2 * time.Second,
	"max_step_faults":   3,
	"sample_interval":   5 * time.Second,
	"sensor_chip":       "coretemp-isa-0000",
	"sensor_feature":    "Package id 0",
	"sensor_subfeature": "temp1_input",
	"hwmon_path":        "/sys/class/hwmon",
	"target_rpm":        NoTarget,
	"mode":              "",
	"load_ec_sys":       true,
	"monitor":           false,
	"log_level":         DefaultLogLevel,
	"telemetry":         false,
	"telemetry_db":      "/var/lib/pankha/telemetry.db",
	"event_buffer":      32,
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("pankhad", pflag.ContinueOnError)
	fs.String("config", "", "Path to config file")
	fs.String("backend", hardware.KindEC, "Hardware backend: driver or ec")
	fs.String("device", hardware.DefaultDevicePath, "Driver device node")
	fs.String("ec-path", hardware.DefaultECPath, "Embedded controller io file")
	fs.String("board", hardware.AutoProfile, "Board profile name or auto")
	fs.Duration("step-delay", 2*time.Second, "Delay between fan ramp steps")
	fs.Int("max-step-faults", 3, "Consecutive failed steps before a ramp is abandoned")
	fs.Duration("sample-interval", 5*time.Second, "Temperature sampling interval")
	fs.String("sensor-chip", "coretemp-isa-0000", "hwmon chip to read the temperature from")
	fs.String("sensor-feature", "Package id 0", "Sensor feature label")
	fs.String("sensor-subfeature", "temp1_input", "Sensor subfeature")
	fs.String("hwmon-path", "/sys/class/hwmon", "hwmon class directory")
	fs.Int("target-rpm", NoTarget, "Fan speed to ramp to at startup, -1 to leave as is")
	fs.String("mode", "", "Controller mode to set at startup: bios or user")
	fs.Bool("load-ec-sys", true, "Load ec_sys with write support when needed")
	fs.Bool("monitor", false, "Log events instead of only serving them")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning or error")
	fs.Bool("telemetry", false, "Record events to the telemetry database")
	fs.String("telemetry-db", "/var/lib/pankha/telemetry.db", "Telemetry database path")
	fs.Int("event-buffer", 32, "Per-subscriber event buffer size")

	return fs
}

// Load reads configuration from defaults, the config file, the environment
// and flags, in increasing order of precedence, and validates it.
func Load(opts ...Option) (*Config, error) {
	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}
	if !o.argsSet && len(os.Args) > 1 {
		o.args = os.Args[1:]
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	flags := newFlagSet()
	if err := flags.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	if bindErr != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, bindErr)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path := o.configPath
	if f := flags.Lookup("config"); f.Changed {
		path = f.Value.String()
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}
	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readConfigFile loads an explicit file, or the default one if it exists.
func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("toml")
	v.AddConfigPath(DefaultConfigDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

type invalidValue struct {
	Field string
	Value any
}

// Validate checks every field and returns the first coded error found.
func (c *Config) Validate() error {
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, invalidValue{"log_level", c.LogLevel})
	}

	switch c.Backend {
	case hardware.KindDriver, hardware.KindEC:
	default:
		return errFactory.WithData(errors.ErrInvalidBackend, invalidValue{"backend", c.Backend})
	}

	if c.StepDelay <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, invalidValue{"step_delay", c.StepDelay})
	}
	if c.SampleInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, invalidValue{"sample_interval", c.SampleInterval})
	}
	if c.MaxStepFaults < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, invalidValue{"max_step_faults", c.MaxStepFaults})
	}
	if c.EventBuffer < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, invalidValue{"event_buffer", c.EventBuffer})
	}

	if c.TargetRPM != NoTarget && (c.TargetRPM < 0 || !hardware.FanSpeed(c.TargetRPM).Valid()) {
		return errFactory.WithData(errors.ErrInvalidTarget, invalidValue{"target_rpm", c.TargetRPM})
	}
	if c.Mode != "" {
		if _, err := hardware.ParseMode(c.Mode); err != nil {
			return errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	return nil
}

// HasTarget reports whether a startup fan target is configured.
func (c *Config) HasTarget() bool {
	return c.TargetRPM != NoTarget
}
