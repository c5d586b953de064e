package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/pankha/pankhactl/internal/config"
	"codeberg.org/pankha/pankhactl/internal/errors"
	"codeberg.org/pankha/pankhactl/internal/events"
	"codeberg.org/pankha/pankhactl/internal/fan"
	"codeberg.org/pankha/pankhactl/internal/hardware"
	"codeberg.org/pankha/pankhactl/internal/logger"
	"codeberg.org/pankha/pankhactl/internal/pid"
	"codeberg.org/pankha/pankhactl/internal/sensors"
	"codeberg.org/pankha/pankhactl/internal/service"
	"codeberg.org/pankha/pankhactl/internal/system"
	"codeberg.org/pankha/pankhactl/internal/telemetry"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")

	lock := pid.New("")
	if err := lock.Write(); err != nil {
		logger.FatalWithCode(err).Msg("Failed to acquire pid file")
	}
	defer releaseLock(lock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx, cfg); err != nil {
		logger.ErrorWithCode(err).Msg("Exiting with error")
		cancel()
		releaseLock(lock)
		os.Exit(1)
	}
	logger.Info().Msg("Exiting...")
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	host := system.New()
	if cfg.Backend == hardware.KindEC && cfg.LoadECSys {
		if err := host.EnsureECSys(ctx); err != nil {
			logger.ErrorWithCode(err).Msg("ec_sys unavailable, register backend will fail until it is loaded")
		}
	}

	backend, err := hardware.Open(hardware.Options{
		Kind:       cfg.Backend,
		DevicePath: cfg.Device,
		ECPath:     cfg.ECPath,
		Profile:    cfg.Board,
	})
	if err != nil {
		return err
	}
	logger.Info().Str("backend", backend.Name()).Msg("Hardware backend selected")

	bus := events.NewBus()
	defer bus.Close()

	collector, err := telemetry.NewService(telemetry.Config{
		DBPath:       cfg.TelemetryDB,
		BatchSize:    telemetry.DefaultConfig().BatchSize,
		BatchTimeout: telemetry.DefaultConfig().BatchTimeout,
		Enabled:      cfg.Telemetry,
	}, logger.New("telemetry"))
	if err != nil {
		backend.Close()
		return err
	}
	recorded := make(chan struct{})
	defer func() {
		stop()
		<-recorded
		if err := collector.Close(); err != nil {
			logger.ErrorWithCode(err).Msg("Failed to close telemetry")
		}
	}()
	if cfg.Telemetry {
		_, ch := bus.Subscribe(cfg.EventBuffer)
		go func() {
			defer close(recorded)
			telemetry.NewRecorder(collector, logger.New("telemetry")).Run(ctx, ch)
		}()
	} else {
		close(recorded)
	}
	if cfg.Monitor {
		_, ch := bus.Subscribe(cfg.EventBuffer)
		go monitor(ctx, ch)
	}

	svc := service.New(service.Options{
		Backend: backend,
		Sink:    bus,
		Host:    host,
		Thermometer: sensors.NewThermometer(sensors.NewLocator(nil, cfg.HwmonPath), sensors.Source{
			Chip:       cfg.SensorChip,
			Feature:    cfg.SensorFeature,
			Subfeature: cfg.SensorSubfeature,
		}),
		Fan: fan.Config{
			StepDelay:     cfg.StepDelay,
			MaxStepFaults: cfg.MaxStepFaults,
		},
		SampleInterval: cfg.SampleInterval,
		PollFan:        true,
	})
	defer func() {
		if err := svc.Close(); err != nil {
			logger.ErrorWithCode(err).Msg("Failed to release fan device")
		}
	}()

	if err := apply(svc, cfg); err != nil {
		return err
	}
	if err := svc.StartSampler(ctx); err != nil {
		return err
	}

	logger.Info().
		Bool("root", svc.IsRoot()).
		Int("cpu_temp", svc.CPUTemp()).
		Msg("Daemon running")

	<-ctx.Done()
	return nil
}

// apply sets the startup controller mode and fan target from config.
func apply(svc *service.Service, cfg *config.Config) error {
	if cfg.Mode != "" {
		mode, err := hardware.ParseMode(cfg.Mode)
		if err != nil {
			return err
		}
		if err := svc.SetControllerMode(mode); err != nil {
			return err
		}
	}

	if cfg.HasTarget() {
		if err := svc.SetFanRPM(hardware.FanSpeed(cfg.TargetRPM)); err != nil {
			return err
		}
	}

	return nil
}

func monitor(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch ev.Topic {
			case events.TopicRampError:
				logger.Warn().Str("topic", ev.Topic).Interface("payload", ev.Payload).Msg("Event")
			default:
				logger.Info().Str("topic", ev.Topic).Interface("payload", ev.Payload).Msg("Event")
			}
		}
	}
}

func releaseLock(lock *pid.File) {
	if err := lock.Remove(); err != nil {
		logger.ErrorWithCode(err).Msg("Failed to remove pid file")
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
