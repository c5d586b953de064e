// Package service exposes the fan, mode, temperature and system operations
// as the command surface used by front-ends.
package service

import (
	"context"
	"sync"
	"time"

	"codeberg.org/pankha/pankhactl/internal/errors"
	"codeberg.org/pankha/pankhactl/internal/events"
	"codeberg.org/pankha/pankhactl/internal/fan"
	"codeberg.org/pankha/pankhactl/internal/hardware"
	"codeberg.org/pankha/pankhactl/internal/logger"
	"codeberg.org/pankha/pankhactl/internal/sensors"
)

const ErrClosed = errors.ErrorCode("service_closed")

// Host is the privilege and module surface, see system.Host.
type Host interface {
	IsRoot() bool
	IsECSysLoaded() bool
	LoadECSysWithWriteSupport(ctx context.Context) error
}

type Options struct {
	Backend     hardware.Backend
	Sink        events.Sink
	Host        Host
	Thermometer *sensors.Thermometer
	Fan         fan.Config

	SampleInterval time.Duration
	// PollFan adds a fan_rpm reading to every sample while no ramp runs.
	PollFan bool
}

type Service struct {
	backend hardware.Backend
	host    Host
	temp    *sensors.Thermometer
	fan     *fan.Controller
	sampler *sensors.Sampler
	log     logger.Logger

	mu     sync.Mutex
	closed bool
}

func New(opts Options) *Service {
	sink := opts.Sink
	if sink == nil {
		sink = events.Discard
	}

	s := &Service{
		backend: opts.Backend,
		host:    opts.Host,
		temp:    opts.Thermometer,
		fan:     fan.New(opts.Backend, sink, opts.Fan),
		log:     logger.New("service"),
	}

	probes := []sensors.Probe{sensors.TemperatureProbe(opts.Thermometer)}
	if opts.PollFan {
		probes = append(probes, sensors.Probe{Topic: events.TopicFanRPM, Read: s.idleFanSpeed})
	}
	s.sampler = sensors.NewSampler(opts.SampleInterval, sink, probes...)

	return s
}

func (s *Service) IsRoot() bool {
	return s.host.IsRoot()
}

func (s *Service) IsECSysLoaded() bool {
	return s.host.IsECSysLoaded()
}

func (s *Service) LoadECSysWithWriteSupport(ctx context.Context) error {
	return s.host.LoadECSysWithWriteSupport(ctx)
}

func (s *Service) ControllerMode() (hardware.ControllerMode, error) {
	return s.backend.ReadMode()
}

func (s *Service) SetControllerMode(mode hardware.ControllerMode) error {
	if err := s.backend.WriteMode(mode); err != nil {
		return err
	}

	s.log.Info().Str("mode", mode.String()).Msg("Controller mode set")
	return nil
}

// FanRPM reads the hardware directly, independent of any ramp in flight.
func (s *Service) FanRPM() (hardware.FanSpeed, error) {
	return s.backend.ReadSpeed()
}

// SetFanRPM starts a ramp toward target and returns without waiting for it.
func (s *Service) SetFanRPM(target hardware.FanSpeed) error {
	return s.fan.RequestTarget(target)
}

// CPUTemp returns the package temperature or sensors.Unavailable.
func (s *Service) CPUTemp() int {
	return s.temp.Temperature()
}

// StartSampler starts periodic sampling. Later calls are no-ops.
func (s *Service) StartSampler(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New().New(ErrClosed)
	}
	if s.sampler.Start(ctx) {
		s.log.Debug().Msg("Sampler started")
	}

	return nil
}

// Ramp returns the fan controller state.
func (s *Service) Ramp() fan.RampState {
	return s.fan.State()
}

// Close stops sampling and ramping, then releases the device handle.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.sampler.Stop()
	s.fan.Close()

	return s.backend.Close()
}

func (s *Service) idleFanSpeed() (any, bool) {
	if s.fan.Ramping() {
		return nil, false
	}

	speed, err := s.backend.ReadSpeed()
	if err != nil {
		s.log.Debug().Err(err).Msg("Fan speed poll failed")
		return nil, false
	}

	return speed, true
}
