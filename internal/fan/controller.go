package fan

import (
	"sync"
	"time"

	"codeberg.org/pankha/pankhactl/internal/events"
	"codeberg.org/pankha/pankhactl/internal/hardware"
	"codeberg.org/pankha/pankhactl/internal/logger"
)

const (
	DefaultStepDelay     = 2 * time.Second
	DefaultMaxStepFaults = 3
)

type Config struct {
	// StepDelay is the pause before each ramp step.
	StepDelay time.Duration
	// MaxStepFaults is how many consecutive failed steps abandon a ramp.
	MaxStepFaults int
}

// RampState is the logical fan state owned by the controller.
type RampState struct {
	Current    hardware.FanSpeed
	Target     hardware.FanSpeed
	Generation uint64
}

// Controller steps the fan toward the most recently requested target, one
// RPMStep at a time. Every request bumps the generation; at most one ramp
// task owns the state at a time and a task whose generation no longer owns
// it exits without touching hardware.
type Controller struct {
	backend hardware.Backend
	sink    events.Sink
	cfg     Config
	log     logger.Logger
	after   func(time.Duration) <-chan time.Time

	mu     sync.Mutex
	state  RampState
	seeded bool
	owner  uint64 // generation of the running task, 0 while idle
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New seeds the state from the backend. A failed seed read is retried on the
// first request.
func New(backend hardware.Backend, sink events.Sink, cfg Config) *Controller {
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = DefaultStepDelay
	}
	if cfg.MaxStepFaults <= 0 {
		cfg.MaxStepFaults = DefaultMaxStepFaults
	}
	if sink == nil {
		sink = events.Discard
	}

	c := &Controller{
		backend: backend,
		sink:    sink,
		cfg:     cfg,
		log:     logger.New("fan"),
		after:   time.After,
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	if err := c.seedLocked(); err != nil {
		c.log.Warn().Err(err).Msg("Initial fan speed read failed")
	}
	c.mu.Unlock()

	return c
}

func (c *Controller) seedLocked() error {
	if c.seeded {
		return nil
	}

	speed, err := c.backend.ReadSpeed()
	if err != nil {
		return err
	}
	c.state.Current = speed
	c.state.Target = speed
	c.seeded = true
	c.log.Debug().Uint32("rpm", uint32(speed)).Msg("Fan state seeded")

	return nil
}

// RequestTarget validates t and records it as the new target. It returns
// before any hardware write; progress is reported through the sink.
func (c *Controller) RequestTarget(t hardware.FanSpeed) error {
	if !t.Valid() {
		return errFactory.WithData(ErrInvalidTarget, t)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errFactory.New(ErrClosed)
	}
	if err := c.seedLocked(); err != nil {
		return err
	}

	if c.owner == 0 && t == c.state.Current {
		c.state.Target = t
		return nil
	}

	c.state.Generation++
	c.state.Target = t
	c.log.Info().
		Uint32("current", uint32(c.state.Current)).
		Uint32("target", uint32(t)).
		Uint64("generation", c.state.Generation).
		Msg("Fan target requested")

	if c.owner == 0 {
		c.owner = c.state.Generation
		c.wg.Add(1)
		go c.ramp(c.owner)
	}

	return nil
}

// State returns a copy of the ramp state.
func (c *Controller) State() RampState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ramping reports whether a ramp task currently owns the state.
func (c *Controller) Ramping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner != 0
}

// Close retires any running ramp and waits for it to exit. The fan keeps
// its last committed speed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.owner = 0
	c.state.Generation++
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Controller) ramp(gen uint64) {
	defer c.wg.Done()

	faults := 0
	for {
		select {
		case <-c.after(c.cfg.StepDelay):
		case <-c.done:
			return
		}

		if !c.step(&gen, &faults) {
			return
		}
	}
}

// step performs one ramp step under the state lock and reports whether the
// task should keep running.
func (c *Controller) step(gen *uint64, faults *int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.owner != *gen {
		c.log.Debug().Uint64("generation", *gen).Msg("Ramp superseded")
		return false
	}
	if c.state.Generation != *gen {
		// Requests made while this task was running are continued by it.
		// The fault count carries over; only a successful write clears it.
		*gen = c.state.Generation
		c.owner = *gen
	}

	if c.state.Current == c.state.Target {
		c.finishLocked()
		return false
	}

	next := nextStep(c.state.Current, c.state.Target)
	if err := c.backend.WriteSpeed(next); err != nil {
		*faults++
		c.log.Warn().
			Err(err).
			Uint32("rpm", uint32(next)).
			Int("faults", *faults).
			Msg("Fan step failed")

		if *faults == 1 {
			c.reclaimControlLocked()
		}
		if *faults >= c.cfg.MaxStepFaults {
			c.abandonLocked(err)
			return false
		}
		return true
	}

	*faults = 0
	c.state.Current = next
	c.sink.Emit(events.TopicFanRPM, next)
	c.log.Debug().Uint32("rpm", uint32(next)).Uint64("generation", *gen).Msg("Fan step")

	if next == c.state.Target {
		c.finishLocked()
		return false
	}

	return true
}

func (c *Controller) finishLocked() {
	c.owner = 0
	c.sink.Emit(events.TopicReleaseBtnLock, struct{}{})
	c.log.Info().Uint32("rpm", uint32(c.state.Current)).Msg("Fan ramp complete")
}

// abandonLocked stops the ramp at the last committed speed.
func (c *Controller) abandonLocked(cause error) {
	err := errFactory.Wrap(ErrRampAbandoned, cause)
	c.owner = 0
	c.state.Target = c.state.Current
	c.sink.Emit(events.TopicRampError, err.Error())
	c.log.Error().Err(err).Uint32("rpm", uint32(c.state.Current)).Msg("Fan ramp abandoned")
}

// reclaimControlLocked switches the firmware to the user controller when the
// BIOS has taken the fan back, which makes speed writes fail.
func (c *Controller) reclaimControlLocked() {
	mode, err := c.backend.ReadMode()
	if err != nil {
		c.log.Debug().Err(err).Msg("Controller mode read failed")
		return
	}
	if mode != hardware.BiosControlled {
		return
	}

	if err := c.backend.WriteMode(hardware.UserControlled); err != nil {
		c.log.Warn().Err(err).Msg("Switching to user controller failed")
		return
	}
	c.log.Info().Msg("Switched fan to user controller")
}

// nextStep moves current toward target by at most one RPMStep, landing on
// step multiples so an unaligned hardware reading is corrected on the way.
// A reading above RPMMax is brought back in range in a single write, since
// no speed above it can be sent to the hardware.
func nextStep(current, target hardware.FanSpeed) hardware.FanSpeed {
	step := hardware.RPMStep
	if current > hardware.RPMMax {
		return max(target, hardware.RPMMax)
	}
	if current < target {
		return min(target, (current/step+1)*step)
	}
	if current == 0 {
		return 0
	}

	return max(target, ((current-1)/step)*step)
}
