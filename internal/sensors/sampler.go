package sensors

import (
	"context"
	"sync"
	"time"

	"codeberg.org/pankha/pankhactl/internal/events"
	"codeberg.org/pankha/pankhactl/internal/logger"
)

const DefaultInterval = 5 * time.Second

// Probe produces one payload per tick. ok=false skips emission for that tick.
type Probe struct {
	Topic string
	Read  func() (payload any, ok bool)
}

// TemperatureProbe emits cpu_temp readings, including the sentinel.
func TemperatureProbe(t *Thermometer) Probe {
	return Probe{
		Topic: events.TopicCPUTemp,
		Read:  func() (any, bool) { return t.Temperature(), true },
	}
}

// Sampler runs its probes once at start and then on every interval.
type Sampler struct {
	interval time.Duration
	sink     events.Sink
	probes   []Probe
	log      logger.Logger

	// ticker returns the tick channel and its stop func.
	ticker func(time.Duration) (<-chan time.Time, func())

	once   sync.Once
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSampler(interval time.Duration, sink events.Sink, probes ...Probe) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if sink == nil {
		sink = events.Discard
	}

	return &Sampler{
		interval: interval,
		sink:     sink,
		probes:   probes,
		log:      logger.New("sampler"),
		ticker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Start launches the sampling task. Only the first call has an effect; it
// reports whether this call started it.
func (s *Sampler) Start(ctx context.Context) bool {
	started := false
	s.once.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancel = cancel
		s.mu.Unlock()

		s.wg.Add(1)
		go s.run(ctx)
		started = true
	})

	return started
}

// Stop cancels the task and waits for it to exit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Sample runs every probe once.
func (s *Sampler) Sample() {
	for _, p := range s.probes {
		payload, ok := p.Read()
		if !ok {
			continue
		}
		s.sink.Emit(p.Topic, payload)
	}
}

func (s *Sampler) run(ctx context.Context) {
	defer s.wg.Done()

	tick, stop := s.ticker(s.interval)
	defer stop()

	s.log.Debug().Dur("interval", s.interval).Int("probes", len(s.probes)).Msg("Sampler started")
	s.Sample()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("Sampler stopped")
			return
		case <-tick:
			s.Sample()
		}
	}
}
