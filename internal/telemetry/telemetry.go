package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codeberg.org/pankha/pankhactl/internal/errors"
	"codeberg.org/pankha/pankhactl/internal/events"
	"codeberg.org/pankha/pankhactl/internal/hardware"
	"codeberg.org/pankha/pankhactl/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
}

// No-op implementation
type noopCollector struct{}

func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Telemetry disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create telemetry repository")
		return nil, err
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Msg("Telemetry service initialized successfully")

	return &service{repo: repo, cfg: cfg}, nil
}

func (s *service) Record(ctx context.Context, sample *Sample) error {
	errFactory := errors.New()

	if sample == nil || sample.Topic == "" {
		return errFactory.New(ErrInvalidSample)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(sample); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}

func (*noopCollector) Record(_ context.Context, _ *Sample) error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}

// SampleFromEvent maps an event payload onto a stored sample.
func SampleFromEvent(ev events.Event) Sample {
	s := Sample{Timestamp: ev.At, Topic: ev.Topic}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}

	switch v := ev.Payload.(type) {
	case int:
		s.Value = sql.NullInt64{Int64: int64(v), Valid: true}
	case hardware.FanSpeed:
		s.Value = sql.NullInt64{Int64: int64(v), Valid: true}
	case string:
		s.Detail = v
	case nil, struct{}:
	default:
		s.Detail = fmt.Sprint(v)
	}

	return s
}

// Recorder stores every event received on a bus subscription.
type Recorder struct {
	collector Collector
	log       logger.Logger
}

func NewRecorder(c Collector, log logger.Logger) *Recorder {
	return &Recorder{collector: c, log: log}
}

// Run records events until ctx is done or ch is closed.
func (r *Recorder) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sample := SampleFromEvent(ev)
			if err := r.collector.Record(ctx, &sample); err != nil {
				r.log.Warn().Err(err).Str("topic", ev.Topic).Msg("Failed to record event")
			}
		}
	}
}
