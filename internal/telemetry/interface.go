package telemetry

import (
	"context"
	"database/sql"
	"time"
)

// Collector records samples for later analysis.
type Collector interface {
	Record(ctx context.Context, sample *Sample) error
	Close() error
}

// Repository defines the interface for sample storage
type Repository interface {
	Record(sample *Sample) error
	Query(ctx context.Context, topic string, since time.Time) ([]Sample, error)
	Close() error
}

// Sample is one stored event. Value holds numeric payloads (degrees, rpm);
// Detail holds text payloads such as ramp errors.
type Sample struct {
	Timestamp time.Time
	Topic     string
	Value     sql.NullInt64
	Detail    string
}
