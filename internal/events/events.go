// Package events carries notifications from the fan controller and the
// temperature sampler to observers such as a UI or the telemetry recorder.
package events

import "time"

// Topics
const (
	TopicCPUTemp        = "cpu_temp"
	TopicFanRPM         = "fan_rpm"
	TopicReleaseBtnLock = "release_btn_lock"
	TopicRampError      = "fan_ramp_error"
)

// Sink accepts events. Emit must not block the caller.
type Sink interface {
	Emit(topic string, payload any)
}

// Event is one emitted notification.
type Event struct {
	Topic   string
	Payload any
	At      time.Time
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(topic string, payload any)

func (f SinkFunc) Emit(topic string, payload any) {
	f(topic, payload)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(string, any) {})
