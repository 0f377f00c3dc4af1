package orchestration

import (
	"fmt"
	"time"
)

// Config is read once at startup and never mutated afterwards.
type Config struct {
	// Instructions is the system prompt sent with every model request.
	Instructions string

	// SilenceThreshold is the normalized RMS amplitude below which a frame
	// counts as silence.
	SilenceThreshold float64
	// SilenceDuration is how long silence must persist after speech before a
	// segment is considered complete.
	SilenceDuration time.Duration
	// MinSegmentDuration is the shortest segment worth transcribing; shorter
	// bursts are discarded as noise.
	MinSegmentDuration time.Duration

	// MaxToolIterations bounds the inference/tool-execution loop within one
	// turn. Exceeding it yields a synthetic "could not complete" response.
	MaxToolIterations int
	// CallTimeout bounds each adapter call when non-zero. Zero means the
	// session waits however long the model takes.
	CallTimeout time.Duration

	// UseTools exposes registered tools to the model. Some models do not
	// support tool calling; turning this off still allows registration.
	UseTools bool
	// WakeWord breaks an active snooze when it appears in a transcript.
	WakeWord string
}

func DefaultConfig() Config {
	return Config{
		SilenceThreshold:   0.015,
		SilenceDuration:    time.Second,
		MinSegmentDuration: 300 * time.Millisecond,
		MaxToolIterations:  8,
		UseTools:           true,
		WakeWord:           "cat",
	}
}

func (c Config) validate() error {
	if c.SilenceThreshold < 0 || c.SilenceThreshold > 1 {
		return fmt.Errorf("silence threshold must be within [0, 1], got %f", c.SilenceThreshold)
	}
	if c.SilenceDuration <= 0 {
		return fmt.Errorf("silence duration must be positive, got %v", c.SilenceDuration)
	}
	if c.MinSegmentDuration < 0 {
		return fmt.Errorf("minimum segment duration must not be negative, got %v", c.MinSegmentDuration)
	}
	if c.MaxToolIterations <= 0 {
		return fmt.Errorf("maximum tool iterations must be positive, got %d", c.MaxToolIterations)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call timeout must not be negative, got %v", c.CallTimeout)
	}
	return nil
}
