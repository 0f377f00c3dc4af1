package orchestration

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxturn/voxturn-core/core/audio"
)

// Segment is one contiguous utterance of audio, bounded by silence and
// trimmed of it. It is owned by whichever stage currently processes it and
// discarded after transcription.
type Segment struct {
	PCM      []byte
	Encoding audio.EncodingInfo
}

func (s Segment) Duration() time.Duration { return s.Encoding.Duration(s.PCM) }

// segmenter turns the continuous capture frame stream into complete speech
// segments. Frames arrive on the capture callback; completed segments are
// handed off through a single-slot channel. Segments that complete while the
// orchestrator is mid-turn are dropped, never queued, so a later turn cannot
// start from stale audio.
type segmenter struct {
	encoding           audio.EncodingInfo
	silenceThreshold   float64
	silenceDuration    time.Duration
	minSegmentDuration time.Duration

	accepting atomic.Bool

	mu sync.Mutex
	// buffer holds voiced frames plus any mid-speech pauses shorter than
	// silenceDuration.
	buffer []byte
	// pendingSilence holds silent frames heard since the last voiced frame.
	// It is folded into buffer if speech resumes and discarded otherwise,
	// which is what trims trailing silence.
	pendingSilence []byte
	speechHeard    bool

	segments chan Segment
}

func newSegmenter(config Config, encoding audio.EncodingInfo) *segmenter {
	return &segmenter{
		encoding:           encoding,
		silenceThreshold:   config.SilenceThreshold,
		silenceDuration:    config.SilenceDuration,
		minSegmentDuration: config.MinSegmentDuration,
		segments:           make(chan Segment, 1),
	}
}

func (s *segmenter) Segments() <-chan Segment { return s.segments }

func (s *segmenter) SetAccepting(accepting bool) { s.accepting.Store(accepting) }

// ProcessFrame consumes one capture frame. Safe to call from the audio
// device's callback goroutine.
func (s *segmenter) ProcessFrame(frame []byte) {
	if len(frame) == 0 {
		return
	}

	voiced := audio.RMS(frame) >= s.silenceThreshold

	s.mu.Lock()
	if voiced {
		s.speechHeard = true
		s.buffer = append(s.buffer, s.pendingSilence...)
		s.pendingSilence = nil
		s.buffer = append(s.buffer, frame...)
		s.mu.Unlock()
		return
	}

	if !s.speechHeard {
		// Idle silence is dropped outright so an unattended session does
		// not buffer without bound.
		s.mu.Unlock()
		return
	}

	s.pendingSilence = append(s.pendingSilence, frame...)
	if s.encoding.Duration(s.pendingSilence) < s.silenceDuration {
		s.mu.Unlock()
		return
	}

	pcm := s.buffer
	s.buffer = nil
	s.pendingSilence = nil
	s.speechHeard = false
	s.mu.Unlock()

	s.emit(Segment{PCM: pcm, Encoding: s.encoding})
}

func (s *segmenter) emit(segment Segment) {
	if segment.Duration() < s.minSegmentDuration {
		logger.Debug("Discarding segment shorter than minimum", "duration", segment.Duration())
		return
	}

	if !s.accepting.Load() {
		logger.Debug("Dropping segment completed mid-turn", "duration", segment.Duration())
		return
	}

	select {
	case s.segments <- segment:
	default:
		logger.Debug("Dropping segment, hand-off slot still occupied", "duration", segment.Duration())
	}
}
