package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	queuedAudio []byte

	mu      sync.Mutex
	audioMu sync.Mutex

	// drained is signalled whenever the device callback empties the queue.
	drained chan struct{}
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = uint32(sampleRate)
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = uint32(sampleRate / 10) // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext
	c.drained = make(chan struct{}, 1)

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return err
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	c.ClearBuffer()
	return nil
}

func (c *playbackClient) Enqueue(pcm []byte) error {
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.queuedAudio = append(c.queuedAudio, pcm...)
	return nil
}

// Drain blocks until the playback queue is empty or ctx is cancelled. The
// last period may still be in the device's own buffer when this returns;
// that tail is at most ~100ms and not worth tracking.
func (c *playbackClient) Drain(ctx context.Context) error {
	for {
		c.audioMu.Lock()
		empty := len(c.queuedAudio) == 0
		c.audioMu.Unlock()

		if empty {
			return nil
		}

		select {
		case <-c.drained:
		case <-ctx.Done():
			c.ClearBuffer()
			return ctx.Err()
		}
	}
}

func (c *playbackClient) ClearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.queuedAudio = nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.audioMu.Lock()
		if len(c.queuedAudio) == 0 {
			c.audioMu.Unlock()
			return
		}

		if len(c.queuedAudio) <= need {
			_ = copy(pOutput, c.queuedAudio)
			c.queuedAudio = nil
			c.audioMu.Unlock()
			c.signalDrained()
			return
		}

		_ = copy(pOutput, c.queuedAudio[:need])
		c.queuedAudio = c.queuedAudio[need:]
		c.audioMu.Unlock()
	}
}

func (c *playbackClient) signalDrained() {
	select {
	case c.drained <- struct{}{}:
	default:
	}
}
